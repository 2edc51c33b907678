package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lendgate/internal/domain"
)

func simple(field string, op domain.Operator, value any) domain.RuleCondition {
	return domain.RuleCondition{Type: domain.ConditionSimple, Field: field, Operator: op, Value: value}
}

func compound(logic domain.CompoundLogic, children ...domain.RuleCondition) domain.RuleCondition {
	return domain.RuleCondition{Type: domain.ConditionCompound, Logic: logic, Children: children}
}

func TestEvaluatorSimpleOperators(t *testing.T) {
	data := map[string]any{
		"dscr": map[string]any{"ratio": 1.25},
		"borrower": map[string]any{
			"creditScore":    float64(720),
			"reservesMonths": 3,
			"state":          "TX",
			"email":          "b@example.com",
		},
		"property": map[string]any{"type": "SFR"},
	}

	tests := []struct {
		name string
		cond domain.RuleCondition
		want bool
	}{
		{"eq match", simple("property.type", domain.OpEq, "SFR"), true},
		{"eq numeric coercion", simple("borrower.creditScore", domain.OpEq, 720), true},
		{"ne", simple("property.type", domain.OpNe, "CONDO"), true},
		{"gt true", simple("dscr.ratio", domain.OpGt, 1.0), true},
		{"gte boundary", simple("borrower.creditScore", domain.OpGte, 720), true},
		{"lt false", simple("dscr.ratio", domain.OpLt, 1.0), false},
		{"lte boundary", simple("borrower.reservesMonths", domain.OpLte, 3), true},
		{"in", simple("borrower.state", domain.OpIn, []string{"TX", "FL"}), true},
		{"not_in", simple("borrower.state", domain.OpNotIn, []string{"NY", "CA"}), true},
		{"between inclusive low", simple("borrower.reservesMonths", domain.OpBetween, []any{3, 12}), true},
		{"between inclusive high", simple("dscr.ratio", domain.OpBetween, []any{1.0, 1.25}), true},
		{"between outside", simple("borrower.creditScore", domain.OpBetween, []any{740, 850}), false},
		{"contains", simple("borrower.email", domain.OpContains, "@example"), true},
		{"not_contains", simple("borrower.email", domain.OpNotContains, "@corp"), true},
		{"exists", simple("dscr.ratio", domain.OpExists, nil), true},
		{"exists missing path", simple("dscr.history", domain.OpExists, nil), false},
		{"not_exists missing path", simple("appraisal.value", domain.OpNotExists, nil), true},
		{"regex", simple("borrower.email", domain.OpRegex, `^[^@]+@example\.com$`), true},
		{"ordering on missing path is false", simple("appraisal.value", domain.OpGte, 100), false},
	}

	evaluator := NewEvaluator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := evaluator.Evaluate(tc.cond, data)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluatorSimpleErrors(t *testing.T) {
	evaluator := NewEvaluator()
	data := map[string]any{"property": map[string]any{"type": "SFR"}}

	_, err := evaluator.Evaluate(simple("property.type", "like", "S%"), data)
	require.ErrorIs(t, err, ErrUnknownOperator)

	_, err = evaluator.Evaluate(simple("property.type", domain.OpGt, 1), data)
	require.Error(t, err, "ordering against a defined non-numeric value must error")

	_, err = evaluator.Evaluate(simple("property.type", domain.OpBetween, []any{1}), data)
	require.Error(t, err, "between needs exactly two bounds")

	_, err = evaluator.Evaluate(domain.RuleCondition{Type: "FANCY"}, data)
	require.ErrorIs(t, err, ErrUnknownConditionType)
}

func TestEvaluatorCompound(t *testing.T) {
	evaluator := NewEvaluator()
	data := map[string]any{
		"dscr":     map[string]any{"ratio": 1.1},
		"borrower": map[string]any{"creditScore": float64(680)},
	}

	dscrOK := simple("dscr.ratio", domain.OpGte, 1.0)
	creditOK := simple("borrower.creditScore", domain.OpGte, 700)

	t.Run("AND is conjunction", func(t *testing.T) {
		got, err := evaluator.Evaluate(compound(domain.LogicAnd, dscrOK, creditOK), data)
		require.NoError(t, err)
		require.False(t, got)

		a, _ := evaluator.Evaluate(dscrOK, data)
		b, _ := evaluator.Evaluate(creditOK, data)
		require.Equal(t, a && b, got)
	})

	t.Run("OR is disjunction", func(t *testing.T) {
		got, err := evaluator.Evaluate(compound(domain.LogicOr, dscrOK, creditOK), data)
		require.NoError(t, err)
		require.True(t, got)
	})

	t.Run("empty children vacuously true", func(t *testing.T) {
		for _, logic := range []domain.CompoundLogic{domain.LogicAnd, domain.LogicOr} {
			got, err := evaluator.Evaluate(compound(logic), data)
			require.NoError(t, err)
			require.True(t, got, "logic %s", logic)
		}
	})

	t.Run("nested tree", func(t *testing.T) {
		tree := compound(domain.LogicAnd,
			dscrOK,
			compound(domain.LogicOr, creditOK, simple("dscr.ratio", domain.OpGt, 1.05)),
		)
		got, err := evaluator.Evaluate(tree, data)
		require.NoError(t, err)
		require.True(t, got)
	})
}

func TestEvaluatorCustom(t *testing.T) {
	evaluator := NewEvaluator()
	data := map[string]any{"flags": map[string]any{"foreignNational": true}}

	_, err := evaluator.Evaluate(domain.RuleCondition{Type: domain.ConditionCustom, Function: "foreign_national_check"}, data)
	require.ErrorIs(t, err, ErrCustomNotRegistered)

	evaluator.RegisterCustom("foreign_national_check", func(data map[string]any) (bool, error) {
		flags, _ := data["flags"].(map[string]any)
		v, _ := flags["foreignNational"].(bool)
		return !v, nil
	})

	got, err := evaluator.Evaluate(domain.RuleCondition{Type: domain.ConditionCustom, Function: "foreign_national_check"}, data)
	require.NoError(t, err)
	require.False(t, got)

	evaluator.RegisterCustom("boom", func(map[string]any) (bool, error) {
		return false, errors.New("upstream unavailable")
	})
	_, err = evaluator.Evaluate(domain.RuleCondition{Type: domain.ConditionCustom, Function: "boom"}, data)
	require.Error(t, err)
}
