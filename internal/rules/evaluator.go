package rules

import (
	"fmt"
	"regexp"
	"strings"

	"lendgate/internal/domain"
)

// CustomFunc is a registered predicate for CUSTOM conditions. It receives the
// full evaluation snapshot.
type CustomFunc func(data map[string]any) (bool, error)

// Evaluator scores a single rule condition tree against a data snapshot.
// This is pure domain logic - no I/O, no side effects.
type Evaluator struct {
	customs map[string]CustomFunc
}

func NewEvaluator() *Evaluator {
	return &Evaluator{customs: make(map[string]CustomFunc)}
}

// RegisterCustom makes fn available to CUSTOM conditions under name.
func (e *Evaluator) RegisterCustom(name string, fn CustomFunc) {
	e.customs[name] = fn
}

// Evaluate walks the condition tree. The variant set is closed; anything
// outside SIMPLE/COMPOUND/CUSTOM is a configuration error.
func (e *Evaluator) Evaluate(cond domain.RuleCondition, data map[string]any) (bool, error) {
	switch cond.Type {
	case domain.ConditionSimple:
		return e.evaluateSimple(cond, data)
	case domain.ConditionCompound:
		return e.evaluateCompound(cond, data)
	case domain.ConditionCustom:
		fn, ok := e.customs[cond.Function]
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrCustomNotRegistered, cond.Function)
		}
		return fn(data)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownConditionType, cond.Type)
	}
}

// evaluateCompound short-circuits logically only; child evaluation has no
// side effects. An empty child list is vacuously true for both AND and OR.
func (e *Evaluator) evaluateCompound(cond domain.RuleCondition, data map[string]any) (bool, error) {
	if len(cond.Children) == 0 {
		return true, nil
	}
	switch cond.Logic {
	case domain.LogicAnd:
		for _, child := range cond.Children {
			ok, err := e.Evaluate(child, data)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case domain.LogicOr:
		for _, child := range cond.Children {
			ok, err := e.Evaluate(child, data)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown compound logic %q", cond.Logic)
	}
}

func (e *Evaluator) evaluateSimple(cond domain.RuleCondition, data map[string]any) (bool, error) {
	actual := lookupPath(data, cond.Field)

	switch cond.Operator {
	case domain.OpEq:
		return valuesEqual(actual, cond.Value), nil
	case domain.OpNe:
		return !valuesEqual(actual, cond.Value), nil
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		return compareNumeric(cond.Operator, actual, cond.Value, cond.Field)
	case domain.OpIn:
		return memberOf(actual, cond.Value)
	case domain.OpNotIn:
		ok, err := memberOf(actual, cond.Value)
		return !ok, err
	case domain.OpBetween:
		return between(actual, cond.Value, cond.Field)
	case domain.OpContains:
		return containsString(actual, cond.Value), nil
	case domain.OpNotContains:
		return !containsString(actual, cond.Value), nil
	case domain.OpExists:
		return isDefined(actual), nil
	case domain.OpNotExists:
		return !isDefined(actual), nil
	case domain.OpRegex:
		return matchRegex(actual, cond.Value)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
	}
}

// undefinedValue marks a dot-path that did not resolve. Missing data is an
// ordinary evaluation fact, not an error.
type undefinedValue struct{}

var undefined = undefinedValue{}

func isDefined(v any) bool {
	if _, missing := v.(undefinedValue); missing {
		return false
	}
	return v != nil
}

// lookupPath traverses nested maps by dot-separated segments. Any missing or
// non-map intermediate yields undefined.
func lookupPath(data map[string]any, path string) any {
	cur := any(data)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return undefined
		}
		cur, ok = m[seg]
		if !ok {
			return undefined
		}
	}
	return cur
}

func valuesEqual(actual, expected any) bool {
	if !isDefined(actual) {
		return false
	}
	if af, aok := toFloat(actual); aok {
		if ef, eok := toFloat(expected); eok {
			return af == ef
		}
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

// compareNumeric applies an ordering operator. An undefined actual is simply
// false; a defined value that cannot be read as a number is a rule bug and
// surfaces as an error.
func compareNumeric(op domain.Operator, actual, expected any, field string) (bool, error) {
	if !isDefined(actual) {
		return false, nil
	}
	a, ok := toFloat(actual)
	if !ok {
		return false, fmt.Errorf("field %q: value %v is not numeric", field, actual)
	}
	e, ok := toFloat(expected)
	if !ok {
		return false, fmt.Errorf("field %q: literal %v is not numeric", field, expected)
	}
	switch op {
	case domain.OpGt:
		return a > e, nil
	case domain.OpGte:
		return a >= e, nil
	case domain.OpLt:
		return a < e, nil
	default:
		return a <= e, nil
	}
}

func memberOf(actual, literal any) (bool, error) {
	items, err := toSlice(literal)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if valuesEqual(actual, item) {
			return true, nil
		}
	}
	return false, nil
}

// between is inclusive on both bounds and expects a 2-element literal.
func between(actual, literal any, field string) (bool, error) {
	bounds, err := toSlice(literal)
	if err != nil {
		return false, err
	}
	if len(bounds) != 2 {
		return false, fmt.Errorf("field %q: between expects [low, high], got %d elements", field, len(bounds))
	}
	low, err := compareNumeric(domain.OpGte, actual, bounds[0], field)
	if err != nil {
		return false, err
	}
	high, err := compareNumeric(domain.OpLte, actual, bounds[1], field)
	if err != nil {
		return false, err
	}
	return low && high, nil
}

func containsString(actual, literal any) bool {
	if !isDefined(actual) {
		return false
	}
	return strings.Contains(fmt.Sprint(actual), fmt.Sprint(literal))
}

func matchRegex(actual, literal any) (bool, error) {
	pattern, ok := literal.(string)
	if !ok {
		return false, fmt.Errorf("regex literal must be a string, got %T", literal)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("compile regex %q: %w", pattern, err)
	}
	if !isDefined(actual) {
		return false, nil
	}
	return re.MatchString(fmt.Sprint(actual)), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, nil
	case []int:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, nil
	case []float64:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list literal, got %T", v)
	}
}
