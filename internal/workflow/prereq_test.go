package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lendgate/internal/domain"
)

type failingData struct{}

func (failingData) FieldSet(context.Context, string, string) (bool, error) {
	return false, errors.New("LOS unreachable")
}

func TestPrerequisiteCheckerCollectsEveryUnmetGate(t *testing.T) {
	defs, err := LoadDefinitions()
	require.NoError(t, err)

	store := NewInMemoryStore()
	checker := NewPrerequisiteChecker(defs, store,
		&stubConditions{counts: map[domain.ConditionCategory]int{domain.CategoryPTF: 1}},
		&stubData{fields: map[string]bool{}},
		&stubDecisions{kinds: map[string]bool{}},
	)

	funded, ok := defs.Milestone(domain.MilestoneFunded)
	require.True(t, ok)

	unmet, err := checker.Check(context.Background(), "app-1", funded)
	require.NoError(t, err)
	require.Len(t, unmet, 2, "open PTF conditions and the missing FINAL_APPROVAL decision")

	// Order matches the definition, not goroutine completion.
	require.Equal(t, domain.PrereqConditionCategory, unmet[0].Kind)
	require.Equal(t, domain.PrereqDecision, unmet[1].Kind)
}

func TestPrerequisiteCheckerFailsClosedOnCollaboratorError(t *testing.T) {
	defs, err := LoadDefinitions()
	require.NoError(t, err)

	checker := NewPrerequisiteChecker(defs, NewInMemoryStore(),
		&stubConditions{counts: map[domain.ConditionCategory]int{}},
		failingData{},
		&stubDecisions{kinds: map[string]bool{}},
	)

	closing, ok := defs.Milestone(domain.MilestoneClosing)
	require.True(t, ok)

	// MILESTONE gate is unmet too, but the broken checker must surface as an
	// error rather than reading as "prerequisite met".
	_, err = checker.Check(context.Background(), "app-1", closing)
	require.Error(t, err)
}
