package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lendgate/internal/domain"
)

func TestLoadDefinitions(t *testing.T) {
	defs, err := LoadDefinitions()
	require.NoError(t, err)

	require.Equal(t, domain.MilestoneStarted, defs.First().Code)

	next := defs.Next(domain.MilestoneStarted)
	require.NotNil(t, next)
	require.Equal(t, domain.MilestoneApplication, next.Code)

	require.Nil(t, defs.Next(domain.MilestoneFunded), "terminal milestones have no successor")
	require.Nil(t, defs.Next(domain.MilestoneWithdrawn))

	t.Run("pipeline is strictly ordered", func(t *testing.T) {
		pipeline := defs.Pipeline()
		for i := 1; i < len(pipeline); i++ {
			require.Greater(t, pipeline[i].Order, pipeline[i-1].Order)
		}
	})

	t.Run("exception milestones are terminal", func(t *testing.T) {
		for _, code := range []domain.MilestoneCode{domain.MilestoneSuspended, domain.MilestoneWithdrawn, domain.MilestoneDenied} {
			m, ok := defs.Milestone(code)
			require.True(t, ok)
			require.True(t, m.Terminal)
		}
	})

	t.Run("task templates resolve", func(t *testing.T) {
		templates := defs.TemplatesFor(domain.MilestoneApplication)
		require.Len(t, templates, 2)

		verify, ok := defs.Template("VERIFY_INCOME")
		require.True(t, ok)
		require.Equal(t, []string{"COLLECT_DOCS"}, verify.DependsOn)
	})
}

func TestParseDefinitionsValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			"duplicate milestone",
			"milestones:\n  - {code: A, order: 1}\n  - {code: A, order: 2}\n",
		},
		{
			"duplicate order",
			"milestones:\n  - {code: A, order: 1}\n  - {code: B, order: 1}\n",
		},
		{
			"unknown prerequisite milestone",
			"milestones:\n  - code: A\n    order: 1\n    prerequisites:\n      - {kind: MILESTONE, ref: MISSING}\n",
		},
		{
			"unknown task dependency",
			"milestones:\n  - {code: A, order: 1}\ntaskTemplates:\n  - {code: T1, title: t, triggerMilestone: A, dependsOn: [MISSING]}\n",
		},
		{
			"template on unknown milestone",
			"milestones:\n  - {code: A, order: 1}\ntaskTemplates:\n  - {code: T1, title: t, triggerMilestone: B}\n",
		},
		{
			"empty table",
			"milestones: []\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseDefinitions([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}
