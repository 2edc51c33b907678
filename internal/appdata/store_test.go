package appdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetFieldsMerges(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())

	require.NoError(t, svc.SetFields(ctx, "app-1", map[string]any{"credit_report_received": true}))
	require.NoError(t, svc.SetFields(ctx, "app-1", map[string]any{"closing_scheduled": "2026-09-15"}))

	snapshot, err := svc.Snapshot(ctx, "app-1")
	require.NoError(t, err)
	require.Equal(t, true, snapshot["credit_report_received"])
	require.Equal(t, "2026-09-15", snapshot["closing_scheduled"])
}

func TestFieldSetSemantics(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())

	require.NoError(t, svc.SetFields(ctx, "app-1", map[string]any{
		"credit_report_received": true,
		"appraisal_waived":       false,
		"closing_scheduled":      "",
		"note":                   nil,
		"dscr":                   map[string]any{"ratio": 1.21},
	}))

	tests := []struct {
		field string
		want  bool
	}{
		{"credit_report_received", true},
		{"appraisal_waived", false},
		{"closing_scheduled", false},
		{"note", false},
		{"dscr.ratio", true},
		{"never_set", false},
	}
	for _, tc := range tests {
		got, err := svc.FieldSet(ctx, "app-1", tc.field)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "field %s", tc.field)
	}
}

func TestSnapshotOfUnknownApplicationIsEmpty(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	snapshot, err := svc.Snapshot(context.Background(), "never-seen")
	require.NoError(t, err)
	require.Empty(t, snapshot)

	set, err := svc.FieldSet(context.Background(), "never-seen", "anything")
	require.NoError(t, err)
	require.False(t, set)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.SetFields(ctx, "app-1", map[string]any{"a": 1}))

	snapshot, err := store.Snapshot(ctx, "app-1")
	require.NoError(t, err)
	snapshot["a"] = 2

	again, err := store.Snapshot(ctx, "app-1")
	require.NoError(t, err)
	require.Equal(t, 1, again["a"])
}
