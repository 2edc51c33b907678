// Package appdata holds the loan application data snapshot: the flat field
// map that rule evaluation, auto-clear sweeps and DATA_FIELD prerequisites
// read. Fields arrive incrementally as documents and reports come in.
package appdata

import (
	"context"
	"strings"
)

// Store persists per-application field maps. Implementations must treat the
// snapshot as last-write-wins per field.
type Store interface {
	// SetFields merges fields into the application's snapshot.
	SetFields(ctx context.Context, applicationID string, fields map[string]any) error

	// Snapshot returns the full field map. A missing application yields an
	// empty map, not an error; an application with no data is an ordinary
	// early-stage state.
	Snapshot(ctx context.Context, applicationID string) (map[string]any, error)
}

// Service answers field queries for workflow prerequisites and exposes the
// snapshot to callers assembling rule evaluation input.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) SetFields(ctx context.Context, applicationID string, fields map[string]any) error {
	return s.store.SetFields(ctx, applicationID, fields)
}

func (s *Service) Snapshot(ctx context.Context, applicationID string) (map[string]any, error) {
	return s.store.Snapshot(ctx, applicationID)
}

// FieldSet reports whether the field holds a truthy value. Dot-paths address
// nested maps the same way rule conditions do. A field set to false or nil
// does not count; DATA_FIELD prerequisites ask "has this happened", not "does
// the key exist".
func (s *Service) FieldSet(ctx context.Context, applicationID, field string) (bool, error) {
	snapshot, err := s.store.Snapshot(ctx, applicationID)
	if err != nil {
		return false, err
	}
	value, ok := lookupPath(snapshot, field)
	if !ok || value == nil {
		return false, nil
	}
	if b, isBool := value.(bool); isBool {
		return b, nil
	}
	if str, isString := value.(string); isString {
		return str != "", nil
	}
	return true, nil
}

// lookupPath traverses nested maps by dot-separated segments.
func lookupPath(data map[string]any, path string) (any, bool) {
	cur := any(data)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
