package rules

import "errors"

// Configuration errors. These indicate operator or deployment mistakes and
// are always surfaced, never retried or resolved silently.
var (
	// ErrUnknownOperator is returned when a simple condition names an
	// operator the evaluator does not implement.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrCustomNotRegistered is returned when a custom condition names a
	// function that has not been registered. This is an explicit extension
	// point; unregistered predicates must fail loudly.
	ErrCustomNotRegistered = errors.New("custom function not registered")

	// ErrUnknownConditionType guards the closed SIMPLE/COMPOUND/CUSTOM set.
	ErrUnknownConditionType = errors.New("unknown condition type")

	// ErrNoActiveRuleVersion is returned when no rule version is active for
	// the requested rule set. The engine fails closed.
	ErrNoActiveRuleVersion = errors.New("no active rule version")

	// ErrAmbiguousRuleVersion is returned when more than one version is
	// marked active for a rule set. Ambiguity is a configuration error.
	ErrAmbiguousRuleVersion = errors.New("multiple active rule versions")
)
