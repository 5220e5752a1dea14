package rules

import "errors"

// Load-time errors are fatal for a run: a document that trips any of these is
// rejected before a single message is evaluated. ErrTypeMismatch is the one
// evaluation-time member of the taxonomy; it is never folded into a false
// match.
var (
	ErrUnknownField          = errors.New("unknown field")
	ErrUnknownPredicate      = errors.New("unknown predicate")
	ErrUnknownCombinator     = errors.New("unknown combinator")
	ErrUnknownAction         = errors.New("unknown action")
	ErrInvalidPredicateValue = errors.New("invalid predicate value")
	ErrTypeMismatch          = errors.New("predicate type mismatch")
)
