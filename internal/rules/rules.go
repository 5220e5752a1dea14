// Package rules holds the rule model and its evaluation semantics: field
// lookup, predicate matching, and ALL/ANY folding over a rule set. Documents
// are validated eagerly, so everything that can be malformed fails at load
// time rather than mid-run.
package rules

import (
	"fmt"
	"time"

	"github.com/joshsymonds/mailrules/internal/mail"
)

// Rule is one {field, predicate, value} triple. Construct rules through
// NewRule or document loading so the comparison value is always compiled.
type Rule struct {
	Field     Field
	Predicate Predicate
	Value     string

	cmp comparison
}

// NewRule builds and validates a single rule. The comparison value must be
// syntactically valid for the predicate (compilable regex, integer day
// offset, parseable date); a bad value is rejected here, not at evaluation.
func NewRule(field Field, predicate Predicate, value string) (Rule, error) {
	cmp, err := compileComparison(predicate, value)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Field: field, Predicate: predicate, Value: value, cmp: cmp}, nil
}

// Evaluate applies the rule to one message at the given run-scoped now.
// Field/predicate class mismatches surface as errors, never as false.
func (r Rule) Evaluate(msg mail.Message, now time.Time) (bool, error) {
	v, err := Lookup(r.Field, msg)
	if err != nil {
		return false, err
	}
	return evaluatePredicate(r.Predicate, v, r.cmp, now)
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %q", r.Field, r.Predicate, r.Value)
}

// Combinator is the ALL/ANY policy folding rule results into one verdict.
type Combinator int

const (
	CombinatorAll Combinator = iota
	CombinatorAny
)

func (c Combinator) String() string {
	switch c {
	case CombinatorAll:
		return "ALL"
	case CombinatorAny:
		return "ANY"
	default:
		return fmt.Sprintf("combinator(%d)", int(c))
	}
}

// ParseCombinator resolves a combinator token; AND/OR are accepted aliases.
func ParseCombinator(token string) (Combinator, error) {
	switch normalizeToken(token) {
	case "all", "and":
		return CombinatorAll, nil
	case "any", "or":
		return CombinatorAny, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCombinator, token)
	}
}

// RuleSet is one loaded rule document: a combinator over rules plus the
// actions to dispatch on a match. Immutable once loaded.
type RuleSet struct {
	ID      string
	Name    string
	Comb    Combinator
	Rules   []Rule
	Actions []Action
}

// Evaluate folds every rule's result with the set's combinator. ALL
// short-circuits on the first false, ANY on the first true. A rule-evaluation
// failure aborts the whole set for this message: treating it as false would
// silently flip ALL/ANY outcomes.
//
// An empty rule list is vacuously true under ALL and vacuously false under
// ANY; that is deliberate policy, not a fold accident.
func (s RuleSet) Evaluate(msg mail.Message, now time.Time) (bool, error) {
	if len(s.Rules) == 0 {
		return s.Comb == CombinatorAll, nil
	}
	for _, r := range s.Rules {
		ok, err := r.Evaluate(msg, now)
		if err != nil {
			return false, fmt.Errorf("evaluate rule %s: %w", r, err)
		}
		switch s.Comb {
		case CombinatorAll:
			if !ok {
				return false, nil
			}
		case CombinatorAny:
			if ok {
				return true, nil
			}
		}
	}
	return s.Comb == CombinatorAll, nil
}
