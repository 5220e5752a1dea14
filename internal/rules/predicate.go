package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Predicate names one comparison operator between a field value and a rule's
// comparison value. The set is closed: unknown tokens fail at load time, so a
// run never sees an unrecognized predicate.
type Predicate int

const (
	PredContains Predicate = iota
	PredDoesNotContain
	PredEquals
	PredDoesNotEqual
	PredStartsWith
	PredEndsWith
	PredRegexMatch
	PredLessThanDaysAgo
	PredGreaterThanDaysAgo
	PredEqualsDate
	PredBeforeDate
	PredAfterDate
)

func (p Predicate) String() string {
	switch p {
	case PredContains:
		return "contains"
	case PredDoesNotContain:
		return "does_not_contain"
	case PredEquals:
		return "equals"
	case PredDoesNotEqual:
		return "does_not_equal"
	case PredStartsWith:
		return "starts_with"
	case PredEndsWith:
		return "ends_with"
	case PredRegexMatch:
		return "regex_match"
	case PredLessThanDaysAgo:
		return "less_than_days_ago"
	case PredGreaterThanDaysAgo:
		return "greater_than_days_ago"
	case PredEqualsDate:
		return "equals_date"
	case PredBeforeDate:
		return "before_date"
	case PredAfterDate:
		return "after_date"
	default:
		return fmt.Sprintf("predicate(%d)", int(p))
	}
}

type predicateClass int

const (
	classString predicateClass = iota
	classDate
)

func (p Predicate) class() predicateClass {
	switch p {
	case PredLessThanDaysAgo, PredGreaterThanDaysAgo, PredEqualsDate, PredBeforeDate, PredAfterDate:
		return classDate
	default:
		return classString
	}
}

// ParsePredicate resolves a predicate token for a field. The field matters
// because the original documents reused short tokens per field class:
// "equals" or "less than" against received_at are date predicates, while
// "equals" against subject is the string one.
func ParsePredicate(token string, field Field) (Predicate, error) {
	norm := normalizeToken(token)
	if field == FieldReceivedAt {
		switch norm {
		case "less_than", "less_than_days_ago":
			return PredLessThanDaysAgo, nil
		case "greater_than", "greater_than_days_ago":
			return PredGreaterThanDaysAgo, nil
		case "equals", "equals_date":
			return PredEqualsDate, nil
		case "before", "before_date":
			return PredBeforeDate, nil
		case "after", "after_date":
			return PredAfterDate, nil
		}
		return 0, fmt.Errorf("%w: %q for field %s", ErrUnknownPredicate, token, field)
	}
	switch norm {
	case "contains":
		return PredContains, nil
	case "does_not_contain":
		return PredDoesNotContain, nil
	case "equals":
		return PredEquals, nil
	case "does_not_equal":
		return PredDoesNotEqual, nil
	case "starts_with":
		return PredStartsWith, nil
	case "ends_with":
		return PredEndsWith, nil
	case "matches", "regex_match":
		return PredRegexMatch, nil
	default:
		return 0, fmt.Errorf("%w: %q for field %s", ErrUnknownPredicate, token, field)
	}
}

// dateLayouts are the calendar formats a rule document may use for absolute
// date predicates. Layouts without a time component compare as midnight UTC
// for before/after.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02 Jan 2006",
	"January 2, 2006",
}

// comparison is a rule's comparison value, parsed once at load time so that
// evaluation never has to re-validate it.
type comparison struct {
	text string
	re   *regexp.Regexp
	days int
	date time.Time
}

func compileComparison(p Predicate, value string) (comparison, error) {
	switch p {
	case PredRegexMatch:
		re, err := regexp.Compile("(?i)" + value)
		if err != nil {
			return comparison{}, fmt.Errorf("%w: regex %q: %v", ErrInvalidPredicateValue, value, err)
		}
		return comparison{text: value, re: re}, nil
	case PredLessThanDaysAgo, PredGreaterThanDaysAgo:
		days, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return comparison{}, fmt.Errorf("%w: day offset %q is not an integer", ErrInvalidPredicateValue, value)
		}
		if days < 0 {
			return comparison{}, fmt.Errorf("%w: day offset %q is negative", ErrInvalidPredicateValue, value)
		}
		return comparison{text: value, days: days}, nil
	case PredEqualsDate, PredBeforeDate, PredAfterDate:
		trimmed := strings.TrimSpace(value)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return comparison{text: value, date: ts}, nil
			}
		}
		return comparison{}, fmt.Errorf("%w: unparseable date %q", ErrInvalidPredicateValue, value)
	default:
		return comparison{text: value}, nil
	}
}

// evaluatePredicate applies one predicate to a field value. String predicates
// are case-insensitive; date predicates compare against the run-scoped now so
// a whole batch shares one cutoff. A class/kind mismatch is an error, never a
// silent false.
func evaluatePredicate(p Predicate, v FieldValue, cmp comparison, now time.Time) (bool, error) {
	switch p.class() {
	case classString:
		if v.kind != kindString {
			return false, fmt.Errorf("%w: %s needs a string field", ErrTypeMismatch, p)
		}
		return evalString(p, v.str, cmp), nil
	case classDate:
		if v.kind != kindTime {
			return false, fmt.Errorf("%w: %s needs a timestamp field", ErrTypeMismatch, p)
		}
		return evalDate(p, v.ts, cmp, now), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownPredicate, p)
	}
}

func evalString(p Predicate, fieldValue string, cmp comparison) bool {
	have := strings.ToLower(fieldValue)
	want := strings.ToLower(cmp.text)
	switch p {
	case PredContains:
		return strings.Contains(have, want)
	case PredDoesNotContain:
		return !strings.Contains(have, want)
	case PredEquals:
		return have == want
	case PredDoesNotEqual:
		return have != want
	case PredStartsWith:
		return strings.HasPrefix(have, want)
	case PredEndsWith:
		return strings.HasSuffix(have, want)
	case PredRegexMatch:
		return cmp.re.MatchString(fieldValue)
	default:
		return false
	}
}

func evalDate(p Predicate, received time.Time, cmp comparison, now time.Time) bool {
	switch p {
	case PredLessThanDaysAgo:
		return received.After(now.AddDate(0, 0, -cmp.days))
	case PredGreaterThanDaysAgo:
		return received.Before(now.AddDate(0, 0, -cmp.days))
	case PredEqualsDate:
		ry, rm, rd := received.Date()
		ty, tm, td := cmp.date.Date()
		return ry == ty && rm == tm && rd == td
	case PredBeforeDate:
		return received.Before(cmp.date)
	case PredAfterDate:
		return received.After(cmp.date)
	default:
		return false
	}
}
