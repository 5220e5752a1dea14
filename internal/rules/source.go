package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// document mirrors the JSON rule-document schema:
//
//	{
//	  "id": "newsletters",
//	  "name": "File newsletters",
//	  "predicate": "ANY",
//	  "rules": [{"field": "from", "predicate": "contains", "value": "newsletter"}],
//	  "actions": ["mark_as_read", "move:Newsletters"]
//	}
type document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Predicate string         `json:"predicate"`
	Rules     []documentRule `json:"rules"`
	Actions   []string       `json:"actions"`
}

type documentRule struct {
	Field     string `json:"field"`
	Predicate string `json:"predicate"`
	Value     string `json:"value"`
}

// Parse decodes and validates one rule document. Validation is eager: every
// field, predicate, comparison value, combinator, and action token is checked
// here, and any failure rejects the whole document before evaluation starts.
func Parse(data []byte) (RuleSet, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule document: %w", err)
	}

	comb := CombinatorAll
	if doc.Predicate != "" {
		parsed, err := ParseCombinator(doc.Predicate)
		if err != nil {
			return RuleSet{}, err
		}
		comb = parsed
	}

	set := RuleSet{ID: doc.ID, Name: doc.Name, Comb: comb}
	if set.Name == "" {
		set.Name = set.ID
	}

	for i, dr := range doc.Rules {
		field, err := ParseField(dr.Field)
		if err != nil {
			return RuleSet{}, fmt.Errorf("rule %d: %w", i, err)
		}
		pred, err := ParsePredicate(dr.Predicate, field)
		if err != nil {
			return RuleSet{}, fmt.Errorf("rule %d: %w", i, err)
		}
		rule, err := NewRule(field, pred, dr.Value)
		if err != nil {
			return RuleSet{}, fmt.Errorf("rule %d: %w", i, err)
		}
		set.Rules = append(set.Rules, rule)
	}

	if len(doc.Actions) == 0 {
		return RuleSet{}, errors.New("rule document has no actions")
	}
	for i, token := range doc.Actions {
		action, err := ParseAction(token)
		if err != nil {
			return RuleSet{}, fmt.Errorf("action %d: %w", i, err)
		}
		set.Actions = append(set.Actions, action)
	}
	return set, nil
}

// Load reads and parses a rule document from disk.
func Load(path string) (RuleSet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rule document %s: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return RuleSet{}, fmt.Errorf("parse rule document %s: %w", path, err)
	}
	if set.ID == "" {
		set.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if set.Name == "" {
			set.Name = set.ID
		}
	}
	return set, nil
}
