// Package engine drives rule application: it loads rule documents, evaluates
// stored messages against them, dispatches the resulting actions through the
// mail provider, and keeps per-run application records so the same rule set
// is never applied twice to one message within a run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joshsymonds/mailrules/internal/mail"
	"github.com/joshsymonds/mailrules/internal/rate"
	"github.com/joshsymonds/mailrules/internal/rules"
)

var (
	// ErrRunAborted marks unrecoverable load-time failures: nothing was
	// evaluated and nothing was dispatched.
	ErrRunAborted = errors.New("run aborted")
	// ErrActionFailed marks a provider-side failure of a single action.
	ErrActionFailed = errors.New("action failed")
)

// Recorder is the slice of the store the engine writes to. All methods are
// called only after the provider accepted the corresponding action.
type Recorder interface {
	RecordApplication(ctx context.Context, rec ApplicationRecord) error
	SetReadState(ctx context.Context, id mail.MessageID, read bool) error
	AddLabel(ctx context.Context, id mail.MessageID, label string) error
}

// Service applies rule sets to batches of stored messages.
type Service struct {
	Provider mail.Client
	Store    Recorder // optional; nil skips persistence write-backs
	Limiter  rate.Limiter
	Log      *slog.Logger
	Clock    func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(provider mail.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Provider: provider,
		Limiter:  limiter,
		Log:      logger,
		Clock:    time.Now,
	}
}

// RunStats aggregates one run's outcome counters.
type RunStats struct {
	Processed      int `json:"processed"`
	Matched        int `json:"matched"`
	ActionsApplied int `json:"actions_applied"`
	Failed         int `json:"failed"`
}

// ActionResult is the outcome of one dispatched action.
type ActionResult struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// ApplicationRecord notes that a rule set's actions were applied to a
// message, with the per-action results. One record per (message, rule set)
// pair with at least one successful action.
type ApplicationRecord struct {
	MessageID   mail.MessageID `json:"message_id"`
	RuleSetID   string         `json:"rule_set_id"`
	RuleSetName string         `json:"rule_set_name"`
	Actions     []ActionResult `json:"actions"`
	AppliedAt   time.Time      `json:"applied_at"`
}

// RunOptions controls one Run invocation.
type RunOptions struct {
	DryRun bool
}

// RunResult is the run-scoped result set: stats plus the application records
// accumulated during this run.
type RunResult struct {
	Stats   RunStats
	Records []ApplicationRecord
}

type applicationKey struct {
	msg mail.MessageID
	set string
}

// LoadRuleSets loads every named rule document, failing fast on the first
// malformed one: a load-time error aborts the whole run before any message
// is evaluated.
func LoadRuleSets(paths []string) ([]rules.RuleSet, error) {
	sets := make([]rules.RuleSet, 0, len(paths))
	for _, path := range paths {
		set, err := rules.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRunAborted, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// Run evaluates every message independently against the rule set and
// dispatches actions for matches. "Now" is captured once so every date
// predicate in the batch shares the same cutoff. One message's failure never
// aborts the batch; it is counted and the run continues.
func (s *Service) Run(ctx context.Context, set rules.RuleSet, msgs []mail.Message, opts RunOptions) (RunResult, error) {
	now := s.Clock()
	result := RunResult{}
	applied := make(map[applicationKey]struct{})

	for _, msg := range msgs {
		result.Stats.Processed++

		matched, err := set.Evaluate(msg, now)
		if err != nil {
			result.Stats.Failed++
			s.Log.Error("rule evaluation failed",
				"rule_set", set.ID, "message", msg.ID, "error", err)
			continue
		}
		if !matched {
			continue
		}
		result.Stats.Matched++
		if opts.DryRun {
			s.Log.Info("dry-run match",
				"rule_set", set.ID, "message", msg.ID, "from", msg.From, "subject", msg.Subject)
			continue
		}

		key := applicationKey{msg: msg.ID, set: set.ID}
		if _, done := applied[key]; done {
			s.Log.Debug("rule set already applied in this run",
				"rule_set", set.ID, "message", msg.ID)
			continue
		}
		applied[key] = struct{}{}

		outcome := s.dispatch(ctx, set.Actions, msg)
		succeeded := 0
		failedAny := false
		for _, res := range outcome {
			if res.OK {
				succeeded++
			} else {
				failedAny = true
			}
		}
		result.Stats.ActionsApplied += succeeded
		if failedAny {
			result.Stats.Failed++
		}
		if succeeded == 0 {
			continue
		}

		rec := ApplicationRecord{
			MessageID:   msg.ID,
			RuleSetID:   set.ID,
			RuleSetName: set.Name,
			Actions:     outcome,
			AppliedAt:   now,
		}
		result.Records = append(result.Records, rec)
		if s.Store != nil {
			if recErr := s.Store.RecordApplication(ctx, rec); recErr != nil {
				s.Log.Error("record application", "message", msg.ID, "error", recErr)
			}
		}
		s.Log.Info("applied rule set",
			"rule_set", set.ID, "message", msg.ID, "actions", succeeded)
	}

	s.Log.Info("run complete",
		"rule_set", set.ID,
		"processed", result.Stats.Processed,
		"matched", result.Stats.Matched,
		"actions_applied", result.Stats.ActionsApplied,
		"failed", result.Stats.Failed)
	return result, nil
}

// dispatch applies every action in order. A failed action does not stop the
// remaining ones: provider-side actions are not transactional, so partial
// application is recorded rather than rolled back.
func (s *Service) dispatch(ctx context.Context, actions []rules.Action, msg mail.Message) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, action := range actions {
		err := s.applyAction(ctx, action, msg)
		res := ActionResult{Action: action.String(), OK: err == nil}
		if err != nil {
			res.Error = err.Error()
			s.Log.Error("action failed", "message", msg.ID, "action", action.String(), "error", err)
		}
		results = append(results, res)
	}
	return results
}

func (s *Service) applyAction(ctx context.Context, action rules.Action, msg mail.Message) error {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrActionFailed, action, err)
		}
	}
	var err error
	switch action.Kind {
	case rules.ActionMarkRead:
		err = s.Provider.MarkRead(ctx, msg.ID)
	case rules.ActionMarkUnread:
		err = s.Provider.MarkUnread(ctx, msg.ID)
	case rules.ActionMove:
		err = s.Provider.MoveToLabel(ctx, msg.ID, action.Label)
	case rules.ActionArchive:
		err = s.Provider.Archive(ctx, msg.ID)
	case rules.ActionDelete:
		err = s.Provider.Delete(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrActionFailed, action, err)
	}
	s.writeBack(ctx, action, msg)
	return nil
}

// writeBack mirrors a successful provider action into the local store so the
// stored copy tracks what the provider now believes.
func (s *Service) writeBack(ctx context.Context, action rules.Action, msg mail.Message) {
	if s.Store == nil {
		return
	}
	var err error
	switch action.Kind {
	case rules.ActionMarkRead:
		err = s.Store.SetReadState(ctx, msg.ID, true)
	case rules.ActionMarkUnread:
		err = s.Store.SetReadState(ctx, msg.ID, false)
	case rules.ActionMove:
		err = s.Store.AddLabel(ctx, msg.ID, action.Label)
	default:
		return
	}
	if err != nil {
		s.Log.Error("store write-back failed", "message", msg.ID, "action", action.String(), "error", err)
	}
}
