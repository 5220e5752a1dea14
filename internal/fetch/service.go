// Package fetch pulls messages from the mail provider into the local store.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailrules/internal/mail"
	"github.com/joshsymonds/mailrules/internal/rate"
)

// Saver is the slice of the store the fetcher writes to.
type Saver interface {
	SaveMessage(ctx context.Context, msg mail.Message) (bool, error)
}

// Service downloads messages matching a provider query and persists them.
type Service struct {
	Client  mail.Client
	Store   Saver
	Limiter rate.Limiter
	Log     *slog.Logger
}

// NewService constructs a Service with sane defaults.
func NewService(client mail.Client, saver Saver, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Client: client, Store: saver, Limiter: limiter, Log: logger}
}

// Spec controls one fetch run.
type Spec struct {
	Query      string // provider search expression, may be empty
	MaxResults int    // stop after this many messages; <=0 means no cap
	PageSize   int
}

// Stats counts one fetch run's outcome.
type Stats struct {
	Fetched int // messages downloaded from the provider
	Saved   int // new rows created
	Skipped int // duplicates already in the store
	Failed  int // individual messages that could not be fetched or saved
}

// Run lists matching message IDs page by page, downloads each message, and
// saves it. A single message's failure is logged and counted, not fatal.
func (s *Service) Run(ctx context.Context, spec Spec) (Stats, error) {
	pageSize := spec.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}

	stats := Stats{}
	query := mail.Query{Raw: spec.Query}
	token := ""
	for {
		if err := s.wait(ctx); err != nil {
			return stats, err
		}
		page, err := s.Client.List(ctx, query, token, pageSize)
		if err != nil {
			return stats, fmt.Errorf("list messages: %w", err)
		}
		for _, id := range page.IDs {
			if spec.MaxResults > 0 && stats.Fetched >= spec.MaxResults {
				return s.done(stats, spec), nil
			}
			if err := s.wait(ctx); err != nil {
				return stats, err
			}
			msg, err := s.Client.GetMessage(ctx, id)
			if err != nil {
				stats.Failed++
				s.Log.Error("fetch message", "message", id, "error", err)
				continue
			}
			stats.Fetched++
			created, err := s.Store.SaveMessage(ctx, msg)
			if err != nil {
				stats.Failed++
				s.Log.Error("save message", "message", id, "error", err)
				continue
			}
			if created {
				stats.Saved++
			} else {
				stats.Skipped++
			}
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	return s.done(stats, spec), nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	return s.Limiter.Wait(ctx)
}

func (s *Service) done(stats Stats, spec Spec) Stats {
	s.Log.Info("fetch complete",
		"query", spec.Query,
		"fetched", stats.Fetched,
		"saved", stats.Saved,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return stats
}
