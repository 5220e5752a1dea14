package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshsymonds/mailrules/internal/engine"
	"github.com/joshsymonds/mailrules/internal/mail"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mailrules.db"), slogDiscard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	s.Clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return s
}

func sampleMessage(id string, received time.Time) mail.Message {
	return mail.Message{
		ID:         mail.MessageID(id),
		ThreadID:   "t-" + id,
		From:       "deals@newsletter.biz",
		To:         []string{"me@example.com"},
		Subject:    "Sale today",
		Body:       "Click to unsubscribe",
		ReceivedAt: received,
		Unread:     true,
		Labels:     []mail.LabelID{"INBOX", "UNREAD"},
	}
}

func TestSaveMessageSkipsDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	msg := sampleMessage("m1", time.Unix(1699000000, 0).UTC())

	created, err := s.SaveMessage(ctx, msg)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !created {
		t.Fatalf("expected first save to create a row")
	}

	created, err = s.SaveMessage(ctx, msg)
	if err != nil {
		t.Fatalf("re-save failed: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate save to be skipped")
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stored message, got %d", n)
	}
}

func TestMessagesRoundTripAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	older := sampleMessage("m-old", time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	newer := sampleMessage("m-new", time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC))
	for _, msg := range []mail.Message{older, newer} {
		if _, err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	msgs, err := s.Messages(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m-new" || msgs[1].ID != "m-old" {
		t.Fatalf("expected newest first, got %s then %s", msgs[0].ID, msgs[1].ID)
	}

	got := msgs[1]
	if got.From != older.From || got.Subject != older.Subject || got.Body != older.Body {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if !got.ReceivedAt.Equal(older.ReceivedAt) {
		t.Fatalf("received_at mismatch: got %v want %v", got.ReceivedAt, older.ReceivedAt)
	}
	if len(got.To) != 1 || got.To[0] != "me@example.com" {
		t.Fatalf("recipients mismatch: %+v", got.To)
	}
	if len(got.Labels) != 2 {
		t.Fatalf("labels mismatch: %+v", got.Labels)
	}
	if !got.Unread {
		t.Fatalf("unread flag lost")
	}
}

func TestMessagesLimitOffset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := sampleMessage(string(rune('a'+i)), base.AddDate(0, 0, i))
		if _, err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	msgs, err := s.Messages(ctx, 2, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "d" || msgs[1].ID != "c" {
		t.Fatalf("unexpected page: %s, %s", msgs[0].ID, msgs[1].ID)
	}
}

func TestSetReadState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	msg := sampleMessage("m1", time.Unix(1699000000, 0).UTC())
	if _, err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := s.SetReadState(ctx, "m1", true); err != nil {
		t.Fatalf("set read failed: %v", err)
	}
	got, err := s.Message(ctx, "m1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Unread {
		t.Fatalf("expected message to be read")
	}

	if err := s.SetReadState(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddLabelIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	msg := sampleMessage("m1", time.Unix(1699000000, 0).UTC())
	if _, err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.AddLabel(ctx, "m1", "Newsletters"); err != nil {
			t.Fatalf("add label failed: %v", err)
		}
	}
	got, err := s.Message(ctx, "m1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	count := 0
	for _, l := range got.Labels {
		if l == "Newsletters" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected label exactly once, got %d in %+v", count, got.Labels)
	}
}

func TestRecordApplicationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	msg := sampleMessage("m1", time.Unix(1699000000, 0).UTC())
	if _, err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	rec := engine.ApplicationRecord{
		MessageID:   "m1",
		RuleSetID:   "newsletters",
		RuleSetName: "File newsletters",
		Actions: []engine.ActionResult{
			{Action: "mark_as_read", OK: true},
			{Action: "move:Newsletters", OK: false, Error: "label cannot be created"},
		},
		AppliedAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := s.RecordApplication(ctx, rec); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	recs, err := s.ApplicationsForMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("list applications failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	got := recs[0]
	if got.RuleSetID != rec.RuleSetID || got.RuleSetName != rec.RuleSetName {
		t.Fatalf("record mismatch: %+v", got)
	}
	if len(got.Actions) != 2 || !got.Actions[0].OK || got.Actions[1].OK {
		t.Fatalf("action results mismatch: %+v", got.Actions)
	}
	if got.Actions[1].Error == "" {
		t.Fatalf("expected failure message to survive round trip")
	}
	if !got.AppliedAt.Equal(rec.AppliedAt) {
		t.Fatalf("applied_at mismatch: %v vs %v", got.AppliedAt, rec.AppliedAt)
	}
}

func TestMessageNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Message(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
