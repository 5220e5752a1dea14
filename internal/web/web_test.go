package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/joshsymonds/mailrules/internal/engine"
	"github.com/joshsymonds/mailrules/internal/mail"
	"github.com/joshsymonds/mailrules/internal/store"
)

func newTestApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "web.db"), slogDiscard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewApp(st, slogDiscard()), st
}

func doJSON(t *testing.T, app *fiber.App, method, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode body %q: %v", body, err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t)
	var body map[string]string
	if code := doJSON(t, app, http.MethodGet, "/healthz", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestGetEmails(t *testing.T) {
	app, st := newTestApp(t)
	ctx := context.Background()
	for i, id := range []string{"m1", "m2", "m3"} {
		msg := mail.Message{
			ID:         mail.MessageID(id),
			From:       "deals@newsletter.biz",
			To:         []string{"me@example.com"},
			Subject:    "Sale",
			ReceivedAt: time.Date(2024, time.March, 1+i, 0, 0, 0, 0, time.UTC),
			Labels:     []mail.LabelID{"INBOX"},
		}
		if _, err := st.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	var body emailsResponse
	if code := doJSON(t, app, http.MethodGet, "/emails?limit=2", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body.TotalCount != 3 {
		t.Fatalf("expected total 3, got %d", body.TotalCount)
	}
	if len(body.Emails) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(body.Emails))
	}
	if body.Emails[0].ID != "m3" {
		t.Fatalf("expected newest first, got %s", body.Emails[0].ID)
	}
}

func TestGetApplications(t *testing.T) {
	app, st := newTestApp(t)
	ctx := context.Background()
	msg := mail.Message{ID: "m1", ReceivedAt: time.Unix(1699000000, 0).UTC()}
	if _, err := st.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec := engine.ApplicationRecord{
		MessageID:   "m1",
		RuleSetID:   "newsletters",
		RuleSetName: "File newsletters",
		Actions:     []engine.ActionResult{{Action: "archive", OK: true}},
		AppliedAt:   time.Unix(1700000000, 0).UTC(),
	}
	if err := st.RecordApplication(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	var body struct {
		MessageID    string                     `json:"message_id"`
		Applications []engine.ApplicationRecord `json:"applications"`
	}
	if code := doJSON(t, app, http.MethodGet, "/emails/m1/applications", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(body.Applications) != 1 || body.Applications[0].RuleSetID != "newsletters" {
		t.Fatalf("unexpected applications %+v", body.Applications)
	}
}

func TestGetStats(t *testing.T) {
	app, st := newTestApp(t)
	if _, err := st.SaveMessage(context.Background(), mail.Message{ID: "m1", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	var body map[string]int
	if code := doJSON(t, app, http.MethodGet, "/stats", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body["total_emails"] != 1 {
		t.Fatalf("unexpected stats %+v", body)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
