// Package store persists fetched messages and rule-application records in a
// local SQLite database so rule runs can operate on stored mail without
// re-reading the provider.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joshsymonds/mailrules/internal/engine"
	"github.com/joshsymonds/mailrules/internal/mail"
)

// ErrNotFound is returned when a message ID has no stored row.
var ErrNotFound = errors.New("message not found")

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL DEFAULT '',
	from_address TEXT NOT NULL DEFAULT '',
	to_addresses TEXT NOT NULL DEFAULT '[]',
	subject TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	received_at TEXT NOT NULL,
	unread INTEGER NOT NULL DEFAULT 0,
	labels TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages(received_at);
CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_address);

CREATE TABLE IF NOT EXISTS rule_applications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL REFERENCES messages(id),
	rule_set_id TEXT NOT NULL,
	rule_set_name TEXT NOT NULL DEFAULT '',
	actions TEXT NOT NULL,
	applied_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_message ON rule_applications(message_id);
`

// Store wraps the SQLite database holding messages and application records.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	Clock func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		// WAL is an optimization; log and continue.
		logger.Warn("set journal_mode=WAL failed", "error", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create store schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store ping failed: %w", err)
	}
	return &Store{db: db, log: logger, Clock: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveMessage inserts a fetched message, skipping rows that already exist for
// the same provider ID. Reports whether a new row was created.
func (s *Store) SaveMessage(ctx context.Context, msg mail.Message) (bool, error) {
	toJSON, err := json.Marshal(msg.To)
	if err != nil {
		return false, fmt.Errorf("encode recipients: %w", err)
	}
	labelsJSON, err := json.Marshal(msg.Labels)
	if err != nil {
		return false, fmt.Errorf("encode labels: %w", err)
	}
	now := s.Clock().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages
			(id, thread_id, from_address, to_addresses, subject, body,
			 received_at, unread, labels, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(msg.ID), msg.ThreadID, msg.From, string(toJSON), msg.Subject, msg.Body,
		msg.ReceivedAt.UTC().Format(time.RFC3339Nano), boolToInt(msg.Unread), string(labelsJSON),
		now, now)
	if err != nil {
		return false, fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return rows > 0, nil
}

// Messages returns stored messages newest first. limit <= 0 means no limit.
func (s *Store) Messages(ctx context.Context, limit, offset int) ([]mail.Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, from_address, to_addresses, subject, body,
		       received_at, unread, labels
		FROM messages
		ORDER BY received_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []mail.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Message returns one stored message by provider ID.
func (s *Store) Message(ctx context.Context, id mail.MessageID) (mail.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, from_address, to_addresses, subject, body,
		       received_at, unread, labels
		FROM messages WHERE id = ?`, string(id))
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mail.Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return msg, err
}

// Count returns the number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// SetReadState mirrors a successful mark-read/mark-unread provider action.
func (s *Store) SetReadState(ctx context.Context, id mail.MessageID, read bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET unread = ?, updated_at = ? WHERE id = ?`,
		boolToInt(!read), s.Clock().UTC().Format(time.RFC3339Nano), string(id))
	if err != nil {
		return fmt.Errorf("update read state for %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update read state for %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AddLabel mirrors a successful move action into the stored label set.
func (s *Store) AddLabel(ctx context.Context, id mail.MessageID, label string) error {
	msg, err := s.Message(ctx, id)
	if err != nil {
		return err
	}
	for _, l := range msg.Labels {
		if string(l) == label {
			return nil
		}
	}
	labelsJSON, err := json.Marshal(append(msg.Labels, mail.LabelID(label)))
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE messages SET labels = ?, updated_at = ? WHERE id = ?`,
		string(labelsJSON), s.Clock().UTC().Format(time.RFC3339Nano), string(id)); err != nil {
		return fmt.Errorf("update labels for %s: %w", id, err)
	}
	return nil
}

// RecordApplication appends one rule-application record.
func (s *Store) RecordApplication(ctx context.Context, rec engine.ApplicationRecord) error {
	actionsJSON, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("encode action results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_applications (message_id, rule_set_id, rule_set_name, actions, applied_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(rec.MessageID), rec.RuleSetID, rec.RuleSetName, string(actionsJSON),
		rec.AppliedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record application for %s: %w", rec.MessageID, err)
	}
	return nil
}

// ApplicationsForMessage returns the rule applications logged for a message,
// oldest first.
func (s *Store) ApplicationsForMessage(ctx context.Context, id mail.MessageID) ([]engine.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, rule_set_id, rule_set_name, actions, applied_at
		FROM rule_applications WHERE message_id = ? ORDER BY id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list applications for %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []engine.ApplicationRecord
	for rows.Next() {
		var (
			rec         engine.ApplicationRecord
			msgID       string
			actionsJSON string
			appliedAt   string
		)
		if err := rows.Scan(&msgID, &rec.RuleSetID, &rec.RuleSetName, &actionsJSON, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		rec.MessageID = mail.MessageID(msgID)
		if err := json.Unmarshal([]byte(actionsJSON), &rec.Actions); err != nil {
			return nil, fmt.Errorf("decode action results: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, appliedAt)
		if err != nil {
			return nil, fmt.Errorf("parse applied_at: %w", err)
		}
		rec.AppliedAt = ts
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications for %s: %w", id, err)
	}
	return recs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (mail.Message, error) {
	var (
		msg        mail.Message
		id         string
		toJSON     string
		receivedAt string
		unread     int
		labelsJSON string
	)
	if err := row.Scan(&id, &msg.ThreadID, &msg.From, &toJSON, &msg.Subject, &msg.Body,
		&receivedAt, &unread, &labelsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mail.Message{}, err
		}
		return mail.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.ID = mail.MessageID(id)
	msg.Unread = unread != 0
	if err := json.Unmarshal([]byte(toJSON), &msg.To); err != nil {
		return mail.Message{}, fmt.Errorf("decode recipients: %w", err)
	}
	if err := json.Unmarshal([]byte(labelsJSON), &msg.Labels); err != nil {
		return mail.Message{}, fmt.Errorf("decode labels: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return mail.Message{}, fmt.Errorf("parse received_at: %w", err)
	}
	msg.ReceivedAt = ts
	return msg, nil
}

var _ engine.Recorder = (*Store)(nil)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
