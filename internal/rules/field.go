package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/joshsymonds/mailrules/internal/mail"
)

// Field names one message attribute eligible for rule matching.
type Field int

const (
	FieldFrom Field = iota
	FieldTo
	FieldSubject
	FieldBody
	FieldReceivedAt
)

func (f Field) String() string {
	switch f {
	case FieldFrom:
		return "from"
	case FieldTo:
		return "to"
	case FieldSubject:
		return "subject"
	case FieldBody:
		return "body"
	case FieldReceivedAt:
		return "received_at"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField resolves a document field token, including the aliases the
// original rule documents used.
func ParseField(token string) (Field, error) {
	switch normalizeToken(token) {
	case "from", "sender":
		return FieldFrom, nil
	case "to":
		return FieldTo, nil
	case "subject":
		return FieldSubject, nil
	case "body", "message":
		return FieldBody, nil
	case "received_at", "received_date":
		return FieldReceivedAt, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, token)
	}
}

type valueKind int

const (
	kindString valueKind = iota
	kindTime
)

// FieldValue is the result of a field lookup: either a string or a timestamp.
// No normalization happens here; case folding is the predicate's job.
type FieldValue struct {
	kind valueKind
	str  string
	ts   time.Time
}

// Lookup extracts the named field from a message. Pure, no side effects.
func Lookup(field Field, msg mail.Message) (FieldValue, error) {
	switch field {
	case FieldFrom:
		return FieldValue{kind: kindString, str: msg.From}, nil
	case FieldTo:
		return FieldValue{kind: kindString, str: strings.Join(msg.To, ", ")}, nil
	case FieldSubject:
		return FieldValue{kind: kindString, str: msg.Subject}, nil
	case FieldBody:
		return FieldValue{kind: kindString, str: msg.Body}, nil
	case FieldReceivedAt:
		return FieldValue{kind: kindTime, ts: msg.ReceivedAt}, nil
	default:
		return FieldValue{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

func normalizeToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	return strings.ReplaceAll(token, " ", "_")
}
