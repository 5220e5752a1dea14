package rules

import (
	"fmt"
	"strings"
)

// ActionKind enumerates the state-changing operations a matched rule set may
// request. Like predicates, the set is closed; unrecognized tokens are a
// load-time failure.
type ActionKind int

const (
	ActionMarkRead ActionKind = iota
	ActionMarkUnread
	ActionMove
	ActionArchive
	ActionDelete
)

// Action is a tagged action value; Label is set only for ActionMove.
type Action struct {
	Kind  ActionKind
	Label string
}

// ParseAction resolves an action token. Move actions carry their target label
// after a colon ("move:Newsletters") and the label must be non-empty.
func ParseAction(token string) (Action, error) {
	trimmed := strings.TrimSpace(token)
	kind, rest, hasArg := strings.Cut(trimmed, ":")
	switch normalizeToken(kind) {
	case "mark_as_read", "mark_read":
		return Action{Kind: ActionMarkRead}, nil
	case "mark_as_unread", "mark_unread":
		return Action{Kind: ActionMarkUnread}, nil
	case "archive":
		return Action{Kind: ActionArchive}, nil
	case "delete":
		return Action{Kind: ActionDelete}, nil
	case "move":
		label := strings.TrimSpace(rest)
		if !hasArg || label == "" {
			return Action{}, fmt.Errorf("%w: move action %q needs a label", ErrUnknownAction, token)
		}
		return Action{Kind: ActionMove, Label: label}, nil
	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, token)
	}
}

// String returns the canonical document token for the action.
func (a Action) String() string {
	switch a.Kind {
	case ActionMarkRead:
		return "mark_as_read"
	case ActionMarkUnread:
		return "mark_as_unread"
	case ActionMove:
		return "move:" + a.Label
	case ActionArchive:
		return "archive"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a.Kind))
	}
}
