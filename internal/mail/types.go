package mail

import "time"

type MessageID string
type LabelID string

// Message is one stored email as the rules engine sees it. It is immutable
// for the duration of an evaluation pass; read-status and label changes land
// in the store only after the provider accepted the corresponding action.
type Message struct {
	ID         MessageID
	ThreadID   string
	From       string
	To         []string
	Subject    string
	Body       string // may be empty, never "absent"
	ReceivedAt time.Time
	Unread     bool
	Labels     []LabelID
}

// Query is a provider search expression, already formed
// (e.g. `is:unread newer_than:7d`).
type Query struct {
	Raw string
}

// ListPage is one page of message IDs from the provider.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}
