package mail

import "context"

// Client is the narrow provider surface required by mailrules. Auth and
// transport concerns live behind it; callers only see per-call success or
// failure.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	GetMessage(ctx context.Context, id MessageID) (Message, error)

	MarkRead(ctx context.Context, id MessageID) error
	MarkUnread(ctx context.Context, id MessageID) error
	MoveToLabel(ctx context.Context, id MessageID, label string) error
	Archive(ctx context.Context, id MessageID) error
	Delete(ctx context.Context, id MessageID) error
}
