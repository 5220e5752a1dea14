package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joshsymonds/mailrules/internal/mail"
)

type fakeClient struct {
	pages       []mail.ListPage
	listQueries []string
	messages    map[mail.MessageID]mail.Message
	getErrs     map[mail.MessageID]error
}

func (f *fakeClient) List(ctx context.Context, q mail.Query, pageToken string, pageSize int) (mail.ListPage, error) {
	_ = ctx
	_ = pageToken
	_ = pageSize
	f.listQueries = append(f.listQueries, q.Raw)
	if len(f.pages) == 0 {
		return mail.ListPage{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeClient) GetMessage(ctx context.Context, id mail.MessageID) (mail.Message, error) {
	_ = ctx
	if err, ok := f.getErrs[id]; ok {
		return mail.Message{}, err
	}
	if msg, ok := f.messages[id]; ok {
		return msg, nil
	}
	return mail.Message{ID: id, ReceivedAt: time.Unix(1699000000, 0)}, nil
}

func (f *fakeClient) MarkRead(ctx context.Context, id mail.MessageID) error {
	_ = ctx
	_ = id
	return nil
}

func (f *fakeClient) MarkUnread(ctx context.Context, id mail.MessageID) error {
	_ = ctx
	_ = id
	return nil
}

func (f *fakeClient) Archive(ctx context.Context, id mail.MessageID) error {
	_ = ctx
	_ = id
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, id mail.MessageID) error {
	_ = ctx
	_ = id
	return nil
}
func (f *fakeClient) MoveToLabel(ctx context.Context, id mail.MessageID, label string) error {
	_ = ctx
	_ = id
	_ = label
	return nil
}

type fakeSaver struct {
	saved   []mail.MessageID
	seen    map[mail.MessageID]struct{}
	saveErr error
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{seen: map[mail.MessageID]struct{}{}}
}

func (f *fakeSaver) SaveMessage(ctx context.Context, msg mail.Message) (bool, error) {
	_ = ctx
	if f.saveErr != nil {
		return false, f.saveErr
	}
	if _, ok := f.seen[msg.ID]; ok {
		return false, nil
	}
	f.seen[msg.ID] = struct{}{}
	f.saved = append(f.saved, msg.ID)
	return true, nil
}

func TestRunFetchesAllPages(t *testing.T) {
	client := &fakeClient{pages: []mail.ListPage{
		{IDs: []mail.MessageID{"a", "b"}, NextPageToken: "tok"},
		{IDs: []mail.MessageID{"c"}},
	}}
	saver := newFakeSaver()
	svc := NewService(client, saver, nil, slogDiscard())

	stats, err := svc.Run(context.Background(), Spec{Query: "is:unread", PageSize: 2})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Fetched != 3 || stats.Saved != 3 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
	if len(client.listQueries) != 2 || client.listQueries[0] != "is:unread" {
		t.Fatalf("unexpected list calls: %+v", client.listQueries)
	}
}

func TestRunRespectsMaxResults(t *testing.T) {
	ids := make([]mail.MessageID, 10)
	for i := range ids {
		ids[i] = mail.MessageID(fmt.Sprintf("id-%02d", i))
	}
	client := &fakeClient{pages: []mail.ListPage{{IDs: ids}}}
	saver := newFakeSaver()
	svc := NewService(client, saver, nil, slogDiscard())

	stats, err := svc.Run(context.Background(), Spec{MaxResults: 4})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Fetched != 4 || stats.Saved != 4 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
}

func TestRunCountsDuplicatesAsSkipped(t *testing.T) {
	client := &fakeClient{pages: []mail.ListPage{{IDs: []mail.MessageID{"a", "a", "b"}}}}
	saver := newFakeSaver()
	svc := NewService(client, saver, nil, slogDiscard())

	stats, err := svc.Run(context.Background(), Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Saved != 2 || stats.Skipped != 1 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
}

func TestRunIsolatesPerMessageFailures(t *testing.T) {
	client := &fakeClient{
		pages:   []mail.ListPage{{IDs: []mail.MessageID{"a", "bad", "c"}}},
		getErrs: map[mail.MessageID]error{"bad": errors.New("http 500")},
	}
	saver := newFakeSaver()
	svc := NewService(client, saver, nil, slogDiscard())

	stats, err := svc.Run(context.Background(), Spec{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Fetched != 2 || stats.Saved != 2 || stats.Failed != 1 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
	if len(saver.saved) != 2 {
		t.Fatalf("expected 2 saved messages, got %+v", saver.saved)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
