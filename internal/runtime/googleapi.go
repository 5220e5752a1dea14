// internal/runtime/googleapi.go — adapts *gmail.Service to our small interface
package runtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	mc "github.com/joshsymonds/mailrules/internal/mail"
)

type googleClient struct{ svc *gmail.Service }

// NewGoogleAPIClient wraps a Gmail API service in the mail.Client interface.
func NewGoogleAPIClient(svc *gmail.Service) mc.Client { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q mc.Query, pageToken string, pageSize int) (mc.ListPage, error) {
	call := g.svc.Users.Messages.List("me").Q(q.Raw).MaxResults(int64(pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return mc.ListPage{}, err
	}
	page := mc.ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, mc.MessageID(m.Id))
	}
	return page, nil
}

func (g *googleClient) GetMessage(ctx context.Context, id mc.MessageID) (mc.Message, error) {
	msg, err := g.svc.Users.Messages.Get("me", string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return mc.Message{}, err
	}

	out := mc.Message{
		ID:         id,
		ThreadID:   msg.ThreadId,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
		Unread:     hasLabel(msg.LabelIds, "UNREAD"),
	}
	for _, l := range msg.LabelIds {
		out.Labels = append(out.Labels, mc.LabelID(l))
	}
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			switch strings.ToLower(hd.Name) {
			case "from":
				out.From = hd.Value
			case "to":
				out.To = splitAddresses(hd.Value)
			case "subject":
				out.Subject = hd.Value
			}
		}
		out.Body = extractBody(msg.Payload)
	}
	return out, nil
}

func (g *googleClient) MarkRead(ctx context.Context, id mc.MessageID) error {
	return g.modify(ctx, id, nil, []string{"UNREAD"})
}

func (g *googleClient) MarkUnread(ctx context.Context, id mc.MessageID) error {
	return g.modify(ctx, id, []string{"UNREAD"}, nil)
}

func (g *googleClient) MoveToLabel(ctx context.Context, id mc.MessageID, label string) error {
	labelID, err := g.ensureLabel(ctx, label)
	if err != nil {
		return fmt.Errorf("ensure label %q: %w", label, err)
	}
	return g.modify(ctx, id, []string{string(labelID)}, []string{"INBOX"})
}

func (g *googleClient) Archive(ctx context.Context, id mc.MessageID) error {
	return g.modify(ctx, id, nil, []string{"INBOX"})
}

func (g *googleClient) Delete(ctx context.Context, id mc.MessageID) error {
	// Trash rather than permanent delete; the gmail.modify scope does not
	// allow users.messages.delete anyway.
	_, err := g.svc.Users.Messages.Trash("me", string(id)).Context(ctx).Do()
	return err
}

func (g *googleClient) modify(ctx context.Context, id mc.MessageID, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	_, err := g.svc.Users.Messages.Modify("me", string(id), req).Context(ctx).Do()
	return err
}

func (g *googleClient) ensureLabel(ctx context.Context, name string) (mc.LabelID, error) {
	lr, err := g.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	for _, l := range lr.Labels {
		if l.Name == name {
			return mc.LabelID(l.Id), nil
		}
	}
	created, err := g.svc.Users.Labels.Create("me", &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return mc.LabelID(created.Id), nil
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// splitAddresses turns a To header into individual addresses, falling back to
// a comma split when the header does not parse.
func splitAddresses(header string) []string {
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		var out []string
		for _, part := range strings.Split(header, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// extractBody finds the first text/plain part in the payload tree and decodes
// it. Falls back to text/html for messages without a plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if body := decodePart(payload, "text/plain"); body != "" {
		return body
	}
	return decodePart(payload, "text/html")
}

func decodePart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
		if data, err := base64.RawURLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
		return ""
	}
	for _, child := range part.Parts {
		if body := decodePart(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}
