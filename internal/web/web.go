// Package web serves a read-only JSON view of the local store: stored
// messages, their rule applications, and store-level stats.
package web

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/joshsymonds/mailrules/internal/mail"
	"github.com/joshsymonds/mailrules/internal/store"
)

const defaultPageLimit = 50

// Handler handles status routes over the store.
type Handler struct {
	store *store.Store
	log   *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(st *store.Store, logger *slog.Logger) *Handler {
	return &Handler{store: st, log: logger}
}

// NewApp builds the Fiber application with all routes registered.
func NewApp(st *store.Store, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewHandler(st, logger).RegisterRoutes(app)
	return app
}

// RegisterRoutes registers all status routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/healthz", h.getHealth)
	app.Get("/emails", h.getEmails)
	app.Get("/emails/:id/applications", h.getApplications)
	app.Get("/stats", h.getStats)
}

type messageResponse struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Unread     bool      `json:"unread"`
	Labels     []string  `json:"labels"`
}

type emailsResponse struct {
	Emails     []messageResponse `json:"emails"`
	TotalCount int               `json:"total_count"`
}

func (h *Handler) getHealth(c *fiber.Ctx) error {
	if _, err := h.store.Count(c.Context()); err != nil {
		h.log.Error("health check", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) getEmails(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageLimit)
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	msgs, err := h.store.Messages(c.Context(), limit, offset)
	if err != nil {
		h.log.Error("list emails", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list emails"})
	}
	total, err := h.store.Count(c.Context())
	if err != nil {
		h.log.Error("count emails", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "count emails"})
	}

	resp := emailsResponse{Emails: make([]messageResponse, 0, len(msgs)), TotalCount: total}
	for _, msg := range msgs {
		resp.Emails = append(resp.Emails, toResponse(msg))
	}
	return c.JSON(resp)
}

func (h *Handler) getApplications(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing message id"})
	}
	recs, err := h.store.ApplicationsForMessage(c.Context(), mail.MessageID(id))
	if err != nil {
		h.log.Error("list applications", "message", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list applications"})
	}
	return c.JSON(fiber.Map{"message_id": id, "applications": recs})
}

func (h *Handler) getStats(c *fiber.Ctx) error {
	total, err := h.store.Count(c.Context())
	if err != nil {
		h.log.Error("count emails", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "count emails"})
	}
	return c.JSON(fiber.Map{"total_emails": total})
}

func toResponse(msg mail.Message) messageResponse {
	labels := make([]string, 0, len(msg.Labels))
	for _, l := range msg.Labels {
		labels = append(labels, string(l))
	}
	return messageResponse{
		ID:         string(msg.ID),
		ThreadID:   msg.ThreadID,
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		ReceivedAt: msg.ReceivedAt,
		Unread:     msg.Unread,
		Labels:     labels,
	}
}
