package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/google/uuid"
)

// ServiceWindow is how long after a user's last inbound message free-form
// replies may be sent.
const ServiceWindow = 24 * time.Hour

// FallbackTemplateName is the pre-approved template used outside the
// service window. Its button-click callback retrieves the original text.
const FallbackTemplateName = "flow_notification"

// Route says which delivery path a send took.
type Route string

const (
	RouteDirect   Route = "direct"
	RouteTemplate Route = "template"
)

type inboundDoc struct {
	Phone          string    `json:"phone"`
	LastReceivedAt time.Time `json:"last_received_at"`
}

type pendingDoc struct {
	Phone     string    `json:"phone"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// WhatsApp sends messages with customer-service-window routing: inside the
// window the original text goes out directly; outside it a template is sent
// and the text is parked for later retrieval by template ID.
type WhatsApp struct {
	api    WhatsAppAPI
	docs   docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewWhatsApp(api WhatsAppAPI, docs docstore.Store, logger *slog.Logger) *WhatsApp {
	return &WhatsApp{
		api:    api,
		docs:   docs,
		logger: logger.With("module", "whatsapp"),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (w *WhatsApp) WithClock(now func() time.Time) *WhatsApp {
	w.now = now

	return w
}

// Send delivers text to a phone number, choosing the direct or template
// route based on the service window. It returns the route taken and, for
// the template route, the generated template ID holding the parked text.
func (w *WhatsApp) Send(ctx context.Context, to, text string) (Route, string, error) {
	if to == "" {
		return "", "", ErrNoRecipient
	}

	if w.windowOpen(ctx, to) {
		err := w.api.SendText(ctx, to, text)
		if err != nil {
			return "", "", err
		}

		return RouteDirect, "", nil
	}

	templateID := "tpl-" + uuid.New().String()[:8]

	// Parking the text is best-effort: a failed write must not block the
	// template send.
	err := w.docs.Set(ctx, docstore.Join("whatsapp_pending", templateID), pendingDoc{
		Phone:     to,
		Text:      text,
		CreatedAt: w.now().UTC(),
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to park message for template callback",
			"template_id", templateID, "error", err)
	}

	err = w.api.SendTemplate(ctx, to, FallbackTemplateName, templateID)
	if err != nil {
		return "", "", err
	}

	return RouteTemplate, templateID, nil
}

// RecordInbound stores the receipt time of an inbound message, opening the
// service window for that phone number.
func (w *WhatsApp) RecordInbound(ctx context.Context, phone string, at time.Time) error {
	return w.docs.Set(ctx, docstore.Join("whatsapp_inbound", phone), inboundDoc{
		Phone:          phone,
		LastReceivedAt: at.UTC(),
	})
}

// PendingText retrieves a parked message by template ID, for the
// button-click callback.
func (w *WhatsApp) PendingText(ctx context.Context, templateID string) (string, error) {
	var doc pendingDoc

	err := w.docs.Get(ctx, docstore.Join("whatsapp_pending", templateID), &doc)
	if err != nil {
		return "", err
	}

	return doc.Text, nil
}

func (w *WhatsApp) windowOpen(ctx context.Context, phone string) bool {
	var doc inboundDoc

	err := w.docs.Get(ctx, docstore.Join("whatsapp_inbound", phone), &doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return false
	}

	if err != nil {
		// The window lookup is best-effort; fall back to the template
		// route, which is always allowed.
		w.logger.ErrorContext(ctx, "Service window lookup failed", "phone", phone, "error", err)

		return false
	}

	return w.now().UTC().Sub(doc.LastReceivedAt) < ServiceWindow
}
