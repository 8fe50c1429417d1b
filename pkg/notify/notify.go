// Package notify delivers flow failure alerts to flow owners. Delivery is
// best effort: WhatsApp first, email as fallback, and a notifier that cannot
// reach the owner never fails the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/messaging"
)

// Contact is how a flow owner can be reached.
type Contact struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
}

// ContactResolver looks up the contact details for a user.
type ContactResolver interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

// Notifier sends failure alerts over WhatsApp with email fallback.
type Notifier struct {
	whatsapp *messaging.WhatsApp
	email    messaging.EmailSender
	contacts ContactResolver
	logger   *slog.Logger
}

func NewNotifier(whatsapp *messaging.WhatsApp, email messaging.EmailSender, contacts ContactResolver, logger *slog.Logger) *Notifier {
	return &Notifier{
		whatsapp: whatsapp,
		email:    email,
		contacts: contacts,
		logger:   logger.With("module", "notify"),
	}
}

// FlowFailed alerts the owner that a flow run failed. Errors are logged,
// never returned: a broken notification channel must not fail the run's
// bookkeeping.
func (n *Notifier) FlowFailed(ctx context.Context, userID, flowName, reason string) {
	contact, err := n.contacts.Contact(ctx, userID)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to resolve owner contact",
			"user_id", userID, "error", err)

		return
	}

	text := fmt.Sprintf("Your flow %q failed: %s", flowName, reason)

	if contact.Phone != "" {
		_, _, err = n.whatsapp.Send(ctx, contact.Phone, text)
		if err == nil {
			return
		}

		n.logger.WarnContext(ctx, "WhatsApp failure alert failed, falling back to email",
			"user_id", userID, "error", err)
	}

	if contact.Email == "" {
		n.logger.WarnContext(ctx, "No reachable channel for failure alert", "user_id", userID)

		return
	}

	subject := fmt.Sprintf("Flow %q failed", flowName)

	err = n.email.Send(ctx, contact.Email, subject, text)
	if err != nil {
		n.logger.ErrorContext(ctx, "Email failure alert failed", "user_id", userID, "error", err)
	}
}
