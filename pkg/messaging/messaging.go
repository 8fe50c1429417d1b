// Package messaging holds the outbound channel collaborators: the WhatsApp
// sender with its 24-hour customer-service-window routing, and the email
// sender. Delivery providers are consumed as plain send services.
package messaging

import (
	"context"
	"errors"
)

// ErrNoRecipient indicates a send was attempted without a recipient.
var ErrNoRecipient = errors.New("recipient is required")

// WhatsAppAPI is the raw delivery surface of the WhatsApp provider.
type WhatsAppAPI interface {
	// SendText delivers a free-form message. Only allowed inside the
	// customer service window.
	SendText(ctx context.Context, to, text string) error

	// SendTemplate delivers a pre-approved template message.
	SendTemplate(ctx context.Context, to, templateName, templateID string) error
}

// EmailSender delivers an email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
