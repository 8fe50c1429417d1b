// Package email sends a transactional email to a resolved recipient.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/messaging"
	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "EMAIL"

var errMissingSubject = errors.New("missing 'subject' in step configuration")

type props struct {
	To      string
	Subject string
	Body    string
}

// Handler executes EMAIL steps.
type Handler struct {
	sender messaging.EmailSender
}

func NewHandler(sender messaging.EmailSender) *Handler {
	return &Handler{sender: sender}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Send Email" }

func (h *Handler) Description() string {
	return "Sends an email with a subject and HTML body."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient email address.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Email subject line.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Email body. Supports mentions of earlier step outputs.",
			},
		},
		"required":             []string{"to", "subject"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "to", Type: "string", Required: true, Cloneable: false},
			{Name: "subject", Type: "string", Required: true, Cloneable: true},
			{Name: "body", Type: "string", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "to", Type: "string", Description: "Recipient the email was sent to."},
			{Name: "subject", Type: "string", Description: "Subject line as sent."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	to, _ := data["to"].(string)
	if to == "" {
		return props{}, messaging.ErrNoRecipient
	}

	subject, _ := data["subject"].(string)
	if subject == "" {
		return props{}, errMissingSubject
	}

	body, _ := data["body"].(string)

	return props{To: to, Subject: subject, Body: body}, nil
}

func (h *Handler) Run(
	ctx context.Context,
	_ models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "email_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	err = h.sender.Send(ctx, p.To, p.Subject, p.Body)
	if err != nil {
		return models.Failure(fmt.Errorf("email send failed: %w", err)), nil
	}

	logger.InfoContext(ctx, "Email sent", "to", p.To)

	return models.Succeed(map[string]any{
		"to":      p.To,
		"subject": p.Subject,
	}), nil
}
