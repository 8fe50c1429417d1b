// Package whatsapp sends a WhatsApp message to a resolved recipient, routing
// through the customer service window.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/messaging"
	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "WHATSAPP"

var errMissingMessage = errors.New("missing 'message' in step configuration")

type props struct {
	Phone   string
	Message string
}

// Handler executes WHATSAPP steps.
type Handler struct {
	service *messaging.WhatsApp
}

func NewHandler(service *messaging.WhatsApp) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Send WhatsApp Message" }

func (h *Handler) Description() string {
	return "Sends a WhatsApp message, falling back to a template outside the 24h service window."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"phone": map[string]any{
				"type":        "string",
				"description": "Recipient phone number in international format.",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Message text. Supports mentions of earlier step outputs.",
			},
		},
		"required":             []string{"phone", "message"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "phone", Type: "string", Required: true, Cloneable: false},
			{Name: "message", Type: "string", Required: true, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "route", Type: "string", Description: "Delivery path taken: direct or template."},
			{Name: "template_id", Type: "string", Description: "Generated template ID when the template route was used."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	phone, _ := data["phone"].(string)
	if phone == "" {
		return props{}, messaging.ErrNoRecipient
	}

	message, _ := data["message"].(string)
	if message == "" {
		return props{}, errMissingMessage
	}

	return props{Phone: phone, Message: message}, nil
}

func (h *Handler) Run(
	ctx context.Context,
	_ models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "whatsapp_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	route, templateID, err := h.service.Send(ctx, p.Phone, p.Message)
	if err != nil {
		return models.Failure(fmt.Errorf("whatsapp send failed: %w", err)), nil
	}

	logger.InfoContext(ctx, "WhatsApp message sent", "route", string(route))

	return models.Succeed(map[string]any{
		"route":       string(route),
		"template_id": templateID,
	}), nil
}
