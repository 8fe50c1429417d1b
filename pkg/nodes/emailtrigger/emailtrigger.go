// Package emailtrigger is the inbound-email trigger node. The runner
// injects the received email under the "trigger_data" prop; test executions
// fall back to a sample payload so downstream mentions resolve.
package emailtrigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "EMAIL_TRIGGER"

// TriggerDataProp is the props key the runner injects the firing payload
// under.
const TriggerDataProp = models.TriggerDataProp

// Handler executes EMAIL_TRIGGER steps.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Email Received" }

func (h *Handler) Description() string {
	return "Fires the flow when an email arrives at the flow's inbound address."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"from_filter": map[string]any{
				"type":        "string",
				"description": "Only fire for senders containing this substring. Empty matches all.",
			},
			"trigger_data": map[string]any{
				"type":        "object",
				"description": "The received email, injected at firing time.",
			},
		},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "from_filter", Type: "string", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "from", Type: "string", Description: "Sender address."},
			{Name: "subject", Type: "string", Description: "Email subject."},
			{Name: "body", Type: "string", Description: "Plain-text body."},
			{Name: "received_at", Type: "string", Description: "When the email arrived, RFC 3339."},
		},
	}
}

func samplePayload() map[string]any {
	return map[string]any{
		"from":        "sender@example.com",
		"subject":     "Sample email",
		"body":        "This is a sample email used for test executions.",
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "email_trigger_node")

	injected, ok := step.PropsData[TriggerDataProp].(map[string]any)
	if !ok || len(injected) == 0 {
		if !execCtx.IsTest {
			logger.WarnContext(ctx, "Email trigger fired without injected payload, using sample")
		}

		return models.Succeed(samplePayload()), nil
	}

	payload := map[string]any{
		"from":        injected["from"],
		"subject":     injected["subject"],
		"body":        injected["body"],
		"received_at": injected["received_at"],
	}
	if payload["received_at"] == nil {
		payload["received_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	return models.Succeed(payload), nil
}
