// Package formatter renders a template expression over earlier step
// payloads and produces the formatted value for downstream steps.
package formatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/template"
)

// NodeID identifies this node type in the registry.
const NodeID = "FORMATTER"

var errMissingFormat = errors.New("missing 'format' in step configuration")

// Handler executes FORMATTER steps.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Formatter" }

func (h *Handler) Description() string {
	return "Renders a template over earlier step outputs and returns the formatted value."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"format": map[string]any{
				"type":        "string",
				"description": "Template expression. \".prev\" holds the previous step's payload, \".results\" all payloads by step ref.",
				"examples": []string{
					"Hello {{ .prev.name }}",
					`{"total": {{ .prev.count }}}`,
					"{{ index .results \"step-0-TABLE_READ\" }}",
				},
			},
		},
		"required":             []string{"format"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "format", Type: "string", Required: true, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "value", Type: "any", Description: "The rendered value: decoded JSON, number, boolean or string."},
		},
	}
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	prev *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "formatter_node")

	format, _ := step.PropsData["format"].(string)
	if format == "" {
		return models.Failure(errMissingFormat), nil
	}

	value, err := template.RenderWithResults(format, &execCtx, prev)
	if err != nil {
		return models.Failure(fmt.Errorf("formatting failed: %w", err)), nil
	}

	logger.DebugContext(ctx, "Format rendered", "step_id", step.ID)

	return models.Succeed(map[string]any{"value": value}), nil
}
