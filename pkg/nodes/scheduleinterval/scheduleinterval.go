// Package scheduleinterval is the fixed-interval trigger node. Like the
// cron trigger it only validates configuration and shapes the firing
// payload; the activator owns the timer.
package scheduleinterval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "SCHEDULE_INTERVAL"

const minIntervalSeconds = 60

var errInvalidInterval = errors.New("missing or invalid 'interval_seconds' in step configuration")

// Handler executes SCHEDULE_INTERVAL trigger steps.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Schedule (Interval)" }

func (h *Handler) Description() string {
	return "Fires the flow at a fixed interval."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"interval_seconds": map[string]any{
				"type":        "integer",
				"description": "Seconds between firings.",
				"minimum":     minIntervalSeconds,
			},
		},
		"required":             []string{"interval_seconds"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "interval_seconds", Type: "number", Required: true, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "fired_at", Type: "string", Description: "When this firing happened, RFC 3339."},
			{Name: "interval_seconds", Type: "number", Description: "The configured interval."},
			{Name: "next_run", Type: "string", Description: "Next scheduled firing, RFC 3339."},
		},
	}
}

// ParseInterval validates the configured interval.
func ParseInterval(data map[string]any) (time.Duration, error) {
	seconds, ok := data["interval_seconds"].(float64)
	if !ok {
		if n, isInt := data["interval_seconds"].(int); isInt {
			seconds, ok = float64(n), true
		}
	}

	if !ok || seconds < minIntervalSeconds {
		return 0, fmt.Errorf("%w: minimum is %d seconds", errInvalidInterval, minIntervalSeconds)
	}

	return time.Duration(seconds) * time.Second, nil
}

func (h *Handler) Run(
	ctx context.Context,
	_ models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "schedule_interval_node")

	interval, err := ParseInterval(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	now := time.Now().UTC()

	logger.DebugContext(ctx, "Interval trigger fired", "interval", interval)

	return models.Succeed(map[string]any{
		"fired_at":         now.Format(time.RFC3339),
		"interval_seconds": interval.Seconds(),
		"next_run":         now.Add(interval).Format(time.RFC3339),
	}), nil
}
