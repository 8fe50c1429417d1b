// Package scheduletime is the cron-schedule trigger node. It performs no
// I/O; it validates the schedule and shapes the firing event for downstream
// steps. The activator owns actually firing it.
package scheduletime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/robfig/cron/v3"
)

// NodeID identifies this node type in the registry.
const NodeID = "SCHEDULE_TIME"

var errMissingCron = errors.New("missing 'cron' in step configuration")

// Handler executes SCHEDULE_TIME trigger steps.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Schedule (Cron)" }

func (h *Handler) Description() string {
	return "Fires the flow on a cron schedule."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cron": map[string]any{
				"type":        "string",
				"description": "Standard 5-field cron expression.",
				"examples":    []string{"0 9 * * 1-5", "*/15 * * * *"},
			},
			"timezone": map[string]any{
				"type":        "string",
				"description": "IANA timezone name the schedule is evaluated in.",
				"default":     "UTC",
			},
		},
		"required":             []string{"cron"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "cron", Type: "string", Required: true, Cloneable: true},
			{Name: "timezone", Type: "string", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "fired_at", Type: "string", Description: "When this firing happened, RFC 3339."},
			{Name: "cron", Type: "string", Description: "The schedule that fired."},
			{Name: "next_run", Type: "string", Description: "Next scheduled firing, RFC 3339."},
		},
	}
}

// ParseSchedule validates a cron expression with optional timezone and
// returns the schedule. The activator uses the same parser, so a schedule
// that passes here will register.
func ParseSchedule(expr, timezone string) (cron.Schedule, error) {
	if expr == "" {
		return nil, errMissingCron
	}

	spec := expr
	if timezone != "" {
		spec = "CRON_TZ=" + timezone + " " + expr
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	return schedule, nil
}

func (h *Handler) Run(
	ctx context.Context,
	_ models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "schedule_time_node")

	expr, _ := step.PropsData["cron"].(string)
	timezone, _ := step.PropsData["timezone"].(string)

	schedule, err := ParseSchedule(expr, timezone)
	if err != nil {
		return models.Failure(err), nil
	}

	now := time.Now().UTC()

	logger.DebugContext(ctx, "Schedule trigger fired", "cron", expr)

	return models.Succeed(map[string]any{
		"fired_at": now.Format(time.RFC3339),
		"cron":     expr,
		"next_run": schedule.Next(now).Format(time.RFC3339),
	}), nil
}
