// Package calendar creates a calendar event through a provider collaborator.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "CALENDAR"

var (
	errMissingTitle = errors.New("missing 'title' in step configuration")
	errMissingStart = errors.New("missing or invalid 'start' in step configuration (RFC 3339)")
	errInvalidEnd   = errors.New("invalid 'end' in step configuration (RFC 3339, after start)")
)

// Event is the provider-agnostic calendar entry shape.
type Event struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Provider creates events on an external calendar.
type Provider interface {
	CreateEvent(ctx context.Context, userID string, event Event) (eventID string, err error)
}

type props struct {
	Event Event
}

// Handler executes CALENDAR steps.
type Handler struct {
	provider Provider
}

func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Create Calendar Event" }

func (h *Handler) Description() string {
	return "Creates an event on the flow owner's calendar."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Event title. Supports mentions.",
			},
			"description": map[string]any{
				"type": "string",
			},
			"location": map[string]any{
				"type": "string",
			},
			"start": map[string]any{
				"type":        "string",
				"format":      "date-time",
				"description": "Event start, RFC 3339.",
			},
			"end": map[string]any{
				"type":        "string",
				"format":      "date-time",
				"description": "Event end, RFC 3339. Defaults to one hour after start.",
			},
			"attendees": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Attendee email addresses.",
			},
		},
		"required":             []string{"title", "start"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "title", Type: "string", Required: true, Cloneable: true},
			{Name: "description", Type: "string", Required: false, Cloneable: true},
			{Name: "location", Type: "string", Required: false, Cloneable: true},
			{Name: "start", Type: "string", Required: true, Cloneable: true},
			{Name: "end", Type: "string", Required: false, Cloneable: true},
			{Name: "attendees", Type: "array", Required: false, Cloneable: false},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "event_id", Type: "string", Description: "Provider-assigned event ID."},
			{Name: "start", Type: "string", Description: "Event start as scheduled."},
			{Name: "end", Type: "string", Description: "Event end as scheduled."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	title, _ := data["title"].(string)
	if title == "" {
		return props{}, errMissingTitle
	}

	startRaw, _ := data["start"].(string)

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return props{}, errMissingStart
	}

	end := start.Add(time.Hour)

	if endRaw, ok := data["end"].(string); ok && endRaw != "" {
		end, err = time.Parse(time.RFC3339, endRaw)
		if err != nil || !end.After(start) {
			return props{}, errInvalidEnd
		}
	}

	event := Event{Title: title, Start: start, End: end}
	event.Description, _ = data["description"].(string)
	event.Location, _ = data["location"].(string)

	if attendees, ok := data["attendees"].([]any); ok {
		for _, a := range attendees {
			if email, ok := a.(string); ok && email != "" {
				event.Attendees = append(event.Attendees, email)
			}
		}
	}

	return props{Event: event}, nil
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "calendar_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	eventID, err := h.provider.CreateEvent(ctx, execCtx.UserID, p.Event)
	if err != nil {
		return models.Failure(fmt.Errorf("event creation failed: %w", err)), nil
	}

	logger.InfoContext(ctx, "Calendar event created", "event_id", eventID)

	return models.Succeed(map[string]any{
		"event_id": eventID,
		"start":    p.Event.Start.Format(time.RFC3339),
		"end":      p.Event.End.Format(time.RFC3339),
	}), nil
}
