package calendar_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderProvider struct {
	events []calendar.Event
	userID string
	err    error
}

func (r *recorderProvider) CreateEvent(_ context.Context, userID string, event calendar.Event) (string, error) {
	if r.err != nil {
		return "", r.err
	}

	r.userID = userID
	r.events = append(r.events, event)

	return "evt-123", nil
}

func run(t *testing.T, provider calendar.Provider, propsData map[string]any) models.ExecutionResult {
	t.Helper()

	handler := calendar.NewHandler(provider)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	step := models.StepInstance{ID: "s1", NodeID: calendar.NodeID, PropsData: propsData}

	result, err := handler.Run(context.Background(),
		models.ExecutionContext{ID: "exec-1", UserID: "u1"}, step, nil, logger)
	require.NoError(t, err)

	return result
}

func TestRunCreatesEvent(t *testing.T) {
	provider := &recorderProvider{}

	result := run(t, provider, map[string]any{
		"title":     "Standup",
		"start":     "2025-06-02T09:00:00Z",
		"attendees": []any{"ada@example.com"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "evt-123", result.Payload["event_id"])
	assert.Equal(t, "u1", provider.userID)
	require.Len(t, provider.events, 1)
	assert.Equal(t, "Standup", provider.events[0].Title)
	// End defaults to one hour after start.
	assert.Equal(t, "2025-06-02T10:00:00Z", result.Payload["end"])
}

func TestRunProviderFailure(t *testing.T) {
	provider := &recorderProvider{err: errors.New("quota exceeded")}

	result := run(t, provider, map[string]any{
		"title": "Standup",
		"start": "2025-06-02T09:00:00Z",
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "quota exceeded")
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name     string
		props    map[string]any
		contains string
	}{
		{name: "missing title", props: map[string]any{"start": "2025-06-02T09:00:00Z"}, contains: "title"},
		{name: "missing start", props: map[string]any{"title": "x"}, contains: "start"},
		{name: "bad start", props: map[string]any{"title": "x", "start": "tomorrow"}, contains: "start"},
		{
			name:     "end before start",
			props:    map[string]any{"title": "x", "start": "2025-06-02T09:00:00Z", "end": "2025-06-02T08:00:00Z"},
			contains: "end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, &recorderProvider{}, tt.props)

			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tt.contains)
		})
	}
}
