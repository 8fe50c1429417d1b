package formatter_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/formatter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFormatsPrevPayload(t *testing.T) {
	handler := formatter.NewHandler()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	prev := &models.ExecutionResult{
		Success: true,
		Payload: map[string]any{"name": "Ada", "count": 3},
	}
	step := models.StepInstance{
		ID:        "s1",
		NodeID:    formatter.NodeID,
		PropsData: map[string]any{"format": "Hello {{ .prev.name }}, {{ .prev.count }} new items"},
	}

	result, err := handler.Run(context.Background(), models.ExecutionContext{ID: "exec-1"}, step, prev, logger)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Hello Ada, 3 new items", result.Payload["value"])
}

func TestRunFormatsAccumulatedResults(t *testing.T) {
	handler := formatter.NewHandler()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	execCtx := models.ExecutionContext{ID: "exec-1"}
	execCtx.Record("step-0-TABLE_READ", models.ExecutionResult{
		Success: true,
		Payload: map[string]any{"count": 7},
	})

	step := models.StepInstance{
		ID:        "s2",
		NodeID:    formatter.NodeID,
		PropsData: map[string]any{"format": `{{ (index .results "step-0-TABLE_READ").count }}`},
	}

	result, err := handler.Run(context.Background(), execCtx, step, nil, logger)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, float64(7), result.Payload["value"])
}

func TestRunFailures(t *testing.T) {
	handler := formatter.NewHandler()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("missing format", func(t *testing.T) {
		step := models.StepInstance{ID: "s1", NodeID: formatter.NodeID, PropsData: map[string]any{}}

		result, err := handler.Run(context.Background(), models.ExecutionContext{}, step, nil, logger)
		require.NoError(t, err)
		assert.False(t, result.Success)
	})

	t.Run("bad template", func(t *testing.T) {
		step := models.StepInstance{
			ID:        "s1",
			NodeID:    formatter.NodeID,
			PropsData: map[string]any{"format": "{{ .broken"},
		}

		result, err := handler.Run(context.Background(), models.ExecutionContext{}, step, nil, logger)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "formatting failed")
	})
}
