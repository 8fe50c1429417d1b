package scheduleinterval_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/scheduleinterval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProducesFiringPayload(t *testing.T) {
	handler := scheduleinterval.NewHandler()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	step := models.StepInstance{
		ID:        "t1",
		NodeID:    scheduleinterval.NodeID,
		PropsData: map[string]any{"interval_seconds": float64(300)},
	}

	result, err := handler.Run(context.Background(), models.ExecutionContext{}, step, nil, logger)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, float64(300), result.Payload["interval_seconds"])
	assert.NotEmpty(t, result.Payload["next_run"])
}

func TestRunRejectsShortInterval(t *testing.T) {
	handler := scheduleinterval.NewHandler()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	step := models.StepInstance{
		ID:        "t1",
		NodeID:    scheduleinterval.NodeID,
		PropsData: map[string]any{"interval_seconds": float64(5)},
	}

	result, err := handler.Run(context.Background(), models.ExecutionContext{}, step, nil, logger)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "interval_seconds")
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		want    time.Duration
		wantErr bool
	}{
		{name: "float", data: map[string]any{"interval_seconds": float64(120)}, want: 2 * time.Minute},
		{name: "int", data: map[string]any{"interval_seconds": 60}, want: time.Minute},
		{name: "missing", data: map[string]any{}, wantErr: true},
		{name: "too short", data: map[string]any{"interval_seconds": float64(1)}, wantErr: true},
		{name: "wrong type", data: map[string]any{"interval_seconds": "sixty"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scheduleinterval.ParseInterval(tt.data)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
