package flows_test

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, payload string) string {
	t.Helper()

	return base64.StdEncoding.EncodeToString([]byte(payload))
}

func newCallbackFixture(t *testing.T) (*flows.CallbackService, *flows.Repository, *models.Flow) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := flows.NewRepository(docstore.NewMemory())

	flow := &models.Flow{
		Name:      "Nightly sync",
		Status:    models.FlowStatusActive,
		CreatorID: "u1",
		Trigger:   &models.StepInstance{ID: "t", NodeID: "SCHEDULE_TIME"},
		Steps:     []models.StepInstance{{ID: "s", NodeID: "WEB_FETCH"}},
	}
	require.NoError(t, repo.Save(context.Background(), flow))

	return flows.NewCallbackService(repo, nil, logger), repo, flow
}

func TestProcessDeactivatesFlowAndWritesLog(t *testing.T) {
	service, repo, flow := newCallbackFixture(t)
	ctx := context.Background()

	result, err := service.Process(ctx, flows.FailureCallback{
		SourceMessageID: "msg-1",
		Status:          "failed",
		Retried:         3,
		MaxRetries:      3,
		DlqID:           "dlq-9",
		Body:            encode(t, `{"error":"upstream timed out"}`),
		SourceBody:      encode(t, `{"flowId":"`+flow.ID+`","executionId":"exec-77","userId":"u1"}`),
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, flow.ID, result.FlowID)
	assert.Equal(t, "exec-77", result.ExecutionID)
	assert.Equal(t, "dlq-9", result.DlqID)

	updated, err := repo.Get(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStatusDraft, updated.Status)
	assert.Equal(t, "upstream timed out", updated.LastError)

	logs, err := repo.Logs(ctx, flow.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.FlowLogStatusFailed, logs[0].Status)
	assert.Equal(t, "exec-77", logs[0].ID)
}

func TestProcessFallbackReason(t *testing.T) {
	service, repo, flow := newCallbackFixture(t)

	_, err := service.Process(context.Background(), flows.FailureCallback{
		SourceMessageID: "msg-1",
		Retried:         2,
		MaxRetries:      5,
		SourceBody:      encode(t, `{"flowId":"`+flow.ID+`","executionId":"exec-1","userId":"u1"}`),
	})
	require.NoError(t, err)

	updated, err := repo.Get(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Contains(t, updated.LastError, "2 of 5 retries")
}

func TestProcessInvalidPayloads(t *testing.T) {
	service, _, _ := newCallbackFixture(t)

	tests := []struct {
		name       string
		sourceBody string
	}{
		{name: "not base64", sourceBody: "%%%"},
		{name: "not json", sourceBody: encode(t, "plain text")},
		{name: "missing ids", sourceBody: encode(t, `{"userId":"u1"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Process(context.Background(), flows.FailureCallback{
				SourceMessageID: "msg-1",
				SourceBody:      tt.sourceBody,
			})
			assert.ErrorIs(t, err, flows.ErrInvalidCallback)
		})
	}

	t.Run("unknown flow", func(t *testing.T) {
		_, err := service.Process(context.Background(), flows.FailureCallback{
			SourceMessageID: "msg-1",
			SourceBody:      encode(t, `{"flowId":"flow-missing","executionId":"exec-1","userId":"u1"}`),
		})
		assert.ErrorIs(t, err, flows.ErrFlowNotFound)
	})
}
