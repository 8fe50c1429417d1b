package flows_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler is a configurable test node: it captures the props it
// ran with and returns a canned result.
type recordingHandler struct {
	id       string
	result   models.ExecutionResult
	err      error
	gotProps map[string]any
	gotPrev  *models.ExecutionResult
	runs     int
}

func (h *recordingHandler) ID() string          { return h.id }
func (h *recordingHandler) Name() string        { return h.id }
func (h *recordingHandler) Description() string { return "test node" }

func (h *recordingHandler) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

func (h *recordingHandler) Definition() models.NodeDefinition {
	return models.NodeDefinition{NodeID: h.id}
}

func (h *recordingHandler) Run(
	_ context.Context,
	_ models.ExecutionContext,
	step models.StepInstance,
	prev *models.ExecutionResult,
	_ *slog.Logger,
) (models.ExecutionResult, error) {
	h.runs++
	h.gotProps = step.PropsData
	h.gotPrev = prev

	if h.err != nil {
		return models.ExecutionResult{}, h.err
	}

	return h.result, nil
}

func newRunner(t *testing.T, handlers ...*recordingHandler) (*flows.Runner, *flows.Repository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	reg := registry.NewRegistry(logger)

	for _, h := range handlers {
		reg.Register(h)
	}

	repo := flows.NewRepository(docstore.NewMemory())
	augmenter := ai.NewAugmenter(&ai.StaticClient{}, logger)

	return flows.NewRunner(reg, augmenter, repo, nil, nil, logger), repo
}

func twoStepFlow(triggerID string, stepIDs ...string) *models.Flow {
	flow := &models.Flow{
		ID:        "flow-1",
		Name:      "Test flow",
		Status:    models.FlowStatusActive,
		CreatorID: "u1",
		Trigger:   &models.StepInstance{ID: "t", NodeID: triggerID, PropsData: map[string]any{}},
	}

	for i, id := range stepIDs {
		flow.Steps = append(flow.Steps, models.StepInstance{
			ID:        id,
			NodeID:    id,
			Position:  i,
			PropsData: map[string]any{},
		})
	}

	return flow
}

func TestExecuteRunsTriggerThenSteps(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(map[string]any{"fired": true})}
	step := &recordingHandler{id: "STEP", result: models.Succeed(map[string]any{"done": true})}

	runner, repo := newRunner(t, trigger, step)

	execution, err := runner.Execute(context.Background(), twoStepFlow("TRIG", "STEP"), nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.FlowLogStatusSuccess, execution.Log.Status)
	assert.Equal(t, 2, execution.Log.Steps)
	assert.Contains(t, execution.Results, "trigger-TRIG")
	assert.Contains(t, execution.Results, "step-0-STEP")

	// The trigger's result arrives as the first step's previousResult.
	require.NotNil(t, step.gotPrev)
	assert.Equal(t, true, step.gotPrev.Payload["fired"])

	logs, err := repo.Logs(context.Background(), "flow-1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestExecuteResolvesMentionsSequentially(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(nil)}
	producer := &recordingHandler{id: "PRODUCER", result: models.Succeed(map[string]any{"city": "London"})}
	consumer := &recordingHandler{id: "CONSUMER", result: models.Succeed(nil)}

	runner, _ := newRunner(t, trigger, producer, consumer)

	flow := twoStepFlow("TRIG", "PRODUCER", "CONSUMER")
	flow.Steps[1].PropsData = map[string]any{
		"text": `Weather in <span data-type="mention" data-id="step-0-PRODUCER[city]">city</span> today`,
	}

	_, err := runner.Execute(context.Background(), flow, nil, false)
	require.NoError(t, err)

	// The consumer sees exactly the value the producer returned.
	assert.Equal(t, "Weather in London today", consumer.gotProps["text"])
}

func TestExecuteFailedStepShortCircuits(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(nil)}
	failing := &recordingHandler{id: "FAILING", result: models.Failure(errors.New("boom"))}
	after := &recordingHandler{id: "AFTER", result: models.Succeed(nil)}

	runner, _ := newRunner(t, trigger, failing, after)

	execution, err := runner.Execute(context.Background(), twoStepFlow("TRIG", "FAILING", "AFTER"), nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.FlowLogStatusFailed, execution.Log.Status)
	assert.Contains(t, execution.Log.Error, "boom")
	assert.Equal(t, 0, after.runs)
}

func TestExecuteContinueOnError(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(nil)}
	failing := &recordingHandler{id: "FAILING", result: models.Failure(errors.New("boom"))}
	after := &recordingHandler{id: "AFTER", result: models.Succeed(nil)}

	runner, _ := newRunner(t, trigger, failing, after)

	flow := twoStepFlow("TRIG", "FAILING", "AFTER")
	flow.Steps[0].PropsData = map[string]any{"continue_on_error": true}

	execution, err := runner.Execute(context.Background(), flow, nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.FlowLogStatusSuccess, execution.Log.Status)
	assert.Equal(t, 1, after.runs)

	// The failed result still flows into the next step as previousResult.
	require.NotNil(t, after.gotPrev)
	assert.False(t, after.gotPrev.Success)
}

func TestExecuteUnexpectedErrorBecomesFailedStep(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(nil)}
	broken := &recordingHandler{id: "BROKEN", err: errors.New("nil pointer somewhere")}

	runner, _ := newRunner(t, trigger, broken)

	execution, err := runner.Execute(context.Background(), twoStepFlow("TRIG", "BROKEN"), nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.FlowLogStatusFailed, execution.Log.Status)
	assert.Contains(t, execution.Log.Error, "nil pointer somewhere")
}

func TestExecuteUnknownNodeSurfacesBeforeExecution(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(nil)}

	runner, repo := newRunner(t, trigger)

	_, err := runner.Execute(context.Background(), twoStepFlow("TRIG", "UNREGISTERED"), nil, false)

	var notFound *registry.NotFoundError

	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, trigger.runs)

	logs, logErr := repo.Logs(context.Background(), "flow-1")
	require.NoError(t, logErr)
	assert.Empty(t, logs)
}

func TestExecuteNotExecutableFlow(t *testing.T) {
	runner, _ := newRunner(t)

	flow := &models.Flow{ID: "flow-1", Name: "Empty", CreatorID: "u1"}

	_, err := runner.Execute(context.Background(), flow, nil, false)
	assert.ErrorIs(t, err, flows.ErrFlowNotExecutable)
}

func TestExecuteInjectsTriggerData(t *testing.T) {
	trigger := &recordingHandler{id: "TRIG", result: models.Succeed(nil)}
	step := &recordingHandler{id: "STEP", result: models.Succeed(nil)}

	runner, _ := newRunner(t, trigger, step)

	_, err := runner.Execute(context.Background(), twoStepFlow("TRIG", "STEP"),
		map[string]any{"from": "boss@example.com"}, false)
	require.NoError(t, err)

	injected, ok := trigger.gotProps[models.TriggerDataProp].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boss@example.com", injected["from"])
}
