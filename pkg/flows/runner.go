package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/mention"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/notify"
	"github.com/flowdeck-io/flowdeck/pkg/otelhelper"
	"github.com/flowdeck-io/flowdeck/pkg/protocol"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Runner walks a flow's steps in order: trigger first, then each action
// step. Per step it resolves mention references against earlier results,
// applies AI field augmentation, and dispatches to the registered handler.
// Exactly one FlowLog is written per execution.
type Runner struct {
	registry  *registry.Registry
	augmenter *ai.Augmenter
	repo      *Repository
	notifier  *notify.Notifier
	tracer    trace.Tracer
	logger    *slog.Logger
}

func NewRunner(
	reg *registry.Registry,
	augmenter *ai.Augmenter,
	repo *Repository,
	notifier *notify.Notifier,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Runner {
	if tracer == nil {
		tracer = otel.Tracer("flowdeck.flows")
	}

	return &Runner{
		registry:  reg,
		augmenter: augmenter,
		repo:      repo,
		notifier:  notifier,
		tracer:    tracer,
		logger:    logger.With("module", "runner"),
	}
}

// Execution is the outcome of one flow run: the persisted log entry plus
// every step's result keyed by its ref.
type Execution struct {
	Log     *models.FlowLog
	Results map[string]models.ExecutionResult
}

// Execute runs one flow to completion. triggerData is the firing event's
// payload and is injected into the trigger step. Unknown node IDs and
// non-executable flows are caller errors returned before anything runs;
// step failures are recorded in the FlowLog, not returned.
func (r *Runner) Execute(
	ctx context.Context,
	flow *models.Flow,
	triggerData map[string]any,
	isTest bool,
) (*Execution, error) {
	if !flow.Executable() {
		return nil, ErrFlowNotExecutable
	}

	// Resolve every handler up front so an unknown node ID surfaces
	// before any side effect happens.
	triggerHandler, err := r.registry.Get(flow.Trigger.NodeID)
	if err != nil {
		return nil, err
	}

	stepHandlers := make([]protocol.Handler, 0, len(flow.Steps))

	for _, step := range flow.Steps {
		handler, err := r.registry.Get(step.NodeID)
		if err != nil {
			return nil, err
		}

		stepHandlers = append(stepHandlers, handler)
	}

	executionID := "exec-" + uuid.New().String()[:8]
	execCtx := models.ExecutionContext{
		ID:     executionID,
		FlowID: flow.ID,
		UserID: flow.CreatorID,
		IsTest: isTest,
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "flow.execute",
		attribute.String(otelhelper.FlowIDKey, flow.ID),
		attribute.String(otelhelper.FlowNameKey, flow.Name),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	logger := r.logger.With("flow_id", flow.ID, "execution_id", executionID)
	logger.InfoContext(ctx, "Execution started", "steps", len(flow.Steps), "is_test", isTest)

	start := time.Now().UTC()

	var (
		prev     *models.ExecutionResult
		failed   bool
		failMsg  string
		stepsRun int
	)

	// Trigger runs first; its result is addressable as trigger-{node_id}.
	trigger := *flow.Trigger
	if len(triggerData) > 0 {
		props := make(map[string]any, len(trigger.PropsData)+1)
		for k, v := range trigger.PropsData {
			props[k] = v
		}

		props[models.TriggerDataProp] = triggerData
		trigger.PropsData = props
	}

	result := r.runStep(ctx, execCtx, trigger, triggerHandler, nil, logger)
	execCtx.Record(models.TriggerRef(trigger.NodeID), result)

	prev = &result
	stepsRun++

	if !result.Success && !trigger.ContinueOnError() {
		failed = true
		failMsg = result.Error
	}

	if !failed {
		for i, step := range flow.Steps {
			result := r.runStep(ctx, execCtx, step, stepHandlers[i], prev, logger)
			execCtx.Record(models.StepRef(i, step.NodeID), result)

			prev = &result
			stepsRun++

			if !result.Success && !step.ContinueOnError() {
				failed = true
				failMsg = result.Error

				break
			}
		}
	}

	end := time.Now().UTC()

	flowLog := &models.FlowLog{
		ID:         executionID,
		FlowID:     flow.ID,
		Status:     models.FlowLogStatusSuccess,
		StartTime:  start,
		EndTime:    end,
		DurationMs: end.Sub(start).Milliseconds(),
		Steps:      stepsRun,
		CreatorID:  flow.CreatorID,
		CreatedAt:  end,
	}

	if failed {
		flowLog.Status = models.FlowLogStatusFailed
		flowLog.Error = failMsg

		otelhelper.SetError(span, &StepFailedError{Reason: failMsg})
	}

	err = r.repo.SaveLog(ctx, flowLog)
	if err != nil {
		return nil, err
	}

	if failed {
		logger.WarnContext(ctx, "Execution failed", "error", failMsg, "steps_run", stepsRun)

		if r.notifier != nil && !isTest {
			r.notifier.FlowFailed(ctx, flow.CreatorID, flow.Name, failMsg)
		}
	} else {
		logger.InfoContext(ctx, "Execution finished", "steps_run", stepsRun, "duration_ms", flowLog.DurationMs)
	}

	return &Execution{Log: flowLog, Results: execCtx.Results}, nil
}

// runStep executes one step with resolved and augmented props. Unexpected
// handler errors become a failed step result.
func (r *Runner) runStep(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	handler protocol.Handler,
	prev *models.ExecutionResult,
	logger *slog.Logger,
) models.ExecutionResult {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "flow.step",
		attribute.String(otelhelper.NodeIDKey, step.NodeID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepNameKey, step.Name),
	)
	defer span.End()

	resolved := mention.ResolveProps(step.PropsData, execCtx.Results)
	resolved = r.augmenter.Augment(ctx, step, resolved)

	executed := step
	executed.PropsData = resolved

	result, err := handler.Run(ctx, execCtx, executed, prev, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Step handler returned unexpected error",
			"node_id", step.NodeID, "step_id", step.ID, "error", err)
		otelhelper.SetError(span, err)

		return models.Failure(err)
	}

	return result
}

// StepFailedError reports the step failure that ended an execution.
type StepFailedError struct {
	Reason string
}

func (e *StepFailedError) Error() string {
	return "step failed: " + e.Reason
}
