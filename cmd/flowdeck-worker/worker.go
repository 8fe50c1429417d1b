package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/cmd"
	"github.com/flowdeck-io/flowdeck/pkg/eventbus"
	"github.com/flowdeck-io/flowdeck/pkg/events"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"go.opentelemetry.io/otel/trace"
)

// WorkerManager consumes FlowTriggered events and runs the flows they name,
// publishing a finished or failed event for each execution.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	repo     *flows.Repository
	runner   *flows.Runner
	eventBus eventbus.EventBus
}

func NewWorkerManager(
	id string,
	collaborators cmd.Collaborators,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *WorkerManager {
	repo := flows.NewRepository(collaborators.Docs)
	augmenter := ai.NewAugmenter(collaborators.AI, logger)
	runner := flows.NewRunner(reg, augmenter, repo, collaborators.Notifier, tracer, logger)

	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "flowdeck-worker"),
		repo:     repo,
		runner:   runner,
		eventBus: eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.FlowTriggeredEvent, w.handleFlowTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleFlowTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.FlowTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for FlowTriggered")

		return nil
	}

	logger := w.logger.With("flow_id", triggered.FlowID, "event_id", triggered.ID)
	logger.InfoContext(ctx, "Processing flow triggered event")

	started := time.Now()

	flow, err := w.repo.Get(ctx, triggered.FlowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load flow", "error", err)

		return w.publishFailed(ctx, triggered, "", err.Error(), started, 0)
	}

	execution, err := w.runner.Execute(ctx, flow, triggered.TriggerData, false)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute flow", "error", err)

		return w.publishFailed(ctx, triggered, "", err.Error(), started, 0)
	}

	flowLog := execution.Log
	if flowLog.Status == models.FlowLogStatusFailed {
		return w.publishFailed(ctx, triggered, flowLog.ID, flowLog.Error, started, flowLog.Steps)
	}

	result := make(map[string]any, len(execution.Results))
	for ref, stepResult := range execution.Results {
		result[ref] = stepResult.Payload
	}

	finished := events.FlowExecutionFinished{
		BaseEvent:   events.NewBaseEvent(events.FlowExecutionFinishedEvent, triggered.FlowID),
		ExecutionID: flowLog.ID,
		Result:      result,
		DurationMs:  time.Since(started).Milliseconds(),
		Steps:       flowLog.Steps,
	}
	finished.WorkerID = w.id

	return w.eventBus.Publish(ctx, triggered.FlowID, finished)
}

func (w *WorkerManager) publishFailed(
	ctx context.Context,
	triggered *events.FlowTriggered,
	executionID, reason string,
	started time.Time,
	steps int,
) error {
	failed := events.FlowExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.FlowExecutionFailedEvent, triggered.FlowID),
		ExecutionID: executionID,
		Error:       reason,
		DurationMs:  time.Since(started).Milliseconds(),
		Steps:       steps,
	}
	failed.WorkerID = w.id

	err := w.eventBus.Publish(ctx, triggered.FlowID, failed)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish flow execution failed event", "error", err)
	}

	return err
}
