package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/eventbus"
	"github.com/flowdeck-io/flowdeck/pkg/events"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/scheduleinterval"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/scheduletime"
	"github.com/robfig/cron/v3"
)

const defaultSyncInterval = time.Minute

// Activator keeps the schedule triggers of active flows registered and
// publishes a FlowTriggered event each time one fires. Flows are re-synced
// from the repository periodically, so activations and deactivations made
// through the API are picked up without a restart.
type Activator struct {
	id           string
	repo         *flows.Repository
	eventBus     eventbus.EventBus
	logger       *slog.Logger
	cron         *cron.Cron
	syncInterval time.Duration

	mu        sync.Mutex
	schedules map[string]cron.EntryID // flow ID -> cron entry
	intervals map[string]chan struct{}
}

func NewActivator(
	id string,
	repo *flows.Repository,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Activator {
	return &Activator{
		id:           id,
		repo:         repo,
		eventBus:     eventBus,
		logger:       logger.With("module", "activator"),
		cron:         cron.New(),
		syncInterval: defaultSyncInterval,
		schedules:    make(map[string]cron.EntryID),
		intervals:    make(map[string]chan struct{}),
	}
}

// Start runs the activator until the context is cancelled.
func (a *Activator) Start(ctx context.Context) error {
	a.logger.InfoContext(ctx, "Starting activator")

	if err := a.sync(ctx); err != nil {
		return err
	}

	a.cron.Start()
	defer a.cron.Stop()

	ticker := time.NewTicker(a.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Activator shutting down")
			a.stopAllIntervals()

			return nil
		case <-ticker.C:
			if err := a.sync(ctx); err != nil {
				a.logger.ErrorContext(ctx, "Failed to sync active flows", "error", err)
			}
		}
	}
}

// sync reconciles the registered triggers with the set of active flows.
func (a *Activator) sync(ctx context.Context) error {
	active, err := a.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool, len(active))

	for _, flow := range active {
		if flow.Trigger == nil {
			continue
		}

		seen[flow.ID] = true

		switch flow.Trigger.NodeID {
		case scheduletime.NodeID:
			a.registerSchedule(ctx, flow)
		case scheduleinterval.NodeID:
			a.registerInterval(ctx, flow)
		}
	}

	// Drop triggers for flows that are no longer active.
	for flowID, entryID := range a.schedules {
		if !seen[flowID] {
			a.cron.Remove(entryID)
			delete(a.schedules, flowID)
			a.logger.InfoContext(ctx, "Unregistered cron trigger", "flow_id", flowID)
		}
	}

	for flowID, stop := range a.intervals {
		if !seen[flowID] {
			close(stop)
			delete(a.intervals, flowID)
			a.logger.InfoContext(ctx, "Unregistered interval trigger", "flow_id", flowID)
		}
	}

	return nil
}

func (a *Activator) registerSchedule(ctx context.Context, flow *models.Flow) {
	if _, registered := a.schedules[flow.ID]; registered {
		return
	}

	expr, _ := flow.Trigger.PropsData["cron"].(string)
	timezone, _ := flow.Trigger.PropsData["timezone"].(string)

	if _, err := scheduletime.ParseSchedule(expr, timezone); err != nil {
		a.logger.WarnContext(ctx, "Skipping flow with invalid cron trigger",
			"flow_id", flow.ID, "error", err)

		return
	}

	spec := expr
	if timezone != "" {
		spec = "CRON_TZ=" + timezone + " " + expr
	}

	flowID, userID := flow.ID, flow.CreatorID
	entryID, err := a.cron.AddFunc(spec, func() {
		a.fire(context.WithoutCancel(ctx), flowID, userID, map[string]any{"cron": expr})
	})
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to register cron trigger",
			"flow_id", flow.ID, "error", err)

		return
	}

	a.schedules[flow.ID] = entryID
	a.logger.InfoContext(ctx, "Registered cron trigger", "flow_id", flow.ID, "cron", expr)
}

func (a *Activator) registerInterval(ctx context.Context, flow *models.Flow) {
	if _, registered := a.intervals[flow.ID]; registered {
		return
	}

	interval, err := scheduleinterval.ParseInterval(flow.Trigger.PropsData)
	if err != nil {
		a.logger.WarnContext(ctx, "Skipping flow with invalid interval trigger",
			"flow_id", flow.ID, "error", err)

		return
	}

	stop := make(chan struct{})
	a.intervals[flow.ID] = stop

	flowID, userID := flow.ID, flow.CreatorID

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.fire(context.WithoutCancel(ctx), flowID, userID,
					map[string]any{"interval_seconds": interval.Seconds()})
			}
		}
	}()

	a.logger.InfoContext(ctx, "Registered interval trigger",
		"flow_id", flow.ID, "interval", interval)
}

func (a *Activator) fire(ctx context.Context, flowID, userID string, triggerData map[string]any) {
	event := events.FlowTriggered{
		BaseEvent:   events.NewBaseEvent(events.FlowTriggeredEvent, flowID),
		UserID:      userID,
		TriggerData: triggerData,
	}
	event.WorkerID = a.id

	err := a.eventBus.Publish(ctx, flowID, event)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to publish flow triggered event",
			"flow_id", flowID, "error", err)

		return
	}

	a.logger.InfoContext(ctx, "Flow triggered", "flow_id", flowID, "event_id", event.ID)
}

func (a *Activator) stopAllIntervals() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for flowID, stop := range a.intervals {
		close(stop)
		delete(a.intervals, flowID)
	}
}
