// Package events defines the event types published around flow executions.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the event bus topic all flow events travel on.
const Topic = "flowdeck.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	FlowTriggeredEvent         EventType = "flow.triggered"
	FlowExecutionFinishedEvent EventType = "flow.execution.finished"
	FlowExecutionFailedEvent   EventType = "flow.execution.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        "evt-" + uuid.New().String()[:8],
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
	}
}

// FlowTriggered asks a worker to execute a flow. TriggerData carries the
// firing event's payload (cron slot, inbound email, webhook body).
type FlowTriggered struct {
	BaseEvent

	UserID      string         `json:"user_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e FlowTriggered) GetType() EventType {
	return FlowTriggeredEvent
}

// FlowExecutionFinished reports a completed execution.
type FlowExecutionFinished struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Result      map[string]any `json:"result,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Steps       int            `json:"steps"`
}

func (e FlowExecutionFinished) GetType() EventType {
	return FlowExecutionFinishedEvent
}

// FlowExecutionFailed reports a terminally failed execution.
type FlowExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
	Steps       int    `json:"steps"`
}

func (e FlowExecutionFailed) GetType() EventType {
	return FlowExecutionFailedEvent
}
