package models

import "time"

// FlowLogStatus is the terminal status of one flow execution.
type FlowLogStatus string

const (
	FlowLogStatusSuccess FlowLogStatus = "success"
	FlowLogStatusFailed  FlowLogStatus = "failed"
)

// FlowLog records one flow execution, normal or test. Exactly one entry is
// written per execution; it is immutable after write except for
// failure-callback updates.
type FlowLog struct {
	ID         string        `json:"id"` // equals the execution ID
	FlowID     string        `json:"flow_id"`
	Status     FlowLogStatus `json:"status"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	DurationMs int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
	Steps      int           `json:"steps"`
	CreatorID  string        `json:"creator_id"`
	CreatedAt  time.Time     `json:"created_at"`
}
