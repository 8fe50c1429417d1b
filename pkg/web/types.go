// Package web provides the HTTP surface for flow, table and node
// management.
package web

import "github.com/flowdeck-io/flowdeck/pkg/models"

// UserIDHeader carries the authenticated user's ID, set by the platform
// gateway in front of this service.
const UserIDHeader = "X-User-ID"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string                `json:"name"        validate:"required,min=3"`
	Description string                `json:"description"`
	Type        string                `json:"type"`
	Trigger     *models.StepInstance  `json:"trigger"`
	Steps       []models.StepInstance `json:"steps"       validate:"omitempty,dive"`
	Public      bool                  `json:"public"`
}

// UpdateFlowRequest represents the request body for updating an existing
// flow. All fields are optional to support partial updates.
type UpdateFlowRequest struct {
	Name        *string               `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string               `json:"description,omitempty"`
	Status      *models.FlowStatus    `json:"status,omitempty"`
	Trigger     *models.StepInstance  `json:"trigger,omitempty"`
	Steps       []models.StepInstance `json:"steps,omitempty"       validate:"omitempty,dive"`
	Public      *bool                 `json:"public,omitempty"`
}

// CreateTableRequest represents the request body for creating a table.
type CreateTableRequest struct {
	Name         string                 `json:"name"          validate:"required,min=1"`
	Fields       []models.FieldDef      `json:"fields"        validate:"required,min=1,dive"`
	Visibility   models.TableVisibility `json:"visibility"    validate:"omitempty,oneof=private shared"`
	AllowedUsers []string               `json:"allowed_users"`
}

// RecordRequest represents the request body for creating or patching a
// table record: a field-value map keyed by field ID.
type RecordRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
}

// TestNodeRequest represents the single-node test harness request.
type TestNodeRequest struct {
	NodeID    string         `json:"node_id"    validate:"required"`
	NodeData  map[string]any `json:"node_data"`
	PropsData map[string]any `json:"props_data"`
}

// TestNodeResponse is the test harness result envelope.
type TestNodeResponse struct {
	Success     bool                    `json:"success"`
	ExecutionID string                  `json:"execution_id"`
	DurationMs  int64                   `json:"duration_ms"`
	Result      *models.ExecutionResult `json:"result,omitempty"`
	Error       string                  `json:"error,omitempty"`
}
