// Package models defines the core domain models for flow automation.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus int

const (
	FlowStatusDraft    FlowStatus = 0 // Editable, not scheduled
	FlowStatusActive   FlowStatus = 1 // Trigger registered, executable
	FlowStatusArchived FlowStatus = 2 // Terminal
)

// Flow represents a user-defined automation: one trigger and an ordered
// list of action steps.
type Flow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Status      FlowStatus     `json:"status"`
	CreatorID   string         `json:"creator_id"  validate:"required"`
	Trigger     *StepInstance  `json:"trigger"`
	Steps       []StepInstance `json:"steps"`
	Public      bool           `json:"public"`
	LastError   string         `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Executable reports whether the flow can be run: it needs a trigger and at
// least one step.
func (f *Flow) Executable() bool {
	return f.Trigger != nil && len(f.Steps) > 0
}

// Clone returns a copy of the flow owned by newOwner. Prop values whose
// specs are not cloneable (secrets, IDs tied to the original owner) are
// stripped using the node definitions in catalog.
func (f *Flow) Clone(newOwner string, catalog map[string]NodeDefinition) *Flow {
	now := time.Now().UTC()

	clone := &Flow{
		ID:          "",
		Name:        f.Name,
		Description: f.Description,
		Type:        f.Type,
		Status:      FlowStatusDraft,
		CreatorID:   newOwner,
		Public:      false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if f.Trigger != nil {
		t := f.Trigger.cloneStripped(catalog)
		clone.Trigger = &t
	}

	clone.Steps = make([]StepInstance, 0, len(f.Steps))
	for _, step := range f.Steps {
		clone.Steps = append(clone.Steps, step.cloneStripped(catalog))
	}

	return clone
}
