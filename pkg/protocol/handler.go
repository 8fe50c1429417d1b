// Package protocol defines the contract every node handler implements.
package protocol

import (
	"context"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// Handler executes one node type. Implementations return expected domain
// failures (validation, authorization, not-found, conflicts) inside the
// ExecutionResult and reserve the error return for unexpected conditions,
// which the flow runner converts into a failed step.
type Handler interface {
	// ID returns the node type identifier dispatched against the registry.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns what this node does.
	Description() string

	// Schema returns the JSON schema used to validate props before
	// execution begins.
	Schema() map[string]any

	// Definition returns the static node catalog entry (props with
	// required/cloneable flags, expected output fields).
	Definition() models.NodeDefinition

	// Run executes the node with resolved and augmented props. prev is the
	// previous step's result, nil when this is the trigger.
	Run(
		ctx context.Context,
		execCtx models.ExecutionContext,
		step models.StepInstance,
		prev *models.ExecutionResult,
		logger *slog.Logger,
	) (models.ExecutionResult, error)
}
