// Package tabledelete removes a single record from a user table together
// with every unique-index key the record holds.
package tabledelete

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
)

// NodeID identifies this node type in the registry.
const NodeID = "TABLE_DELETE"

var (
	errMissingTableID  = errors.New("missing 'table_id' in step configuration")
	errMissingRecordID = errors.New("missing 'record_id' in step configuration")
)

// Handler executes TABLE_DELETE steps.
type Handler struct {
	store *tables.Store
}

func NewHandler(store *tables.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Delete Table Record" }

func (h *Handler) Description() string {
	return "Deletes a record and releases its uniqueness-index entries."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table_id": map[string]any{
				"type":        "string",
				"description": "Table holding the record.",
			},
			"record_id": map[string]any{
				"type":        "string",
				"description": "Record to delete.",
			},
		},
		"required":             []string{"table_id", "record_id"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "table_id", Type: "string", Required: true, Cloneable: false},
			{Name: "record_id", Type: "string", Required: true, Cloneable: false},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "deleted", Type: "boolean", Description: "True when the record was removed."},
			{Name: "record_id", Type: "string", Description: "ID of the removed record."},
		},
	}
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "table_delete_node")

	tableID, _ := step.PropsData["table_id"].(string)
	if tableID == "" {
		return models.Failure(errMissingTableID), nil
	}

	recordID, _ := step.PropsData["record_id"].(string)
	if recordID == "" {
		return models.Failure(errMissingRecordID), nil
	}

	err := h.store.DeleteRecord(ctx, tableID, execCtx.UserID, recordID)
	if err != nil {
		return models.Failure(err), nil
	}

	logger.InfoContext(ctx, "Record deleted", "table_id", tableID, "record_id", recordID)

	return models.Succeed(map[string]any{
		"deleted":   true,
		"record_id": recordID,
	}), nil
}
