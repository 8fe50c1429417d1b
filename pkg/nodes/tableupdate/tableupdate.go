// Package tableupdate patches a single record in a user table, keeping the
// uniqueness index consistent in the same transaction.
package tableupdate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
)

// NodeID identifies this node type in the registry.
const NodeID = "TABLE_UPDATE"

var (
	errMissingTableID  = errors.New("missing 'table_id' in step configuration")
	errMissingRecordID = errors.New("missing 'record_id' in step configuration")
	errMissingPatch    = errors.New("missing 'fields' in step configuration")
)

type props struct {
	TableID  string
	RecordID string
	Patch    map[string]any
}

// Handler executes TABLE_UPDATE steps.
type Handler struct {
	store *tables.Store
}

func NewHandler(store *tables.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Update Table Record" }

func (h *Handler) Description() string {
	return "Merges field values into an existing record, enforcing uniqueness constraints."
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
				"description": "Record to update.",
			},
			"fields": map[string]any{
				"type":        "object",
				"description": "Field values to merge into the record, keyed by field ID.",
			},
		},
		"required":             []string{"table_id", "record_id", "fields"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "table_id", Type: "string", Required: true, Cloneable: false},
			{Name: "record_id", Type: "string", Required: true, Cloneable: false},
			{Name: "fields", Type: "object", Required: true, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "record", Type: "object", Description: "The record after the patch was applied."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	tableID, _ := data["table_id"].(string)
	if tableID == "" {
		return props{}, errMissingTableID
	}

	recordID, _ := data["record_id"].(string)
	if recordID == "" {
		return props{}, errMissingRecordID
	}

	patch, ok := data["fields"].(map[string]any)
	if !ok || len(patch) == 0 {
		return props{}, errMissingPatch
	}

	return props{TableID: tableID, RecordID: recordID, Patch: patch}, nil
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "table_update_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	record, err := h.store.UpdateRecord(ctx, p.TableID, execCtx.UserID, p.RecordID, p.Patch)
	if err != nil {
		return models.Failure(err), nil
	}

	logger.InfoContext(ctx, "Record updated", "table_id", p.TableID, "record_id", p.RecordID)

	fields := make(map[string]any, len(record.Fields)+3)
	for k, v := range record.Fields {
		fields[k] = v
	}

	fields["id"] = record.ID
	fields["created_at"] = record.CreatedAt
	fields["updated_at"] = record.UpdatedAt

	return models.Succeed(map[string]any{"record": fields}), nil
}
