// Package tableread reads a single record or a filtered record list from a
// user table.
package tableread

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
)

// NodeID identifies this node type in the registry.
const NodeID = "TABLE_READ"

var errMissingTableID = errors.New("missing 'table_id' in step configuration")

type props struct {
	TableID  string
	RecordID string
	Filters  map[string]any
}

// Handler executes TABLE_READ steps.
type Handler struct {
	store *tables.Store
}

func NewHandler(store *tables.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Read Table Records" }

func (h *Handler) Description() string {
	return "Reads one record by ID, or lists records matching equality filters."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table_id": map[string]any{
				"type":        "string",
				"description": "Table to read from.",
			},
			"record_id": map[string]any{
				"type":        "string",
				"description": "Read exactly this record. Omit to list records.",
			},
			"filters": map[string]any{
				"type":        "object",
				"description": "Field-equality filters applied when listing records.",
			},
		},
		"required":             []string{"table_id"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "table_id", Type: "string", Required: true, Cloneable: false},
			{Name: "record_id", Type: "string", Required: false, Cloneable: false},
			{Name: "filters", Type: "object", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "record", Type: "object", Description: "The record, when read by ID."},
			{Name: "records", Type: "array", Description: "Matching records, when listing."},
			{Name: "count", Type: "number", Description: "Number of records returned."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	tableID, _ := data["table_id"].(string)
	if tableID == "" {
		return props{}, errMissingTableID
	}

	p := props{TableID: tableID}
	p.RecordID, _ = data["record_id"].(string)
	p.Filters, _ = data["filters"].(map[string]any)

	return p, nil
}

func recordPayload(record *models.TableRecord) map[string]any {
	fields := make(map[string]any, len(record.Fields)+3)
	for k, v := range record.Fields {
		fields[k] = v
	}

	fields["id"] = record.ID
	fields["created_at"] = record.CreatedAt
	fields["updated_at"] = record.UpdatedAt

	return fields
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "table_read_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	if p.RecordID != "" {
		record, err := h.store.GetRecord(ctx, p.TableID, execCtx.UserID, p.RecordID)
		if err != nil {
			return models.Failure(err), nil
		}

		return models.Succeed(map[string]any{
			"record": recordPayload(record),
			"count":  1,
		}), nil
	}

	records, err := h.store.QueryRecords(ctx, p.TableID, execCtx.UserID, p.Filters)
	if err != nil {
		return models.Failure(err), nil
	}

	payload := make([]any, 0, len(records))
	for _, record := range records {
		payload = append(payload, recordPayload(record))
	}

	logger.InfoContext(ctx, "Records read", "table_id", p.TableID, "count", len(payload))

	return models.Succeed(map[string]any{
		"records": payload,
		"count":   len(payload),
	}), nil
}
