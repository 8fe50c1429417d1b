// Package tablecreate inserts records into a user table, either from
// literal record data or from free-form text the LLM turns into records
// matching the table's field schema.
package tablecreate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
)

// NodeID identifies this node type in the registry.
const NodeID = "TABLE_CREATE"

const generateSystemPrompt = "You extract structured records from free-form text. " +
	"Return only data supported by the input, matching the provided schema exactly."

var (
	errMissingTableID     = errors.New("missing 'table_id' in step configuration")
	errMissingDataContext = errors.New("missing 'data_context' for AI record generation")
	errMissingRecords     = errors.New("missing 'records' in step configuration")
)

type props struct {
	TableID     string
	AIMode      bool
	DataContext string
	Records     []map[string]any
}

// Handler executes TABLE_CREATE steps.
type Handler struct {
	store  *tables.Store
	client ai.Client
}

func NewHandler(store *tables.Store, client ai.Client) *Handler {
	return &Handler{store: store, client: client}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Create Table Records" }

func (h *Handler) Description() string {
	return "Inserts one or more records into a table, optionally generating them from free-form text."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table_id": map[string]any{
				"type":        "string",
				"description": "Target table. The caller must be the table owner.",
			},
			"ai_mode": map[string]any{
				"type":        "boolean",
				"description": "Generate records from 'data_context' instead of taking 'records' literally.",
				"default":     false,
			},
			"data_context": map[string]any{
				"type":        "string",
				"description": "Free-form text the records are extracted from. Supports mentions.",
			},
			"records": map[string]any{
				"type":        "array",
				"description": "Literal records to insert, keyed by field ID.",
				"items":       map[string]any{"type": "object"},
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
			{Name: "ai_mode", Type: "boolean", Required: false, Cloneable: true},
			{Name: "data_context", Type: "string", Required: false, Cloneable: true},
			{Name: "records", Type: "array", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "record_ids", Type: "array", Description: "IDs of the inserted records, in insertion order."},
			{Name: "count", Type: "number", Description: "Number of records inserted."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	tableID, _ := data["table_id"].(string)
	if tableID == "" {
		return props{}, errMissingTableID
	}

	p := props{TableID: tableID}
	p.AIMode, _ = data["ai_mode"].(bool)

	if p.AIMode {
		p.DataContext, _ = data["data_context"].(string)
		if p.DataContext == "" {
			return props{}, errMissingDataContext
		}

		return p, nil
	}

	raw, ok := data["records"].([]any)
	if !ok || len(raw) == 0 {
		return props{}, errMissingRecords
	}

	for _, item := range raw {
		record, ok := item.(map[string]any)
		if !ok {
			return props{}, fmt.Errorf("%w: records must be objects", errMissingRecords)
		}

		p.Records = append(p.Records, record)
	}

	return p, nil
}

// recordsSchema builds the JSON schema the LLM output must match, derived
// from the table's field definitions.
func recordsSchema(table *models.Table) map[string]any {
	fields := make(map[string]any, len(table.Fields))

	var required []string

	for _, f := range table.Fields {
		spec := map[string]any{
			"type":        fieldJSONType(f.Type),
			"description": f.Name,
		}
		if len(f.Options) > 0 {
			spec["enum"] = f.Options
		}

		fields[f.ID] = spec

		if f.Required {
			required = append(required, f.ID)
		}
	}

	items := map[string]any{
		"type":                 "object",
		"properties":           fields,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		items["required"] = required
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"records": map[string]any{"type": "array", "items": items},
		},
		"required":             []string{"records"},
		"additionalProperties": false,
	}
}

func fieldJSONType(fieldType string) string {
	switch fieldType {
	case "number":
		return "number"
	case "boolean", "checkbox":
		return "boolean"
	default:
		return "string"
	}
}

func (h *Handler) generateRecords(ctx context.Context, table *models.Table, dataContext string) ([]map[string]any, error) {
	raw, err := h.client.GenerateObject(ctx, generateSystemPrompt, dataContext, recordsSchema(table))
	if err != nil {
		return nil, fmt.Errorf("record generation failed: %w", err)
	}

	wrapper, ok := raw.(map[string]any)
	if !ok {
		return nil, ai.ErrInvalidObject
	}

	items, ok := wrapper["records"].([]any)
	if !ok {
		return nil, ai.ErrInvalidObject
	}

	records := make([]map[string]any, 0, len(items))

	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, ai.ErrInvalidObject
		}

		records = append(records, record)
	}

	return records, nil
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "table_create_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	records := p.Records

	if p.AIMode {
		table, err := h.store.GetTable(ctx, p.TableID)
		if err != nil {
			return models.Failure(err), nil
		}

		records, err = h.generateRecords(ctx, table, p.DataContext)
		if err != nil {
			return models.Failure(err), nil
		}

		if len(records) == 0 {
			return models.Failure(errors.New("no records could be extracted from the data context")), nil
		}
	}

	// Each insert is its own transaction. Records committed before a
	// failure stay committed; the error names how far the loop got.
	recordIDs := make([]any, 0, len(records))

	for i, fields := range records {
		record, err := h.store.CreateRecord(ctx, p.TableID, execCtx.UserID, fields)
		if err != nil {
			logger.WarnContext(ctx, "Record insert failed",
				"table_id", p.TableID, "index", i, "inserted", len(recordIDs), "error", err)

			return models.Failure(fmt.Errorf("record %d of %d: %w (inserted %d)",
				i+1, len(records), err, len(recordIDs))), nil
		}

		recordIDs = append(recordIDs, record.ID)
	}

	logger.InfoContext(ctx, "Records inserted", "table_id", p.TableID, "count", len(recordIDs))

	return models.Succeed(map[string]any{
		"record_ids": recordIDs,
		"count":      len(recordIDs),
	}), nil
}
