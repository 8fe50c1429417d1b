package tablecreate_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/tablecreate"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*tables.Store, *models.Table) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := tables.NewStore(docstore.NewMemory(), logger)

	table := &models.Table{
		Name:      "Contacts",
		CreatorID: "owner",
		Fields: []models.FieldDef{
			{ID: "name", Name: "Name", Type: "text", Required: true},
			{ID: "email", Name: "Email", Type: "text", PreventDuplicates: true},
		},
	}
	require.NoError(t, store.SaveTable(context.Background(), table))

	return store, table
}

func run(t *testing.T, handler *tablecreate.Handler, userID string, propsData map[string]any) models.ExecutionResult {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	step := models.StepInstance{ID: "s1", NodeID: tablecreate.NodeID, PropsData: propsData}

	result, err := handler.Run(context.Background(),
		models.ExecutionContext{ID: "exec-1", UserID: userID}, step, nil, logger)
	require.NoError(t, err)

	return result
}

func TestRunInsertsLiteralRecords(t *testing.T) {
	store, table := newStore(t)
	handler := tablecreate.NewHandler(store, &ai.StaticClient{})

	result := run(t, handler, "owner", map[string]any{
		"table_id": table.ID,
		"records": []any{
			map[string]any{"name": "Ada", "email": "ada@example.com"},
			map[string]any{"name": "Grace", "email": "grace@example.com"},
		},
	})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Payload["count"])

	ids, ok := result.Payload["record_ids"].([]any)
	require.True(t, ok)
	assert.Len(t, ids, 2)
}

func TestRunDuplicateStopsLoop(t *testing.T) {
	store, table := newStore(t)
	handler := tablecreate.NewHandler(store, &ai.StaticClient{})

	result := run(t, handler, "owner", map[string]any{
		"table_id": table.ID,
		"records": []any{
			map[string]any{"name": "Ada", "email": "ada@example.com"},
			map[string]any{"name": "Ada again", "email": "ADA@example.com"},
			map[string]any{"name": "Grace", "email": "grace@example.com"},
		},
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "must be unique")

	// The first record stays committed, the rest never ran.
	records, err := store.QueryRecords(context.Background(), table.ID, "owner", nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunOwnershipGate(t *testing.T) {
	store, table := newStore(t)
	handler := tablecreate.NewHandler(store, &ai.StaticClient{})

	result := run(t, handler, "intruder", map[string]any{
		"table_id": table.ID,
		"records":  []any{map[string]any{"name": "Ada"}},
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Unauthorized access to table")
}

func TestRunAIMode(t *testing.T) {
	store, table := newStore(t)
	client := &ai.StaticClient{
		Object: map[string]any{
			"records": []any{
				map[string]any{"name": "Ada", "email": "ada@example.com"},
			},
		},
	}
	handler := tablecreate.NewHandler(store, client)

	result := run(t, handler, "owner", map[string]any{
		"table_id":     table.ID,
		"ai_mode":      true,
		"data_context": "Ada's email is ada@example.com",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Payload["count"])

	records, err := store.QueryRecords(context.Background(), table.ID, "owner", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0].Fields["name"])
}

func TestRunValidation(t *testing.T) {
	store, table := newStore(t)
	handler := tablecreate.NewHandler(store, &ai.StaticClient{})

	tests := []struct {
		name     string
		props    map[string]any
		contains string
	}{
		{
			name:     "missing table id",
			props:    map[string]any{"records": []any{map[string]any{"name": "x"}}},
			contains: "table_id",
		},
		{
			name:     "missing records",
			props:    map[string]any{"table_id": table.ID},
			contains: "records",
		},
		{
			name:     "ai mode without data context",
			props:    map[string]any{"table_id": table.ID, "ai_mode": true},
			contains: "data_context",
		},
		{
			name:     "missing required field",
			props:    map[string]any{"table_id": table.ID, "records": []any{map[string]any{"email": "x@example.com"}}},
			contains: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, handler, "owner", tt.props)

			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tt.contains)
		})
	}
}
