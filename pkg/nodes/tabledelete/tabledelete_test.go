package tabledelete_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/tabledelete"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*tabledelete.Handler, *tables.Store, *models.Table, *models.TableRecord) {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := tables.NewStore(docstore.NewMemory(), logger)

	table := &models.Table{
		Name:      "Contacts",
		CreatorID: "owner",
		Fields: []models.FieldDef{
			{ID: "email", Name: "Email", Type: "text", PreventDuplicates: true},
		},
	}
	require.NoError(t, store.SaveTable(ctx, table))

	record, err := store.CreateRecord(ctx, table.ID, "owner", map[string]any{
		"email": "ada@example.com",
	})
	require.NoError(t, err)

	return tabledelete.NewHandler(store), store, table, record
}

func run(t *testing.T, handler *tabledelete.Handler, userID string, propsData map[string]any) models.ExecutionResult {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	step := models.StepInstance{ID: "s1", NodeID: tabledelete.NodeID, PropsData: propsData}

	result, err := handler.Run(context.Background(),
		models.ExecutionContext{ID: "exec-1", UserID: userID}, step, nil, logger)
	require.NoError(t, err)

	return result
}

func TestRunDeletesRecordAndReleasesIndex(t *testing.T) {
	handler, store, table, record := newFixture(t)
	ctx := context.Background()

	result := run(t, handler, "owner", map[string]any{
		"table_id":  table.ID,
		"record_id": record.ID,
	})

	assert.True(t, result.Success)
	assert.Equal(t, true, result.Payload["deleted"])

	_, err := store.GetRecord(ctx, table.ID, "owner", record.ID)
	assert.ErrorIs(t, err, tables.ErrRecordNotFound)

	// The released value can be re-used immediately.
	_, err = store.CreateRecord(ctx, table.ID, "owner", map[string]any{
		"email": "ada@example.com",
	})
	require.NoError(t, err)
}

func TestRunOwnershipGate(t *testing.T) {
	handler, store, table, record := newFixture(t)

	result := run(t, handler, "intruder", map[string]any{
		"table_id":  table.ID,
		"record_id": record.ID,
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Unauthorized access to table")

	_, err := store.GetRecord(context.Background(), table.ID, "owner", record.ID)
	require.NoError(t, err)
}

func TestRunUnknownRecord(t *testing.T) {
	handler, _, table, _ := newFixture(t)

	result := run(t, handler, "owner", map[string]any{
		"table_id":  table.ID,
		"record_id": "rec-missing",
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "record not found")
}
