package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  NewRedis(client),
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		collection string
		id         string
		wantErr    bool
	}{
		{name: "top level", path: "flows/f1", collection: "flows", id: "f1"},
		{name: "subcollection", path: "tables/t1/records/r1", collection: "tables/t1/records", id: "r1"},
		{name: "collection path", path: "flows", wantErr: true},
		{name: "odd segments", path: "tables/t1/records", wantErr: true},
		{name: "trailing slash", path: "flows/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collection, id, err := Split(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadPath)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "flows/f1", record{Name: "first", Count: 1}))

			var got record

			require.NoError(t, store.Get(ctx, "flows/f1", &got))
			assert.Equal(t, record{Name: "first", Count: 1}, got)

			require.NoError(t, store.Delete(ctx, "flows/f1"))
			assert.ErrorIs(t, store.Get(ctx, "flows/f1", &got), ErrNotFound)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got record

			assert.ErrorIs(t, store.Get(context.Background(), "flows/missing", &got), ErrNotFound)
		})
	}
}

func TestStore_QueryEquality(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "tables/t1/records/r1", record{Name: "a", Count: 1}))
			require.NoError(t, store.Set(ctx, "tables/t1/records/r2", record{Name: "b", Count: 1}))
			require.NoError(t, store.Set(ctx, "tables/t1/records/r3", record{Name: "a", Count: 2}))
			// a different subcollection must not leak into results
			require.NoError(t, store.Set(ctx, "tables/t2/records/r9", record{Name: "a", Count: 1}))

			docs, err := store.Query(ctx, "tables/t1/records", map[string]any{"name": "a"})
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "r1", docs[0].ID)
			assert.Equal(t, "r3", docs[1].ID)

			docs, err = store.Query(ctx, "tables/t1/records", map[string]any{"name": "a", "count": 1})
			require.NoError(t, err)
			require.Len(t, docs, 1)

			var got record

			require.NoError(t, docs[0].Decode(&got))
			assert.Equal(t, record{Name: "a", Count: 1}, got)

			all, err := store.List(ctx, "tables/t1/records")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStore_TransactionCommit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "tables/t1/records/r1", record{Name: "old", Count: 1}))

			err := store.RunTransaction(ctx, []string{"tables/t1/records/r1"}, func(tx Tx) error {
				var current record

				err := tx.Get("tables/t1/records/r1", &current)
				if err != nil {
					return err
				}

				current.Name = "new"

				err = tx.Set("tables/t1/records/r1", current)
				if err != nil {
					return err
				}

				return tx.Set("tables/t1/unique/k1", record{Name: "index"})
			})
			require.NoError(t, err)

			var got record

			require.NoError(t, store.Get(ctx, "tables/t1/records/r1", &got))
			assert.Equal(t, "new", got.Name)

			require.NoError(t, store.Get(ctx, "tables/t1/unique/k1", &got))
			assert.Equal(t, "index", got.Name)
		})
	}
}

func TestStore_TransactionAbortAppliesNothing(t *testing.T) {
	boom := errors.New("boom")

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "flows/f1", record{Name: "kept"}))

			err := store.RunTransaction(ctx, []string{"flows/f1"}, func(tx Tx) error {
				err := tx.Set("flows/f1", record{Name: "clobbered"})
				if err != nil {
					return err
				}

				err = tx.Set("flows/f2", record{Name: "orphan"})
				if err != nil {
					return err
				}

				return boom
			})
			require.ErrorIs(t, err, boom)

			var got record

			require.NoError(t, store.Get(ctx, "flows/f1", &got))
			assert.Equal(t, "kept", got.Name)

			assert.ErrorIs(t, store.Get(ctx, "flows/f2", &got), ErrNotFound)
		})
	}
}

func TestStore_TransactionReadsOwnWrites(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := store.RunTransaction(ctx, nil, func(tx Tx) error {
				err := tx.Set("flows/f1", record{Name: "buffered"})
				if err != nil {
					return err
				}

				var got record

				err = tx.Get("flows/f1", &got)
				if err != nil {
					return err
				}

				assert.Equal(t, "buffered", got.Name)

				err = tx.Delete("flows/f1")
				if err != nil {
					return err
				}

				return tx.Set("flows/f2", record{Name: "survives"})
			})
			require.NoError(t, err)

			var got record

			assert.ErrorIs(t, store.Get(ctx, "flows/f1", &got), ErrNotFound)
			require.NoError(t, store.Get(ctx, "flows/f2", &got))
		})
	}
}

func TestRedis_DeleteRemovesMembership(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "flows/f1", record{Name: "a"}))
	require.NoError(t, store.Delete(ctx, "flows/f1"))

	docs, err := store.List(ctx, "flows")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
