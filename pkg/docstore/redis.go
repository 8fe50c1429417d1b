package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"
)

const txRetries = 5

// Redis is a Store backed by Redis. Documents are JSON strings under
// "doc:{path}"; collection membership lives in a set under
// "col:{collection}". Transactions use WATCH with buffered writes applied
// in one MULTI/EXEC, retried on conflict.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// NewRedisFromURL connects using a redis:// URL.
func NewRedisFromURL(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewRedis(redis.NewClient(opts)), nil
}

func docKey(path string) string { return "doc:" + path }

func colKey(collection string) string { return "col:" + collection }

func (r *Redis) Get(ctx context.Context, path string, out any) error {
	data, err := r.client.Get(ctx, docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	return json.Unmarshal(data, out)
}

func (r *Redis) Set(ctx context.Context, path string, doc any) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", path, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(path), data, 0)
		pipe.SAdd(ctx, colKey(collection), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", path, err)
	}

	return nil
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(path))
		pipe.SRem(ctx, colKey(collection), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", path, err)
	}

	return nil
}

func (r *Redis) List(ctx context.Context, collection string) ([]Document, error) {
	return r.Query(ctx, collection, nil)
}

func (r *Redis) Query(ctx context.Context, collection string, filters map[string]any) ([]Document, error) {
	ids, err := r.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}

	var results []Document

	for _, id := range ids {
		data, err := r.client.Get(ctx, docKey(Join(collection, id))).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // membership entry outlived its document
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
		}

		if matches(data, filters) {
			results = append(results, Document{ID: id, Data: data})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	return results, nil
}

func (r *Redis) RunTransaction(ctx context.Context, watch []string, fn func(tx Tx) error) error {
	keys := make([]string, len(watch))
	for i, path := range watch {
		keys[i] = docKey(path)
	}

	for attempt := 0; attempt < txRetries; attempt++ {
		err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{ctx: ctx, tx: rtx, writes: make(map[string]json.RawMessage), deletes: make(map[string]struct{})}

			err := fn(tx)
			if err != nil {
				return err
			}

			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return tx.commit(pipe)
			})

			return err
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return ErrTxConflict
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close(_ context.Context) error {
	return r.client.Close()
}

type redisTx struct {
	ctx     context.Context
	tx      *redis.Tx
	writes  map[string]json.RawMessage
	deletes map[string]struct{}
}

func (t *redisTx) Get(path string, out any) error {
	if _, deleted := t.deletes[path]; deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if data, ok := t.writes[path]; ok {
		return json.Unmarshal(data, out)
	}

	data, err := t.tx.Get(t.ctx, docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	return json.Unmarshal(data, out)
}

func (t *redisTx) Set(path string, doc any) error {
	if _, _, err := Split(path); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", path, err)
	}

	delete(t.deletes, path)
	t.writes[path] = data

	return nil
}

func (t *redisTx) Delete(path string) error {
	delete(t.writes, path)
	t.deletes[path] = struct{}{}

	return nil
}

func (t *redisTx) commit(pipe redis.Pipeliner) error {
	for path := range t.deletes {
		collection, id, err := Split(path)
		if err != nil {
			return err
		}

		pipe.Del(t.ctx, docKey(path))
		pipe.SRem(t.ctx, colKey(collection), id)
	}

	for path, data := range t.writes {
		collection, id, err := Split(path)
		if err != nil {
			return err
		}

		pipe.Set(t.ctx, docKey(path), []byte(data), 0)
		pipe.SAdd(t.ctx, colKey(collection), id)
	}

	return nil
}
