// Package docstore abstracts the transactional document store the engine
// runs against. Documents are addressed by slash-separated paths in which
// collections and document IDs alternate, e.g.
// "tables/{tableId}/records/{recordId}". Queries are equality filters over
// top-level document fields; transactions are optimistic (read, compare,
// conditionally write).
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates no document exists at the given path.
	ErrNotFound = errors.New("document not found")

	// ErrTxConflict indicates an optimistic transaction kept colliding with
	// concurrent writers and gave up.
	ErrTxConflict = errors.New("transaction conflict")

	// ErrBadPath indicates a path that does not address a document
	// (path segments must alternate collection/ID).
	ErrBadPath = errors.New("malformed document path")
)

// Document is one stored document with its ID and raw body.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into out.
func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// Tx is the handle passed to a transaction body. All writes are buffered
// and applied atomically when the body returns nil; any error aborts the
// transaction with no mutation applied.
type Tx interface {
	Get(path string, out any) error
	Set(path string, doc any) error
	Delete(path string) error
}

// Store is the document store contract.
type Store interface {
	Get(ctx context.Context, path string, out any) error
	Set(ctx context.Context, path string, doc any) error
	Delete(ctx context.Context, path string) error

	// List returns every document in a collection.
	List(ctx context.Context, collection string) ([]Document, error)

	// Query returns the documents in a collection whose top-level fields
	// equal every filter value.
	Query(ctx context.Context, collection string, filters map[string]any) ([]Document, error)

	// RunTransaction executes fn atomically. watch names the document
	// paths whose stability the transaction depends on; a concurrent write
	// to any of them aborts and retries the whole body.
	RunTransaction(ctx context.Context, watch []string, fn func(tx Tx) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Join builds a document or collection path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split validates a document path and returns its collection and ID. A
// document path has an even number of segments.
func Split(path string) (collection, id string, err error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", ErrBadPath
	}

	collection, id = path[:idx], path[idx+1:]
	if len(strings.Split(path, "/"))%2 != 0 {
		return "", "", ErrBadPath
	}

	return collection, id, nil
}

func matches(data json.RawMessage, filters map[string]any) bool {
	if len(filters) == 0 {
		return true
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}

	for key, want := range filters {
		got, ok := fields[key]
		if !ok || !looseEqual(got, want) {
			return false
		}
	}

	return true
}

// looseEqual compares values the way equality filters over JSON documents
// behave: numbers compare by value regardless of Go type.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)

		return ok && af == bf
	}

	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)

	return errA == nil && errB == nil && string(aj) == string(bj)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
