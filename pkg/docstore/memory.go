package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store. Transactions take the store lock, so the
// body runs serializably; it exists for tests and single-node development.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]json.RawMessage)}
}

func (m *Memory) Get(_ context.Context, path string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.get(path, out)
}

func (m *Memory) Set(_ context.Context, path string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.set(path, doc)
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, path)

	return nil
}

func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	return m.scan(collection, nil)
}

func (m *Memory) Query(_ context.Context, collection string, filters map[string]any) ([]Document, error) {
	return m.scan(collection, filters)
}

func (m *Memory) RunTransaction(_ context.Context, _ []string, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m, writes: make(map[string]json.RawMessage), deletes: make(map[string]struct{})}

	err := fn(tx)
	if err != nil {
		return err
	}

	for path := range tx.deletes {
		delete(m.docs, path)
	}

	for path, data := range tx.writes {
		m.docs[path] = data
	}

	return nil
}

func (m *Memory) HealthCheck(_ context.Context) error { return nil }

func (m *Memory) Close(_ context.Context) error { return nil }

func (m *Memory) get(path string, out any) error {
	data, ok := m.docs[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return json.Unmarshal(data, out)
}

func (m *Memory) set(path string, doc any) error {
	if _, _, err := Split(path); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", path, err)
	}

	m.docs[path] = data

	return nil
}

func (m *Memory) scan(collection string, filters map[string]any) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := collection + "/"

	var results []Document

	for path, data := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}

		id := strings.TrimPrefix(path, prefix)
		if strings.Contains(id, "/") {
			continue // document of a nested subcollection
		}

		if matches(data, filters) {
			results = append(results, Document{ID: id, Data: data})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	return results, nil
}

type memoryTx struct {
	store   *Memory
	writes  map[string]json.RawMessage
	deletes map[string]struct{}
}

func (t *memoryTx) Get(path string, out any) error {
	if _, deleted := t.deletes[path]; deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if data, ok := t.writes[path]; ok {
		return json.Unmarshal(data, out)
	}

	return t.store.get(path, out)
}

func (t *memoryTx) Set(path string, doc any) error {
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

func (t *memoryTx) Delete(path string) error {
	delete(t.writes, path)
	t.deletes[path] = struct{}{}

	return nil
}
