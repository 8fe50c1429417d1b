package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/google/uuid"
)

// Reserved record document keys. User field IDs must not collide with
// these; table validation rejects such field definitions.
const (
	keyID        = "id"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
	keyCreatorID = "creator_id"
)

func tablePath(tableID string) string {
	return docstore.Join("tables", tableID)
}

func recordPath(tableID, recordID string) string {
	return docstore.Join("tables", tableID, "records", recordID)
}

func recordsCollection(tableID string) string {
	return docstore.Join("tables", tableID, "records")
}

func uniquePath(tableID, key string) string {
	return docstore.Join("tables", tableID, "unique", key)
}

func uniqueCollection(tableID string) string {
	return docstore.Join("tables", tableID, "unique")
}

// Store persists tables and their records, enforcing per-field uniqueness
// constraints through a parallel unique-index subcollection updated in the
// same transaction as every record mutation.
type Store struct {
	docs   docstore.Store
	logger *slog.Logger
}

func NewStore(docs docstore.Store, logger *slog.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("module", "tables"),
	}
}

// SaveTable creates or replaces a table definition.
func (s *Store) SaveTable(ctx context.Context, table *models.Table) error {
	if table.ID == "" {
		table.ID = "tbl-" + uuid.New().String()[:8]
		table.CreatedAt = time.Now().UTC()
	}

	for _, f := range table.Fields {
		switch f.ID {
		case keyID, keyCreatedAt, keyUpdatedAt, keyCreatorID:
			return &TableError{Op: "SaveTable", TableID: table.ID,
				Err: fmt.Errorf("field id %q is reserved", f.ID)}
		}
	}

	table.UpdatedAt = time.Now().UTC()

	err := s.docs.Set(ctx, tablePath(table.ID), table)
	if err != nil {
		return &TableError{Op: "SaveTable", TableID: table.ID, Err: err}
	}

	return nil
}

// GetTable loads a table definition.
func (s *Store) GetTable(ctx context.Context, tableID string) (*models.Table, error) {
	var table models.Table

	err := s.docs.Get(ctx, tablePath(tableID), &table)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &TableError{Op: "GetTable", TableID: tableID, Err: ErrTableNotFound}
	}

	if err != nil {
		return nil, &TableError{Op: "GetTable", TableID: tableID, Err: err}
	}

	return &table, nil
}

// ListTables returns the tables owned by a user.
func (s *Store) ListTables(ctx context.Context, creatorID string) ([]*models.Table, error) {
	docs, err := s.docs.Query(ctx, "tables", map[string]any{"creator_id": creatorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]*models.Table, 0, len(docs))

	for _, doc := range docs {
		var table models.Table

		err = doc.Decode(&table)
		if err != nil {
			return nil, fmt.Errorf("failed to decode table %s: %w", doc.ID, err)
		}

		tables = append(tables, &table)
	}

	return tables, nil
}

// DeleteTable removes a table with all its records and index entries.
func (s *Store) DeleteTable(ctx context.Context, tableID, callerID string) error {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return err
	}

	if table.CreatorID != callerID {
		return &TableError{Op: "DeleteTable", TableID: tableID, Err: ErrUnauthorized}
	}

	records, err := s.docs.List(ctx, recordsCollection(tableID))
	if err != nil {
		return &TableError{Op: "DeleteTable", TableID: tableID, Err: err}
	}

	for _, doc := range records {
		err = s.docs.Delete(ctx, recordPath(tableID, doc.ID))
		if err != nil {
			return &TableError{Op: "DeleteTable", TableID: tableID, Err: err}
		}
	}

	index, err := s.docs.List(ctx, uniqueCollection(tableID))
	if err != nil {
		return &TableError{Op: "DeleteTable", TableID: tableID, Err: err}
	}

	for _, doc := range index {
		err = s.docs.Delete(ctx, uniquePath(tableID, doc.ID))
		if err != nil {
			return &TableError{Op: "DeleteTable", TableID: tableID, Err: err}
		}
	}

	err = s.docs.Delete(ctx, tablePath(tableID))
	if err != nil {
		return &TableError{Op: "DeleteTable", TableID: tableID, Err: err}
	}

	return nil
}

// CreateRecord inserts one record, enforcing required fields, defaults and
// uniqueness constraints. The unique-index reads and writes happen in the
// same transaction as the record write.
func (s *Store) CreateRecord(ctx context.Context, tableID, callerID string, fields map[string]any) (*models.TableRecord, error) {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if table.CreatorID != callerID {
		return nil, &TableError{Op: "CreateRecord", TableID: tableID, Err: ErrUnauthorized}
	}

	applied := applyDefaults(table, fields)

	err = checkRequired(table, applied)
	if err != nil {
		return nil, &TableError{Op: "CreateRecord", TableID: tableID, Err: err}
	}

	now := time.Now().UTC()
	record := &models.TableRecord{
		ID:        "rec-" + uuid.New().String()[:8],
		Fields:    applied,
		CreatorID: callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	watch := []string{recordPath(tableID, record.ID)}
	for _, f := range table.UniqueFields() {
		if norm, ok := normalizedValue(applied, f); ok {
			watch = append(watch, uniquePath(tableID, UniqueKey(f.ID, norm)))
		}
	}

	err = s.docs.RunTransaction(ctx, watch, func(tx docstore.Tx) error {
		for _, f := range table.UniqueFields() {
			norm, ok := normalizedValue(applied, f)
			if !ok {
				continue
			}

			key := UniqueKey(f.ID, norm)

			var holder models.UniqueIndexEntry

			err := tx.Get(uniquePath(tableID, key), &holder)
			if err == nil {
				return fmt.Errorf("field %q: %w", f.Name, ErrDuplicateValue)
			}

			if !errors.Is(err, docstore.ErrNotFound) {
				return err
			}

			err = tx.Set(uniquePath(tableID, key), models.UniqueIndexEntry{
				FieldID:         f.ID,
				Value:           applied[f.ID],
				NormalizedValue: norm,
				RecordID:        record.ID,
				UpdatedAt:       now,
			})
			if err != nil {
				return err
			}
		}

		return tx.Set(recordPath(tableID, record.ID), encodeRecord(record))
	})
	if err != nil {
		return nil, &TableError{Op: "CreateRecord", TableID: tableID, Err: err}
	}

	return record, nil
}

// GetRecord reads one record. Visibility follows the table's sharing rules.
func (s *Store) GetRecord(ctx context.Context, tableID, callerID, recordID string) (*models.TableRecord, error) {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if !table.Readable(callerID) {
		return nil, &TableError{Op: "GetRecord", TableID: tableID, Err: ErrUnauthorized}
	}

	var doc map[string]any

	err = s.docs.Get(ctx, recordPath(tableID, recordID), &doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &TableError{Op: "GetRecord", TableID: tableID, Err: ErrRecordNotFound}
	}

	if err != nil {
		return nil, &TableError{Op: "GetRecord", TableID: tableID, Err: err}
	}

	return decodeRecord(recordID, doc), nil
}

// QueryRecords returns records matching equality filters over field IDs.
func (s *Store) QueryRecords(ctx context.Context, tableID, callerID string, filters map[string]any) ([]*models.TableRecord, error) {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if !table.Readable(callerID) {
		return nil, &TableError{Op: "QueryRecords", TableID: tableID, Err: ErrUnauthorized}
	}

	docs, err := s.docs.Query(ctx, recordsCollection(tableID), filters)
	if err != nil {
		return nil, &TableError{Op: "QueryRecords", TableID: tableID, Err: err}
	}

	records := make([]*models.TableRecord, 0, len(docs))

	for _, doc := range docs {
		var fields map[string]any

		err = doc.Decode(&fields)
		if err != nil {
			return nil, &TableError{Op: "QueryRecords", TableID: tableID, Err: err}
		}

		records = append(records, decodeRecord(doc.ID, fields))
	}

	return records, nil
}

// UpdateRecord patches a record's fields. Uniqueness is enforced excluding
// the record itself: keeping a field's current value never conflicts, a
// changed value atomically releases the old index key and claims the new
// one alongside the record patch.
func (s *Store) UpdateRecord(ctx context.Context, tableID, callerID, recordID string, patch map[string]any) (*models.TableRecord, error) {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if table.CreatorID != callerID {
		return nil, &TableError{Op: "UpdateRecord", TableID: tableID, Err: ErrUnauthorized}
	}

	current, err := s.GetRecord(ctx, tableID, callerID, recordID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(current.Fields)+len(patch))
	for k, v := range current.Fields {
		merged[k] = v
	}

	for k, v := range patch {
		merged[k] = v
	}

	err = checkRequired(table, merged)
	if err != nil {
		return nil, &TableError{Op: "UpdateRecord", TableID: tableID, Err: err}
	}

	now := time.Now().UTC()
	updated := &models.TableRecord{
		ID:        recordID,
		Fields:    merged,
		CreatorID: current.CreatorID,
		CreatedAt: current.CreatedAt,
		UpdatedAt: now,
	}

	watch := []string{recordPath(tableID, recordID)}
	for _, f := range table.UniqueFields() {
		if norm, ok := normalizedValue(current.Fields, f); ok {
			watch = append(watch, uniquePath(tableID, UniqueKey(f.ID, norm)))
		}

		if norm, ok := normalizedValue(merged, f); ok {
			watch = append(watch, uniquePath(tableID, UniqueKey(f.ID, norm)))
		}
	}

	err = s.docs.RunTransaction(ctx, watch, func(tx docstore.Tx) error {
		var existing map[string]any

		err := tx.Get(recordPath(tableID, recordID), &existing)
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrRecordNotFound
		}

		if err != nil {
			return err
		}

		for _, f := range table.UniqueFields() {
			oldNorm, hadOld := normalizedValue(current.Fields, f)
			newNorm, hasNew := normalizedValue(merged, f)

			if hadOld && hasNew && oldNorm == newNorm {
				continue // unchanged, never conflicts with itself
			}

			if hasNew {
				key := UniqueKey(f.ID, newNorm)

				var holder models.UniqueIndexEntry

				err := tx.Get(uniquePath(tableID, key), &holder)
				if err == nil && holder.RecordID != recordID {
					return fmt.Errorf("field %q: %w", f.Name, ErrDuplicateValue)
				}

				if err != nil && !errors.Is(err, docstore.ErrNotFound) {
					return err
				}

				err = tx.Set(uniquePath(tableID, key), models.UniqueIndexEntry{
					FieldID:         f.ID,
					Value:           merged[f.ID],
					NormalizedValue: newNorm,
					RecordID:        recordID,
					UpdatedAt:       now,
				})
				if err != nil {
					return err
				}
			}

			if hadOld {
				err := tx.Delete(uniquePath(tableID, UniqueKey(f.ID, oldNorm)))
				if err != nil {
					return err
				}
			}
		}

		return tx.Set(recordPath(tableID, recordID), encodeRecord(updated))
	})
	if err != nil {
		return nil, &TableError{Op: "UpdateRecord", TableID: tableID, Err: err}
	}

	return updated, nil
}

// DeleteRecord removes a record and every unique-index key it holds in one
// transaction, keeping the index consistent with live records.
func (s *Store) DeleteRecord(ctx context.Context, tableID, callerID, recordID string) error {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return err
	}

	if table.CreatorID != callerID {
		return &TableError{Op: "DeleteRecord", TableID: tableID, Err: ErrUnauthorized}
	}

	current, err := s.GetRecord(ctx, tableID, callerID, recordID)
	if err != nil {
		return err
	}

	watch := []string{recordPath(tableID, recordID)}
	for _, f := range table.UniqueFields() {
		if norm, ok := normalizedValue(current.Fields, f); ok {
			watch = append(watch, uniquePath(tableID, UniqueKey(f.ID, norm)))
		}
	}

	err = s.docs.RunTransaction(ctx, watch, func(tx docstore.Tx) error {
		var existing map[string]any

		err := tx.Get(recordPath(tableID, recordID), &existing)
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrRecordNotFound
		}

		if err != nil {
			return err
		}

		for _, f := range table.UniqueFields() {
			if norm, ok := normalizedValue(current.Fields, f); ok {
				err := tx.Delete(uniquePath(tableID, UniqueKey(f.ID, norm)))
				if err != nil {
					return err
				}
			}
		}

		return tx.Delete(recordPath(tableID, recordID))
	})
	if err != nil {
		return &TableError{Op: "DeleteRecord", TableID: tableID, Err: err}
	}

	return nil
}

// UniqueEntries lists a table's current unique-index documents.
func (s *Store) UniqueEntries(ctx context.Context, tableID string) ([]docstore.Document, error) {
	return s.docs.List(ctx, uniqueCollection(tableID))
}

func applyDefaults(table *models.Table, fields map[string]any) map[string]any {
	applied := make(map[string]any, len(fields))
	for k, v := range fields {
		applied[k] = v
	}

	for _, f := range table.Fields {
		if _, ok := applied[f.ID]; !ok && f.Default != nil {
			applied[f.ID] = f.Default
		}
	}

	return applied
}

func checkRequired(table *models.Table, fields map[string]any) error {
	for _, f := range table.Fields {
		if !f.Required {
			continue
		}

		value, ok := fields[f.ID]
		if !ok || value == nil {
			return fmt.Errorf("%w: %s", ErrMissingRequired, f.Name)
		}

		if s, isStr := value.(string); isStr && s == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequired, f.Name)
		}
	}

	return nil
}

// normalizedValue returns the normalized uniqueness value for a field, and
// whether the field holds a non-empty value at all.
func normalizedValue(fields map[string]any, f models.FieldDef) (string, bool) {
	value, ok := fields[f.ID]
	if !ok || value == nil {
		return "", false
	}

	norm := Normalize(value)
	if norm == "" {
		return "", false
	}

	return norm, true
}

func encodeRecord(record *models.TableRecord) map[string]any {
	doc := make(map[string]any, len(record.Fields)+4)
	for k, v := range record.Fields {
		doc[k] = v
	}

	doc[keyID] = record.ID
	doc[keyCreatorID] = record.CreatorID
	doc[keyCreatedAt] = record.CreatedAt.Format(time.RFC3339Nano)
	doc[keyUpdatedAt] = record.UpdatedAt.Format(time.RFC3339Nano)

	return doc
}

func decodeRecord(recordID string, doc map[string]any) *models.TableRecord {
	record := &models.TableRecord{
		ID:     recordID,
		Fields: make(map[string]any, len(doc)),
	}

	for k, v := range doc {
		switch k {
		case keyID:
		case keyCreatorID:
			record.CreatorID, _ = v.(string)
		case keyCreatedAt:
			record.CreatedAt = parseTime(v)
		case keyUpdatedAt:
			record.UpdatedAt = parseTime(v)
		default:
			record.Fields[k] = v
		}
	}

	return record
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
