package models

import "time"

// TableVisibility controls who may read a table besides its creator.
type TableVisibility string

const (
	TableVisibilityPrivate TableVisibility = "private"
	TableVisibilityShared  TableVisibility = "shared"
)

// FieldDef describes one user-defined column of a table.
type FieldDef struct {
	ID                string   `json:"id"       validate:"required"`
	Name              string   `json:"name"     validate:"required"`
	Type              string   `json:"type"     validate:"required"`
	Required          bool     `json:"required"`
	PreventDuplicates bool     `json:"prevent_duplicates"`
	Options           []string `json:"options,omitempty"`
	Default           any      `json:"default,omitempty"`
}

// Table is a user-defined structured data store. Records live in the
// table's "records" subcollection; uniqueness constraints are enforced via
// a parallel "unique" index subcollection.
type Table struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"       validate:"required,min=1"`
	Fields       []FieldDef      `json:"fields"     validate:"required,min=1,dive"`
	CreatorID    string          `json:"creator_id" validate:"required"`
	Visibility   TableVisibility `json:"visibility"`
	AllowedUsers []string        `json:"allowed_users,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Field returns the field definition with the given ID.
func (t *Table) Field(fieldID string) (FieldDef, bool) {
	for _, f := range t.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}

	return FieldDef{}, false
}

// UniqueFields returns the definitions with prevent_duplicates set.
func (t *Table) UniqueFields() []FieldDef {
	var unique []FieldDef

	for _, f := range t.Fields {
		if f.PreventDuplicates {
			unique = append(unique, f)
		}
	}

	return unique
}

// Readable reports whether the given user may read the table.
func (t *Table) Readable(userID string) bool {
	if t.CreatorID == userID {
		return true
	}

	if t.Visibility != TableVisibilityShared {
		return false
	}

	for _, u := range t.AllowedUsers {
		if u == userID {
			return true
		}
	}

	return false
}

// TableRecord is an arbitrary field map plus server-managed metadata,
// stored as one document in the table's records subcollection.
type TableRecord struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatorID string         `json:"creator_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// UniqueIndexEntry is one document of a table's "unique" subcollection. Its
// document ID is "{fieldId}::{normalizedValue}".
type UniqueIndexEntry struct {
	FieldID         string    `json:"field_id"`
	Value           any       `json:"value"`
	NormalizedValue string    `json:"normalized_value"`
	RecordID        string    `json:"record_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}
