// Package sheet implements the tabular data model and grid engine behind the
// admin spreadsheet editor: typed columns, rows of cells, attachment arrays,
// and the mutation surface (CRUD, reorder, resize, sort, filter, selection)
// that keeps them consistent.
package sheet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ColumnType is the value type shared by every cell in a column.
type ColumnType string

const (
	TypeText             ColumnType = "text"
	TypeLongText         ColumnType = "longText"
	TypeNumber           ColumnType = "number"
	TypeBoolean          ColumnType = "boolean"
	TypeSelect           ColumnType = "select"
	TypeMultipleSelect   ColumnType = "multipleSelect"
	TypeDate             ColumnType = "date"
	TypePhone            ColumnType = "phone"
	TypeEmail            ColumnType = "email"
	TypeImage            ColumnType = "image"
	TypeCreatedTime      ColumnType = "createdTime"
	TypeLastModifiedTime ColumnType = "lastModifiedTime"
)

// ReadOnlyType reports whether cells of this type are never directly editable.
func ReadOnlyType(t ColumnType) bool {
	return t == TypeCreatedTime || t == TypeLastModifiedTime
}

// Validation holds the per-column constraints checked before a commit.
type Validation struct {
	Required bool     `json:"required,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Column is a typed field definition shared by all rows.
type Column struct {
	ID          string      `json:"id"`
	Key         string      `json:"key"`
	Label       string      `json:"label"`
	Type        ColumnType  `json:"type"`
	Width       int         `json:"width,omitempty"`
	Sortable    bool        `json:"sortable"`
	Editable    bool        `json:"editable"`
	Required    bool        `json:"required,omitempty"`
	Hidden      bool        `json:"hidden,omitempty"`
	Order       int         `json:"order"`
	UserResized bool        `json:"userResized,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
}

// ValueKind tags the variant held by a CellValue.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindBool
	KindList
	KindAttachments
)

// CellValue is the tagged union of everything a cell can hold. Exactly one
// variant field is meaningful, selected by Kind.
type CellValue struct {
	Kind        ValueKind
	Text        string
	Number      float64
	Bool        bool
	List        []string
	Attachments []Attachment
}

func Text(s string) CellValue           { return CellValue{Kind: KindText, Text: s} }
func Number(n float64) CellValue        { return CellValue{Kind: KindNumber, Number: n} }
func Bool(b bool) CellValue             { return CellValue{Kind: KindBool, Bool: b} }
func List(items []string) CellValue     { return CellValue{Kind: KindList, List: items} }
func Images(a []Attachment) CellValue   { return CellValue{Kind: KindAttachments, Attachments: a} }

// IsZero reports whether the value is empty for validation purposes.
func (v CellValue) IsZero() bool {
	switch v.Kind {
	case KindText:
		return v.Text == ""
	case KindNumber:
		return v.Number == 0
	case KindBool:
		return !v.Bool
	case KindList:
		return len(v.List) == 0
	case KindAttachments:
		return len(v.Attachments) == 0
	}
	return true
}

// Clone returns a deep copy of the value.
func (v CellValue) Clone() CellValue {
	out := v
	if v.List != nil {
		out.List = append([]string(nil), v.List...)
	}
	if v.Attachments != nil {
		out.Attachments = append([]Attachment(nil), v.Attachments...)
	}
	return out
}

// MarshalJSON emits the bare variant: string, number, bool, or array.
func (v CellValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Number)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindAttachments:
		if v.Attachments == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Attachments)
	default:
		return json.Marshal(v.Text)
	}
}

// Cell is one row's value for one column. Type mirrors the owning column.
type Cell struct {
	ID       string     `json:"id"`
	Value    CellValue  `json:"value"`
	Type     ColumnType `json:"type"`
	Editable bool       `json:"editable"`
}

// Row holds one cell per column key plus ordering and audit timestamps.
type Row struct {
	ID        string           `json:"id"`
	Cells     map[string]*Cell `json:"cells"`
	Order     int              `json:"order"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Settings toggles the mutation surface the embedder wants exposed.
type Settings struct {
	AllowRowReordering    bool `json:"allowRowReordering"`
	AllowColumnReordering bool `json:"allowColumnReordering"`
	AllowBulkOperations   bool `json:"allowBulkOperations"`
	AutoSave              bool `json:"autoSave"`
	MaxRows               int  `json:"maxRows,omitempty"`
	MaxColumns            int  `json:"maxColumns,omitempty"`
}

// Metadata carries the sheet's audit trail. Version strictly increases on
// every structural or content mutation.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Version   int64     `json:"version"`
}

// Sheet is the aggregate root for one tabular dataset.
type Sheet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Columns     []*Column `json:"columns"`
	Rows        []*Row    `json:"rows"`
	Settings    Settings  `json:"settings"`
	Metadata    Metadata  `json:"metadata"`
}

// DefaultSettings matches what the admin consoles create sheets with.
func DefaultSettings() Settings {
	return Settings{
		AllowRowReordering:    true,
		AllowColumnReordering: true,
		AllowBulkOperations:   true,
		AutoSave:              true,
	}
}

// New creates an empty sheet with the given display name.
func New(name string) *Sheet {
	now := time.Now()
	return &Sheet{
		ID:       uuid.NewString(),
		Name:     name,
		Settings: DefaultSettings(),
		Metadata: Metadata{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
}

// ColumnByKey returns the column with the given key, or nil.
func (s *Sheet) ColumnByKey(key string) *Column {
	for _, c := range s.Columns {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// RowByID returns the row with the given id, or nil.
func (s *Sheet) RowByID(id string) *Row {
	for _, r := range s.Rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// ColumnKeys returns the column keys in display order.
func (s *Sheet) ColumnKeys() []string {
	keys := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		keys[i] = c.Key
	}
	return keys
}

// VisibleColumns returns the non-hidden columns in display order.
func (s *Sheet) VisibleColumns() []*Column {
	var out []*Column
	for _, c := range s.Columns {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

func newCell(t ColumnType) *Cell {
	return &Cell{
		ID:       uuid.NewString(),
		Value:    DefaultValue(t),
		Type:     t,
		Editable: !ReadOnlyType(t),
	}
}
