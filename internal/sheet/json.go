package sheet

import (
	"bytes"
	"encoding/json"
)

// UnmarshalJSON reads a bare variant back into the union. Arrays of strings
// decode as lists; Normalize converts them to legacy attachments when the
// owning column turns out to be image-typed.
func (v *CellValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = Text("")
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return err
		}
		if hasObjectElement(raws) {
			var items []Attachment
			if err := json.Unmarshal(data, &items); err != nil {
				return err
			}
			*v = Images(items)
			return nil
		}
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			items = nil
		}
		*v = List(items)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
	}
	return nil
}

func hasObjectElement(raws []json.RawMessage) bool {
	for _, r := range raws {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '{' {
			return true
		}
	}
	return false
}

func canonicalKind(t ColumnType) ValueKind {
	switch t {
	case TypeNumber:
		return KindNumber
	case TypeBoolean:
		return KindBool
	case TypeMultipleSelect:
		return KindList
	case TypeImage:
		return KindAttachments
	default:
		return KindText
	}
}

// Normalize re-establishes the structural invariants after a load: contiguous
// orders, one cell per column per row (orphans pruned, gaps backfilled), and
// every cell carrying its column's type in canonical representation.
func (s *Sheet) Normalize() {
	for i, c := range s.Columns {
		c.Order = i
	}
	for i, r := range s.Rows {
		r.Order = i
		if r.Cells == nil {
			r.Cells = make(map[string]*Cell, len(s.Columns))
		}
		for key := range r.Cells {
			if s.ColumnByKey(key) == nil {
				delete(r.Cells, key)
			}
		}
		for _, c := range s.Columns {
			cell, ok := r.Cells[c.Key]
			if !ok || cell == nil {
				r.Cells[c.Key] = newCell(c.Type)
				continue
			}
			cell.Type = c.Type
			cell.Editable = !ReadOnlyType(c.Type)
			cell.Value = alignValue(cell.Value, c.Type)
		}
	}
	if s.Metadata.Version < 1 {
		s.Metadata.Version = 1
	}
}

// alignValue coerces a loaded value into the column's canonical kind. A string
// list under an image column is the legacy URL-array form.
func alignValue(v CellValue, t ColumnType) CellValue {
	if v.Kind == canonicalKind(t) {
		return v
	}
	if t == TypeImage && v.Kind == KindList {
		items := make([]Attachment, len(v.List))
		for i, raw := range v.List {
			items[i] = normalizeAttachment(raw)
		}
		return Images(items)
	}
	return Coerce(v, t)
}
