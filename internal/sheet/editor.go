package sheet

import (
	"errors"
	"fmt"
	"regexp"
)

// ValidationError marks a cell value that fails its column's constraints.
// It is a visual signal on the cell, not a fault that propagates.
type ValidationError struct {
	Key    string
	Reason string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("sheet: %s: %s", v.Key, v.Reason)
}

// Validate checks a committed value against the column's constraints.
func Validate(col *Column, v CellValue) *ValidationError {
	required := col.Required || (col.Validation != nil && col.Validation.Required)
	if required && v.IsZero() {
		return &ValidationError{Key: col.Key, Reason: "required"}
	}
	if col.Validation == nil {
		return nil
	}
	val := col.Validation
	switch col.Type {
	case TypeNumber:
		if v.Kind == KindNumber {
			if val.Min != nil && v.Number < *val.Min {
				return &ValidationError{Key: col.Key, Reason: fmt.Sprintf("below minimum %v", *val.Min)}
			}
			if val.Max != nil && v.Number > *val.Max {
				return &ValidationError{Key: col.Key, Reason: fmt.Sprintf("above maximum %v", *val.Max)}
			}
		}
	case TypeSelect:
		if v.Kind == KindText && v.Text != "" && len(val.Options) > 0 && !containsString(val.Options, v.Text) {
			return &ValidationError{Key: col.Key, Reason: "not an option"}
		}
	}
	if val.Pattern != "" && v.Kind == KindText && v.Text != "" {
		if re, err := regexp.Compile(val.Pattern); err == nil && !re.MatchString(v.Text) {
			return &ValidationError{Key: col.Key, Reason: "pattern mismatch"}
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Editor is the in-progress edit of one cell. At most one exists per engine;
// beginning an edit elsewhere implicitly commits nothing and discards it.
type Editor struct {
	RowID  string
	ColKey string
	buffer string
	col    *Column
}

// Token identifies the editing cell as row-id:column-key.
func (ed *Editor) Token() string { return ed.RowID + ":" + ed.ColKey }

// Buffer returns the uncommitted text.
func (ed *Editor) Buffer() string { return ed.buffer }

// SetBuffer replaces the uncommitted text.
func (ed *Editor) SetBuffer(s string) { ed.buffer = s }

// Invalid reports whether the current buffer would fail commit validation.
func (ed *Editor) Invalid() bool {
	v, err := ed.parse()
	if err != nil {
		return true
	}
	return Validate(ed.col, v) != nil
}

func (ed *Editor) parse() (CellValue, error) {
	switch ed.col.Type {
	case TypeNumber:
		if ed.buffer == "" {
			return Number(0), nil
		}
		n, err := ParseNumber(ed.buffer)
		if err != nil {
			return CellValue{}, errUnparsable
		}
		return Number(n), nil
	case TypeMultipleSelect:
		return List(SplitList(ed.buffer)), nil
	case TypeBoolean:
		return Bool(Truthy(ed.buffer)), nil
	default:
		return Text(ed.buffer), nil
	}
}

var (
	errUnparsable   = errors.New("sheet: value does not parse")
	ErrNotEditable  = errors.New("sheet: cell is not editable")
	ErrEditConflict = errors.New("sheet: another cell is being edited")
)

// BeginEdit opens an editor on a cell, seeding the buffer from the committed
// value. Any other in-progress edit is discarded first. Image cells never
// enter text editing; they go through the attachment manager.
func (e *Engine) BeginEdit(rowID, key string) (*Editor, error) {
	if e.readOnly {
		return nil, ErrReadOnly
	}
	col := e.sheet.ColumnByKey(key)
	if col == nil {
		return nil, ErrColumnNotFound
	}
	if col.Type == TypeImage || ReadOnlyType(col.Type) || !col.Editable {
		return nil, ErrNotEditable
	}
	cell, err := e.CellAt(rowID, key)
	if err != nil {
		return nil, err
	}
	if !cell.Editable {
		return nil, ErrNotEditable
	}
	e.editor = &Editor{
		RowID:  rowID,
		ColKey: key,
		buffer: editBuffer(cell.Value, col),
		col:    col,
	}
	return e.editor, nil
}

// editBuffer is the text a cell's committed value edits as.
func editBuffer(v CellValue, col *Column) string {
	switch col.Type {
	case TypeNumber:
		if v.Kind == KindNumber && v.Number == 0 {
			return ""
		}
		return Stringify(v)
	default:
		return Stringify(v)
	}
}

// Editing returns the active editor, or nil.
func (e *Engine) Editing() *Editor { return e.editor }

// CommitEdit validates and applies the buffer. An invalid value blocks the
// commit and leaves the editor open with its invalid flag set.
func (e *Engine) CommitEdit() error {
	ed := e.editor
	if ed == nil {
		return nil
	}
	v, err := ed.parse()
	if err != nil {
		return err
	}
	if verr := Validate(ed.col, v); verr != nil {
		return verr
	}
	if err := e.SetCell(ed.RowID, ed.ColKey, v); err != nil {
		return err
	}
	e.editor = nil
	return nil
}

// CancelEdit reverts the in-progress buffer to the last committed value.
func (e *Engine) CancelEdit() {
	e.editor = nil
}
