package sheet

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReadOnly       = errors.New("sheet: engine is read-only")
	ErrRowNotFound    = errors.New("sheet: row not found")
	ErrColumnNotFound = errors.New("sheet: column not found")
	ErrRowLimit       = errors.New("sheet: row limit reached")
	ErrColumnLimit    = errors.New("sheet: column limit reached")
)

// Auto-fit bounds, in pixels.
const (
	MinColumnWidth   = 80
	MaxColumnWidth   = 420
	ImageColumnWidth = 160
	BoolColumnWidth  = 100
	widthPadding     = 24
)

// Measurer reports the rendered pixel width of a text run. Injected so
// auto-fit is deterministic under test and matches whatever surface is
// rendering the grid.
type Measurer interface {
	Width(s string) int
}

// Clipboard is the system clipboard port used by copy/paste.
type Clipboard interface {
	Write(text string) error
	Read() (string, error)
}

// SortDir is the tri-state sort toggle.
type SortDir int

const (
	SortNone SortDir = iota
	SortAsc
	SortDesc
)

// Options configures an Engine.
type Options struct {
	// Persist receives the whole sheet after mutations, drained by Flush.
	Persist func(*Sheet)
	// OnColumnDeleted lets the embedder mirror schema changes externally.
	OnColumnDeleted func(key string)
	ReadOnly        bool
	Measurer        Measurer
	Clipboard       Clipboard
	Now             func() time.Time
}

// Engine owns one sheet for the duration of an editing session. All mutation
// goes through it, which is what keeps the version/timestamp invariant and
// the cell/column sync intact. It is not safe for concurrent use; the
// embedding event loop serializes access.
type Engine struct {
	sheet           *Sheet
	persist         func(*Sheet)
	onColumnDeleted func(string)
	readOnly        bool
	measurer        Measurer
	clipboard       Clipboard
	now             func() time.Time

	dirty     bool
	editor    *Editor
	selected  map[string]bool
	sortKey   string
	sortDir   SortDir
	query     string
}

// NewEngine wraps a sheet. The sheet must not be mutated by anyone else while
// the engine owns it.
func NewEngine(s *Sheet, opts Options) *Engine {
	e := &Engine{
		sheet:           s,
		persist:         opts.Persist,
		onColumnDeleted: opts.OnColumnDeleted,
		readOnly:        opts.ReadOnly,
		measurer:        opts.Measurer,
		clipboard:       opts.Clipboard,
		now:             opts.Now,
		selected:        make(map[string]bool),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.measurer == nil {
		e.measurer = RuneMeasurer{}
	}
	return e
}

// Sheet returns the engine's sheet. Callers must treat it as read-only.
func (e *Engine) Sheet() *Sheet { return e.sheet }

// ReadOnly reports whether mutations are disabled.
func (e *Engine) ReadOnly() bool { return e.readOnly }

// touch applies the mutation bookkeeping: version bump, timestamp refresh,
// pending persistence.
func (e *Engine) touch() {
	e.sheet.Metadata.Version++
	e.sheet.Metadata.UpdatedAt = e.now()
	e.dirty = true
}

func (e *Engine) touchRow(rowID string) {
	if r := e.sheet.RowByID(rowID); r != nil {
		r.UpdatedAt = e.now()
	}
	e.touch()
}

// Flush invokes the persistence callback once if any mutation happened since
// the previous drain. The embedder calls it on its next scheduler tick, never
// from inside the handler that mutated. The callback's outcome is not
// observed and in-memory state stays authoritative either way.
func (e *Engine) Flush() bool {
	if !e.dirty {
		return false
	}
	e.dirty = false
	if e.persist != nil {
		e.persist(e.sheet)
	}
	return true
}

// Dirty reports whether a flush is pending.
func (e *Engine) Dirty() bool { return e.dirty }

// --- Rows ---

// AddRow appends an empty row with a type-appropriate default per column.
func (e *Engine) AddRow() (*Row, error) {
	if e.readOnly {
		return nil, ErrReadOnly
	}
	if max := e.sheet.Settings.MaxRows; max > 0 && len(e.sheet.Rows) >= max {
		return nil, ErrRowLimit
	}
	now := e.now()
	row := &Row{
		ID:        uuid.NewString(),
		Cells:     make(map[string]*Cell, len(e.sheet.Columns)),
		Order:     len(e.sheet.Rows),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, c := range e.sheet.Columns {
		row.Cells[c.Key] = newCell(c.Type)
	}
	e.sheet.Rows = append(e.sheet.Rows, row)
	e.touch()
	return row, nil
}

// DeleteRows removes the given rows. Remaining rows keep their relative order
// and existing order values.
func (e *Engine) DeleteRows(ids []string) error {
	if e.readOnly {
		return ErrReadOnly
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := e.sheet.Rows[:0]
	removed := 0
	for _, r := range e.sheet.Rows {
		if drop[r.ID] {
			removed++
			delete(e.selected, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	if removed == 0 {
		return ErrRowNotFound
	}
	e.sheet.Rows = kept
	e.touch()
	return nil
}

// MoveRow splices the row at from out and reinserts it at to, then reassigns
// every row's order to its index.
func (e *Engine) MoveRow(from, to int) error {
	if e.readOnly {
		return ErrReadOnly
	}
	rows := e.sheet.Rows
	if from < 0 || from >= len(rows) || to < 0 || to >= len(rows) {
		return ErrRowNotFound
	}
	if from == to {
		return nil
	}
	r := rows[from]
	rows = append(rows[:from], rows[from+1:]...)
	rows = append(rows[:to], append([]*Row{r}, rows[to:]...)...)
	for i, row := range rows {
		row.Order = i
	}
	e.sheet.Rows = rows
	e.touch()
	return nil
}

// --- Columns ---

// AddColumn appends a column with a key slugged from the label, backfilling a
// default cell into every row.
func (e *Engine) AddColumn(label string, t ColumnType) (*Column, error) {
	if e.readOnly {
		return nil, ErrReadOnly
	}
	if max := e.sheet.Settings.MaxColumns; max > 0 && len(e.sheet.Columns) >= max {
		return nil, ErrColumnLimit
	}
	col := &Column{
		ID:       uuid.NewString(),
		Key:      UniqueKey(e.sheet, label),
		Label:    label,
		Type:     t,
		Sortable: true,
		Editable: !ReadOnlyType(t),
		Order:    len(e.sheet.Columns),
	}
	e.sheet.Columns = append(e.sheet.Columns, col)
	for _, row := range e.sheet.Rows {
		row.Cells[col.Key] = newCell(t)
	}
	e.touch()
	return col, nil
}

// DeleteColumn removes the column and prunes its cell from every row. The
// embedder is expected to have confirmed the operation already.
func (e *Engine) DeleteColumn(key string) error {
	if e.readOnly {
		return ErrReadOnly
	}
	idx := -1
	for i, c := range e.sheet.Columns {
		if c.Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrColumnNotFound
	}
	e.sheet.Columns = append(e.sheet.Columns[:idx], e.sheet.Columns[idx+1:]...)
	for i, c := range e.sheet.Columns {
		c.Order = i
	}
	for _, row := range e.sheet.Rows {
		delete(row.Cells, key)
	}
	if e.sortKey == key {
		e.sortKey, e.sortDir = "", SortNone
	}
	e.touch()
	if e.onColumnDeleted != nil {
		e.onColumnDeleted(key)
	}
	return nil
}

// MoveColumn splices the column at from out and reinserts it at to. Target
// indices are computed against the live column list at drop time. Cell
// identity is key-based and unaffected; display and export order are derived
// from Columns wherever order matters (store codec, CSV, xlsx, clipboard).
func (e *Engine) MoveColumn(from, to int) error {
	if e.readOnly {
		return ErrReadOnly
	}
	cols := e.sheet.Columns
	if from < 0 || from >= len(cols) || to < 0 || to >= len(cols) {
		return ErrColumnNotFound
	}
	if from == to {
		return nil
	}
	c := cols[from]
	cols = append(cols[:from], cols[from+1:]...)
	cols = append(cols[:to], append([]*Column{c}, cols[to:]...)...)
	for i, col := range cols {
		col.Order = i
	}
	e.sheet.Columns = cols
	e.touch()
	return nil
}

// ResizeColumnLive updates the width in memory during a drag without bumping
// the version; repeated calls never thrash persistence.
func (e *Engine) ResizeColumnLive(key string, width int) error {
	if e.readOnly {
		return ErrReadOnly
	}
	col := e.sheet.ColumnByKey(key)
	if col == nil {
		return ErrColumnNotFound
	}
	col.Width = clampWidth(width)
	return nil
}

// ResizeColumnCommit finishes a resize gesture: one version bump, and the
// column is permanently exempt from auto-fit.
func (e *Engine) ResizeColumnCommit(key string, width int) error {
	if err := e.ResizeColumnLive(key, width); err != nil {
		return err
	}
	e.sheet.ColumnByKey(key).UserResized = true
	e.touch()
	return nil
}

// SetColumnHidden toggles a column out of the visible set.
func (e *Engine) SetColumnHidden(key string, hidden bool) error {
	if e.readOnly {
		return ErrReadOnly
	}
	col := e.sheet.ColumnByKey(key)
	if col == nil {
		return ErrColumnNotFound
	}
	if col.Hidden == hidden {
		return nil
	}
	col.Hidden = hidden
	e.touch()
	return nil
}

// SetColumnLabel renames the column header. The key is stable and unaffected.
func (e *Engine) SetColumnLabel(key, label string) error {
	if e.readOnly {
		return ErrReadOnly
	}
	col := e.sheet.ColumnByKey(key)
	if col == nil {
		return ErrColumnNotFound
	}
	col.Label = label
	e.touch()
	return nil
}

// SetColumnType changes a column's type and coerces every cell into the new
// type's canonical representation.
func (e *Engine) SetColumnType(key string, t ColumnType) error {
	if e.readOnly {
		return ErrReadOnly
	}
	col := e.sheet.ColumnByKey(key)
	if col == nil {
		return ErrColumnNotFound
	}
	col.Type = t
	col.Editable = !ReadOnlyType(t)
	for _, row := range e.sheet.Rows {
		cell := row.Cells[key]
		cell.Type = t
		cell.Editable = !ReadOnlyType(t)
		cell.Value = Coerce(cell.Value, t)
	}
	e.touch()
	return nil
}

func clampWidth(w int) int {
	if w < MinColumnWidth {
		return MinColumnWidth
	}
	if w > MaxColumnWidth {
		return MaxColumnWidth
	}
	return w
}

// AutoFit computes widths for columns that have no explicit width and were
// never manually resized. Fitting sets the width, so each column is fitted at
// most once; re-running after a schema change only touches new columns.
func (e *Engine) AutoFit() {
	for _, col := range e.sheet.Columns {
		if col.UserResized || col.Width > 0 {
			continue
		}
		col.Width = e.fitWidth(col)
	}
}

func (e *Engine) fitWidth(col *Column) int {
	switch col.Type {
	case TypeImage:
		return ImageColumnWidth
	case TypeBoolean:
		return BoolColumnWidth
	}
	w := e.measurer.Width(col.Label)
	for _, row := range e.sheet.Rows {
		if cell := row.Cells[col.Key]; cell != nil {
			if cw := e.measurer.Width(FormatValue(cell.Value, col)); cw > w {
				w = cw
			}
		}
	}
	return clampWidth(w + widthPadding)
}

// --- Cells ---

// CellAt returns the cell for (rowID, key).
func (e *Engine) CellAt(rowID, key string) (*Cell, error) {
	row := e.sheet.RowByID(rowID)
	if row == nil {
		return nil, ErrRowNotFound
	}
	cell, ok := row.Cells[key]
	if !ok {
		return nil, ErrColumnNotFound
	}
	return cell, nil
}

// SetCell replaces a cell's value, refreshing the row timestamp.
func (e *Engine) SetCell(rowID, key string, v CellValue) error {
	if e.readOnly {
		return ErrReadOnly
	}
	cell, err := e.CellAt(rowID, key)
	if err != nil {
		return err
	}
	cell.Value = v
	e.touchRow(rowID)
	return nil
}

// ToggleBool flips a boolean cell; the commit is immediate.
func (e *Engine) ToggleBool(rowID, key string) error {
	if e.readOnly {
		return ErrReadOnly
	}
	cell, err := e.CellAt(rowID, key)
	if err != nil {
		return err
	}
	if cell.Type != TypeBoolean {
		return errNotBoolColumn
	}
	cell.Value = Bool(!cell.Value.Bool)
	e.touchRow(rowID)
	return nil
}

var errNotBoolColumn = errors.New("sheet: column is not boolean-typed")

// --- Sort / filter ---

// ToggleSort cycles the column through ascending, descending, off. Sorting a
// different column resets to ascending.
func (e *Engine) ToggleSort(key string) {
	if e.sortKey != key {
		e.sortKey, e.sortDir = key, SortAsc
		return
	}
	switch e.sortDir {
	case SortAsc:
		e.sortDir = SortDesc
	case SortDesc:
		e.sortKey, e.sortDir = "", SortNone
	default:
		e.sortDir = SortAsc
	}
}

// Sort returns the current sort state.
func (e *Engine) Sort() (string, SortDir) { return e.sortKey, e.sortDir }

// SetQuery sets the free-text filter.
func (e *Engine) SetQuery(q string) { e.query = q }

// Query returns the current filter text.
func (e *Engine) Query() string { return e.query }

// VisibleRows filters then sorts, recomputed from live state on every call.
// The returned slice is fresh; the underlying rows are shared.
func (e *Engine) VisibleRows() []*Row {
	rows := make([]*Row, 0, len(e.sheet.Rows))
	q := strings.ToLower(e.query)
	for _, r := range e.sheet.Rows {
		if q == "" || e.rowMatches(r, q) {
			rows = append(rows, r)
		}
	}
	if e.sortKey != "" && e.sortDir != SortNone {
		key, desc := e.sortKey, e.sortDir == SortDesc
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := cellValue(rows[i], key), cellValue(rows[j], key)
			if desc {
				return lessValue(b, a)
			}
			return lessValue(a, b)
		})
	}
	return rows
}

func (e *Engine) rowMatches(r *Row, lowerQuery string) bool {
	for _, c := range e.sheet.Columns {
		cell := r.Cells[c.Key]
		if cell == nil {
			continue
		}
		if strings.Contains(strings.ToLower(Stringify(cell.Value)), lowerQuery) {
			return true
		}
	}
	return false
}

func cellValue(r *Row, key string) CellValue {
	if cell := r.Cells[key]; cell != nil {
		return cell.Value
	}
	return CellValue{}
}

// lessValue is the native comparison the grid sorts with: numeric when both
// sides are numbers, string otherwise.
func lessValue(a, b CellValue) bool {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return a.Number < b.Number
	}
	if a.Kind == KindBool && b.Kind == KindBool {
		return !a.Bool && b.Bool
	}
	return Stringify(a) < Stringify(b)
}

// --- Selection ---

// ToggleSelect flips one row's membership in the selection. There is no
// select-all; each row is toggled individually.
func (e *Engine) ToggleSelect(rowID string) {
	if e.selected[rowID] {
		delete(e.selected, rowID)
		return
	}
	if e.sheet.RowByID(rowID) != nil {
		e.selected[rowID] = true
	}
}

// Selected reports whether the row is selected.
func (e *Engine) Selected(rowID string) bool { return e.selected[rowID] }

// SelectionCount returns the number of selected rows.
func (e *Engine) SelectionCount() int { return len(e.selected) }

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() { e.selected = make(map[string]bool) }

// DeleteSelected removes every selected row. The caller gates this behind an
// explicit confirmation.
func (e *Engine) DeleteSelected() error {
	if len(e.selected) == 0 {
		return nil
	}
	ids := make([]string, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}
	return e.DeleteRows(ids)
}

// --- Clipboard ---

// CopySelected serializes the selected rows' cells in column order, one row
// per line, fields tab-separated, and writes the block to the clipboard.
func (e *Engine) CopySelected() error {
	if e.clipboard == nil {
		return errNoClipboard
	}
	var b strings.Builder
	for _, r := range e.sheet.Rows {
		if !e.selected[r.ID] {
			continue
		}
		for i, c := range e.sheet.Columns {
			if i > 0 {
				b.WriteByte('\t')
			}
			if cell := r.Cells[c.Key]; cell != nil {
				b.WriteString(Stringify(cell.Value))
			}
		}
		b.WriteByte('\n')
	}
	return e.clipboard.Write(b.String())
}

// PasteToken reads the clipboard and returns only the first field of the
// first line. Multi-cell paste fan-out is deliberately not supported.
func (e *Engine) PasteToken() (string, error) {
	if e.clipboard == nil {
		return "", errNoClipboard
	}
	text, err := e.clipboard.Read()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(text, "\n")
	token, _, _ := strings.Cut(line, "\t")
	return strings.TrimRight(token, "\r"), nil
}

var errNoClipboard = errors.New("sheet: no clipboard configured")
