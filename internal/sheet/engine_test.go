package sheet

import (
	"strings"
	"testing"
	"time"
)

type fakeClipboard struct {
	text string
}

func (f *fakeClipboard) Write(s string) error { f.text = s; return nil }
func (f *fakeClipboard) Read() (string, error) { return f.text, nil }

// testClock hands out strictly increasing times.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestEngine(t *testing.T) (*Engine, *fakeClipboard) {
	t.Helper()
	clip := &fakeClipboard{}
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	eng := NewEngine(New("products"), Options{
		Clipboard: clip,
		Now:       clock.now,
	})
	return eng, clip
}

func TestAddRowAndEditCell(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.AddColumn("Name", TypeText); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	v0 := eng.Sheet().Metadata.Version

	row, err := eng.AddRow()
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	ed, err := eng.BeginEdit(row.ID, "name")
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	ed.SetBuffer("Widget")
	if err := eng.CommitEdit(); err != nil {
		t.Fatalf("CommitEdit: %v", err)
	}

	s := eng.Sheet()
	if len(s.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(s.Rows))
	}
	if got := s.Rows[0].Cells["name"].Value.Text; got != "Widget" {
		t.Fatalf("expected Widget, got %q", got)
	}
	if s.Metadata.Version < v0+2 {
		t.Fatalf("expected version >= %d, got %d", v0+2, s.Metadata.Version)
	}
}

func TestPriceCommitParsesEuropeanFormat(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Price", TypeNumber)
	row, _ := eng.AddRow()

	ed, err := eng.BeginEdit(row.ID, "price")
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	ed.SetBuffer("1.500,50")
	if err := eng.CommitEdit(); err != nil {
		t.Fatalf("CommitEdit: %v", err)
	}
	if got := row.Cells["price"].Value.Number; got != 1500.50 {
		t.Fatalf("expected 1500.50, got %v", got)
	}
}

func TestColumnTypeChangeCoercesToBoolean(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Active", TypeText)
	values := []string{"true", "no", ""}
	for _, v := range values {
		row, _ := eng.AddRow()
		eng.SetCell(row.ID, "active", Text(v))
	}

	if err := eng.SetColumnType("active", TypeBoolean); err != nil {
		t.Fatalf("SetColumnType: %v", err)
	}

	want := []bool{true, false, false}
	for i, row := range eng.Sheet().Rows {
		cell := row.Cells["active"]
		if cell.Type != TypeBoolean || cell.Value.Kind != KindBool {
			t.Fatalf("row %d: cell not coerced to boolean", i)
		}
		if cell.Value.Bool != want[i] {
			t.Fatalf("row %d: expected %v, got %v", i, want[i], cell.Value.Bool)
		}
	}
}

func TestMoveColumnReordersAndRenumbers(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("A", TypeText)
	eng.AddColumn("B", TypeText)
	eng.AddColumn("C", TypeText)
	eng.AddRow()

	if err := eng.MoveColumn(2, 0); err != nil {
		t.Fatalf("MoveColumn: %v", err)
	}

	keys := eng.Sheet().ColumnKeys()
	if keys[0] != "c" || keys[1] != "a" || keys[2] != "b" {
		t.Fatalf("unexpected column order: %v", keys)
	}
	for i, c := range eng.Sheet().Columns {
		if c.Order != i {
			t.Fatalf("column %s: order %d at index %d", c.Key, c.Order, i)
		}
	}
	// membership preserved
	for _, row := range eng.Sheet().Rows {
		if len(row.Cells) != 3 {
			t.Fatalf("expected 3 cells, got %d", len(row.Cells))
		}
		for _, k := range keys {
			if row.Cells[k] == nil {
				t.Fatalf("missing cell for %s after reorder", k)
			}
		}
	}
}

func TestDeleteSelectedKeepsUnselectedInOrder(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	var ids []string
	for i := 0; i < 5; i++ {
		row, _ := eng.AddRow()
		ids = append(ids, row.ID)
	}
	eng.ToggleSelect(ids[1])
	eng.ToggleSelect(ids[3])

	if err := eng.DeleteSelected(); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	s := eng.Sheet()
	if len(s.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(s.Rows))
	}
	want := []string{ids[0], ids[2], ids[4]}
	for i, r := range s.Rows {
		if r.ID != want[i] {
			t.Fatalf("row %d: expected %s, got %s", i, want[i], r.ID)
		}
	}
	if eng.SelectionCount() != 0 {
		t.Fatalf("expected empty selection, got %d", eng.SelectionCount())
	}
}

func TestAddColumnKeysAreUnique(t *testing.T) {
	eng, _ := newTestEngine(t)
	labels := []string{"Price", "price", "Price!", "  price  ", "Precio Total", "precio-total"}
	for _, l := range labels {
		if _, err := eng.AddColumn(l, TypeText); err != nil {
			t.Fatalf("AddColumn %q: %v", l, err)
		}
	}
	seen := map[string]bool{}
	for _, c := range eng.Sheet().Columns {
		if seen[c.Key] {
			t.Fatalf("duplicate key %q", c.Key)
		}
		seen[c.Key] = true
	}
	if !seen["price"] || !seen["price_2"] {
		t.Fatalf("expected suffixed keys, got %v", eng.Sheet().ColumnKeys())
	}
}

func TestColumnAddDeleteKeepsCellsInSync(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	for i := 0; i < 3; i++ {
		eng.AddRow()
	}
	eng.AddColumn("Qty", TypeNumber)
	for _, r := range eng.Sheet().Rows {
		cell := r.Cells["qty"]
		if cell == nil {
			t.Fatal("missing backfilled cell")
		}
		if cell.Value.Kind != KindNumber || cell.Value.Number != 0 {
			t.Fatalf("expected default 0, got %+v", cell.Value)
		}
	}

	deleted := ""
	eng.onColumnDeleted = func(key string) { deleted = key }
	if err := eng.DeleteColumn("name"); err != nil {
		t.Fatalf("DeleteColumn: %v", err)
	}
	if deleted != "name" {
		t.Fatalf("side channel not invoked, got %q", deleted)
	}
	for _, r := range eng.Sheet().Rows {
		if len(r.Cells) != 1 {
			t.Fatalf("orphan cells after delete: %d", len(r.Cells))
		}
		if r.Cells["qty"] == nil {
			t.Fatal("qty cell pruned by mistake")
		}
	}
	if eng.Sheet().Columns[0].Order != 0 {
		t.Fatalf("orders not compacted: %d", eng.Sheet().Columns[0].Order)
	}
}

func TestVersionMonotonicAndTimestampRefreshed(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	row, _ := eng.AddRow()

	prev := eng.Sheet().Metadata
	ops := []func() error{
		func() error { return eng.SetCell(row.ID, "name", Text("x")) },
		func() error { _, err := eng.AddRow(); return err },
		func() error { return eng.MoveRow(0, 1) },
		func() error { _, err := eng.AddColumn("Extra", TypeBoolean); return err },
		func() error { return eng.SetColumnHidden("extra", true) },
		func() error { return eng.ResizeColumnCommit("extra", 200) },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		md := eng.Sheet().Metadata
		if md.Version <= prev.Version {
			t.Fatalf("op %d: version not bumped (%d -> %d)", i, prev.Version, md.Version)
		}
		if md.UpdatedAt.Before(prev.UpdatedAt) {
			t.Fatalf("op %d: updatedAt went backwards", i)
		}
		prev = md
	}
}

func TestFilterThenSort(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	eng.AddColumn("Qty", TypeNumber)
	data := []struct {
		name string
		qty  float64
	}{
		{"naranja", 30}, {"limón", 10}, {"Naranja dulce", 20}, {"mango", 5},
	}
	for _, d := range data {
		row, _ := eng.AddRow()
		eng.SetCell(row.ID, "name", Text(d.name))
		eng.SetCell(row.ID, "qty", Number(d.qty))
	}

	eng.SetQuery("naranja")
	eng.ToggleSort("qty")
	rows := eng.VisibleRows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(rows))
	}
	if rows[0].Cells["qty"].Value.Number != 20 || rows[1].Cells["qty"].Value.Number != 30 {
		t.Fatal("rows not sorted ascending after filter")
	}

	eng.ToggleSort("qty") // descending
	rows = eng.VisibleRows()
	if rows[0].Cells["qty"].Value.Number != 30 {
		t.Fatal("expected descending sort")
	}

	eng.ToggleSort("qty") // off: original order
	rows = eng.VisibleRows()
	if rows[0].Cells["qty"].Value.Number != 30 || rows[1].Cells["qty"].Value.Number != 20 {
		t.Fatal("expected original order with sort off")
	}

	// filtering must not touch the sheet itself
	if len(eng.Sheet().Rows) != 4 {
		t.Fatalf("filter mutated the sheet: %d rows", len(eng.Sheet().Rows))
	}
}

func TestCopySelectedAndPasteToken(t *testing.T) {
	eng, clip := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	eng.AddColumn("Qty", TypeNumber)
	r1, _ := eng.AddRow()
	r2, _ := eng.AddRow()
	eng.SetCell(r1.ID, "name", Text("caja"))
	eng.SetCell(r1.ID, "qty", Number(12))
	eng.SetCell(r2.ID, "name", Text("bolsa"))

	eng.ToggleSelect(r1.ID)
	eng.ToggleSelect(r2.ID)
	if err := eng.CopySelected(); err != nil {
		t.Fatalf("CopySelected: %v", err)
	}
	lines := strings.Split(strings.TrimRight(clip.text, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), clip.text)
	}
	if lines[0] != "caja\t12" {
		t.Fatalf("unexpected first line %q", lines[0])
	}

	token, err := eng.PasteToken()
	if err != nil {
		t.Fatalf("PasteToken: %v", err)
	}
	if token != "caja" {
		t.Fatalf("expected first token only, got %q", token)
	}
}

func TestResizeLiveDoesNotBumpVersion(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	eng.Flush()
	v := eng.Sheet().Metadata.Version

	for w := 100; w < 300; w += 10 {
		if err := eng.ResizeColumnLive("name", w); err != nil {
			t.Fatalf("ResizeColumnLive: %v", err)
		}
	}
	if eng.Sheet().Metadata.Version != v {
		t.Fatal("live resize bumped the version")
	}
	if eng.Dirty() {
		t.Fatal("live resize marked the sheet dirty")
	}

	if err := eng.ResizeColumnCommit("name", 290); err != nil {
		t.Fatalf("ResizeColumnCommit: %v", err)
	}
	col := eng.Sheet().ColumnByKey("name")
	if !col.UserResized {
		t.Fatal("commit did not mark userResized")
	}
	if eng.Sheet().Metadata.Version != v+1 {
		t.Fatalf("expected exactly one bump, got %d -> %d", v, eng.Sheet().Metadata.Version)
	}
}

func TestResizeClampsWidth(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	eng.ResizeColumnCommit("name", 10)
	if w := eng.Sheet().ColumnByKey("name").Width; w != MinColumnWidth {
		t.Fatalf("expected clamp to %d, got %d", MinColumnWidth, w)
	}
	eng.ResizeColumnCommit("name", 9999)
	if w := eng.Sheet().ColumnByKey("name").Width; w != MaxColumnWidth {
		t.Fatalf("expected clamp to %d, got %d", MaxColumnWidth, w)
	}
}

func TestAutoFitSkipsFittedAndUserResized(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	eng.AddColumn("Photos", TypeImage)
	eng.AddColumn("Active", TypeBoolean)
	row, _ := eng.AddRow()
	eng.SetCell(row.ID, "name", Text(strings.Repeat("x", 100)))
	eng.ResizeColumnCommit("active", 120)

	eng.AutoFit()
	s := eng.Sheet()
	if w := s.ColumnByKey("name").Width; w != MaxColumnWidth {
		t.Fatalf("long text should clamp to %d, got %d", MaxColumnWidth, w)
	}
	if w := s.ColumnByKey("photos").Width; w != ImageColumnWidth {
		t.Fatalf("image width should be %d, got %d", ImageColumnWidth, w)
	}
	if w := s.ColumnByKey("active").Width; w != 120 {
		t.Fatalf("user-resized column refitted: %d", w)
	}

	// a fitted column is never refitted, even if content grows
	eng.SetCell(row.ID, "name", Text("short"))
	nameW := s.ColumnByKey("name").Width
	eng.AutoFit()
	if s.ColumnByKey("name").Width != nameW {
		t.Fatal("already-fitted column was refitted")
	}
}

func TestAutoFitCoversColumnsAddedLater(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	eng.AutoFit()

	eng.AddColumn("Descripción del producto", TypeText)
	eng.AutoFit()
	s := eng.Sheet()
	col := s.ColumnByKey("descripci_n_del_producto")
	if col == nil {
		t.Fatal("new column missing")
	}
	if col.Width < MinColumnWidth {
		t.Fatalf("column added after the first fit has width %d", col.Width)
	}

	// and the refit still leaves user-resized columns alone
	eng.ResizeColumnCommit(col.Key, 200)
	eng.AddColumn("Otra", TypeText)
	eng.AutoFit()
	if w := s.ColumnByKey(col.Key).Width; w != 200 {
		t.Fatalf("user-resized column refitted: %d", w)
	}
	if w := s.ColumnByKey("otra").Width; w < MinColumnWidth {
		t.Fatalf("second added column not fitted: %d", w)
	}
}

func TestFlushCoalescesMutations(t *testing.T) {
	var calls int
	clock := &testClock{t: time.Now()}
	eng := NewEngine(New("s"), Options{
		Persist: func(*Sheet) { calls++ },
		Now:     clock.now,
	})
	eng.AddColumn("A", TypeText)
	eng.AddRow()
	eng.AddRow()

	if !eng.Flush() {
		t.Fatal("expected a pending flush")
	}
	if calls != 1 {
		t.Fatalf("expected one persistence call, got %d", calls)
	}
	if eng.Flush() {
		t.Fatal("second drain should be a no-op")
	}
}

func TestRowAndColumnLimits(t *testing.T) {
	s := New("limits")
	s.Settings.MaxRows = 1
	s.Settings.MaxColumns = 1
	eng := NewEngine(s, Options{})
	if _, err := eng.AddColumn("A", TypeText); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if _, err := eng.AddColumn("B", TypeText); err != ErrColumnLimit {
		t.Fatalf("expected ErrColumnLimit, got %v", err)
	}
	if _, err := eng.AddRow(); err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	if _, err := eng.AddRow(); err != ErrRowLimit {
		t.Fatalf("expected ErrRowLimit, got %v", err)
	}
}

func TestReadOnlyEngineRejectsMutations(t *testing.T) {
	s := New("ro")
	eng := NewEngine(s, Options{})
	eng.AddColumn("A", TypeText)
	row, _ := eng.AddRow()

	ro := NewEngine(s, Options{ReadOnly: true})
	if _, err := ro.AddRow(); err != ErrReadOnly {
		t.Fatalf("AddRow: expected ErrReadOnly, got %v", err)
	}
	if _, err := ro.AddColumn("B", TypeText); err != ErrReadOnly {
		t.Fatalf("AddColumn: expected ErrReadOnly, got %v", err)
	}
	if err := ro.SetCell(row.ID, "a", Text("x")); err != ErrReadOnly {
		t.Fatalf("SetCell: expected ErrReadOnly, got %v", err)
	}
	if _, err := ro.BeginEdit(row.ID, "a"); err != ErrReadOnly {
		t.Fatalf("BeginEdit: expected ErrReadOnly, got %v", err)
	}
	if err := ro.DeleteColumn("a"); err != ErrReadOnly {
		t.Fatalf("DeleteColumn: expected ErrReadOnly, got %v", err)
	}
}

func TestMoveRowRenumbers(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.AddColumn("Name", TypeText)
	var ids []string
	for i := 0; i < 3; i++ {
		r, _ := eng.AddRow()
		ids = append(ids, r.ID)
	}
	if err := eng.MoveRow(2, 0); err != nil {
		t.Fatalf("MoveRow: %v", err)
	}
	s := eng.Sheet()
	want := []string{ids[2], ids[0], ids[1]}
	for i, r := range s.Rows {
		if r.ID != want[i] {
			t.Fatalf("row %d: expected %s, got %s", i, want[i], r.ID)
		}
		if r.Order != i {
			t.Fatalf("row %d: order %d", i, r.Order)
		}
	}
}
