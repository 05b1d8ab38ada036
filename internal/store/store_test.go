package store

import (
	"errors"
	"testing"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := openTestStore(t)
	s, err := st.SeedDemo()
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	loaded, err := st.Load(s.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != "Productos" {
		t.Fatalf("unexpected name %q", loaded.Name)
	}
	if len(loaded.Columns) != 6 || len(loaded.Rows) != 3 {
		t.Fatalf("expected 6x3, got %dx%d", len(loaded.Columns), len(loaded.Rows))
	}
	if loaded.Metadata.Version != s.Metadata.Version {
		t.Fatalf("version changed on round trip: %d -> %d", s.Metadata.Version, loaded.Metadata.Version)
	}

	// values survive with their kinds
	row := loaded.Rows[0]
	if got := row.Cells["nombre"].Value.Text; got != "Morral ejecutivo" {
		t.Fatalf("text value lost: %q", got)
	}
	if got := row.Cells["precio"].Value.Number; got != 89000 {
		t.Fatalf("number value lost: %v", got)
	}
	if got := row.Cells["activo"].Value.Bool; got != true {
		t.Fatalf("bool value lost: %v", got)
	}
	if got := row.Cells["categorias"].Value.List; len(got) != 1 || got[0] != "morrales" {
		t.Fatalf("list value lost: %v", got)
	}
}

func TestLoadPreservesColumnOrderAfterReorder(t *testing.T) {
	st := openTestStore(t)
	s, _ := st.SeedDemo()

	eng := sheet.NewEngine(s, sheet.Options{})
	if err := eng.MoveColumn(5, 0); err != nil {
		t.Fatalf("MoveColumn: %v", err)
	}
	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := st.Load(s.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	keys := loaded.ColumnKeys()
	if keys[0] != "fotos" || keys[1] != "nombre" {
		t.Fatalf("column order lost: %v", keys)
	}
	for i, c := range loaded.Columns {
		if c.Order != i {
			t.Fatalf("column %s: order %d at index %d", c.Key, c.Order, i)
		}
	}
}

func TestAttachmentsSurviveRoundTrip(t *testing.T) {
	st := openTestStore(t)
	s, _ := st.SeedDemo()
	eng := sheet.NewEngine(s, sheet.Options{})
	rowID := s.Rows[0].ID
	eng.SetCell(rowID, "fotos", sheet.Images([]sheet.Attachment{
		{URL: "https://cdn.example.com/morral.jpg", Filename: "morral.jpg", Size: 2048},
		{URL: "https://cdn.example.com/viejo.jpg", Legacy: true},
	}))
	st.Save(s)

	loaded, err := st.Load(s.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	items := loaded.RowByID(rowID).Cells["fotos"].Value.Attachments
	if len(items) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(items))
	}
	if items[0].Filename != "morral.jpg" || items[0].Size != 2048 {
		t.Fatalf("structured attachment lost fields: %+v", items[0])
	}
	if !items[1].Legacy || items[1].URL != "https://cdn.example.com/viejo.jpg" {
		t.Fatalf("legacy attachment upgraded or lost: %+v", items[1])
	}
}

func TestListAndDelete(t *testing.T) {
	st := openTestStore(t)
	a, _ := st.Create("hoja a")
	if _, err := st.Create("hoja b"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	infos, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}

	if err := st.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Load(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	infos, _ = st.List()
	if len(infos) != 1 || infos[0].Name != "hoja b" {
		t.Fatalf("unexpected listing after delete: %+v", infos)
	}
}

func TestReindexRebuildsCatalog(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, _ := st.Create("inventario")
	st.catalog.delete(s.ID)
	st.Close()

	st2, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	infos, err := st2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != s.ID {
		t.Fatalf("reindex missed the doc: %+v", infos)
	}
}
