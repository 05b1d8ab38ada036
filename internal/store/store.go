// Package store persists sheets as automerge documents on disk, sharded by id
// prefix, with a sqlite catalog for fast library listings. Last write wins;
// there is no merge between concurrent editors.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// ErrNotFound is returned when no document exists for an id.
var ErrNotFound = errors.New("store: sheet not found")

// Info is one library listing entry.
type Info struct {
	ID        string
	Name      string
	Cols      int
	Rows      int
	Version   int64
	UpdatedAt time.Time
}

// Store is a directory of sheet documents plus its catalog.
type Store struct {
	dataDir string
	catalog *catalog
	logger  *slog.Logger
}

// Open creates the data directory if needed and opens the catalog.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	cat, err := openCatalog(filepath.Join(dataDir, "catalog.db"))
	if err != nil {
		return nil, err
	}
	return &Store{dataDir: dataDir, catalog: cat, logger: logger}, nil
}

// Close releases the catalog handle.
func (st *Store) Close() error {
	return st.catalog.close()
}

// docPath shards documents by the first two characters of the id.
func (st *Store) docPath(id string) string {
	if len(id) < 2 {
		return filepath.Join(st.dataDir, id)
	}
	return filepath.Join(st.dataDir, id[:2], id[2:])
}

// Create makes and persists an empty sheet.
func (st *Store) Create(name string) (*sheet.Sheet, error) {
	s := sheet.New(name)
	if err := st.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads a sheet document: snapshot first, then any incremental files.
func (st *Store) Load(id string) (*sheet.Sheet, error) {
	doc, err := st.loadDoc(st.docPath(id))
	if err != nil {
		return nil, err
	}
	return decodeDoc(doc)
}

func (st *Store) loadDoc(docPath string) (*automerge.Doc, error) {
	var doc *automerge.Doc

	snapDir := filepath.Join(docPath, "snapshot")
	if entries, err := os.ReadDir(snapDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(snapDir, e.Name()))
			if err != nil {
				continue
			}
			doc, err = automerge.Load(data)
			if err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
			break // only one snapshot
		}
	}

	incDir := filepath.Join(docPath, "incremental")
	if entries, err := os.ReadDir(incDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(incDir, e.Name()))
			if err != nil {
				continue
			}
			if doc == nil {
				doc, err = automerge.Load(data)
				if err != nil {
					return nil, fmt.Errorf("load incremental as doc: %w", err)
				}
			} else {
				doc.LoadIncremental(data)
			}
		}
	}

	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Save writes a fresh snapshot (superseding incrementals) and updates the
// catalog. This is the persistence callback target for the grid engine.
func (st *Store) Save(s *sheet.Sheet) error {
	doc, err := encodeDoc(s)
	if err != nil {
		return err
	}
	doc.Commit("save " + s.ID)

	docPath := st.docPath(s.ID)
	snapDir := filepath.Join(docPath, "snapshot")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", snapDir, err)
	}
	if entries, err := os.ReadDir(snapDir); err == nil {
		for _, e := range entries {
			os.Remove(filepath.Join(snapDir, e.Name()))
		}
	}
	incDir := filepath.Join(docPath, "incremental")
	if entries, err := os.ReadDir(incDir); err == nil {
		for _, e := range entries {
			os.Remove(filepath.Join(incDir, e.Name()))
		}
		os.Remove(incDir)
	}
	if err := os.WriteFile(filepath.Join(snapDir, "snapshot"), doc.Save(), 0o644); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", s.ID, err)
	}

	if err := st.catalog.upsert(infoOf(s)); err != nil {
		st.logger.Warn("catalog upsert failed", "sheet", s.ID, "err", err)
	}
	return nil
}

// Delete removes the document directory and its catalog row.
func (st *Store) Delete(id string) error {
	if err := os.RemoveAll(st.docPath(id)); err != nil {
		return err
	}
	return st.catalog.delete(id)
}

// List returns the library entries, most recently updated first. An empty
// catalog triggers a reindex so a copied data directory still lists.
func (st *Store) List() ([]Info, error) {
	infos, err := st.catalog.list()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		if err := st.Reindex(); err != nil {
			return nil, err
		}
		infos, err = st.catalog.list()
	}
	return infos, err
}

// Reindex rebuilds the catalog by scanning the sharded document directories.
func (st *Store) Reindex() error {
	prefixes, err := os.ReadDir(st.dataDir)
	if err != nil {
		return fmt.Errorf("read data dir %s: %w", st.dataDir, err)
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(st.dataDir, prefix.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			id := prefix.Name() + entry.Name()
			s, err := st.Load(id)
			if err != nil {
				st.logger.Warn("skipping unreadable doc", "id", id, "err", err)
				continue
			}
			if err := st.catalog.upsert(infoOf(s)); err != nil {
				return err
			}
		}
	}
	return nil
}

func infoOf(s *sheet.Sheet) Info {
	return Info{
		ID:        s.ID,
		Name:      s.Name,
		Cols:      len(s.Columns),
		Rows:      len(s.Rows),
		Version:   s.Metadata.Version,
		UpdatedAt: s.Metadata.UpdatedAt,
	}
}
