package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// catalog is the sqlite index over the document directory: one row per sheet,
// enough to render the library listing without loading every document.
type catalog struct {
	db *sql.DB
}

func openCatalog(path string) (*catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	c := &catalog{db: db}
	if err := c.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *catalog) ensureSchema() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS sheets (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		ncols      INTEGER NOT NULL DEFAULT 0,
		nrows      INTEGER NOT NULL DEFAULT 0,
		version    INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	return nil
}

func (c *catalog) upsert(info Info) error {
	_, err := c.db.Exec(`INSERT INTO sheets (id, name, ncols, nrows, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			ncols = excluded.ncols,
			nrows = excluded.nrows,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		info.ID, info.Name, info.Cols, info.Rows, info.Version,
		info.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (c *catalog) delete(id string) error {
	_, err := c.db.Exec(`DELETE FROM sheets WHERE id = ?`, id)
	return err
}

func (c *catalog) list() ([]Info, error) {
	rows, err := c.db.Query(`SELECT id, name, ncols, nrows, version, updated_at
		FROM sheets ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var updated string
		if err := rows.Scan(&info.ID, &info.Name, &info.Cols, &info.Rows, &info.Version, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (c *catalog) close() error {
	return c.db.Close()
}
