// Package catalog keeps a DuckDB index of stored SVG files: whether each one
// passed validation and how many shapes of each kind it holds.
package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/svg-workbench/backend/internal/svg"
)

// ErrNotFound is returned when no entry exists for a file id.
var ErrNotFound = errors.New("catalog: entry not found")

// Entry is the indexed state of one stored file.
type Entry struct {
	FileID    string     `json:"fileId"`
	FileName  string     `json:"fileName"`
	FileSize  int64      `json:"fileSize"`
	Valid     bool       `json:"valid"`
	Problem   string     `json:"problem,omitempty"`
	TopLevel  svg.Counts `json:"topLevel"`
	Deep      svg.Counts `json:"deep"`
	IndexedAt time.Time  `json:"indexedAt"`
}

// Options tunes the DuckDB connection. Zero values keep DuckDB defaults.
type Options struct {
	Threads     int
	MemoryLimit string
}

// Catalog is safe for concurrent use.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex // serializes writers
}

const createTable = `
	CREATE TABLE IF NOT EXISTS files (
		file_id     VARCHAR PRIMARY KEY,
		file_name   VARCHAR NOT NULL,
		file_size   BIGINT NOT NULL,
		valid       BOOLEAN NOT NULL,
		problem     VARCHAR NOT NULL,
		num_rects   INTEGER NOT NULL,
		num_circs   INTEGER NOT NULL,
		num_paths   INTEGER NOT NULL,
		num_groups  INTEGER NOT NULL,
		deep_rects  INTEGER NOT NULL,
		deep_circs  INTEGER NOT NULL,
		deep_paths  INTEGER NOT NULL,
		deep_groups INTEGER NOT NULL,
		indexed_at  TIMESTAMP NOT NULL
	)
`

const selectColumns = `file_id, file_name, file_size, valid, problem,
	num_rects, num_circs, num_paths, num_groups,
	deep_rects, deep_circs, deep_paths, deep_groups, indexed_at`

// Open opens or creates the catalog database at path. An empty path opens an
// in-memory catalog.
func Open(path string, opts Options) (*Catalog, error) {
	fmt.Printf("[Catalog] Opening database at: %q\n", path)

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		var pragmas []string
		if opts.Threads > 0 {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
		}
		if opts.MemoryLimit != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[Catalog] Pragma warning: %v\n", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert inserts or replaces the entry for e.FileID.
func (c *Catalog) Upsert(ctx context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.IndexedAt.IsZero() {
		e.IndexedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO files (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.FileID, e.FileName, e.FileSize, e.Valid, e.Problem,
		e.TopLevel.Rectangles, e.TopLevel.Circles, e.TopLevel.Paths, e.TopLevel.Groups,
		e.Deep.Rectangles, e.Deep.Circles, e.Deep.Paths, e.Deep.Groups,
		e.IndexedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", e.FileID, err)
	}
	return nil
}

// Rename updates the stored name of a file.
func (c *Catalog) Rename(ctx context.Context, fileID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, "UPDATE files SET file_name = ? WHERE file_id = ?", name, fileID)
	if err != nil {
		return fmt.Errorf("failed to rename %s: %w", fileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the entry for fileID. Deleting a missing entry is not an error.
func (c *Catalog) Delete(ctx context.Context, fileID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, "DELETE FROM files WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", fileID, err)
	}
	return nil
}

// Get returns the entry for fileID or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, fileID string) (Entry, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM files WHERE file_id = ?", fileID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns entries ordered by file name. With validOnly set, files that
// failed validation are left out.
func (c *Catalog) List(ctx context.Context, validOnly bool) ([]Entry, error) {
	query := "SELECT " + selectColumns + " FROM files"
	if validOnly {
		query += " WHERE valid"
	}
	query += " ORDER BY file_name, file_id"

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceAll swaps the whole catalog for entries using the Appender.
func (c *Catalog) ReplaceAll(ctx context.Context, entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	startTime := time.Now()
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "files")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		now := time.Now().UTC()
		for i, e := range entries {
			indexedAt := e.IndexedAt.UTC()
			if e.IndexedAt.IsZero() {
				indexedAt = now
			}
			err := appender.AppendRow(
				e.FileID, e.FileName, e.FileSize, e.Valid, e.Problem,
				int32(e.TopLevel.Rectangles), int32(e.TopLevel.Circles), int32(e.TopLevel.Paths), int32(e.TopLevel.Groups),
				int32(e.Deep.Rectangles), int32(e.Deep.Circles), int32(e.Deep.Paths), int32(e.Deep.Groups),
				indexedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	fmt.Printf("[Catalog] Reindexed %d files in %v\n", len(entries), time.Since(startTime))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var rects, circs, paths, groups, deepRects, deepCircs, deepPaths, deepGroups int32
	err := s.Scan(
		&e.FileID, &e.FileName, &e.FileSize, &e.Valid, &e.Problem,
		&rects, &circs, &paths, &groups,
		&deepRects, &deepCircs, &deepPaths, &deepGroups,
		&e.IndexedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	e.TopLevel = svg.Counts{Rectangles: int(rects), Circles: int(circs), Paths: int(paths), Groups: int(groups)}
	e.Deep = svg.Counts{Rectangles: int(deepRects), Circles: int(deepCircs), Paths: int(deepPaths), Groups: int(deepGroups)}
	return e, nil
}
