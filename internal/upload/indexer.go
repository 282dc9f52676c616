package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/svg"
)

// Store defines the interface needed from storage layer.
type Store interface {
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	List(limit int) ([]*models.FileInfo, error)
	SetStatus(id string, status string) error
	Refresh(id string) (*models.FileInfo, error)
}

// Catalog is the part of *catalog.Catalog the indexer writes to.
type Catalog interface {
	Upsert(ctx context.Context, e catalog.Entry) error
	ReplaceAll(ctx context.Context, entries []catalog.Entry) error
}

// Indexer validates stored files and records the outcome in the catalog.
type Indexer struct {
	store   Store
	catalog Catalog
	checker parser.SchemaChecker
}

// NewIndexer creates an indexer. checker is used for every file.
func NewIndexer(store Store, cat Catalog, checker parser.SchemaChecker) *Indexer {
	return &Indexer{store: store, catalog: cat, checker: checker}
}

// Inspect reads a stored file and builds its catalog entry without writing
// it anywhere. A file that fails validation yields an entry with Valid unset
// and a nil error; only I/O failures are returned as errors.
func (ix *Indexer) Inspect(info *models.FileInfo) (catalog.Entry, error) {
	entry := catalog.Entry{
		FileID:    info.ID,
		FileName:  info.Name,
		FileSize:  info.Size,
		IndexedAt: time.Now().UTC(),
	}

	path, err := ix.store.GetFilePath(info.ID)
	if err != nil {
		return entry, err
	}
	data, err := parser.ReadFile(path)
	if err != nil && errors.Is(err, svg.ErrIO) {
		return entry, err
	}

	var doc *svg.Document
	if err == nil {
		doc, err = parser.BuildDocument(data, ix.checker)
	}
	if err != nil {
		if errors.Is(err, svg.ErrIO) {
			return entry, err
		}
		entry.Problem = err.Error()
		return entry, nil
	}

	entry.Valid = true
	entry.TopLevel = svg.TopLevelCounts(doc)
	entry.Deep = svg.DeepCounts(doc)
	return entry, nil
}

// IndexFile inspects one file, stores its entry and updates its status.
func (ix *Indexer) IndexFile(ctx context.Context, info *models.FileInfo) (catalog.Entry, error) {
	ix.store.SetStatus(info.ID, models.FileStatusIndexing)

	entry, err := ix.Inspect(info)
	if err != nil {
		ix.store.SetStatus(info.ID, models.FileStatusInvalid)
		return entry, fmt.Errorf("indexing %s: %w", info.ID, err)
	}
	if err := ix.catalog.Upsert(ctx, entry); err != nil {
		return entry, fmt.Errorf("recording %s: %w", info.ID, err)
	}
	ix.store.SetStatus(info.ID, statusOf(entry))

	if entry.Valid {
		fmt.Printf("[Indexer] %s (%s) valid: %d rects, %d circles, %d paths, %d groups\n",
			info.Name, shortID(info.ID), entry.Deep.Rectangles, entry.Deep.Circles, entry.Deep.Paths, entry.Deep.Groups)
	} else {
		fmt.Printf("[Indexer] %s (%s) invalid: %s\n", info.Name, shortID(info.ID), entry.Problem)
	}
	return entry, nil
}

// Refresh re-reads the size of a rewritten file and indexes it again.
func (ix *Indexer) Refresh(ctx context.Context, id string) (catalog.Entry, error) {
	info, err := ix.store.Refresh(id)
	if err != nil {
		return catalog.Entry{}, err
	}
	return ix.IndexFile(ctx, info)
}

// Reindex rebuilds the whole catalog from the files in the store. Files that
// cannot be read are recorded as invalid.
func (ix *Indexer) Reindex(ctx context.Context) ([]catalog.Entry, error) {
	files, err := ix.store.List(0)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	entries := make([]catalog.Entry, 0, len(files))
	for _, info := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := ix.Inspect(info)
		if err != nil {
			entry.Problem = err.Error()
		}
		ix.store.SetStatus(info.ID, statusOf(entry))
		entries = append(entries, entry)
	}

	if err := ix.catalog.ReplaceAll(ctx, entries); err != nil {
		return nil, err
	}
	fmt.Printf("[Indexer] Reindexed %d files in %s\n", len(entries), time.Since(start).Round(time.Millisecond))
	return entries, nil
}

func statusOf(e catalog.Entry) string {
	if e.Valid {
		return models.FileStatusValid
	}
	return models.FileStatusInvalid
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
