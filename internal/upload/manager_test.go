package upload

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/svg"
	"github.com/svg-workbench/backend/internal/testutil"
)

const validSVG = `<svg xmlns="http://www.w3.org/2000/svg">
  <rect x="0" y="0" width="10" height="5"/>
  <g><circle cx="1" cy="1" r="2"/><path d="M0 0 L1 1"/></g>
</svg>`

const negativeSVG = `<svg xmlns="http://www.w3.org/2000/svg"><rect x="0" y="0" width="-10" height="5"/></svg>`

type fakeChecker struct{ err error }

func (f fakeChecker) Validate([]byte) error { return f.err }

type fixture struct {
	store   *testutil.MockStorage
	catalog *catalog.Catalog
	indexer *Indexer
}

func newFixture(t *testing.T, checker fakeChecker) fixture {
	t.Helper()
	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	cat, err := catalog.Open("", catalog.Options{Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return fixture{store: store, catalog: cat, indexer: NewIndexer(store, cat, checker)}
}

func TestIndexFile(t *testing.T) {
	ctx := context.Background()

	t.Run("valid document", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		info := f.store.AddFile("f1", "logo.svg", []byte(validSVG))

		entry, err := f.indexer.IndexFile(ctx, info)
		require.NoError(t, err)
		assert.True(t, entry.Valid)
		assert.Equal(t, svg.Counts{Rectangles: 1, Groups: 1}, entry.TopLevel)
		assert.Equal(t, svg.Counts{Rectangles: 1, Circles: 1, Paths: 1, Groups: 1}, entry.Deep)

		stored, err := f.catalog.Get(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "logo.svg", stored.FileName)

		got, _ := f.store.Get("f1")
		assert.Equal(t, models.FileStatusValid, got.Status)
	})

	t.Run("structural violation", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		info := f.store.AddFile("f2", "bad.svg", []byte(negativeSVG))

		entry, err := f.indexer.IndexFile(ctx, info)
		require.NoError(t, err)
		assert.False(t, entry.Valid)
		assert.NotEmpty(t, entry.Problem)

		got, _ := f.store.Get("f2")
		assert.Equal(t, models.FileStatusInvalid, got.Status)
	})

	t.Run("schema rejection", func(t *testing.T) {
		f := newFixture(t, fakeChecker{err: errors.New("line 1: element not allowed")})
		info := f.store.AddFile("f3", "odd.svg", []byte(validSVG))

		entry, err := f.indexer.IndexFile(ctx, info)
		require.NoError(t, err)
		assert.False(t, entry.Valid)
		assert.Contains(t, entry.Problem, "element not allowed")
	})

	t.Run("malformed xml", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		info := f.store.AddFile("f4", "broken.svg", []byte(`<svg><rect`))

		entry, err := f.indexer.IndexFile(ctx, info)
		require.NoError(t, err)
		assert.False(t, entry.Valid)
	})

	t.Run("compressed file", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		info := f.store.AddFile("f5", "logo.svgz", gzipBytes(t, validSVG))

		entry, err := f.indexer.IndexFile(ctx, info)
		require.NoError(t, err)
		assert.True(t, entry.Valid)
	})
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeChecker{})
	require.NoError(t, f.catalog.Upsert(ctx, catalog.Entry{FileID: "gone", FileName: "gone.svg"}))

	f.store.AddFile("a", "a.svg", []byte(validSVG))
	f.store.AddFile("b", "b.svg", []byte(negativeSVG))

	entries, err := f.indexer.Reindex(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	valid, err := f.catalog.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "a", valid[0].FileID)

	_, err = f.catalog.Get(ctx, "gone")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUploadJob(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("assembles and indexes", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		m := NewManager(f.store, f.indexer)

		require.NoError(t, f.store.SaveChunkBytes("up-1", 0, []byte(validSVG[:20])))
		require.NoError(t, f.store.SaveChunkBytes("up-1", 1, []byte(validSVG[20:])))

		job := m.StartJob("up-1", "chunked.svg", 2, int64(len(validSVG)), 0, "")
		var updates int
		done, err := m.Wait(ctx, job.ID, 10*time.Millisecond, func(*Job) { updates++ })
		require.NoError(t, err)

		assert.Equal(t, StatusComplete, done.Status, done.Error)
		assert.Equal(t, 100.0, done.Progress)
		require.NotNil(t, done.FileInfo)
		require.NotNil(t, done.Entry)
		assert.True(t, done.Entry.Valid)
		assert.Equal(t, "chunked.svg", done.FileInfo.Name)
		assert.Positive(t, updates)

		data, err := f.store.GetFileData(done.FileInfo.ID)
		require.NoError(t, err)
		assert.Equal(t, validSVG, string(data))
	})

	t.Run("undoes transport compression", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		m := NewManager(f.store, f.indexer)

		compressed := gzipBytes(t, validSVG)
		require.NoError(t, f.store.SaveChunkBytes("up-2", 0, compressed))

		job := m.StartJob("up-2", "packed.svg", 1, int64(len(validSVG)), int64(len(compressed)), "gzip")
		done, err := m.Wait(ctx, job.ID, 10*time.Millisecond, nil)
		require.NoError(t, err)
		require.Equal(t, StatusComplete, done.Status, done.Error)
		assert.Equal(t, int64(len(validSVG)), done.FileInfo.Size)

		data, _ := f.store.GetFileData(done.FileInfo.ID)
		assert.Equal(t, validSVG, string(data))
	})

	t.Run("missing chunk fails the job", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		m := NewManager(f.store, f.indexer)
		require.NoError(t, f.store.SaveChunkBytes("up-3", 0, []byte("<svg")))

		job := m.StartJob("up-3", "x.svg", 3, 0, 0, "")
		done, err := m.Wait(ctx, job.ID, 10*time.Millisecond, nil)
		require.NoError(t, err)
		assert.Equal(t, StatusError, done.Status)
		assert.Contains(t, done.Error, "assemble")
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newFixture(t, fakeChecker{})
		m := NewManager(f.store, f.indexer)
		_, err := m.Wait(ctx, "nope", time.Millisecond, nil)
		assert.Error(t, err)
	})
}

func TestCleanupOldJobs(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	m := NewManager(f.store, f.indexer)

	old := time.Now().Add(-2 * time.Hour)
	m.jobs["old"] = &Job{ID: "old", Status: StatusComplete, CompletedAt: &old}
	m.jobs["running"] = &Job{ID: "running", Status: StatusIndexing}

	m.CleanupOldJobs(time.Hour)

	_, ok := m.GetJob("old")
	assert.False(t, ok)
	_, ok = m.GetJob("running")
	assert.True(t, ok)
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
