package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/session"
	"github.com/svg-workbench/backend/internal/testutil"
	"github.com/svg-workbench/backend/internal/upload"
)

const sampleSVG = `<svg xmlns="http://www.w3.org/2000/svg">
  <title>Sample</title>
  <rect x="0" y="0" width="10" height="5"/>
  <g><circle cx="1" cy="1" r="2"/></g>
</svg>`

const negativeSVG = `<svg xmlns="http://www.w3.org/2000/svg"><rect x="0" y="0" width="-10" height="5"/></svg>`

// fakeChecker stands in for the XSD validator. Set err to make every
// document fail the schema.
type fakeChecker struct{ err error }

func (f *fakeChecker) Validate([]byte) error { return f.err }

type apiFixture struct {
	store    *testutil.MockStorage
	catalog  *catalog.Catalog
	indexer  *upload.Indexer
	uploads  *upload.Manager
	sessions *session.Manager
	rules    *parser.RulesFile
	checker  *fakeChecker
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	cat, err := catalog.Open("", catalog.Options{Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	rules, err := parser.OpenRulesFile("")
	require.NoError(t, err)

	checker := &fakeChecker{}
	indexer := upload.NewIndexer(store, cat, checker)
	return &apiFixture{
		store:    store,
		catalog:  cat,
		indexer:  indexer,
		uploads:  upload.NewManager(store, indexer),
		sessions: session.NewManager(store, checker, indexer),
		rules:    rules,
		checker:  checker,
	}
}

func (f *apiFixture) documentHandler() DocumentHandler {
	return NewDocumentHandler(f.store, f.indexer, f.checker, f.sessions, f.rules)
}

func (f *apiFixture) uploadHandler() *UploadHandlerImpl {
	return NewUploadHandler(f.store, f.catalog, f.indexer, f.sessions, f.uploads)
}

// addDocument stores and indexes a file under a fixed id.
func (f *apiFixture) addDocument(t *testing.T, id, name, data string) *models.FileInfo {
	t.Helper()
	info := f.store.AddFile(id, name, []byte(data))
	_, err := f.indexer.IndexFile(context.Background(), info)
	require.NoError(t, err)
	return info
}

func (f *apiFixture) setRules(t *testing.T, mutate func(r *models.EditRules)) {
	t.Helper()
	rules := f.rules.Rules()
	mutate(&rules)
	require.NoError(t, f.rules.Replace(rules))
}

// newContext builds an echo context for a JSON request. params alternate
// name and value.
func newContext(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.Status, "status for %v", apiErr)
	if code != "" {
		require.Equal(t, code, apiErr.Code, "code for %v", apiErr)
	}
}
