package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svg-workbench/backend/internal/models"
)

func TestConfigHandler_EditRules(t *testing.T) {
	f := newAPIFixture(t)
	h := NewConfigHandler(f.rules)

	c, rec := newContext(http.MethodGet, "/api/config/edit-rules", "")
	require.NoError(t, h.HandleGetEditRules(c))
	var got models.EditRules
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *models.DefaultEditRules(), got)

	c, rec = newContext(http.MethodPut, "/api/config/edit-rules",
		`{"allowedUnits":["px"],"protectedAttributes":["id"],"maxAttributes":4,"maxScaleFactor":2}`)
	require.NoError(t, h.HandleUpdateEditRules(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	active := f.rules.Rules()
	assert.Equal(t, []string{"px"}, active.AllowedUnits)
	assert.True(t, active.IsProtected("ID"))
	assert.False(t, active.AllowsScale(3))

	c, _ = newContext(http.MethodPut, "/api/config/edit-rules", `{"maxAttributes":-1}`)
	requireAPIError(t, h.HandleUpdateEditRules(c), http.StatusBadRequest, "BAD_REQUEST")
	assert.Equal(t, 4, f.rules.Rules().MaxAttributes, "rejected rules leave the active set alone")

	c, _ = newContext(http.MethodPut, "/api/config/edit-rules", `{"maxAttributes":`)
	requireAPIError(t, h.HandleUpdateEditRules(c), http.StatusBadRequest, "BAD_REQUEST")
}

func TestConfigHandler_NoRules(t *testing.T) {
	h := NewConfigHandler(nil)
	c, _ := newContext(http.MethodGet, "/", "")
	requireAPIError(t, h.HandleGetEditRules(c), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
}

func TestHealthHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.addDocument(t, "a", "a.svg", sampleSVG)
	_, err := f.sessions.Open("a")
	require.NoError(t, err)

	h := NewHealthHandler("1.2.3", "data/schema/svg.xsd", f.sessions)
	c, rec := newContext(http.MethodGet, "/api/health", "")
	require.NoError(t, h.HandleHealth(c))
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3","schema":"data/schema/svg.xsd","openDocuments":1}`, rec.Body.String())
}
