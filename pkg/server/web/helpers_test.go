package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, RenderJSON(w, map[string]string{"action": "forward"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "-1", w.Header().Get("Expires"))
	assert.JSONEq(t, `{"action":"forward"}`, w.Body.String())
}

func TestRenderJSONStatus(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, RenderJSONStatus(w, http.StatusServiceUnavailable, map[string]bool{"temporary": true}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"temporary":true}`, w.Body.String())
}

func TestHeaderMatch(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Add("accept", "Application/JSON")

	assert.True(t, headerMatch(req, "Accept", "application/json"))
	assert.False(t, headerMatch(req, "Accept", "text/html"))
	assert.False(t, headerMatch(req, "Content-Type", "application/json"))
}
