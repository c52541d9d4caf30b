package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-labs/synapse/internal/config"
	"github.com/lodestone-labs/synapse/internal/llm"
	"github.com/lodestone-labs/synapse/internal/store"
)

func testServer(t *testing.T, client llm.Client) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, client, config.Default(), "test-version")
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test-version", resp["version"])
	assert.Equal(t, true, resp["db"])
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/nope", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
