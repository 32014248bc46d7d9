package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slingshot-be/internal/bootstrap"
	"slingshot-be/internal/config"
	"slingshot-be/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_FILE_PATH", filepath.Join(dir, "app.log"))
	t.Setenv("WS_LOG_FILE_PATH", filepath.Join(dir, "stream.log"))
	t.Setenv("TOOL_LATENCY", "1ms")
	t.Setenv("NATS_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DB_CONNECTION_STRING", "")
	t.Setenv("AUTH_REQUIRED", "false")

	cfg := config.Load()
	container := bootstrap.NewContainer(nil, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, container.Orchestrator.Shutdown(ctx))
		container.Close()
	})
	return New(cfg, container)
}

func status(t *testing.T, srv *Server, req *http.Request) int {
	t.Helper()
	resp, err := srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestStreamRoutesMountedAtRoot(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/research", strings.NewReader(`{"query":"Analyze TCS"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started dto.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	// Known session, plain GET: the route exists and asks for an upgrade.
	assert.Equal(t, http.StatusUpgradeRequired, status(t, srv, httptest.NewRequest(http.MethodGet, "/ws/research/"+started.SessionId, nil)))
	// Same session under another mode, and an unknown id.
	assert.Equal(t, http.StatusNotFound, status(t, srv, httptest.NewRequest(http.MethodGet, "/ws/macro/"+started.SessionId, nil)))
	assert.Equal(t, http.StatusNotFound, status(t, srv, httptest.NewRequest(http.MethodGet, "/ws/research/unknown", nil)))
	// Not served under the API prefix.
	assert.Equal(t, http.StatusNotFound, status(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/ws/research/"+started.SessionId, nil)))
}

func TestHealthAtRoot(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusOK, status(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil)))
}
