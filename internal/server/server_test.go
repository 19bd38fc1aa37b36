package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/server/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	handlers.InitHealthManager("test")
	t.Cleanup(handlers.ResetHTTPErrorResponder)
	return New("localhost", 0)
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup"} {
		rec := doRequest(t, s, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, "path=%s", path)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestServerReadinessReflectsCheckers(t *testing.T) {
	s := newTestServer(t)

	handlers.GetHealthManager().RegisterChecker("poller", handlers.HealthCheckerFunc(func(ctx context.Context) error {
		return errors.New("not polling")
	}))

	rec := doRequest(t, s, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "SERVICE_UNAVAILABLE", errObj["code"])
}

func TestServerVersionEndpoint(t *testing.T) {
	s := newTestServer(t)
	handlers.SetVersionInfo("chatrelay", "1.2.3", "abc123", "2025-01-15")

	rec := doRequest(t, s, http.MethodGet, "/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "chatrelay", body.App.Name)
	require.Equal(t, "1.2.3", body.App.Version)
	require.NotEmpty(t, body.Runtime.Platform)
}

func TestServerNotFoundEnvelope(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "NOT_FOUND", errObj["code"])
	require.NotEmpty(t, errObj["request_id"])
}

func TestServerMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/version")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health/live")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "caller-supplied", rec.Header().Get("X-Request-ID"))
}

func TestServerMetricsUnavailableWithoutExporter(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
