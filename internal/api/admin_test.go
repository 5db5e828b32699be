package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fractalscan/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRouter_Healthz(t *testing.T) {
	logger := internal.NewLogger(internal.LogLevelError, io.Discard).Zerolog()

	healthy := NewAdminRouter(logger, map[string]HealthCheck{
		"ledger": func(ctx context.Context) error { return nil },
	})
	w := httptest.NewRecorder()
	healthy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "pass", resp.Checks["ledger"].Status)

	degraded := NewAdminRouter(logger, map[string]HealthCheck{
		"ledger": func(ctx context.Context) error { return stderrors.New("connection refused") },
	})
	w = httptest.NewRecorder()
	degraded.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["ledger"].Message)
}

func TestAdminRouter_Pprof(t *testing.T) {
	r := NewAdminRouter(internal.NewLogger(internal.LogLevelError, io.Discard).Zerolog(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
