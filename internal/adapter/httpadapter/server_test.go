package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/whereami/internal/adapter/httpadapter"
	"github.com/couchcryptid/whereami/internal/domain"
)

type mockResolver struct {
	result       domain.LocationResult
	err          error
	readyErr     error
	cleared      bool
	lastUseCache bool
	lastRefresh  bool
}

func (m *mockResolver) Resolve(_ context.Context, useCache, forceRefresh bool) (domain.LocationResult, error) {
	m.lastUseCache = useCache
	m.lastRefresh = forceRefresh
	return m.result, m.err
}

func (m *mockResolver) ClearCache() { m.cleared = true }

func (m *mockResolver) CheckReadiness(_ context.Context) error { return m.readyErr }

func newTestServer(t *testing.T, m *mockResolver) *httpadapter.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", m, logger)
}

func successResult(t *testing.T) domain.LocationResult {
	t.Helper()
	res, err := domain.NewSuccess(domain.MethodHybrid, "devloc", 40.7128, -74.0060)
	require.NoError(t, err)
	return res
}

func do(srv *httpadapter.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(newTestServer(t, &mockResolver{}), http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(newTestServer(t, &mockResolver{}), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	m := &mockResolver{readyErr: errors.New("no cycle yet")}
	rec := do(newTestServer(t, m), http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no cycle yet", body["error"])
}

func TestLocationReturnsResult(t *testing.T) {
	m := &mockResolver{result: successResult(t)}
	rec := do(newTestServer(t, m), http.MethodGet, "/location")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, m.lastUseCache)
	assert.False(t, m.lastRefresh)

	var got domain.LocationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.InDelta(t, 40.7128, got.Lat, 1e-9)
}

func TestLocationCacheFalseSkipsCache(t *testing.T) {
	m := &mockResolver{result: successResult(t)}
	rec := do(newTestServer(t, m), http.MethodGet, "/location?cache=false")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, m.lastUseCache)
}

func TestLocationExhaustionReturns503WithBody(t *testing.T) {
	m := &mockResolver{
		result: domain.NewFailure(domain.MethodHybrid, "selector", domain.ReasonExhausted),
		err:    domain.ErrAllProvidersExhausted,
	}
	rec := do(newTestServer(t, m), http.MethodGet, "/location")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var got domain.LocationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Equal(t, domain.ReasonExhausted, got.ErrorReason)
}

func TestRefreshForcesNewCycle(t *testing.T) {
	m := &mockResolver{result: successResult(t)}
	rec := do(newTestServer(t, m), http.MethodPost, "/refresh")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, m.lastUseCache)
	assert.True(t, m.lastRefresh)
}

func TestClearCache(t *testing.T) {
	m := &mockResolver{}
	rec := do(newTestServer(t, m), http.MethodDelete, "/cache")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, m.cleared)
}
