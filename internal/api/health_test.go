package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthHandler_CheckHealth_ReportsUnhealthyByDefault(t *testing.T) {
	h := NewHealthHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.CheckHealth(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "unhealthy")
}

func TestBindServiceHealth_ReflectsInjectedFunction(t *testing.T) {
	BindServiceHealth(func() bool { return true })
	defer BindServiceHealth(func() bool { return healthyFlag.Load() == 1 })

	h := NewHealthHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.CheckHealth(rec, req)
	require.Contains(t, rec.Body.String(), "\"healthy\"")
}
