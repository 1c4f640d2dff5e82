package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/taskflow/taskcore/internal/api/respond"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

var healthyFlag atomic.Int32

func init() {
	healthyFlag.Store(0)
}

// serviceIsHealthy is the injection hook cmd/taskcore's run loop uses to
// report readiness (store reachable, migrations applied) without this
// package importing the store layer directly.
var serviceIsHealthy = func() bool { return healthyFlag.Load() == 1 }

func BindServiceHealth(f func() bool) { serviceIsHealthy = f }

// CheckHealth handles GET /api/health. Always returns 200; the body
// reports healthy/unhealthy. 500 would indicate a handler failure, not a
// dependency failure.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if serviceIsHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
