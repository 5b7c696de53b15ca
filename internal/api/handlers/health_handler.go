package handlers

import (
	"net/http"

	"github.com/isdelr/catalog-api/internal/monitoring"
)

// HealthHandler reports liveness and a system snapshot.
type HealthHandler struct {
	monitor *monitoring.SystemMonitor
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(monitor *monitoring.SystemMonitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Live answers as long as the process is serving.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, http.StatusOK, "Server is running")
}

// System returns host and database state.
func (h *HealthHandler) System(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.monitor.Snapshot(r.Context()))
}
