package handler

import (
	"net/http"

	"github.com/alanyoungcy/natsgw/internal/bus"
	"github.com/alanyoungcy/natsgw/internal/heartbeat"
	"github.com/alanyoungcy/natsgw/internal/registry"
)

// StatusHandler serves operability counters for the registry, bus manager,
// and heartbeat controller: no credentials, read-only, for dashboards and
// curl-based debugging.
type StatusHandler struct {
	registry  *registry.Registry
	manager   *bus.Manager
	heartbeat *heartbeat.Controller
}

// NewStatusHandler creates a StatusHandler reading from the given
// components' accessor methods.
func NewStatusHandler(reg *registry.Registry, mgr *bus.Manager, hb *heartbeat.Controller) *StatusHandler {
	return &StatusHandler{registry: reg, manager: mgr, heartbeat: hb}
}

// GetStatus responds with subscriber/subject/upstream counts.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"clients":            h.registry.ClientCount(),
		"subjects":           h.registry.SubjectCount(),
		"active_upstreams":   h.manager.ActiveSubjectCount(),
		"heartbeat_bindings": h.heartbeat.ActiveBindings(),
	})
}
