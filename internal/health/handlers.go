package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zsiec/cloudstream/pkg/version"
)

// Response represents the health check response.
type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]*Check `json:"checks,omitempty"`
}

// Handler handles health check HTTP endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager, startTime: time.Now()}
}

// HandleHealth runs every check and reports the detailed results.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	status := h.manager.GetOverallStatus()

	h.writeJSON(w, statusCode(status), Response{
		Status:    status,
		Timestamp: time.Now(),
		Version:   version.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

// HandleReady reports the status of the last periodic run.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := h.manager.GetOverallStatus()
	h.writeJSON(w, statusCode(status), struct {
		Status    Status    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{status, time.Now()})
}

// HandleLive answers as long as the process serves HTTP.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{"alive", time.Now()})
}

func statusCode(s Status) int {
	if s == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
