package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zsiec/hostpanel/pkg/version"
)

// Response is the /health body.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]*Check      `json:"checks,omitempty"`
	Stats     map[string]interface{} `json:"stats,omitempty"`
}

// Handler serves the health endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
	stats     func() map[string]interface{}
}

// NewHandler creates a handler. stats, when set, adds runtime figures such
// as open dashboards to /health.
func NewHandler(manager *Manager, stats func() map[string]interface{}) *Handler {
	return &Handler{manager: manager, startTime: time.Now(), stats: stats}
}

// HandleHealth runs every check and reports them. Degraded still answers 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	overall := h.manager.Overall()

	resp := Response{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   version.Version,
		Uptime:    uptime(time.Since(h.startTime)),
		Checks:    checks,
	}
	if h.stats != nil {
		resp.Stats = h.stats()
	}

	code := http.StatusOK
	if overall == StatusDown {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, resp)
}

// HandleReady reports the cached status without running checks.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	overall := h.manager.Overall()
	code := http.StatusOK
	if overall == StatusDown {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, struct {
		Status    Status    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{overall, time.Now()})
}

// HandleLive answers as long as the process serves HTTP.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{"alive", time.Now()})
}

// uptime spells d out as "2 days 6 hours 30 minutes 15 seconds", skipping
// zero units.
func uptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	units := []struct {
		name string
		size time.Duration
	}{
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"minute", time.Minute},
		{"second", time.Second},
	}

	var parts []string
	for _, u := range units {
		n := int(d / u.size)
		d -= time.Duration(n) * u.size
		if n == 0 {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, " ")
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.log.WithError(err).Error("Failed to encode health response")
	}
}
