package transport

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON body of the /health endpoint. It never
// requires authentication and is built from in-memory state only, so it
// answers in constant time.
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     int64          `json:"timestamp"`
	Version       string         `json:"version"`
	SessionCount  int            `json:"session_count"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Metadata      map[string]any `json:"metadata"`
}

// HealthChecker serves the liveness probe.
type HealthChecker struct {
	version         string
	serverName      string
	protocolVersion string
	startTime       time.Time
	sessionCount    func() int
	extra           func() map[string]any
}

// NewHealthChecker creates the probe. sessionCount reads the live
// registry; extra, when non-nil, contributes additional metadata (e.g.
// audit queue depth).
func NewHealthChecker(serverName, version, protocolVersion string, sessionCount func() int, extra func() map[string]any) *HealthChecker {
	return &HealthChecker{
		version:         version,
		serverName:      serverName,
		protocolVersion: protocolVersion,
		startTime:       time.Now(),
		sessionCount:    sessionCount,
		extra:           extra,
	}
}

// Check builds the current health snapshot.
func (h *HealthChecker) Check() HealthResponse {
	metadata := map[string]any{
		"server_name":      h.serverName,
		"protocol_version": h.protocolVersion,
	}
	if h.extra != nil {
		for k, v := range h.extra() {
			metadata[k] = v
		}
	}
	return HealthResponse{
		Status:        "ok",
		Timestamp:     time.Now().Unix(),
		Version:       h.version,
		SessionCount:  h.sessionCount(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Metadata:      metadata,
	}
}

// Handler returns the HTTP handler for /health.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(h.Check())
	})
}
