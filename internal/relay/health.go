package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// relayDetails summarises the live relay state for the health payload.
type relayDetails struct {
	Rooms    int `json:"rooms"`
	Members  int `json:"members"`
	Sessions int `json:"sessions"`
	Tracked  int `json:"tracked_burn_states"`
}

// handleHealth provides a detailed health check endpoint. The relay
// itself has no hard dependencies; only a configured-but-unreachable
// share log degrades the report.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    s.cfg.Build.Version,
		Components: make(map[string]ComponentHealth),
	}

	rooms, members := s.cfg.Controller.Rooms().Counts()
	health.Components["relay"] = ComponentHealth{
		Status: ComponentStatusUp,
		Details: relayDetails{
			Rooms:    rooms,
			Members:  members,
			Sessions: s.cfg.Hub.ConnectedClients(),
			Tracked:  s.cfg.Controller.Burns().Len(),
		},
	}

	if s.cfg.History != nil {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := s.cfg.History.Ping(ctx)
		cancel()

		component := ComponentHealth{
			Status:    ComponentStatusUp,
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
		}
		if err != nil {
			component.Status = ComponentStatusDown
			component.Message = err.Error()
			health.Status = HealthStatusDegraded
		}
		health.Components["history"] = component
	}

	statusCode := http.StatusOK
	if health.Status != HealthStatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady is the cheap liveness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}
