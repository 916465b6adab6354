package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency. A failing optional check degrades the
// service; a failing required check makes it unavailable.
type HealthCheck struct {
	Name     string
	Optional bool
	Ping     func(ctx context.Context) error
}

// StorageCheck probes the campaign store.
func StorageCheck(s storage.Storage) HealthCheck {
	return HealthCheck{Name: "storage", Ping: s.Ping}
}

// EventBusCheck probes the Redis connection behind event streaming.
func EventBusCheck(client *redis.Client) HealthCheck {
	return HealthCheck{
		Name:     "event_bus",
		Optional: true,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

type ComponentHealth struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type HealthResponse struct {
	Status         string                     `json:"status"`
	Timestamp      time.Time                  `json:"timestamp"`
	Service        string                     `json:"service"`
	ActiveSessions *int                       `json:"active_sessions,omitempty"`
	Components     map[string]ComponentHealth `json:"components"`
}

type HealthHandler struct {
	checks   []HealthCheck
	sessions func() int
	logger   *slog.Logger
}

func NewHealthHandler(logger *slog.Logger, checks ...HealthCheck) *HealthHandler {
	sorted := append([]HealthCheck(nil), checks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &HealthHandler{checks: sorted, logger: logger}
}

// WithSessions reports the number of in-memory sessions alongside the checks.
func (h *HealthHandler) WithSessions(count func() int) *HealthHandler {
	h.sessions = count
	return h
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Service:    "tabletop-session",
		Components: h.runChecks(ctx),
	}
	if h.sessions != nil {
		n := h.sessions()
		response.ActiveSessions = &n
	}

	for _, c := range h.checks {
		if response.Components[c.Name].Status == "healthy" {
			continue
		}
		if !c.Optional {
			response.Status = "unhealthy"
			break
		}
		response.Status = "degraded"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Error encoding health response", "error", err)
	}
}

// runChecks pings every dependency concurrently.
func (h *HealthHandler) runChecks(ctx context.Context) map[string]ComponentHealth {
	var (
		mu      sync.Mutex
		results = make(map[string]ComponentHealth, len(h.checks))
		g       errgroup.Group
	)
	for _, c := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Ping(ctx)
			ch := ComponentHealth{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				h.logger.Warn("Health check failed", "component", c.Name, "error", err)
				ch.Status = "unhealthy"
				ch.Error = err.Error()
			}
			mu.Lock()
			results[c.Name] = ch
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
