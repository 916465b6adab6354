package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/tabletop-session/internal/logger"
	"github.com/jwebster45206/tabletop-session/internal/services/events"
	"github.com/jwebster45206/tabletop-session/pkg/session"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

const keepaliveInterval = 30 * time.Second

// EventSource opens a subscription to a campaign's published events.
type EventSource interface {
	Subscribe(ctx context.Context, campaignID uuid.UUID) *redis.PubSub
}

// EventsHandler streams a campaign's session events as Server-Sent Events.
// Spectators see the same events the acting client receives.
type EventsHandler struct {
	source    EventSource
	storage   storage.Storage
	logger    *slog.Logger
	keepalive time.Duration
}

func NewEventsHandler(source EventSource, storage storage.Storage, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		source:    source,
		storage:   storage,
		logger:    logger,
		keepalive: keepaliveInterval,
	}
}

// ServeHTTP handles GET /v1/events/campaigns/{campaignID}. An optional
// ?kinds=roll,narration limits the stream to those event kinds.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "events" || pathParts[2] != "campaigns" {
		h.writeError(w, http.StatusBadRequest, "Invalid path. Expected /v1/events/campaigns/{campaignID}")
		return
	}

	campaignID, err := uuid.Parse(pathParts[3])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid campaign ID format.")
		return
	}
	log := logger.WithCampaign(h.logger, campaignID)

	c, err := h.storage.LoadCampaign(r.Context(), campaignID)
	if err != nil {
		log.Error("Failed to load campaign for event stream", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load campaign")
		return
	}
	if c == nil {
		h.writeError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	kinds := parseKinds(r.URL.Query().Get("kinds"))

	pubsub := h.source.Subscribe(r.Context(), campaignID)
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Error("Failed to close pubsub", "error", err)
		}
	}()

	// Wait for the subscription to be live so nothing published after
	// "connected" is missed.
	if _, err := pubsub.Receive(r.Context()); err != nil {
		log.Error("Failed to subscribe to campaign events", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	log.Info("SSE connection established", "remote_addr", r.RemoteAddr)

	h.sendSSE(w, log, "connected", map[string]any{
		"campaign_id": campaignID.String(),
		"title":       c.Title,
		"message":     "Connected to event stream",
	})

	msgChan := pubsub.Channel()
	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected")
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			event, err := events.Decode(msg.Payload)
			if err != nil {
				log.Error("Failed to decode event", "error", err, "payload", msg.Payload)
				continue
			}
			if len(kinds) > 0 && !kinds[event.Type] {
				continue
			}
			h.sendSSE(w, log, string(event.Type), event.Event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				log.Error("Failed to write keepalive", "error", err)
				return
			}
			flush(w)
		}
	}
}

func parseKinds(raw string) map[session.EventKind]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	kinds := make(map[session.EventKind]bool)
	for _, k := range strings.Split(raw, ",") {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kinds[session.EventKind(k)] = true
		}
	}
	return kinds
}

func (h *EventsHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

// sendSSE writes one Server-Sent Event and flushes it.
func (h *EventsHandler) sendSSE(w http.ResponseWriter, log *slog.Logger, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Error("Failed to marshal SSE data", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		log.Error("Failed to write event", "error", err, "event", eventType)
		return
	}
	flush(w)
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
