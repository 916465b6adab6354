package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/character"
	"github.com/jwebster45206/tabletop-session/pkg/progression"
	"github.com/jwebster45206/tabletop-session/pkg/roll"
	"github.com/jwebster45206/tabletop-session/pkg/session"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ActionResponse is returned by every session operation. Events are
// included even when the operation was refused, since refusals carry a
// notice for the player.
type ActionResponse struct {
	State  session.State   `json:"state,omitempty"`
	Events []session.Event `json:"events"`
	Error  string          `json:"error,omitempty"`
}

// CreateCampaignRequest defines the request body for creating a campaign
type CreateCampaignRequest struct {
	Title     string           `json:"title"`
	Theme     string           `json:"theme,omitempty"`
	Setting   string           `json:"setting,omitempty"`
	Premise   string           `json:"premise,omitempty"`
	PC        character.PC     `json:"pc"`
	Inventory []character.Item `json:"inventory,omitempty"`
}

type InputRequest struct {
	Message string `json:"message"`
}

type SkillRequest struct {
	Skill string `json:"skill"`
	Name  string `json:"name,omitempty"`
}

type AcceptRequest struct {
	Accept bool `json:"accept"`
}

type DecisionRequest struct {
	Name   string   `json:"name"`
	Traits []string `json:"traits"`
	Cancel bool     `json:"cancel"`
}

type CampaignHandler struct {
	storage  storage.Storage
	sessions *session.Registry
	logger   *slog.Logger
}

func NewCampaignHandler(logger *slog.Logger, storage storage.Storage, sessions *session.Registry) *CampaignHandler {
	return &CampaignHandler{
		storage:  storage,
		sessions: sessions,
		logger:   logger,
	}
}

// ServeHTTP routes campaign requests.
// Routes:
// POST   /v1/campaigns                  - Create a campaign
// GET    /v1/campaigns                  - List campaigns
// GET    /v1/campaigns/{id}             - Session view (or stored snapshot)
// DELETE /v1/campaigns/{id}             - Delete a campaign
// GET    /v1/campaigns/{id}/transcript  - Turn log, JSON or ?format=html
// POST   /v1/campaigns/{id}/{action}    - start, input, roll, reroll, loot,
//
//	decision, levelup, specialize, buyluck
func (h *CampaignHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/campaigns"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			h.methodNotAllowed(w, r, "POST, GET")
		}
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown campaign route"})
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid campaign ID", "id", parts[0], "error", err)
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid campaign ID format"})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			h.methodNotAllowed(w, r, "GET, DELETE")
		}
		return
	}

	action := parts[1]
	if action == "transcript" {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.handleTranscript(w, r, id)
		return
	}
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r, "POST")
		return
	}
	h.handleAction(w, r, id, action)
}

func (h *CampaignHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body. Expected JSON campaign."})
		return
	}

	c := campaign.New(req.Title, req.PC)
	c.Theme = strings.TrimSpace(req.Theme)
	c.Setting = strings.TrimSpace(req.Setting)
	c.Premise = strings.TrimSpace(req.Premise)
	for _, it := range req.Inventory {
		c.Inventory, _ = character.MergeItem(c.Inventory, it)
	}
	if err := c.Validate(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.storage.SaveCampaign(r.Context(), c); err != nil {
		h.logger.Error("Failed to save campaign", "error", err, "campaign_id", c.ID.String())
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to save campaign"})
		return
	}

	h.logger.Info("Campaign created", "campaign_id", c.ID.String(), "title", c.Title)
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *CampaignHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.storage.ListCampaigns(r.Context())
	if err != nil {
		h.logger.Error("Failed to list campaigns", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to list campaigns"})
		return
	}
	if list == nil {
		list = []*campaign.Campaign{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *CampaignHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if o, ok := h.sessions.Lookup(id); ok {
		if view, err := o.Snapshot(); err == nil {
			h.writeJSON(w, http.StatusOK, view)
			return
		}
	}

	c, err := h.storage.LoadCampaign(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load campaign", "error", err, "campaign_id", id.String())
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load campaign"})
		return
	}
	if c == nil {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Campaign not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, session.View{
		CampaignID:   c.ID,
		State:        session.StateIdle,
		Title:        c.Title,
		PC:           c.PC,
		Inventory:    c.Inventory,
		StorySummary: c.StorySummary,
	})
}

func (h *CampaignHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteCampaign(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete campaign", "error", err, "campaign_id", id.String())
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete campaign"})
		return
	}
	h.sessions.Remove(id)
	h.logger.Info("Campaign deleted", "campaign_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

var campaignActions = map[string]bool{
	"start": true, "input": true, "roll": true, "reroll": true, "loot": true,
	"decision": true, "levelup": true, "specialize": true, "buyluck": true,
}

// session returns the orchestrator an action runs on. Only start may
// create one; anything else needs a started session.
func (h *CampaignHandler) session(id uuid.UUID, action string) (*session.Orchestrator, bool) {
	if action == "start" {
		return h.sessions.Get(id), true
	}
	return h.sessions.Lookup(id)
}

func (h *CampaignHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID, action string) {
	if !campaignActions[action] {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown campaign action: " + action})
		return
	}
	o, ok := h.session(id, action)
	if !ok {
		h.writeJSON(w, statusFor(session.ErrNotStarted), ActionResponse{
			Events: []session.Event{},
			Error:  session.ErrNotStarted.Error(),
		})
		return
	}
	ctx := r.Context()

	var (
		events []session.Event
		err    error
	)
	switch action {
	case "start":
		events, err = o.Start(ctx)
		if errors.Is(err, session.ErrCampaignNotFound) {
			h.sessions.Remove(id)
		}
	case "input":
		var req InputRequest
		if !h.decode(w, r, &req) {
			return
		}
		events, err = o.SubmitInput(ctx, req.Message)
	case "roll":
		var req SkillRequest
		if !h.decode(w, r, &req) {
			return
		}
		events, err = o.Roll(ctx, req.Skill)
	case "reroll":
		var req AcceptRequest
		if !h.decode(w, r, &req) {
			return
		}
		events, err = o.ResolveReroll(ctx, req.Accept)
	case "loot":
		var req AcceptRequest
		if !h.decode(w, r, &req) {
			return
		}
		events, err = o.ResolveLoot(ctx, req.Accept)
	case "decision":
		var req DecisionRequest
		if !h.decode(w, r, &req) {
			return
		}
		if req.Cancel {
			events, err = o.CancelDecision(ctx)
		} else {
			events, err = o.ResolveDecision(ctx, req.Name, req.Traits)
		}
	case "levelup":
		var req SkillRequest
		if !h.decode(w, r, &req) {
			return
		}
		events, err = o.LevelUp(ctx, req.Skill)
	case "specialize":
		var req SkillRequest
		if !h.decode(w, r, &req) {
			return
		}
		events, err = o.Specialize(ctx, req.Skill, req.Name)
	case "buyluck":
		events, err = o.BuyLuck(ctx)
	default:
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown campaign action: " + action})
		return
	}

	if events == nil {
		events = []session.Event{}
	}
	resp := ActionResponse{State: o.State(), Events: events}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = err.Error()
		if status >= http.StatusInternalServerError {
			h.logger.Error("Session action failed", "error", err, "campaign_id", id.String(), "action", action)
		} else {
			h.logger.Debug("Session action refused", "error", err, "campaign_id", id.String(), "action", action)
		}
	}
	h.writeJSON(w, status, resp)
}

// statusFor maps session errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrCampaignNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrNoRollPending),
		errors.Is(err, session.ErrNoRerollPending),
		errors.Is(err, session.ErrRerollPending),
		errors.Is(err, session.ErrNoLootPending),
		errors.Is(err, session.ErrNoDecisionPending),
		errors.Is(err, session.ErrDecisionPending):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, roll.ErrNoLuck),
		errors.Is(err, progression.ErrSkillNotFound),
		errors.Is(err, progression.ErrDoAnythingLocked),
		errors.Is(err, progression.ErrMaxLevel),
		errors.Is(err, progression.ErrNotMaxLevel),
		errors.Is(err, progression.ErrInsufficientXP),
		errors.Is(err, progression.ErrDuplicateSkill),
		errors.Is(err, progression.ErrEmptySkillName),
		errors.Is(err, progression.ErrNoValidTraits):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *CampaignHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("Invalid request body", "error", err, "path", r.URL.Path)
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func (h *CampaignHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for campaign endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	h.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error: "Method not allowed. Supported methods: " + allowed,
	})
}

func (h *CampaignHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
