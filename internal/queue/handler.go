package queue

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hardw419/ivr-system/internal/alerts"
	"github.com/hardw419/ivr-system/internal/auth"
	"github.com/hardw419/ivr-system/internal/bridge"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// TokenIssuer mints short-lived browser voice tokens for agent softphones
type TokenIssuer interface {
	IssueBrowserToken(identity string) (string, error)
}

// Handler handles HTTP requests for agent console queue operations
type Handler struct {
	svc    *Service
	tokens TokenIssuer
	logger zerolog.Logger
}

// NewHandler creates a new queue Handler
func NewHandler(svc *Service, tokens TokenIssuer, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		tokens: tokens,
		logger: logger,
	}
}

// Routes mounts the queue endpoints on a chi router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleList)
	r.Get("/stats", h.HandleStats)
	r.Get("/token", h.HandleToken)
	r.Post("/accept/{queueID}", h.HandleAccept)
	r.Post("/complete/{queueID}", h.HandleComplete)
	r.Post("/cleanup", h.HandleCleanup)
	return r
}

// queueEntryView is a queue entry plus the live wait time the console shows
type queueEntryView struct {
	types.QueueEntry
	CurrentWaitTime int            `json:"currentWaitTime"`
	Alerts          []alerts.Alert `json:"alerts,omitempty"`
}

// HandleList handles GET /queue
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.svc.ListWaiting(r.Context(), claims.OwnerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list queue")
		http.Error(w, "failed to list queue", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	waitAlerts := alerts.CheckWaitAlerts(entries, alerts.DefaultThresholds(h.svc.ceiling), now)
	views := make([]queueEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, queueEntryView{
			QueueEntry:      entry,
			CurrentWaitTime: int(now.Sub(entry.WaitStart).Seconds()),
			Alerts:          waitAlerts[entry.ID],
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"queue":   views,
		"count":   len(views),
	})
}

// HandleStats handles GET /queue/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.svc.Stats(r.Context(), claims.OwnerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to compute queue stats")
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// acceptRequest is the optional JSON body for POST /queue/accept/{queueID}
type acceptRequest struct {
	AgentID string `json:"agentId,omitempty"`
}

// HandleAccept handles POST /queue/accept/{queueID}. Exactly one agent wins;
// everyone else gets 409.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	queueID := chi.URLParam(r, "queueID")

	agentID := claims.AgentID
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.AgentID != "" {
		agentID = req.AgentID
	}
	if agentID == "" {
		http.Error(w, "missing agent identity", http.StatusBadRequest)
		return
	}

	entry, err := h.svc.Accept(r.Context(), queueID, agentID)
	switch err {
	case nil:
	case storage.ErrAlreadyTaken:
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"error":   "call already taken by another agent",
		})
		return
	case storage.ErrNotFound:
		http.Error(w, "queue entry not found", http.StatusNotFound)
		return
	default:
		h.logger.Error().Err(err).Str("queue_id", queueID).Msg("accept failed")
		http.Error(w, "failed to accept call", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entry":   entry,
		"roomId":  bridge.RoomFor(entry.CallSID),
	})
}

// completeRequest is the JSON body for POST /queue/complete/{queueID}
type completeRequest struct {
	Notes string `json:"notes,omitempty"`
}

// HandleComplete handles POST /queue/complete/{queueID}
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserFromContext(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	queueID := chi.URLParam(r, "queueID")

	var req completeRequest
	// Body is optional
	_ = json.NewDecoder(r.Body).Decode(&req)

	entry, err := h.svc.Complete(r.Context(), queueID, req.Notes)
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "queue entry not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("queue_id", queueID).Msg("complete failed")
		http.Error(w, "failed to complete call", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entry":   entry,
	})
}

// HandleCleanup handles POST /queue/cleanup
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	cleaned, err := h.svc.Cleanup(r.Context(), claims.OwnerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("cleanup failed")
		http.Error(w, "failed to clean up queue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cleared": cleaned,
	})
}

// HandleToken handles GET /queue/token, issuing a browser voice token so the
// agent softphone can join conference rooms.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if h.tokens == nil {
		http.Error(w, "voice tokens not configured", http.StatusServiceUnavailable)
		return
	}

	identity := claims.AgentID
	if identity == "" {
		identity = claims.Email
	}

	token, err := h.tokens.IssueBrowserToken(identity)
	if err != nil {
		h.logger.Error().Err(err).Str("identity", identity).Msg("failed to issue voice token")
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"token":    token,
		"identity": identity,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
