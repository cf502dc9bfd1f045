package agents

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hardw419/ivr-system/internal/auth"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/rs/zerolog"
)

// Handler handles HTTP requests for the agent directory
type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHandler creates a new agents Handler
func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the agent directory endpoints on a chi router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleUpsert)
	r.Put("/{agentID}", h.HandleUpsert)
	r.Patch("/{agentID}/availability", h.HandleAvailability)
	r.Delete("/{agentID}", h.HandleDelete)
	return r
}

// HandleList handles GET /agents
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	agents, err := h.svc.List(r.Context(), claims.OwnerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list agents")
		http.Error(w, "failed to list agents", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"agents":  agents,
		"count":   len(agents),
	})
}

// upsertRequest is the JSON body for POST /agents and PUT /agents/{agentID}
type upsertRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	TransferKey string `json:"keyPress"`
	Email       string `json:"email,omitempty"`
	Department  string `json:"department,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
}

// HandleUpsert handles POST /agents (create) and PUT /agents/{agentID} (update)
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	agent, err := h.svc.Upsert(r.Context(), claims.OwnerID, UpsertParams{
		ID:          chi.URLParam(r, "agentID"),
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		TransferKey: req.TransferKey,
		Email:       req.Email,
		Department:  req.Department,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		if err == ErrKeyTaken {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		h.logger.Error().Err(err).Msg("failed to save agent")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"agent":   agent,
	})
}

// availabilityRequest is the JSON body for PATCH /agents/{agentID}/availability
type availabilityRequest struct {
	IsAvailable bool `json:"isAvailable"`
}

// HandleAvailability handles PATCH /agents/{agentID}/availability
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	agent, err := h.svc.SetAvailability(r.Context(), claims.OwnerID, chi.URLParam(r, "agentID"), req.IsAvailable)
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update availability")
		http.Error(w, "failed to update availability", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"agent":   agent,
	})
}

// HandleDelete handles DELETE /agents/{agentID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.svc.Delete(r.Context(), claims.OwnerID, chi.URLParam(r, "agentID")); err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete agent")
		http.Error(w, "failed to delete agent", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
