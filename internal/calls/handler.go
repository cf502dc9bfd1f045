package calls

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hardw419/ivr-system/internal/auth"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/rs/zerolog"
)

// Handler handles HTTP requests for call operations
type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHandler creates a calls Handler
func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the call endpoints on a chi router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleStart)
	r.Get("/{callID}", h.HandleGet)
	r.Post("/{callID}/finalize", h.HandleFinalize)
	return r
}

// startRequest is the JSON body for POST /calls
type startRequest struct {
	CustomerPhone string            `json:"customerPhone"`
	CustomerName  string            `json:"customerName,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// HandleStart handles POST /calls
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.CustomerPhone == "" {
		http.Error(w, "missing customerPhone field", http.StatusBadRequest)
		return
	}

	call, err := h.svc.Start(r.Context(), StartParams{
		OwnerID:       claims.OwnerID,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("customer", req.CustomerPhone).Msg("failed to start call")
		http.Error(w, "failed to start call", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"call":    call,
	})
}

// HandleGet handles GET /calls/{callID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	call, err := h.svc.Get(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load call", http.StatusInternalServerError)
		return
	}
	if call.OwnerID != claims.OwnerID {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"call":    call,
	})
}

// HandleFinalize handles POST /calls/{callID}/finalize
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	call, err := h.svc.Finalize(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Msg("finalize failed")
		http.Error(w, "failed to finalize call", http.StatusBadGateway)
		return
	}
	if call.OwnerID != claims.OwnerID {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"call":    call,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
