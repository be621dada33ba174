package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcdev12/planningpoker/go/internal/poker/coordinator"
	"github.com/rs/zerolog/log"
)

// StateProvider returns the current session snapshot.
type StateProvider interface {
	Snapshot(ctx context.Context) (coordinator.Snapshot, error)
}

// StateHandler handles HTTP requests for session state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetSessionState handles GET /api/session/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.stateProvider.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/state", h.HandleGetSessionState)
}
