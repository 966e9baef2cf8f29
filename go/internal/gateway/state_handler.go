package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// StateHandler serves room snapshots over plain HTTP.
type StateHandler struct {
	hub *Hub
}

// NewStateHandler creates a new state handler
func NewStateHandler(hub *Hub) *StateHandler {
	return &StateHandler{hub: hub}
}

// HandleGetRoomState handles GET /rooms/{roomID}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	if !ValidRoomID(roomID) {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	state, err := h.hub.Snapshot(r.Context(), roomID)
	if errors.Is(err, ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to get room state")
		http.Error(w, "failed to get room state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(router *mux.Router) {
	router.HandleFunc("/rooms/{roomID}/state", h.HandleGetRoomState).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
