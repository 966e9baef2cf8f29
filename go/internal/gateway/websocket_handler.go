package gateway

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/basta/go/internal/engine"
	"github.com/mcdev12/basta/go/internal/session"
)

const (
	maxPlayerIDLength = 64
	callTimeout       = 5 * time.Second
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRoomID reports whether id can name a room.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	hub               *Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		hub:               hub,
	}
}

// HandleRoomConnection handles GET /rooms/{roomID}/ws
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	if !ValidRoomID(roomID) {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	// Clients keep their id across reconnects; anonymous ones get a fresh one.
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		playerID = uuid.New().String()
	}
	if len(playerID) > maxPlayerIDLength {
		http.Error(w, "invalid playerId", http.StatusBadRequest)
		return
	}

	actor, err := h.hub.Acquire(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to acquire room")
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Release(roomID)

	conn, err := h.connectionManager.Upgrade(w, r, roomID, playerID)
	if err != nil {
		// the upgrader has already written an error response
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	if err := h.call(func(ctx context.Context) error { return actor.Connect(ctx, playerID) }); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("player_id", playerID).Msg("room rejected connection")
		h.connectionManager.unregisterConnection(conn)
		return
	}

	conn.ReadPump(func(msg []byte) {
		err := h.call(func(ctx context.Context) error { return actor.Deliver(ctx, playerID, msg) })
		if err != nil && engine.CodeOf(err) == engine.CodeInternal {
			log.Warn().Err(err).Str("room_id", roomID).Str("player_id", playerID).Msg("message not delivered")
		}
	})

	// another tab of the same player keeps them in the room
	if h.connectionManager.PlayerConnected(roomID, playerID) {
		return
	}
	err = h.call(func(ctx context.Context) error { return actor.Disconnect(ctx, playerID) })
	if err != nil && !errors.Is(err, session.ErrStopped) {
		log.Warn().Err(err).Str("room_id", roomID).Str("player_id", playerID).Msg("failed to record disconnect")
	}
}

func (h *WebSocketHandler) call(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx)
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		ConnectionStats
		RunningRooms int `json:"running_rooms"`
	}{
		ConnectionStats: h.connectionManager.GetConnectionStats(),
		RunningRooms:    h.hub.ActiveRooms(),
	}
	writeJSON(w, http.StatusOK, stats)
}

// RegisterRoutes registers WebSocket routes with the router
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/rooms/{roomID}/ws", h.HandleRoomConnection).Methods(http.MethodGet)
	router.HandleFunc("/ws/stats", h.HandleConnectionStats).Methods(http.MethodGet)
}
