package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/basta/go/internal/session"
)

// Service wires the connection manager, the room hub and the HTTP handlers.
type Service struct {
	connectionManager *ConnectionManager
	hub               *Hub
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// NewService creates the gateway. The connection manager is installed as the
// transport of every room actor.
func NewService(config ConnectionConfig, opts session.Options) *Service {
	connectionManager := NewConnectionManager(config)
	opts.Transport = connectionManager
	hub := NewHub(opts)

	return &Service{
		connectionManager: connectionManager,
		hub:               hub,
		wsHandler:         NewWebSocketHandler(connectionManager, hub),
		stateHandler:      NewStateHandler(hub),
	}
}

// Start runs the connection manager until ctx is cancelled, then stops the rooms.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting room gateway")
	s.connectionManager.Start(ctx)
	s.Stop()
}

// Stop shuts every room actor down
func (s *Service) Stop() {
	s.hub.Close()
	log.Info().Msg("room gateway stopped")
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(router *mux.Router) {
	s.wsHandler.RegisterRoutes(router)
	s.stateHandler.RegisterStateRoutes(router)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	log.Info().Msg("room gateway routes registered")
}
