package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Service is the real-time gateway: socket connections, presence and broadcasts
type Service struct {
	Hub       *Hub
	manager   *ConnectionManager
	wsHandler *WebSocketHandler
}

// NewService wires a connection manager, hub and handler together
func NewService(config ConnectionConfig, source ScheduleSource, resolver SessionResolver, metrics MetricsCollector) *Service {
	manager := NewConnectionManager(config)
	hub := NewHub(manager, source, metrics)
	return &Service{
		Hub:       hub,
		manager:   manager,
		wsHandler: NewWebSocketHandler(hub, resolver),
	}
}

// RegisterRoutes registers the WebSocket routes
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/ws", s.wsHandler.HandleConnection)
	r.Get("/ws/stats", s.wsHandler.HandleConnectionStats)
	log.Info().Msg("gateway routes registered")
}

// Stats returns statistics about active connections
func (s *Service) Stats() ConnectionStats {
	return s.manager.Stats()
}

// Shutdown closes every open connection
func (s *Service) Shutdown() {
	s.manager.CloseAll()
}
