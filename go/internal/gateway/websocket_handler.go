package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/httpx"
	"github.com/mcdev12/chainwatch/go/internal/models"
)

// SessionResolver resolves a socket token to a session
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*models.Session, error)
}

// WebSocketHandler handles WebSocket upgrade requests
type WebSocketHandler struct {
	hub      *Hub
	manager  *ConnectionManager
	resolver SessionResolver
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, resolver SessionResolver) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		manager:  hub.manager,
		resolver: resolver,
	}
}

// HandleConnection handles GET /ws?token=<session token>.
// A missing or unresolvable token still upgrades, as an anonymous connection.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	session := h.resolve(r)

	ws, err := h.manager.Upgrade(w, r)
	if err != nil {
		log.Debug().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := newConnection(ws, session, h.hub, h.manager.Config())
	h.hub.Open(r.Context(), conn)
	conn.start()
}

func (h *WebSocketHandler) resolve(r *http.Request) *models.Session {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil
	}
	session, err := h.resolver.ResolveSession(r.Context(), token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket token did not resolve, continuing anonymously")
		return nil
	}
	return session
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		ConnectionStats
		OnlineUsers int `json:"online_users"`
	}{
		ConnectionStats: h.manager.Stats(),
		OnlineUsers:     h.hub.OnlineUsers(),
	}
	httpx.JSON(w, http.StatusOK, stats)
}
