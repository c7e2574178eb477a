package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager is the registry of open connections, keyed by faction
type ConnectionManager struct {
	factions  map[int64]map[*Connection]struct{}
	anonymous map[*Connection]struct{}
	mu        sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// ConnectionStats is the body of /ws/stats
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	Authenticated    int `json:"authenticated"`
	Anonymous        int `json:"anonymous"`
	ActiveFactions   int `json:"active_factions"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1 << 20, // larger frames close the connection
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		factions:  make(map[int64]map[*Connection]struct{}),
		anonymous: make(map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Config returns the connection configuration
func (cm *ConnectionManager) Config() ConnectionConfig {
	return cm.config
}

// Upgrade upgrades an HTTP connection to WebSocket; on failure the upgrader has already replied
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return cm.upgrader.Upgrade(w, r, nil)
}

// register adds a connection to its faction pool, or to the anonymous set
func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !conn.Authenticated() {
		cm.anonymous[conn] = struct{}{}
		return
	}

	factionID := conn.FactionID()
	if cm.factions[factionID] == nil {
		cm.factions[factionID] = make(map[*Connection]struct{})
	}
	cm.factions[factionID][conn] = struct{}{}

	log.Debug().
		Str("connection_id", conn.ID).
		Int64("faction_id", factionID).
		Int("faction_connections", len(cm.factions[factionID])).
		Msg("connection registered")
}

// unregister removes a connection and reports whether it was registered
func (cm *ConnectionManager) unregister(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !conn.Authenticated() {
		if _, ok := cm.anonymous[conn]; !ok {
			return false
		}
		delete(cm.anonymous, conn)
		return true
	}

	factionID := conn.FactionID()
	connections, ok := cm.factions[factionID]
	if !ok {
		return false
	}
	if _, ok := connections[conn]; !ok {
		return false
	}
	delete(connections, conn)

	// Clean up empty faction pools
	if len(connections) == 0 {
		delete(cm.factions, factionID)
	}
	return true
}

// factionConnections returns a snapshot of the faction's connections, minus exclude
func (cm *ConnectionManager) factionConnections(factionID int64, exclude *Connection) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	connections := cm.factions[factionID]
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		if conn != exclude {
			targets = append(targets, conn)
		}
	}
	return targets
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		Anonymous:      len(cm.anonymous),
		ActiveFactions: len(cm.factions),
	}
	for _, connections := range cm.factions {
		stats.Authenticated += len(connections)
	}
	stats.TotalConnections = stats.Authenticated + stats.Anonymous
	return stats
}

// CloseAll sends a going-away close frame to every connection.
// The read pumps then fail and clean up through the Hub.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for conn := range cm.anonymous {
		all = append(all, conn)
	}
	for _, connections := range cm.factions {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	deadline := time.Now().Add(cm.config.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range all {
		if conn.Conn == nil {
			continue
		}
		conn.Conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Conn.Close()
	}
	log.Info().Int("connections", len(all)).Msg("closed all WebSocket connections")
}
