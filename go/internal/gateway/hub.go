package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/schedule"
)

// ScheduleSource provides the rolling schedule window pushed to sockets
type ScheduleSource interface {
	CurrentWindow(ctx context.Context) (schedule.Window, error)
}

// Hub owns the presence table and weapon cache and applies every socket event.
//
// mu serializes presence and weapon mutations together with the enqueue of the
// broadcast that follows, so all members of a faction observe updates in the same
// order. scheduleMu serializes a schedule read with its push, and with the
// snapshot-then-register step of a new connection. Lock order is scheduleMu,
// mu, then the manager's and each connection's own locks.
type Hub struct {
	mu         sync.Mutex
	scheduleMu sync.Mutex

	presence *PresenceTable
	weapons  *WeaponCache
	manager  *ConnectionManager
	schedule ScheduleSource
	metrics  MetricsCollector
}

var emptyEyeStates = []byte(`{"type":"eye_states","data":{}}`)

// NewHub creates a hub over manager; metrics may be nil
func NewHub(manager *ConnectionManager, source ScheduleSource, metrics MetricsCollector) *Hub {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &Hub{
		presence: NewPresenceTable(),
		weapons:  NewWeaponCache(),
		manager:  manager,
		schedule: source,
		metrics:  metrics,
	}
}

// Open registers c and sends its initial snapshots: schedule, faction presence,
// then the faction's weapons if any. The rest of the faction then receives the
// updated presence snapshot.
func (h *Hub) Open(ctx context.Context, c *Connection) {
	h.scheduleMu.Lock()
	defer h.scheduleMu.Unlock()

	scheduleMsg := h.scheduleMessage(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if scheduleMsg != nil {
		c.enqueue(scheduleMsg)
	}
	h.manager.register(c)
	h.metrics.ConnectionOpened(c.Authenticated())

	if !c.Authenticated() {
		c.enqueue(emptyEyeStates)
		log.Info().Str("connection_id", c.ID).Msg("anonymous WebSocket connection established")
		return
	}

	session := *c.Session
	h.presence.Join(session)

	snapshot, err := encodeMessage(MessageTypeEyeStates, h.presence.Snapshot(session.FactionID))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal eye states")
		return
	}
	c.enqueue(snapshot)

	if data, ok := h.weapons.Get(session.FactionID); ok {
		if msg, err := encodeMessage(MessageTypeWarlordWeapons, data); err == nil {
			c.enqueue(msg)
		}
	}

	h.deliver(h.manager.factionConnections(session.FactionID, c), snapshot, MessageTypeEyeStates)

	log.Info().
		Str("connection_id", c.ID).
		Int64("user_id", session.UserID).
		Int64("faction_id", session.FactionID).
		Msg("WebSocket connection established")
}

// Close unregisters c, drops its user's presence and notifies the faction.
// Safe to call more than once.
func (h *Hub) Close(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.manager.unregister(c) {
		c.closeSend()
		return
	}
	c.closeSend()
	h.metrics.ConnectionClosed(c.Authenticated())

	if !c.Authenticated() {
		log.Debug().Str("connection_id", c.ID).Msg("anonymous connection closed")
		return
	}

	// Any tab closing removes the user, even if another tab is still open.
	h.presence.Delete(c.Session.UserID)
	h.broadcastPresenceLocked(c.Session.FactionID)

	log.Info().
		Str("connection_id", c.ID).
		Int64("user_id", c.Session.UserID).
		Int64("faction_id", c.Session.FactionID).
		Msg("connection unregistered")
}

// HandleMessage applies one client frame. Anything malformed is dropped silently.
func (h *Hub) HandleMessage(c *Connection, raw []byte) {
	if !c.Authenticated() {
		h.metrics.MessageDropped(DropAnonymous)
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.metrics.MessageDropped(DropInvalidJSON)
		return
	}
	session := *c.Session

	switch msg.Type {
	case MessageTypeEyeState:
		if !msg.State.Valid() {
			h.metrics.MessageDropped(DropInvalidState)
			return
		}
		h.metrics.MessageReceived(string(msg.Type))

		h.mu.Lock()
		h.presence.SetState(session, msg.State)
		h.broadcastPresenceLocked(session.FactionID)
		h.mu.Unlock()

	case MessageTypeEnergy:
		if msg.Current == nil || msg.Max == nil {
			h.metrics.MessageDropped(DropInvalidData)
			return
		}
		h.metrics.MessageReceived(string(msg.Type))

		h.mu.Lock()
		h.presence.SetEnergy(session, Energy{Current: *msg.Current, Max: *msg.Max})
		h.broadcastPresenceLocked(session.FactionID)
		h.mu.Unlock()

	case MessageTypeWarlordWeapons:
		if !isJSONArray(msg.Data) {
			h.metrics.MessageDropped(DropInvalidData)
			return
		}
		h.metrics.MessageReceived(string(msg.Type))

		h.mu.Lock()
		h.weapons.Replace(session.FactionID, msg.Data)
		h.broadcastWeaponsLocked(session.FactionID, msg.Data)
		h.mu.Unlock()

	default:
		h.metrics.MessageDropped(DropUnknownType)
		log.Debug().
			Str("connection_id", c.ID).
			Str("event_type", string(msg.Type)).
			Msg("ignoring unknown client message")
	}
}

// BroadcastPresence pushes the faction's presence snapshot to all of its connections
func (h *Hub) BroadcastPresence(factionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastPresenceLocked(factionID)
}

// BroadcastWeapons pushes data to all of the faction's connections. The cache is not touched.
func (h *Hub) BroadcastWeapons(factionID int64, data json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastWeaponsLocked(factionID, data)
}

// BroadcastSchedule reads the rolling window and pushes it to the faction's connections
func (h *Hub) BroadcastSchedule(ctx context.Context, factionID int64) {
	h.scheduleMu.Lock()
	defer h.scheduleMu.Unlock()

	msg := h.scheduleMessage(ctx)
	if msg == nil {
		return
	}
	h.deliver(h.manager.factionConnections(factionID, nil), msg, MessageTypeSchedule)
}

// ScheduleChanged is called after a signup batch commits.
// The push outlives a cancelled request but is bounded by the write timeout,
// since socket opens wait on it.
func (h *Hub) ScheduleChanged(ctx context.Context, factionID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.manager.Config().WriteTimeout)
	defer cancel()
	h.BroadcastSchedule(ctx, factionID)
}

// OnlineUsers returns the number of users with a presence entry
func (h *Hub) OnlineUsers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.Len()
}

// scheduleMessage returns the encoded rolling window, or nil when it cannot be read
func (h *Hub) scheduleMessage(ctx context.Context) []byte {
	window, err := h.schedule.CurrentWindow(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read schedule window")
		return nil
	}
	msg, err := encodeMessage(MessageTypeSchedule, schedule.ScheduleResponse{Slots: window})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal schedule")
		return nil
	}
	return msg
}

func (h *Hub) broadcastPresenceLocked(factionID int64) {
	msg, err := encodeMessage(MessageTypeEyeStates, h.presence.Snapshot(factionID))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal eye states")
		return
	}
	h.deliver(h.manager.factionConnections(factionID, nil), msg, MessageTypeEyeStates)
}

func (h *Hub) broadcastWeaponsLocked(factionID int64, data json.RawMessage) {
	msg, err := encodeMessage(MessageTypeWarlordWeapons, data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal warlord weapons")
		return
	}
	h.deliver(h.manager.factionConnections(factionID, nil), msg, MessageTypeWarlordWeapons)
}

// deliver enqueues msg on every target. A connection that cannot take it is
// stale: it is skipped and told to shut down, and its read pump cleans up.
func (h *Hub) deliver(targets []*Connection, msg []byte, msgType MessageType) {
	delivered := 0
	for _, conn := range targets {
		if conn.enqueue(msg) {
			delivered++
			continue
		}
		h.metrics.StaleConnection()
		log.Warn().
			Str("connection_id", conn.ID).
			Str("event_type", string(msgType)).
			Msg("connection send buffer full, closing connection")
		conn.closeSend()
	}
	h.metrics.MessageBroadcast(string(msgType), delivered)
}
