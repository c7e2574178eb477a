package gateway

import (
	"bytes"
	"encoding/json"
)

// MessageType is the "type" field of every socket message
type MessageType string

const (
	// server -> client
	MessageTypeSchedule       MessageType = "schedule"
	MessageTypeEyeStates      MessageType = "eye_states"
	MessageTypeWarlordWeapons MessageType = "warlord_weapons"

	// client -> server; warlord_weapons is used in both directions
	MessageTypeEyeState MessageType = "eye_state"
	MessageTypeEnergy   MessageType = "energy"
)

// EyeState is a member's live watching status
type EyeState string

const (
	EyeStateNotWatching  EyeState = "not_watching"
	EyeStateWatching     EyeState = "watching"
	EyeStateWatchingIdle EyeState = "watching_idle"
)

// Valid reports whether s is one of the known states
func (s EyeState) Valid() bool {
	switch s {
	case EyeStateNotWatching, EyeStateWatching, EyeStateWatchingIdle:
		return true
	}
	return false
}

// ServerMessage is the envelope for everything pushed to clients
type ServerMessage struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// ClientMessage is the union of every message a client may send
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	State   EyeState        `json:"state,omitempty"`
	Current *float64        `json:"current,omitempty"`
	Max     *float64        `json:"max,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// encodeMessage marshals a server message once for fan-out
func encodeMessage(msgType MessageType, data any) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: msgType, Data: data})
}

// isJSONArray reports whether raw is a JSON array; null and every other value are rejected
func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
