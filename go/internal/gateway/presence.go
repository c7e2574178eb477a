package gateway

import (
	"strconv"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

// Energy is a member's energy bar as last reported by their client
type Energy struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// PresenceEntry is the live state of one connected member
type PresenceEntry struct {
	UserID    int64
	Username  string
	FactionID int64
	State     EyeState
	Energy    *Energy
}

// PresenceView is an entry as serialized in an eye_states payload
type PresenceView struct {
	State    EyeState `json:"state"`
	Username string   `json:"username"`
	Energy   *Energy  `json:"energy"`
}

// PresenceTable holds one entry per connected user.
// It is not safe for concurrent use; the Hub serializes every access.
type PresenceTable struct {
	entries map[int64]*PresenceEntry
}

// NewPresenceTable creates an empty table
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{entries: make(map[int64]*PresenceEntry)}
}

// Join (re)sets the user's entry to not_watching with no energy
func (t *PresenceTable) Join(s models.Session) {
	t.entries[s.UserID] = &PresenceEntry{
		UserID:    s.UserID,
		Username:  s.Username,
		FactionID: s.FactionID,
		State:     EyeStateNotWatching,
	}
}

// SetState updates the state and keeps the energy. A missing entry is recreated.
func (t *PresenceTable) SetState(s models.Session, state EyeState) {
	entry := t.ensure(s)
	entry.State = state
}

// SetEnergy updates the energy and keeps the state. A missing entry is recreated.
func (t *PresenceTable) SetEnergy(s models.Session, energy Energy) {
	entry := t.ensure(s)
	entry.Energy = &energy
}

// Delete removes the user's entry
func (t *PresenceTable) Delete(userID int64) {
	delete(t.entries, userID)
}

// Get returns a copy of the user's entry
func (t *PresenceTable) Get(userID int64) (PresenceEntry, bool) {
	entry, ok := t.entries[userID]
	if !ok {
		return PresenceEntry{}, false
	}
	return *entry, true
}

// Snapshot returns the faction's entries keyed by user id
func (t *PresenceTable) Snapshot(factionID int64) map[string]PresenceView {
	out := make(map[string]PresenceView)
	for _, entry := range t.entries {
		if entry.FactionID != factionID {
			continue
		}
		view := PresenceView{State: entry.State, Username: entry.Username}
		if entry.Energy != nil {
			energy := *entry.Energy
			view.Energy = &energy
		}
		out[strconv.FormatInt(entry.UserID, 10)] = view
	}
	return out
}

// Len returns the number of entries across all factions
func (t *PresenceTable) Len() int {
	return len(t.entries)
}

func (t *PresenceTable) ensure(s models.Session) *PresenceEntry {
	entry, ok := t.entries[s.UserID]
	if !ok {
		entry = &PresenceEntry{
			UserID:    s.UserID,
			Username:  s.Username,
			FactionID: s.FactionID,
			State:     EyeStateNotWatching,
		}
		t.entries[s.UserID] = entry
	}
	return entry
}
