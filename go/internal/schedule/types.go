package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

// SlotDuration is the length of one watch slot
const SlotDuration = 15 * time.Minute

// SlotKeyLayout formats slot starts the way browsers' toISOString does,
// so clients can look slots up by the keys they generate themselves.
const SlotKeyLayout = "2006-01-02T15:04:05.000Z"

// SlotKey returns the wire key for a slot start
func SlotKey(t time.Time) string {
	return t.UTC().Format(SlotKeyLayout)
}

// Store is the persistence contract for watchers and signups.
// AddSignups and RemoveSignups apply their batch atomically.
type Store interface {
	ListWatchers(ctx context.Context) ([]models.Watcher, error)
	CreateWatcher(ctx context.Context, name string) (*models.Watcher, error)
	AddSignups(ctx context.Context, watcherID int64, slots []time.Time) error
	RemoveSignups(ctx context.Context, watcherID int64, slots []time.Time) error
	GetSchedule(ctx context.Context, from, to time.Time) (Window, error)
}

// WatcherRef is a watcher as listed under a slot
type WatcherRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Slot is one signed-up slot and its watchers ordered by name
type Slot struct {
	Start    time.Time
	Watchers []WatcherRef
}

// Window is a read-only view of the schedule over [from, to), ordered by slot start.
// Only slots with at least one signup are present.
type Window []Slot

// Lookup returns the watchers signed up for the slot starting at t
func (w Window) Lookup(t time.Time) []WatcherRef {
	for _, slot := range w {
		if slot.Start.Equal(t) {
			return slot.Watchers
		}
	}
	return nil
}

// MarshalJSON encodes the window as an object keyed by slot key, in slot order
func (w Window) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, slot := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(SlotKey(slot.Start))
		if err != nil {
			return nil, err
		}
		watchers := slot.Watchers
		if watchers == nil {
			watchers = []WatcherRef{}
		}
		value, err := json.Marshal(watchers)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SignupRequest is the body of POST and DELETE /api/signups
type SignupRequest struct {
	WatcherID int64       `json:"watcherId"`
	Slots     []time.Time `json:"slots"`
}

// ScheduleResponse wraps a window for the HTTP and socket payloads
type ScheduleResponse struct {
	Slots Window `json:"slots"`
}
