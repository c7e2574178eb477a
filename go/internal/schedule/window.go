package schedule

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// WindowConfig controls the rolling window pushed to sockets
type WindowConfig struct {
	Location *time.Location // day boundaries are computed in this zone
	Days     int            // window length from today's midnight
}

// DefaultWindowConfig is today through two days ahead, in UTC (game time)
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Location: time.UTC, Days: 2}
}

// RollingWindow computes the fixed rolling schedule window from the store
type RollingWindow struct {
	store  Store
	clock  clockwork.Clock
	config WindowConfig
}

// NewRollingWindow creates a rolling window over store
func NewRollingWindow(store Store, clock clockwork.Clock, config WindowConfig) *RollingWindow {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Days <= 0 {
		config.Days = DefaultWindowConfig().Days
	}
	return &RollingWindow{store: store, clock: clock, config: config}
}

// Bounds returns [today's midnight, midnight + Days)
func (w *RollingWindow) Bounds() (time.Time, time.Time) {
	now := w.clock.Now().In(w.config.Location)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, w.config.Location)
	return from, from.AddDate(0, 0, w.config.Days)
}

// CurrentWindow reads the rolling window from the store
func (w *RollingWindow) CurrentWindow(ctx context.Context) (Window, error) {
	from, to := w.Bounds()
	return w.store.GetSchedule(ctx, from, to)
}
