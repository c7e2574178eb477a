package schedule

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/events"
	"github.com/mcdev12/chainwatch/go/internal/models"
)

// Notifier is told about committed signup changes
type Notifier interface {
	ScheduleChanged(ctx context.Context, factionID int64)
}

// App handles schedule business logic
type App struct {
	store     Store
	notifier  Notifier
	publisher events.Publisher
	clock     clockwork.Clock
	policy    *bluemonday.Policy
}

// NewApp creates a new schedule App
func NewApp(store Store, notifier Notifier, publisher events.Publisher, clock clockwork.Clock) *App {
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	return &App{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		clock:     clock,
		policy:    bluemonday.StrictPolicy(),
	}
}

// ListWatchers returns every watcher ordered by name
func (a *App) ListWatchers(ctx context.Context) ([]models.Watcher, error) {
	return a.store.ListWatchers(ctx)
}

// CreateWatcher creates a watcher after trimming and stripping markup from the name
func (a *App) CreateWatcher(ctx context.Context, name string) (*models.Watcher, error) {
	clean := a.CleanName(name)
	if clean == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	watcher, err := a.store.CreateWatcher(ctx, clean)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("watcher_id", watcher.ID).Str("name", watcher.Name).Msg("created watcher")
	return watcher, nil
}

// CleanName trims a watcher name and strips any markup from it.
// Entities escaped by the sanitizer are decoded again so "A & B" stays as typed.
func (a *App) CleanName(name string) string {
	return strings.TrimSpace(html.UnescapeString(a.policy.Sanitize(strings.TrimSpace(name))))
}

// GetSchedule returns the schedule for [from, to)
func (a *App) GetSchedule(ctx context.Context, from, to time.Time) (Window, error) {
	return a.store.GetSchedule(ctx, from, to)
}

// AddSignups signs the watcher up for every slot, then notifies the caller's faction
func (a *App) AddSignups(ctx context.Context, actor models.Session, req SignupRequest) error {
	if err := validateSignupRequest(req); err != nil {
		return err
	}
	if err := a.rejectPastSlots(req.Slots); err != nil {
		return err
	}
	if err := a.store.AddSignups(ctx, req.WatcherID, req.Slots); err != nil {
		return err
	}
	a.committed(ctx, actor, events.ActionAdded, req)
	return nil
}

// RemoveSignups removes the watcher from every slot, then notifies the caller's faction.
// Slots that already started may be removed.
func (a *App) RemoveSignups(ctx context.Context, actor models.Session, req SignupRequest) error {
	if err := validateSignupRequest(req); err != nil {
		return err
	}
	if err := a.store.RemoveSignups(ctx, req.WatcherID, req.Slots); err != nil {
		return err
	}
	a.committed(ctx, actor, events.ActionRemoved, req)
	return nil
}

// committed runs after the store call returned, so readers see the new state
func (a *App) committed(ctx context.Context, actor models.Session, action events.Action, req SignupRequest) {
	log.Info().
		Int64("user_id", actor.UserID).
		Int64("faction_id", actor.FactionID).
		Int64("watcher_id", req.WatcherID).
		Int("slots", len(req.Slots)).
		Str("action", string(action)).
		Msg("signups changed")

	if a.notifier != nil {
		a.notifier.ScheduleChanged(ctx, actor.FactionID)
	}

	change := events.SignupChange{
		Action:     action,
		WatcherID:  req.WatcherID,
		Slots:      req.Slots,
		UserID:     actor.UserID,
		FactionID:  actor.FactionID,
		OccurredAt: a.clock.Now().UTC(),
	}
	if err := a.publisher.PublishSignupChange(ctx, change); err != nil {
		log.Error().Err(err).Int64("watcher_id", req.WatcherID).Msg("failed to publish signup change")
	}
}

// validateSignupRequest checks required fields
func validateSignupRequest(req SignupRequest) error {
	if req.WatcherID <= 0 || len(req.Slots) == 0 {
		return fmt.Errorf("%w: watcherId and slots[] required", ErrInvalidRequest)
	}
	for _, slot := range req.Slots {
		if slot.IsZero() {
			return fmt.Errorf("%w: invalid slot", ErrInvalidRequest)
		}
	}
	return nil
}

func (a *App) rejectPastSlots(slots []time.Time) error {
	now := a.clock.Now()
	for _, slot := range slots {
		if slot.Before(now) {
			return ErrPastSlot
		}
	}
	return nil
}
