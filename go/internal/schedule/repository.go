package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/models"
	"github.com/mcdev12/chainwatch/go/internal/sqlutil"
)

// Repository implements Store on Postgres
type Repository struct {
	db      *sql.DB
	queries *Queries
}

// NewRepository creates a new schedule repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:      db,
		queries: NewQueries(db),
	}
}

var _ Store = (*Repository)(nil)

// ListWatchers returns every watcher ordered by name
func (r *Repository) ListWatchers(ctx context.Context) ([]models.Watcher, error) {
	rows, err := r.queries.ListWatchers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchers: %w", err)
	}

	watchers := make([]models.Watcher, 0, len(rows))
	for _, row := range rows {
		watchers = append(watchers, models.Watcher{ID: row.ID, Name: row.Name})
	}
	return watchers, nil
}

// CreateWatcher inserts a watcher, failing with ErrConflict on a duplicate name
func (r *Repository) CreateWatcher(ctx context.Context, name string) (*models.Watcher, error) {
	row, err := r.queries.CreateWatcher(ctx, name)
	if err != nil {
		if sqlutil.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &models.Watcher{ID: row.ID, Name: row.Name}, nil
}

// AddSignups inserts every slot for the watcher in one transaction; existing pairs are skipped
func (r *Repository) AddSignups(ctx context.Context, watcherID int64, slots []time.Time) error {
	err := sqlutil.Run(ctx, r.db, NewQueries, func(q *Queries) error {
		for _, slot := range slots {
			if err := q.AddSignup(ctx, watcherID, slot.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if sqlutil.IsForeignKeyViolation(err) {
			return ErrWatcherNotFound
		}
		return fmt.Errorf("failed to add signups: %w", err)
	}
	return nil
}

// RemoveSignups deletes every slot for the watcher in one transaction; missing pairs are ignored
func (r *Repository) RemoveSignups(ctx context.Context, watcherID int64, slots []time.Time) error {
	err := sqlutil.Run(ctx, r.db, NewQueries, func(q *Queries) error {
		for _, slot := range slots {
			if err := q.RemoveSignup(ctx, watcherID, slot.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove signups: %w", err)
	}
	return nil
}

// GetSchedule returns the signups in [from, to)
func (r *Repository) GetSchedule(ctx context.Context, from, to time.Time) (Window, error) {
	rows, err := r.queries.GetSchedule(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return rowsToWindow(rows), nil
}

// rowsToWindow groups rows already ordered by slot start then watcher name
func rowsToWindow(rows []scheduleRow) Window {
	var window Window
	for _, row := range rows {
		ref := WatcherRef{ID: row.WatcherID, Name: row.WatcherName}
		n := len(window)
		if n > 0 && window[n-1].Start.Equal(row.SlotStart) {
			window[n-1].Watchers = append(window[n-1].Watchers, ref)
			continue
		}
		window = append(window, Slot{Start: row.SlotStart.UTC(), Watchers: []WatcherRef{ref}})
	}
	return window
}
