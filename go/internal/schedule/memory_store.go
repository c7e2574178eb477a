package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

type signupKey struct {
	watcherID int64
	slot      int64 // unix nanoseconds
}

// MemoryStore is an in-process Store with the same semantics as Repository.
// Used for local runs without Postgres and as the store in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	watchers map[int64]models.Watcher
	byName   map[string]int64
	signups  map[signupKey]struct{}
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watchers: make(map[int64]models.Watcher),
		byName:   make(map[string]int64),
		signups:  make(map[signupKey]struct{}),
	}
}

var _ Store = (*MemoryStore)(nil)

// ListWatchers returns every watcher ordered by name
func (s *MemoryStore) ListWatchers(ctx context.Context) ([]models.Watcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	watchers := make([]models.Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	sort.Slice(watchers, func(i, j int) bool {
		return watchers[i].Name < watchers[j].Name
	})
	return watchers, nil
}

// CreateWatcher stores a watcher, failing with ErrConflict on a duplicate name
func (s *MemoryStore) CreateWatcher(ctx context.Context, name string) (*models.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return nil, ErrConflict
	}
	s.nextID++
	w := models.Watcher{ID: s.nextID, Name: name}
	s.watchers[w.ID] = w
	s.byName[name] = w.ID
	return &w, nil
}

// AddSignups adds every slot for the watcher; the whole batch fails if the watcher is unknown
func (s *MemoryStore) AddSignups(ctx context.Context, watcherID int64, slots []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watchers[watcherID]; !ok {
		return ErrWatcherNotFound
	}
	for _, slot := range slots {
		s.signups[signupKey{watcherID: watcherID, slot: slot.UnixNano()}] = struct{}{}
	}
	return nil
}

// RemoveSignups removes every slot for the watcher; missing pairs are ignored
func (s *MemoryStore) RemoveSignups(ctx context.Context, watcherID int64, slots []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range slots {
		delete(s.signups, signupKey{watcherID: watcherID, slot: slot.UnixNano()})
	}
	return nil
}

// GetSchedule returns the signups in [from, to) ordered by slot then watcher name
func (s *MemoryStore) GetSchedule(ctx context.Context, from, to time.Time) (Window, error) {
	s.mu.RLock()
	rows := make([]scheduleRow, 0)
	lo, hi := from.UnixNano(), to.UnixNano()
	for key := range s.signups {
		if key.slot < lo || key.slot >= hi {
			continue
		}
		w := s.watchers[key.watcherID]
		rows = append(rows, scheduleRow{
			SlotStart:   time.Unix(0, key.slot).UTC(),
			WatcherID:   w.ID,
			WatcherName: w.Name,
		})
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].SlotStart.Equal(rows[j].SlotStart) {
			return rows[i].SlotStart.Before(rows[j].SlotStart)
		}
		return rows[i].WatcherName < rows[j].WatcherName
	})
	return rowsToWindow(rows), nil
}
