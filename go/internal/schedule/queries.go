package schedule

import (
	"context"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/sqlutil"
)

const listWatchers = `SELECT id, name FROM watchers ORDER BY name`

const createWatcher = `INSERT INTO watchers (name) VALUES ($1) RETURNING id, name`

const addSignup = `
INSERT INTO signups (watcher_id, slot_start) VALUES ($1, $2)
ON CONFLICT (watcher_id, slot_start) DO NOTHING`

const removeSignup = `DELETE FROM signups WHERE watcher_id = $1 AND slot_start = $2`

const getSchedule = `
SELECT s.slot_start, w.id, w.name
FROM signups s
JOIN watchers w ON w.id = s.watcher_id
WHERE s.slot_start >= $1 AND s.slot_start < $2
ORDER BY s.slot_start, w.name`

type watcherRow struct {
	ID   int64
	Name string
}

type scheduleRow struct {
	SlotStart   time.Time
	WatcherID   int64
	WatcherName string
}

// Queries binds the schedule statements to a *sql.DB or *sql.Tx
type Queries struct {
	db sqlutil.DBTX
}

// NewQueries creates Queries over db
func NewQueries(db sqlutil.DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) ListWatchers(ctx context.Context) ([]watcherRow, error) {
	rows, err := q.db.QueryContext(ctx, listWatchers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []watcherRow
	for rows.Next() {
		var i watcherRow
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) CreateWatcher(ctx context.Context, name string) (watcherRow, error) {
	var i watcherRow
	err := q.db.QueryRowContext(ctx, createWatcher, name).Scan(&i.ID, &i.Name)
	return i, err
}

func (q *Queries) AddSignup(ctx context.Context, watcherID int64, slot time.Time) error {
	_, err := q.db.ExecContext(ctx, addSignup, watcherID, slot)
	return err
}

func (q *Queries) RemoveSignup(ctx context.Context, watcherID int64, slot time.Time) error {
	_, err := q.db.ExecContext(ctx, removeSignup, watcherID, slot)
	return err
}

func (q *Queries) GetSchedule(ctx context.Context, from, to time.Time) ([]scheduleRow, error) {
	rows, err := q.db.QueryContext(ctx, getSchedule, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []scheduleRow
	for rows.Next() {
		var i scheduleRow
		if err := rows.Scan(&i.SlotStart, &i.WatcherID, &i.WatcherName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
