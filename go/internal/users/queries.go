package users

import (
	"context"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/sqlutil"
)

const userColumns = `id, torn_id, username, api_key, session_token, is_admin, faction_id, created_at`

const createUser = `
INSERT INTO users (torn_id, username, api_key, session_token, faction_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

const getUserByAPIKey = `SELECT ` + userColumns + ` FROM users WHERE api_key = $1`

const getUserByTornID = `SELECT ` + userColumns + ` FROM users WHERE torn_id = $1`

const getUserBySession = `SELECT ` + userColumns + ` FROM users WHERE session_token = $1`

const updateCredentials = `
UPDATE users SET api_key = $2, username = $3, session_token = $4, faction_id = $5
WHERE torn_id = $1
RETURNING ` + userColumns

const countUsers = `SELECT COUNT(*) FROM users`

type userRow struct {
	ID           int64
	TornID       int64
	Username     string
	APIKey       string
	SessionToken string
	IsAdmin      bool
	FactionID    int64
	CreatedAt    time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (userRow, error) {
	var i userRow
	err := row.Scan(
		&i.ID,
		&i.TornID,
		&i.Username,
		&i.APIKey,
		&i.SessionToken,
		&i.IsAdmin,
		&i.FactionID,
		&i.CreatedAt,
	)
	return i, err
}

// Queries binds the user statements to a *sql.DB or *sql.Tx
type Queries struct {
	db sqlutil.DBTX
}

// NewQueries creates Queries over db
func NewQueries(db sqlutil.DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) CreateUser(ctx context.Context, req CreateUserRequest) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx, createUser,
		req.TornID, req.Username, req.APIKey, req.SessionToken, req.FactionID))
}

func (q *Queries) GetUserByAPIKey(ctx context.Context, apiKey string) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByAPIKey, apiKey))
}

func (q *Queries) GetUserByTornID(ctx context.Context, tornID int64) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByTornID, tornID))
}

func (q *Queries) GetUserBySession(ctx context.Context, token string) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserBySession, token))
}

func (q *Queries) UpdateCredentials(ctx context.Context, req UpdateCredentialsRequest) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx, updateCredentials,
		req.TornID, req.APIKey, req.Username, req.SessionToken, req.FactionID))
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&count)
	return count, err
}
