package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (userRow, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (userRow, error)
	GetUserByTornID(ctx context.Context, tornID int64) (userRow, error)
	GetUserBySession(ctx context.Context, token string) (userRow, error)
	UpdateCredentials(ctx context.Context, req UpdateCredentialsRequest) (userRow, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Repository implements user data access operations on Postgres
type Repository struct {
	queries Querier
}

// NewRepository creates a new users repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		queries: NewQueries(db),
	}
}

var _ UsersRepository = (*Repository)(nil)

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	row, err := r.queries.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return rowToModel(row), nil
}

// GetUserByAPIKey retrieves a user by game API key
func (r *Repository) GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	row, err := r.queries.GetUserByAPIKey(ctx, apiKey)
	return r.found(row, err, "failed to get user by api key")
}

// GetUserByTornID retrieves a user by game account id
func (r *Repository) GetUserByTornID(ctx context.Context, tornID int64) (*models.User, error) {
	row, err := r.queries.GetUserByTornID(ctx, tornID)
	return r.found(row, err, "failed to get user by torn id")
}

// GetUserBySession retrieves a user by session token
func (r *Repository) GetUserBySession(ctx context.Context, token string) (*models.User, error) {
	row, err := r.queries.GetUserBySession(ctx, token)
	return r.found(row, err, "failed to get user by session")
}

// UpdateCredentials rotates key and session for an existing Torn account
func (r *Repository) UpdateCredentials(ctx context.Context, req UpdateCredentialsRequest) (*models.User, error) {
	row, err := r.queries.UpdateCredentials(ctx, req)
	return r.found(row, err, "failed to update user credentials")
}

// CountUsers returns the number of registered users
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	count, err := r.queries.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *Repository) found(row userRow, err error, msg string) (*models.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return rowToModel(row), nil
}

// rowToModel converts a database user to domain model
func rowToModel(row userRow) *models.User {
	return &models.User{
		ID:           row.ID,
		TornID:       row.TornID,
		Username:     row.Username,
		APIKey:       row.APIKey,
		SessionToken: row.SessionToken,
		IsAdmin:      row.IsAdmin,
		FactionID:    row.FactionID,
		CreatedAt:    row.CreatedAt,
	}
}
