package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

// MemoryRepository keeps users in process, for STORE=memory and tests
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*models.User
}

// NewMemoryRepository returns an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[int64]*models.User)}
}

var _ UsersRepository = (*MemoryRepository)(nil)

// CreateUser stores a user; torn id, api key and session token must be unique
func (r *MemoryRepository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.TornID == req.TornID || u.APIKey == req.APIKey || u.SessionToken == req.SessionToken {
			return nil, fmt.Errorf("failed to create user: duplicate torn id, api key or session")
		}
	}

	r.nextID++
	user := &models.User{
		ID:           r.nextID,
		TornID:       req.TornID,
		Username:     req.Username,
		APIKey:       req.APIKey,
		SessionToken: req.SessionToken,
		FactionID:    req.FactionID,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (r *MemoryRepository) GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.APIKey == apiKey })
}

func (r *MemoryRepository) GetUserByTornID(ctx context.Context, tornID int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.TornID == tornID })
}

func (r *MemoryRepository) GetUserBySession(ctx context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.SessionToken == token })
}

// UpdateCredentials rotates key and session for an existing Torn account
func (r *MemoryRepository) UpdateCredentials(ctx context.Context, req UpdateCredentialsRequest) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.TornID != req.TornID {
			continue
		}
		u.APIKey = req.APIKey
		u.Username = req.Username
		u.SessionToken = req.SessionToken
		u.FactionID = req.FactionID
		copied := *u
		return &copied, nil
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) CountUsers(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

func (r *MemoryRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}
