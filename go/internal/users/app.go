package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/clients/torn_client"
	"github.com/mcdev12/chainwatch/go/internal/models"
	"github.com/mcdev12/chainwatch/go/internal/schedule"
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
	GetUserByTornID(ctx context.Context, tornID int64) (*models.User, error)
	GetUserBySession(ctx context.Context, token string) (*models.User, error)
	UpdateCredentials(ctx context.Context, req UpdateCredentialsRequest) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ProfileFetcher validates a key against the game API
type ProfileFetcher interface {
	GetProfile(ctx context.Context, apiKey string) (*torn_client.Profile, error)
}

// WatcherCreator creates the watcher that goes with a new user
type WatcherCreator interface {
	CreateWatcher(ctx context.Context, name string) (*models.Watcher, error)
}

// OnlineCounter reports how many users were recently active
type OnlineCounter interface {
	OnlineCount() int
}

// App handles users business logic
type App struct {
	repo     UsersRepository
	profiles ProfileFetcher
	watchers WatcherCreator
	online   OnlineCounter
}

// NewApp creates a new users App
func NewApp(repo UsersRepository, profiles ProfileFetcher, watchers WatcherCreator, online OnlineCounter) *App {
	return &App{
		repo:     repo,
		profiles: profiles,
		watchers: watchers,
		online:   online,
	}
}

// Signup logs a user in with their game API key, registering them on first use.
// The bool result reports whether a new user was created.
func (a *App) Signup(ctx context.Context, apiKey string) (*SignupResponse, bool, error) {
	if len(apiKey) != torn_client.APIKeyLength {
		return nil, false, ErrInvalidAPIKey
	}

	existing, err := a.repo.GetUserByAPIKey(ctx, apiKey)
	if err == nil {
		return &SignupResponse{SessionToken: existing.SessionToken, User: newUserView(existing)}, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	profile, err := a.profiles.GetProfile(ctx, apiKey)
	if err != nil {
		return nil, false, err
	}
	if profile.FactionID == 0 {
		return nil, false, ErrNoFaction
	}

	sessionToken := uuid.New().String()

	// Same account, new key: rotate credentials instead of creating a user
	if _, err := a.repo.GetUserByTornID(ctx, profile.ID); err == nil {
		user, err := a.repo.UpdateCredentials(ctx, UpdateCredentialsRequest{
			TornID:       profile.ID,
			Username:     profile.Name,
			APIKey:       apiKey,
			SessionToken: sessionToken,
			FactionID:    profile.FactionID,
		})
		if err != nil {
			return nil, false, err
		}
		log.Info().Int64("user_id", user.ID).Int64("torn_id", user.TornID).Msg("rotated user credentials")
		return &SignupResponse{SessionToken: sessionToken, User: newUserView(user)}, false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err := a.repo.CreateUser(ctx, CreateUserRequest{
		TornID:       profile.ID,
		Username:     profile.Name,
		APIKey:       apiKey,
		SessionToken: sessionToken,
		FactionID:    profile.FactionID,
	})
	if err != nil {
		return nil, false, err
	}

	// Another user may already own a watcher with this name
	if _, err := a.watchers.CreateWatcher(ctx, user.Username); err != nil && !errors.Is(err, schedule.ErrConflict) {
		return nil, false, fmt.Errorf("failed to create watcher for user: %w", err)
	}

	log.Info().
		Int64("user_id", user.ID).
		Int64("torn_id", user.TornID).
		Int64("faction_id", user.FactionID).
		Msg("created user")
	return &SignupResponse{SessionToken: sessionToken, User: newUserView(user)}, true, nil
}

// FindUserBySession returns the token's user, or nil when the token is unknown
func (a *App) FindUserBySession(ctx context.Context, token string) (*models.User, error) {
	user, err := a.repo.GetUserBySession(ctx, token)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ResolveSession returns the session for a socket token
func (a *App) ResolveSession(ctx context.Context, token string) (*models.Session, error) {
	user, err := a.FindUserBySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	session := user.Session()
	return &session, nil
}

// Stats returns registered and recently active user counts
func (a *App) Stats(ctx context.Context) (*Stats, error) {
	total, err := a.repo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalUsers: total}
	if a.online != nil {
		stats.OnlineUsers = a.online.OnlineCount()
	}
	return stats, nil
}
