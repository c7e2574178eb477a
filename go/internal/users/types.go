package users

import (
	"errors"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

var (
	// ErrUserNotFound is returned by repositories when no user matches
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when a session token resolves to nobody
	ErrSessionNotFound = errors.New("invalid session token")
	// ErrInvalidAPIKey is returned for keys of the wrong length
	ErrInvalidAPIKey = errors.New("API key must be 16 characters")
	// ErrNoFaction is returned when the key's owner is not in a faction
	ErrNoFaction = errors.New("please join a faction in order to use this tool")
)

// CreateUserRequest represents the data needed to create a new user
type CreateUserRequest struct {
	TornID       int64
	Username     string
	APIKey       string
	SessionToken string
	FactionID    int64
}

// UpdateCredentialsRequest replaces the key, session and profile data of an existing Torn account
type UpdateCredentialsRequest struct {
	TornID       int64
	Username     string
	APIKey       string
	SessionToken string
	FactionID    int64
}

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	APIKey string `json:"apiKey"`
}

// UserView is the user as returned to the client
type UserView struct {
	ID       int64  `json:"id"`
	TornID   int64  `json:"tornId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// SignupResponse is returned by a successful signup or login
type SignupResponse struct {
	SessionToken string   `json:"sessionToken"`
	User         UserView `json:"user"`
}

// Stats is the body of GET /api/stats
type Stats struct {
	TotalUsers  int64 `json:"totalUsers"`
	OnlineUsers int   `json:"onlineUsers"`
}

func newUserView(u *models.User) UserView {
	return UserView{
		ID:       u.ID,
		TornID:   u.TornID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
	}
}
