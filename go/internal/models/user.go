package models

import (
	"time"
)

// User represents a registered faction member
type User struct {
	ID           int64     `json:"id"`
	TornID       int64     `json:"torn_id"`
	Username     string    `json:"username"`
	APIKey       string    `json:"-"`
	SessionToken string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	FactionID    int64     `json:"faction_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the identity a session token resolves to
type Session struct {
	UserID    int64
	Username  string
	FactionID int64
}

// Session returns the connection identity for the user
func (u *User) Session() Session {
	return Session{
		UserID:    u.ID,
		Username:  u.Username,
		FactionID: u.FactionID,
	}
}
