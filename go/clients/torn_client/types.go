package torn_client

import (
	"fmt"

	"github.com/mcdev12/chainwatch/go/clients"
)

// APIError is an error reported by the game API itself, inside a 200 response
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("torn api error %d: %s", e.Code, e.Message)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Profile is the part of the user profile used for signup
type Profile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FactionID int64  `json:"faction_id"`
}

type profileResponse struct {
	Profile *Profile `json:"profile"`
}

// Chain is the faction's current chain
type Chain struct {
	Current  int     `json:"current"`
	Max      int     `json:"max"`
	Timeout  int     `json:"timeout"`
	Modifier float64 `json:"modifier"`
	Cooldown int     `json:"cooldown"`
	Start    int64   `json:"start"`
	End      int64   `json:"end"`
}

type chainResponse struct {
	Chain *Chain `json:"chain"`
}

// Energy is the user's energy bar
type Energy struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

type barsResponse struct {
	Bars struct {
		Energy *struct {
			Current int `json:"current"`
			Maximum int `json:"maximum"`
		} `json:"energy"`
	} `json:"bars"`
}

// ErrUpstream is returned when the game API cannot be reached or answers garbage
var ErrUpstream = clients.ErrUpstream
