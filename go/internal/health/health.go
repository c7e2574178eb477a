// Package health reports whether the server's backing services are reachable.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/chainwatch/go/internal/httpx"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is the body of /health/ready
type Status struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected *bool    `json:"database_connected,omitempty"`
	NATSConnected     *bool    `json:"nats_connected,omitempty"`
	Connections       int      `json:"connections"`
	Errors            []string `json:"errors"`
}

// Checker checks the optional database and bus plus the live socket count
type Checker struct {
	db          Pinger
	natsUp      func() bool
	connections func() int
	timeout     time.Duration
}

// NewChecker creates a Checker. db and natsUp may be nil when the server runs without them.
func NewChecker(db Pinger, natsUp func() bool, connections func() int) *Checker {
	return &Checker{
		db:          db,
		natsUp:      natsUp,
		connections: connections,
		timeout:     5 * time.Second,
	}
}

// Check runs every check and reports the combined status
func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}

	if h.db != nil {
		ok := true
		if err := h.db.PingContext(ctx); err != nil {
			ok = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &ok
	}

	if h.natsUp != nil {
		ok := h.natsUp()
		if !ok {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &ok
	}

	if h.connections != nil {
		status.Connections = h.connections()
	}

	return status
}

// ServeHTTP answers 200 when healthy and 503 otherwise
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	httpx.JSON(w, code, status)
}
