// Package events publishes committed signup changes for consumers outside the process
// (bots, audit sinks). Socket fan-out never goes through here.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Action is what happened to a batch of signups
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
)

// SignupChange describes one committed signup batch
type SignupChange struct {
	Action     Action      `json:"action"`
	WatcherID  int64       `json:"watcher_id"`
	Slots      []time.Time `json:"slots"`
	UserID     int64       `json:"user_id"`
	FactionID  int64       `json:"faction_id"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher is an interface that defines our publisher.
type Publisher interface {
	PublishSignupChange(ctx context.Context, change SignupChange) error
}

// NoOpPublisher drops every event; used when no NATS URL is configured
type NoOpPublisher struct{}

func (NoOpPublisher) PublishSignupChange(ctx context.Context, change SignupChange) error { return nil }

// Envelope is the wire format published on the bus
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	FactionID int64           `json:"factionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSConfig holds the NATS connection settings
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g. "chainwatch.signups"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS settings
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "chainwatch.signups",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSPublisher publishes signup changes to core NATS
type NATSPublisher struct {
	nc     *nats.Conn
	config NATSConfig
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(config NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("chainwatch"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, config: config}, nil
}

// PublishSignupChange publishes change on <prefix>.<faction>.<action>
func (p *NATSPublisher) PublishSignupChange(ctx context.Context, change SignupChange) error {
	subject := Subject(p.config.SubjectPrefix, change)
	data, err := NewEnvelope(change)
	if err != nil {
		return err
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Int("size", len(data)).
		Msg("published signup change")
	return nil
}

// Connected reports whether the NATS connection is up
func (p *NATSPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
		p.nc.Close()
	}
}

// Subject builds the subject a change is published on
func Subject(prefix string, change SignupChange) string {
	return fmt.Sprintf("%s.%d.%s", prefix, change.FactionID, change.Action)
}

// NewEnvelope wraps a change in the bus envelope
func NewEnvelope(change SignupChange) ([]byte, error) {
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signup change: %w", err)
	}

	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: "Signups" + titleAction(change.Action),
		FactionID: change.FactionID,
		Timestamp: change.OccurredAt,
		Payload:   payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

func titleAction(a Action) string {
	switch a {
	case ActionAdded:
		return "Added"
	case ActionRemoved:
		return "Removed"
	default:
		return string(a)
	}
}
