package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSubject(t *testing.T) {
	change := SignupChange{Action: ActionAdded, FactionID: 7}
	if got := Subject("chainwatch.signups", change); got != "chainwatch.signups.7.added" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	change := SignupChange{
		Action:     ActionRemoved,
		WatcherID:  3,
		Slots:      []time.Time{at},
		UserID:     11,
		FactionID:  7,
		OccurredAt: at,
	}

	data, err := NewEnvelope(change)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		t.Errorf("EventID %q is not a uuid: %v", env.EventID, err)
	}
	if env.EventType != "SignupsRemoved" {
		t.Errorf("EventType = %q, want SignupsRemoved", env.EventType)
	}
	if env.FactionID != 7 || !env.Timestamp.Equal(at) {
		t.Errorf("envelope = %+v", env)
	}

	var payload SignupChange
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.WatcherID != 3 || len(payload.Slots) != 1 || !payload.Slots[0].Equal(at) {
		t.Errorf("payload = %+v", payload)
	}
}

func TestNoOpPublisher(t *testing.T) {
	var p Publisher = NoOpPublisher{}
	if err := p.PublishSignupChange(context.Background(), SignupChange{}); err != nil {
		t.Errorf("NoOpPublisher returned %v", err)
	}
}
