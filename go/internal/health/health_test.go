package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestChecker_Healthy(t *testing.T) {
	h := NewChecker(fakePinger{}, func() bool { return true }, func() int { return 3 })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body Status
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Healthy || body.Connections != 3 || body.DatabaseConnected == nil || !*body.DatabaseConnected {
		t.Errorf("body = %+v", body)
	}
}

func TestChecker_Unhealthy(t *testing.T) {
	h := NewChecker(fakePinger{err: errors.New("refused")}, func() bool { return false }, nil)

	status := h.Check(context.Background())
	if status.Healthy {
		t.Fatal("expected unhealthy")
	}
	if len(status.Errors) != 2 {
		t.Errorf("errors = %v, want database and NATS", status.Errors)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestChecker_MemoryModeOmitsBackends(t *testing.T) {
	status := NewChecker(nil, nil, nil).Check(context.Background())
	if !status.Healthy || status.DatabaseConnected != nil || status.NATSConnected != nil {
		t.Errorf("status = %+v, want healthy with no backend fields", status)
	}
}
