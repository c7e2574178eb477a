package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

type fakeLookup struct {
	users map[string]*models.User
	err   error
}

func (f fakeLookup) FindUserBySession(ctx context.Context, token string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[token], nil
}

func TestRequireSession(t *testing.T) {
	alice := &models.User{ID: 1, Username: "alice", FactionID: 7}
	lookup := fakeLookup{users: map[string]*models.User{"good": alice}}
	clock := clockwork.NewFakeClock()
	tracker := NewActivityTracker(clock)

	var seen *models.User
	handler := RequireSession(lookup, tracker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	if seen == nil || seen.ID != alice.ID {
		t.Fatalf("handler did not see the authenticated user: %+v", seen)
	}
	if got := tracker.OnlineCount(); got != 1 {
		t.Errorf("OnlineCount = %d, want 1", got)
	}
}

func TestRequireSession_LookupError(t *testing.T) {
	handler := RequireSession(fakeLookup{err: errors.New("db down")}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestActivityTracker_OnlineWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewActivityTracker(clock)

	tracker.Touch(1)
	clock.Advance(3 * time.Minute)
	tracker.Touch(2)

	if got := tracker.OnlineCount(); got != 2 {
		t.Fatalf("OnlineCount = %d, want 2", got)
	}

	clock.Advance(3 * time.Minute)
	if got := tracker.OnlineCount(); got != 1 {
		t.Fatalf("OnlineCount after 6m = %d, want 1", got)
	}

	clock.Advance(10 * time.Minute)
	if got := tracker.OnlineCount(); got != 0 {
		t.Fatalf("OnlineCount after 16m = %d, want 0", got)
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("10.0.0.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := send("10.0.0.1:5678")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}

	if rec := send("10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Errorf("other client limited: status = %d", rec.Code)
	}
	if rl.Len() != 2 {
		t.Errorf("Len = %d, want 2", rl.Len())
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.limiter("10.0.0.1")
	rl.cleanup(time.Now().Add(time.Hour))
	if rl.Len() != 1 {
		t.Fatalf("entry dropped too early")
	}
	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.Len() != 0 {
		t.Fatalf("idle entry kept: Len = %d", rl.Len())
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
