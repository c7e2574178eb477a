package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/chainwatch/go/clients/torn_client"
	"github.com/mcdev12/chainwatch/go/internal/middleware"
	"github.com/mcdev12/chainwatch/go/internal/models"
)

type fakeGameAPI struct {
	keys []string
	err  error
}

func (f *fakeGameAPI) GetChain(ctx context.Context, apiKey string) (*torn_client.Chain, error) {
	f.keys = append(f.keys, apiKey)
	if f.err != nil {
		return nil, f.err
	}
	return &torn_client.Chain{Current: 10, Max: 25, Timeout: 120, Modifier: 1.1, End: 1700000120}, nil
}

func (f *fakeGameAPI) GetEnergy(ctx context.Context, apiKey string) (*torn_client.Energy, error) {
	f.keys = append(f.keys, apiKey)
	if f.err != nil {
		return nil, f.err
	}
	return &torn_client.Energy{Current: 100, Max: 150}, nil
}

func authed(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	user := &models.User{ID: 1, APIKey: "aaaaaaaaaaaaaaaa", FactionID: 7}
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

func TestService_UsesCallerKey(t *testing.T) {
	api := &fakeGameAPI{}
	svc := NewService(api)

	rec := httptest.NewRecorder()
	svc.GetChain(rec, authed(http.MethodGet, "/api/chain"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var chain torn_client.Chain
	if err := json.NewDecoder(rec.Body).Decode(&chain); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if chain.Current != 10 || chain.End != 1700000120 {
		t.Errorf("chain = %+v", chain)
	}

	rec = httptest.NewRecorder()
	svc.GetEnergy(rec, authed(http.MethodGet, "/api/energy"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var energy struct {
		Current int `json:"current"`
		Max     int `json:"max"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&energy)
	if energy.Current != 100 || energy.Max != 150 {
		t.Errorf("energy = %+v", energy)
	}

	for _, key := range api.keys {
		if key != "aaaaaaaaaaaaaaaa" {
			t.Errorf("called with key %q", key)
		}
	}
}

func TestService_UpstreamErrors(t *testing.T) {
	for _, err := range []error{
		torn_client.ErrUpstream,
		&torn_client.APIError{Code: 2, Message: "Incorrect key"},
	} {
		svc := NewService(&fakeGameAPI{err: err})
		rec := httptest.NewRecorder()
		svc.GetChain(rec, authed(http.MethodGet, "/api/chain"))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("%v: status = %d, want 502", err, rec.Code)
		}
	}
}

func TestService_RequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	NewService(&fakeGameAPI{}).GetEnergy(rec, httptest.NewRequest(http.MethodGet, "/api/energy", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}
