// Package chain proxies the caller's faction chain and energy bar from the game API.
package chain

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/clients/torn_client"
	"github.com/mcdev12/chainwatch/go/internal/httpx"
	"github.com/mcdev12/chainwatch/go/internal/middleware"
)

// GameAPI is the part of the game API client this service uses
type GameAPI interface {
	GetChain(ctx context.Context, apiKey string) (*torn_client.Chain, error)
	GetEnergy(ctx context.Context, apiKey string) (*torn_client.Energy, error)
}

// Service serves /api/chain and /api/energy with the caller's own key
type Service struct {
	api GameAPI
}

// NewService creates a new chain service
func NewService(api GameAPI) *Service {
	return &Service{api: api}
}

// RegisterRoutes mounts the routes; r must already require a session
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/api/chain", s.GetChain)
	r.Get("/api/energy", s.GetEnergy)
}

// GetChain handles GET /api/chain
func (s *Service) GetChain(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return
	}

	chain, err := s.api.GetChain(r.Context(), user.APIKey)
	if err != nil {
		writeUpstreamError(w, err, user.ID)
		return
	}
	httpx.JSON(w, http.StatusOK, chain)
}

// GetEnergy handles GET /api/energy
func (s *Service) GetEnergy(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return
	}

	energy, err := s.api.GetEnergy(r.Context(), user.APIKey)
	if err != nil {
		writeUpstreamError(w, err, user.ID)
		return
	}
	httpx.JSON(w, http.StatusOK, energy)
}

func writeUpstreamError(w http.ResponseWriter, err error, userID int64) {
	var apiErr *torn_client.APIError
	if errors.As(err, &apiErr) {
		log.Warn().Err(err).Int64("user_id", userID).Msg("game API rejected request")
		httpx.Error(w, http.StatusBadGateway, "Torn API error: "+apiErr.Message)
		return
	}
	log.Warn().Err(err).Int64("user_id", userID).Msg("game API request failed")
	httpx.Error(w, http.StatusBadGateway, "Failed to reach Torn API")
}
