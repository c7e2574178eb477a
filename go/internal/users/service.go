package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/clients/torn_client"
	"github.com/mcdev12/chainwatch/go/internal/httpx"
)

// UsersApp defines what the service layer needs from the users application
type UsersApp interface {
	Signup(ctx context.Context, apiKey string) (*SignupResponse, bool, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Service exposes signup and stats over HTTP
type Service struct {
	app UsersApp
}

// NewService creates a new users HTTP service
func NewService(app UsersApp) *Service {
	return &Service{
		app: app,
	}
}

// RegisterPublicRoutes mounts the routes that need no session
func (s *Service) RegisterPublicRoutes(r chi.Router) {
	r.Post("/api/auth/signup", s.Signup)
}

// RegisterRoutes mounts the routes that require a session
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/api/stats", s.Stats)
}

// Signup handles POST /api/auth/signup
func (s *Service) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, ErrInvalidAPIKey.Error())
		return
	}

	resp, created, err := s.app.Signup(r.Context(), req.APIKey)
	if err != nil {
		writeSignupError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, resp)
}

// Stats handles GET /api/stats
func (s *Service) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to read user stats")
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func writeSignupError(w http.ResponseWriter, err error) {
	var apiErr *torn_client.APIError
	switch {
	case errors.Is(err, ErrInvalidAPIKey):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		httpx.Error(w, http.StatusBadRequest, "Torn API error: "+apiErr.Message)
	case errors.Is(err, ErrNoFaction):
		httpx.Error(w, http.StatusForbidden, "Please join a faction in order to use this tool")
	case errors.Is(err, torn_client.ErrUpstream):
		log.Warn().Err(err).Msg("signup could not reach the game API")
		httpx.Error(w, http.StatusBadGateway, "Failed to reach Torn API")
	default:
		log.Error().Err(err).Msg("signup failed")
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
