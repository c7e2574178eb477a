package schedule

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/httpx"
	"github.com/mcdev12/chainwatch/go/internal/middleware"
	"github.com/mcdev12/chainwatch/go/internal/models"
)

// ScheduleApp defines what the service layer needs from the schedule application
type ScheduleApp interface {
	ListWatchers(ctx context.Context) ([]models.Watcher, error)
	CreateWatcher(ctx context.Context, name string) (*models.Watcher, error)
	GetSchedule(ctx context.Context, from, to time.Time) (Window, error)
	AddSignups(ctx context.Context, actor models.Session, req SignupRequest) error
	RemoveSignups(ctx context.Context, actor models.Session, req SignupRequest) error
}

// Service exposes the schedule over HTTP
type Service struct {
	app ScheduleApp
}

// NewService creates a new schedule HTTP service
func NewService(app ScheduleApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes mounts the schedule routes; r must already require a session
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/api/watchers", s.ListWatchers)
	r.Post("/api/watchers", s.CreateWatcher)
	r.Get("/api/schedule", s.GetSchedule)
	r.Post("/api/signups", s.AddSignups)
	r.Delete("/api/signups", s.RemoveSignups)
}

// ListWatchers handles GET /api/watchers
func (s *Service) ListWatchers(w http.ResponseWriter, r *http.Request) {
	watchers, err := s.app.ListWatchers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, watchers)
}

// CreateWatcher handles POST /api/watchers
func (s *Service) CreateWatcher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Name is required")
		return
	}

	watcher, err := s.app.CreateWatcher(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, watcher)
}

// GetSchedule handles GET /api/schedule?from=&to=
func (s *Service) GetSchedule(w http.ResponseWriter, r *http.Request) {
	fromStr, toStr := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		httpx.Error(w, http.StatusBadRequest, "from and to are required")
		return
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return
	}

	window, err := s.app.GetSchedule(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ScheduleResponse{Slots: window})
}

// AddSignups handles POST /api/signups
func (s *Service) AddSignups(w http.ResponseWriter, r *http.Request) {
	s.mutateSignups(w, r, s.app.AddSignups)
}

// RemoveSignups handles DELETE /api/signups
func (s *Service) RemoveSignups(w http.ResponseWriter, r *http.Request) {
	s.mutateSignups(w, r, s.app.RemoveSignups)
}

func (s *Service) mutateSignups(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, models.Session, SignupRequest) error,
) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return
	}

	var req SignupRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "watcherId and slots[] required")
		return
	}

	if err := apply(r.Context(), user.Session(), req); err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeError maps schedule errors to HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPastSlot):
		httpx.Error(w, http.StatusBadRequest, "Cannot sign up for past time slots")
	case errors.Is(err, ErrConflict):
		httpx.Error(w, http.StatusConflict, "Name already exists")
	case errors.Is(err, ErrWatcherNotFound):
		httpx.Error(w, http.StatusNotFound, "Watcher not found")
	default:
		log.Error().Err(err).Msg("schedule request failed")
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
