package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/chainwatch/go/clients/torn_client"
	"github.com/mcdev12/chainwatch/go/internal/chain"
	"github.com/mcdev12/chainwatch/go/internal/config"
	"github.com/mcdev12/chainwatch/go/internal/events"
	"github.com/mcdev12/chainwatch/go/internal/gateway"
	"github.com/mcdev12/chainwatch/go/internal/health"
	"github.com/mcdev12/chainwatch/go/internal/metrics"
	"github.com/mcdev12/chainwatch/go/internal/middleware"
	"github.com/mcdev12/chainwatch/go/internal/schedule"
	"github.com/mcdev12/chainwatch/go/internal/users"
)

type Services struct {
	Users    *users.Service
	Schedule *schedule.Service
	Chain    *chain.Service
	Gateway  *gateway.Service
	Health   *health.Checker

	Sessions      middleware.SessionLookup
	Activity      *middleware.ActivityTracker
	SignupLimiter *middleware.RateLimiter
	Registry      *prometheus.Registry

	nats *events.NATSPublisher
}

func setupServices(cfg *config.Config, database *sql.DB) (*Services, error) {
	// Store → RollingWindow → Gateway hub → schedule App (hub as notifier) → users App
	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	var (
		store    schedule.Store
		userRepo users.UsersRepository
	)
	if database != nil {
		store = schedule.NewRepository(database)
		userRepo = users.NewRepository(database)
	} else {
		store = schedule.NewMemoryStore()
		userRepo = users.NewMemoryRepository()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	window := schedule.NewRollingWindow(store, clock, schedule.WindowConfig{
		Location: loc,
		Days:     cfg.Schedule.WindowDays,
	})

	services := &Services{
		Activity: middleware.NewActivityTracker(clock),
		Registry: registry,
	}

	var publisher events.Publisher = events.NoOpPublisher{}
	if cfg.NATS.URL != "" {
		natsConfig := events.DefaultNATSConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.SubjectPrefix = cfg.NATS.SubjectPrefix
		nc, err := events.NewNATSPublisher(natsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to set up signup publisher: %w", err)
		}
		log.Info().Str("url", cfg.NATS.URL).Msg("publishing signup changes to NATS")
		services.nats = nc
		publisher = nc
	}

	torn := torn_client.NewTornClient(cfg.Torn.BaseURL)
	torn.SetObserver(collector)

	// Gateway, without a resolver until the users app exists
	wsConfig := gateway.DefaultConnectionConfig()
	if checker := originChecker(cfg.Server.CORSAllowedOrigins); checker != nil {
		wsConfig.CheckOrigin = checker
	}
	resolver := &sessionResolver{}
	services.Gateway = gateway.NewService(wsConfig, window, resolver, collector)

	// Schedule
	scheduleApp := schedule.NewApp(store, services.Gateway.Hub, publisher, clock)
	services.Schedule = schedule.NewService(scheduleApp)

	// Users
	usersApp := users.NewApp(userRepo, torn, scheduleApp, services.Activity)
	resolver.SessionResolver = usersApp
	services.Users = users.NewService(usersApp)
	services.Sessions = usersApp

	// Chain
	services.Chain = chain.NewService(torn)

	perMinute := cfg.Server.SignupRatePerMin
	services.SignupLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Limit(float64(perMinute) / 60.0),
		Burst: perMinute,
	})

	var (
		pinger health.Pinger
		natsUp func() bool
	)
	if database != nil {
		pinger = database
	}
	if services.nats != nil {
		natsUp = services.nats.Connected
	}
	services.Health = health.NewChecker(pinger, natsUp, func() int {
		return services.Gateway.Stats().TotalConnections
	})

	return services, nil
}

// Close stops background work owned by the services
func (s *Services) Close() {
	s.SignupLimiter.Stop()
	if s.nats != nil {
		s.nats.Close()
	}
}

// sessionResolver lets the gateway be built before the users app it resolves through
type sessionResolver struct {
	gateway.SessionResolver
}
