package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/chainwatch/go/internal/config"
	"github.com/mcdev12/chainwatch/go/internal/metrics"
	"github.com/mcdev12/chainwatch/go/internal/middleware"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	// Setup CORS middleware
	origins := cfg.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	registerServices(r, services)

	// Add health check endpoint
	setupHealthCheck(r, services)
	r.Handle("/metrics", metrics.Handler(services.Registry))

	// Wrap with CORS
	handler := c.Handler(r)

	return &http.Server{
		Addr:    cfg.Addr(),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(r chi.Router, services *Services) {
	// Sockets authenticate with their own token and must not be wrapped by the request logger
	services.Gateway.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestLogger)

		r.Group(func(r chi.Router) {
			r.Use(services.SignupLimiter.Middleware)
			services.Users.RegisterPublicRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(services.Sessions, services.Activity))
			services.Users.RegisterRoutes(r)
			services.Schedule.RegisterRoutes(r)
			services.Chain.RegisterRoutes(r)
		})
	})
}

func setupHealthCheck(r chi.Router, services *Services) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	r.Handle("/health/ready", services.Health)
}

// originChecker restricts socket upgrades to the configured origins. Nil means allow all.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
