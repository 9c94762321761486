package server

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ragdesk/internal/api"
	"github.com/cloo-solutions/ragdesk/internal/api/handlers"
	"github.com/cloo-solutions/ragdesk/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	maxJSONBodyBytes int64 = 1 << 20
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead int64 = 1 << 20
)

type RouterConfig struct {
	Authenticator   middleware.TokenAuthenticator
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	SettingsHandler *handlers.SettingsHandler
	UserHandler     *handlers.UserHandler
	MaxUploadBytes  int64
	// HealthCheck, when set, makes /health report 503 on error.
	HealthCheck func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(r.Context()); err != nil {
				api.Error(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.MaxBodyBytes(maxJSONBodyBytes)).Post("/auth/login", cfg.UserHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(cfg.Authenticator))

			r.Route("/documents", func(r chi.Router) {
				r.With(middleware.MaxBodyBytes(cfg.MaxUploadBytes+multipartOverhead)).Post("/", cfg.DocumentHandler.Upload)
				r.Get("/", cfg.DocumentHandler.List)
				r.Get("/{id}", cfg.DocumentHandler.Get)
				r.Get("/{id}/download", cfg.DocumentHandler.Download)
				r.Delete("/{id}", cfg.DocumentHandler.Delete)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes))

				r.Post("/chat", cfg.ChatHandler.Ask)

				r.Get("/settings", cfg.SettingsHandler.Get)
				r.With(middleware.RequireSuperuser).Put("/settings", cfg.SettingsHandler.Update)

				r.Get("/users/me", cfg.UserHandler.Me)
				r.With(middleware.RequireSuperuser).Get("/users", cfg.UserHandler.List)
				r.With(middleware.RequireSuperuser).Post("/users", cfg.UserHandler.Create)
			})
		})
	})

	return r
}
