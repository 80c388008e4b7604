package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wadjakorntonsri/linkshort/pkg/config"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/metrics"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

// Deps are the collaborators the router wires together. Limiter and Metrics may be nil.
type Deps struct {
	Config  *config.Config
	Links   ports.LinkService
	Admin   ports.AdminService
	Auth    ports.AuthService
	Limiter ports.RateLimiter
	Metrics *metrics.Recorder
	Logger  *logging.Logger
}

// NewRouter creates and configures the main application router
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	cfg := d.Config

	links := NewLinkHandler(d.Links, logger)
	admin := NewAdminHandler(d.Admin, logger)
	authHandler := NewAuthHandler(cfg, d.Auth, logger)
	mw := NewMiddleware(d.Auth, d.Limiter, cfg.RateLimitWindow, logger)

	shortenLimit := mw.Limit(RateLimit{Scope: "shorten", Limit: cfg.ShortenRateLimit})
	authLimit := mw.Limit(RateLimit{Scope: "auth", Limit: cfg.AuthRateLimit})
	apiLimit := mw.Limit(RateLimit{Scope: "api", Limit: cfg.APIRateLimit})

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "ok", nil)
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	if authHandler.GoogleEnabled() {
		r.Get("/auth/google/login", authHandler.GoogleLogin)
		r.Get("/auth/google/callback", authHandler.GoogleCallback)
	}
	r.Get("/auth/logout", authHandler.Logout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/register", authHandler.Register)
			r.With(authLimit).Post("/login", authHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAuth)
				r.Get("/profile", authHandler.Profile)
				r.Post("/refresh", authHandler.Refresh)
			})
		})

		r.Route("/urls", func(r chi.Router) {
			r.With(shortenLimit, mw.OptionalAuth).Post("/shorten", links.Shorten)
			r.With(apiLimit).Get("/stats/{code}", links.Stats)
			r.Group(func(r chi.Router) {
				r.Use(apiLimit, mw.RequireAuth)
				r.Get("/my-urls", links.MyURLs)
				r.Get("/analytics/{code}", links.Analytics)
				r.Delete("/{id}", links.Delete)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiLimit, mw.RequireAuth, mw.RequireAdmin)
			r.Get("/stats", admin.Stats)
			r.Get("/analytics", admin.Analytics)
			r.Get("/urls", admin.URLs)
			r.Delete("/urls/{id}", admin.DeleteURL)
			r.Get("/users", admin.Users)
			r.Delete("/users/{id}", admin.DeleteUser)
			r.Get("/export", admin.Export)
		})
	})

	r.Get("/{code}", links.Redirect)

	return r
}
