package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trendpulse/internal/version"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitEnabled   bool
}

// Router builds the HTTP router: health and metrics at the root, the REST
// surface under /api.
func (a *API) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	if opts.RateLimitEnabled {
		limit := opts.RateLimitPerMinute
		if limit <= 0 {
			limit = 100
		}
		r.Use(httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"service": version.Name,
			"version": version.Version,
			"status":  "running",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Post("/refresh", a.handleRefresh)
			r.Post("/forgot-password", a.handleForgotPassword)
			r.Post("/reset-password", a.handleResetPassword)
			r.Get("/verify-email", a.handleVerifyEmail)
			r.Post("/resend-verification", a.handleResendVerification)

			r.Group(func(r chi.Router) {
				r.Use(a.requireUser)
				r.Post("/logout", a.handleLogout)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(a.requireUser)
			r.Get("/me", a.handleCurrentUser)
			r.Post("/me/avatar", a.handleAvatarUpload)
		})

		r.Route("/trends", func(r chi.Router) {
			r.Use(a.requireUser)
			r.Post("/google", a.handleGoogleTrends)
			r.Post("/youtube", a.handleYouTubeTrends)
			r.Post("/reddit", a.handleRedditTrends)
			r.Post("/exa", a.handleExaTrends)
			r.Post("/twitter", a.handleTwitterTrends)
		})
	})

	return otelhttp.NewHandler(r, version.Name)
}
