package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitchallenge/internal/handler"
	"habitchallenge/internal/httputil"
	authmw "habitchallenge/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler      *handler.AuthHandler
	ChallengeHandler *handler.ChallengeHandler
	ProofHandler     *handler.ProofHandler
	MyHandler        *handler.MyHandler
	PushTokenHandler *handler.PushTokenHandler
	MediaHandler     *handler.MediaHandler

	TokenParser authmw.TokenParser
	RateLimiter *authmw.RateLimiter

	// Registry serves /metrics when set.
	Registry    *prometheus.Registry
	MetricsUser string
	MetricsPass string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(authmw.Monitor)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Registry != nil {
		r.With(authmw.BasicAuth(cfg.MetricsUser, cfg.MetricsPass)).
			Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		r.Use(authmw.Authenticate(cfg.TokenParser))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", cfg.AuthHandler.SignUp)
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/refresh", cfg.AuthHandler.Refresh)
			r.Post("/logout", cfg.AuthHandler.Logout)
		})

		r.Get("/challenges", cfg.ChallengeHandler.List)
		r.Get("/challenges/{id}", cfg.ChallengeHandler.GetByID)
		r.Get("/proofs", cfg.ProofHandler.List)
		r.Get("/proofs/{id}", cfg.ProofHandler.GetByID)
		r.Post("/push-tokens", cfg.PushTokenHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(authmw.Require(authmw.Authenticated))

			r.Post("/challenges/{id}/join", cfg.ChallengeHandler.Join)
			r.Post("/proofs", cfg.ProofHandler.Create)
			r.Post("/uploads/image", cfg.MediaHandler.UploadImage)

			r.Route("/my", func(r chi.Router) {
				r.Get("/profile", cfg.MyHandler.Profile)
				r.Get("/challenges", cfg.MyHandler.Challenges)
				r.Get("/proofs", cfg.MyHandler.Proofs)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authmw.Require(authmw.Admin))

			r.Post("/challenges", cfg.ChallengeHandler.Create)
			r.Patch("/challenges/{id}", cfg.ChallengeHandler.Update)
			r.Delete("/challenges/{id}", cfg.ChallengeHandler.Delete)
		})
	})

	return r
}
