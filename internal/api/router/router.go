package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/docs"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/handlers"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/middleware"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/config"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Account      *handlers.AccountHandler
	Stream       *handlers.StreamHandler
	Prompt       *handlers.PromptHandler
	Subscription *handlers.SubscriptionHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Logger must wrap RequestID so the id lands in the log line.
	r.Use(chimiddleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(100, 200)) // 100 req/sec, burst of 200

	// Public routes
	r.Group(func(r chi.Router) {
		// Swagger documentation
		r.Get("/swagger/*", httpSwagger.WrapHandler)

		// Health checks
		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		r.Use(middleware.UserRateLimit(20, 40))

		r.Post("/api/v1/session", h.Account.Session)

		r.Route("/api/v1/me", func(r chi.Router) {
			r.Get("/account", h.Account.Get)
			r.Get("/account/stream", h.Stream.Stream)
			r.Post("/rewards/ad", h.Account.WatchAd)
			r.Post("/rewards/share", h.Account.ShareReward)
			r.Post("/spend", h.Account.Spend)
			r.Get("/transactions", h.Account.Transactions)

			r.Post("/generations", h.Prompt.Generate)
			r.Get("/history", h.Prompt.History)
			r.Delete("/history/{id}", h.Prompt.DeleteHistory)
			r.Get("/favorites", h.Prompt.Favorites)
			r.Post("/favorites", h.Prompt.AddFavorite)
			r.Delete("/favorites/{id}", h.Prompt.DeleteFavorite)

			r.Get("/subscription", h.Subscription.Get)
			r.Get("/entitlement", h.Subscription.Entitlement)
		})
	})

	// Server-to-server routes (payment backend, support tooling)
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyMiddleware(cfg.Auth.InternalAPIKey))

		r.Route("/api/v1/internal", func(r chi.Router) {
			r.Post("/subscriptions/activate", h.Subscription.Activate)
			r.Post("/accounts/{userId}/adjust", h.Account.Adjust)
		})
	})

	return r
}
