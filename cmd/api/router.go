package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/atoyama/workmate-api/pkg/middleware"
	"github.com/atoyama/workmate-api/pkg/observability"
)

// SetupRouter configures all routes and the middleware chain.
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	srv := deps.Server
	mux.HandleFunc("POST /v1/users", srv.HandleRegister)
	mux.HandleFunc("POST /v1/users/login", srv.HandleLogin)
	mux.HandleFunc("DELETE /v1/users/{id}", srv.HandleDeleteUser)
	mux.HandleFunc("POST /v1/tasks", srv.HandleCreateTask)
	mux.HandleFunc("POST /v1/tasks/status", srv.HandleUpdateTaskStatus)
	mux.HandleFunc("POST /v1/subscriptions", srv.HandleCheckout)
	mux.HandleFunc("POST /v1/subscriptions/cancel", srv.HandleCancelSubscription)
	mux.HandleFunc("POST /v1/subscriptions/plan", srv.HandleChangePlan)
	mux.HandleFunc("POST /v1/reports", srv.HandleGenerateReport)
	mux.HandleFunc("POST /v1/notifications", srv.HandleSendNotification)
	mux.HandleFunc("POST /v1/suggestions", srv.HandleGenerateSuggestion)
	mux.HandleFunc("POST /v1/suggestions/status", srv.HandleUpdateSuggestionStatus)

	// The webhook authenticates via its signature, not a bearer token.
	mux.HandleFunc("POST /webhooks/stripe", srv.HandleStripeWebhook)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)

	var limiter *rate.Limiter
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
	}

	publicPaths := []string{"/v1/users", "/webhooks/stripe", "/health", "/metrics"}

	var handler http.Handler = mux
	handler = middleware.Auth(jwtSecret, publicPaths...)(handler)
	handler = middleware.Logging(deps.Logger)(handler)
	handler = middleware.Recovery(deps.Logger)(handler)
	handler = middleware.RateLimit(limiter)(handler)
	handler = observability.Metrics(handler)
	handler = middleware.RequestID(handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})

	return corsHandler.Handler(handler)
}
