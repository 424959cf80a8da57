package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/haggle-backend/api/controllers"
	"github.com/angelmondragon/haggle-backend/api/middleware"
	"github.com/angelmondragon/haggle-backend/internal/install"
	"github.com/angelmondragon/haggle-backend/internal/negotiation"
	"github.com/angelmondragon/haggle-backend/pkg/config"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
	"github.com/angelmondragon/haggle-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient may be nil, which disables rate
// limiting and the Redis readiness check. A nil metricsHandler serves the default
// Prometheus registry.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	negotiationService negotiation.Service,
	installService install.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	negotiatePolicy := middleware.NewRateLimitPolicy("negotiate", cfg.RateLimit.Window, cfg.RateLimit.PerIP)
	negotiateLimit := func(next http.Handler) http.Handler { return next }
	var readiness map[string]controllers.Pinger
	if redisClient != nil {
		negotiateLimit = middleware.RateLimit(negotiatePolicy, redisClient, logg)
		readiness = map[string]controllers.Pinger{"redis": redisClient}
	}

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, readiness, logg))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.With(negotiateLimit).HandleFunc("/api/haggle", controllers.Negotiate(negotiationService, logg))
	r.Get("/api/auth/callback", controllers.InstallCallback(installService, logg))

	return r
}
