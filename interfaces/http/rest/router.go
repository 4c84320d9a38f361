package rest

import (
	"net/http"
	"time"

	"kynto-backend/application/generation"
	"kynto-backend/interfaces/http/rest/handlers"
	"kynto-backend/interfaces/http/rest/middleware"
	"kynto-backend/pkg/auth"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options controls transport behavior the handlers cannot decide themselves
type Options struct {
	// DisableStreaming forces batch generation, for transports that
	// buffer responses (Lambda behind an API Gateway proxy)
	DisableStreaming bool
	// RatePerMinute is the per-IP budget for the generate endpoint
	RatePerMinute int
	// EnableCORS toggles the browser CORS policy
	EnableCORS bool
}

// Router creates and configures the HTTP router
type Router struct {
	service   *generation.Service
	validator *auth.JWTValidator
	logger    *zap.Logger
	opts      Options
}

// NewRouter creates a new router instance
func NewRouter(service *generation.Service, validator *auth.JWTValidator, logger *zap.Logger, opts Options) *Router {
	return &Router{
		service:   service,
		validator: validator,
		logger:    logger,
		opts:      opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.kynto.app"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	ratePerMinute := rt.opts.RatePerMinute
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	generateLimiter := auth.NewTokenBucketLimiter(ratePerMinute, time.Minute/time.Duration(ratePerMinute))

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		// Generation serves guests; identity is resolved when present
		// and the guest gate is enforced in the handler
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthenticate(rt.validator, rt.logger))
			r.Use(middleware.RateLimit(generateLimiter, rt.logger))

			generateHandler := handlers.NewGenerateHandler(rt.service, rt.logger, rt.opts.DisableStreaming)
			r.Post("/generate", generateHandler.Generate)
		})

		// Saved plans are owner-scoped and require identity
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.validator, rt.logger))

			planHandler := handlers.NewPlanHandler(rt.service, rt.logger)
			r.Get("/plans", planHandler.List)
			r.Delete("/plans", planHandler.Delete)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
