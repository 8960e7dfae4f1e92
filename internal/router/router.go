package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/certify-api/internal/handler/certificate"
	"github.com/jwalitptl/certify-api/internal/handler/health"
	"github.com/jwalitptl/certify-api/internal/handler/notification"
	"github.com/jwalitptl/certify-api/internal/handler/prometheus"
	"github.com/jwalitptl/certify-api/internal/handler/provider"
	"github.com/jwalitptl/certify-api/internal/middleware"
	"github.com/jwalitptl/certify-api/pkg/logger"
)

type Handlers struct {
	Certificate  *certificate.Handler
	Notification *notification.Handler
	Provider     *provider.Handler
	Health       *health.Handler
	Metrics      *prometheus.Handler
}

type RouterConfig struct {
	Mode      string
	Timeout   time.Duration
	RateLimit rate.Limit
	RateBurst int
	// MaxBodyBytes caps request bodies on the authenticated API.
	MaxBodyBytes int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
	log      *logger.Logger
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig, log *logger.Logger) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	if log == nil {
		log = logger.Nop()
	}

	engine := gin.New()
	r := &Router{engine: engine, auth: auth, handlers: handlers, config: config, log: log}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ErrorHandler(),
		middleware.Timeout(config.Timeout),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	return r
}

func (r *Router) Setup() *gin.Engine {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.RateLimit,
		Burst: r.config.RateBurst,
	})

	public := r.engine.Group("/public",
		middleware.CORS(middleware.PublicCORSConfig()),
		limiter.RateLimit(),
	)
	if r.handlers.Certificate != nil {
		r.handlers.Certificate.RegisterPublicRoutes(public)
	}

	api := r.engine.Group("/api/v1",
		r.auth.Authenticate(),
		limiter.RateLimit(),
		middleware.BodyLimit(r.config.MaxBodyBytes),
	)
	if r.handlers.Certificate != nil {
		r.handlers.Certificate.RegisterRoutes(api)
	}
	if r.handlers.Notification != nil {
		r.handlers.Notification.RegisterRoutes(api)
	}
	if r.handlers.Provider != nil {
		r.handlers.Provider.RegisterRoutes(api)
	}
	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
