// Package app assembles the certificate service from configuration. The api,
// worker and certctl binaries share it so every process sees the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/certify-api/internal/config"
	"github.com/jwalitptl/certify-api/internal/delivery"
	certHandler "github.com/jwalitptl/certify-api/internal/handler/certificate"
	"github.com/jwalitptl/certify-api/internal/handler/health"
	notificationHandler "github.com/jwalitptl/certify-api/internal/handler/notification"
	promHandler "github.com/jwalitptl/certify-api/internal/handler/prometheus"
	providerHandler "github.com/jwalitptl/certify-api/internal/handler/provider"
	"github.com/jwalitptl/certify-api/internal/middleware"
	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/provider"
	"github.com/jwalitptl/certify-api/internal/provider/postmark"
	"github.com/jwalitptl/certify-api/internal/provider/smtp"
	"github.com/jwalitptl/certify-api/internal/provider/webhook"
	"github.com/jwalitptl/certify-api/internal/render"
	"github.com/jwalitptl/certify-api/internal/repository/postgres"
	"github.com/jwalitptl/certify-api/internal/router"
	certService "github.com/jwalitptl/certify-api/internal/service/certificate"
	"github.com/jwalitptl/certify-api/internal/storage/s3"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/messaging"
	"github.com/jwalitptl/certify-api/pkg/messaging/redis"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

const metricsNamespace = "certify"

// App holds every long-lived component of one process.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Metrics

	DB     *sqlx.DB
	Repos  *postgres.Repositories
	Broker messaging.Broker

	Monitor      *provider.HealthMonitor
	Selector     *provider.Selector
	Renderer     *render.Renderer
	Certificates *certService.Service
	Queue        *delivery.Queue
	Dispatcher   *delivery.Dispatcher
	Worker       *delivery.Worker

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewLogger builds the process logger from the log block.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

// New connects to the database and the queue and wires the domain
// components. Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config:     cfg,
		Log:        log,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	a.Metrics = metrics.NewMetrics(metricsNamespace, a.registerer)

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Repos = postgres.NewRepositories(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		log.Info("database migrations applied")
	}

	if a.Broker, err = newBroker(cfg.Redis, log); err != nil {
		a.Close()
		return nil, err
	}

	a.Monitor = provider.NewHealthMonitor(provider.MonitorConfig{
		Period:       cfg.Providers.HealthPeriod,
		ProbeTimeout: cfg.Providers.ProbeTimeout,
	}, a.Metrics, log)
	a.Monitor.OnUnhealthy(func(h model.ProviderHealth) {
		log.Warn("delivery provider reported unhealthy", "provider", h.ProviderID, "error", h.LastError)
	})

	adapters := make([]provider.Adapter, 0, len(cfg.Providers.Order))
	for _, id := range cfg.Providers.Order {
		backend, err := newBackend(id, cfg.Providers)
		if err != nil {
			// an unconfigured backend stays out of the chain
			log.Warn("delivery provider disabled", "provider", id, "reason", err.Error())
			continue
		}
		adapters = append(adapters, provider.NewTenantAdapter(backend, a.Repos.Organizations, a.Monitor))
	}
	a.Selector = provider.NewSelector(adapters, a.Metrics, log)

	var converter render.Converter
	if cfg.Render.Endpoint != "" {
		converter = render.NewHTTPConverter(render.HTTPConverterConfig{
			Endpoint:    cfg.Render.Endpoint,
			Username:    cfg.Render.Username,
			Password:    cfg.Render.Password,
			Timeout:     cfg.Render.Timeout,
			MaxFailures: cfg.Render.MaxFailures,
			OpenTimeout: cfg.Render.OpenTimeout,
		}, nil)
	} else {
		log.Warn("render endpoint not configured, pdf output unavailable")
	}
	if a.Renderer, err = render.NewRenderer(render.Config{PublicBaseURL: cfg.Render.PublicBaseURL}, converter, a.Metrics, log); err != nil {
		a.Close()
		return nil, err
	}

	var archive delivery.Archive
	if cfg.S3.Bucket != "" {
		store, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		archive = store
	}

	a.Queue = delivery.NewQueue(a.Broker, cfg.Delivery.Topic, a.Metrics)
	a.Certificates = certService.NewService(
		a.Repos.Certificates,
		a.Repos.Events,
		a.Repos.Organizations,
		a.Repos.Profiles,
		a.Queue,
		a.Metrics,
		log,
	)
	a.Dispatcher = delivery.NewDispatcher(
		a.Repos.Certificates,
		a.Repos.Deliveries,
		a.Selector,
		a.Renderer,
		archive,
		delivery.Config{
			AttachPDF:   cfg.Delivery.AttachPDF,
			Subject:     cfg.Delivery.Subject,
			SendTimeout: cfg.Delivery.SendTimeout,
		},
		a.Metrics,
		log,
	)
	a.Worker = delivery.NewWorker(a.Broker, a.Dispatcher, delivery.WorkerConfig{
		Topic:         cfg.Delivery.Topic,
		RetryAttempts: cfg.Delivery.RetryAttempts,
		RetryDelay:    cfg.Delivery.RetryDelay,
	}, log)

	return a, nil
}

func newBroker(cfg config.RedisConfig, log *logger.Logger) (messaging.Broker, error) {
	if cfg.URL == "" {
		log.Info("redis not configured, using in-process delivery queue")
		return messaging.NewMemoryBroker(1024), nil
	}
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     cfg.PoolSize,
		KeyPrefix:    cfg.KeyPrefix,
	}, &log.ZL)
	if err != nil {
		return nil, err
	}
	return broker, nil
}

func newBackend(id string, cfg config.ProvidersConfig) (provider.Backend, error) {
	switch id {
	case postmark.ID:
		return postmark.New(postmark.Config{
			ServerToken:  cfg.Postmark.ServerToken,
			AccountToken: cfg.Postmark.AccountToken,
			From:         cfg.Postmark.From,
			Stream:       cfg.Postmark.Stream,
		})
	case smtp.ID:
		return smtp.New(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	case webhook.ID:
		return webhook.New(webhook.Config{
			URL:     cfg.Webhook.URL,
			Secret:  cfg.Webhook.Secret,
			Timeout: cfg.Webhook.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown provider %q", id)
}

// Router builds the HTTP surface over the wired components.
func (a *App) Router() *router.Router {
	metricsHandler := promHandler.New(a.registerer, a.gatherer)
	handlers := router.Handlers{
		Certificate:  certHandler.NewHandler(a.Certificates, a.Renderer),
		Notification: notificationHandler.NewHandler(a.Dispatcher),
		Provider:     providerHandler.NewHandler(a.Selector),
		Health:       a.HealthHandler(),
		Metrics:      metricsHandler,
	}
	auth := middleware.NewAuthMiddleware(a.Config.JWT.Secret, a.Config.JWT.Issuer)

	r := router.NewRouter(auth, handlers, router.RouterConfig{
		Mode:      a.Config.Server.Mode,
		Timeout:   time.Duration(a.Config.Server.TimeoutSeconds) * time.Second,
		RateLimit: rate.Limit(a.Config.RateLimit.RequestsPerSecond),
		RateBurst: a.Config.RateLimit.Burst,
	}, a.Log)
	r.Setup()
	return r
}

// HealthHandler reports database readiness and the provider health snapshot.
func (a *App) HealthHandler() *health.Handler {
	return health.NewHandler(a.DB, a.Monitor)
}

// StatusEngine serves health probes and metrics for processes that do not
// mount the API.
func (a *App) StatusEngine() *gin.Engine {
	if a.Config.Server.Mode != "" {
		gin.SetMode(a.Config.Server.Mode)
	}
	engine := gin.New()
	engine.Use(middleware.Recovery(a.Log))
	a.HealthHandler().RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	return engine
}

// Close releases the queue and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.Broker != nil {
		errs = append(errs, a.Broker.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
