package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/Pinash124/bike-hub-sub000/internal/apiclient"
	"github.com/Pinash124/bike-hub-sub000/internal/auth"
	"github.com/Pinash124/bike-hub-sub000/internal/cart"
	"github.com/Pinash124/bike-hub-sub000/internal/config"
	"github.com/Pinash124/bike-hub-sub000/internal/event"
	handler "github.com/Pinash124/bike-hub-sub000/internal/handler/http"
	"github.com/Pinash124/bike-hub-sub000/internal/session"
	"github.com/Pinash124/bike-hub-sub000/internal/store"
	"github.com/Pinash124/bike-hub-sub000/internal/store/file"
	"github.com/Pinash124/bike-hub-sub000/internal/store/memory"
	redisstore "github.com/Pinash124/bike-hub-sub000/internal/store/redis"
	"github.com/Pinash124/bike-hub-sub000/pkg/health"
	"github.com/Pinash124/bike-hub-sub000/pkg/httpclient"
	pkgkafka "github.com/Pinash124/bike-hub-sub000/pkg/kafka"
	"github.com/Pinash124/bike-hub-sub000/pkg/middleware"
	"github.com/Pinash124/bike-hub-sub000/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
	auth           *auth.Controller
	cart           *cart.Controller
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	// Session store backend.
	backend, err := a.openStore(ctx)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}
	sess := session.New(backend)

	// Marketplace API transport.
	var doer httpclient.Doer = httpclient.New(httpclient.Config{
		Timeout:         cfg.APITimeout,
		MaxConnsPerHost: httpclient.DefaultConfig().MaxConnsPerHost,
	})
	var breaker *httpclient.CircuitBreakerClient
	if cfg.CircuitBreakerEnabled {
		breaker = httpclient.NewCircuitBreakerClient(doer, httpclient.DefaultCircuitBreakerConfig("marketplace-api"), logger)
		doer = breaker
	}
	api := apiclient.New(apiclient.Config{
		BaseURL:          cfg.APIBaseURL,
		SuccessCode:      cfg.APISuccessCode,
		CheckSuccessCode: cfg.APICheckSuccessCode,
	}, doer, sess, logger)

	// Activity events.
	var publisher event.Publisher
	if cfg.EventsEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Controllers.
	a.auth = auth.New(api, sess, eventProducer, logger, auth.Config{
		OTPResendInterval: cfg.OTPResendInterval,
		TokenRefreshSkew:  cfg.TokenRefreshSkew,
	})
	a.cart = cart.New(sess, eventProducer, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	if p, ok := backend.(store.Pinger); ok {
		healthHandler.RegisterCritical("session-store", p.Ping)
	}
	if breaker != nil {
		healthHandler.RegisterNonCritical("backend-api", func(context.Context) error {
			if breaker.State() == gobreaker.StateOpen {
				return errors.New("circuit open")
			}
			return nil
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("event-broker", a.producer.Ping)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(a.auth, a.cart, healthHandler, logger, cors)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.StoreBackend {
	case config.StoreMemory:
		a.logger.Warn("using in-memory session store; sessions are lost on restart")
		return memory.New(), nil
	case config.StoreFile:
		s, err := file.Open(a.cfg.StoreFilePath)
		if err != nil {
			return nil, fmt.Errorf("open session file: %w", err)
		}
		a.logger.Info("session store opened", slog.String("path", a.cfg.StoreFilePath))
		return s, nil
	case config.StoreRedis:
		s, rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:      a.cfg.RedisAddr,
			Password:  a.cfg.RedisPass,
			DB:        a.cfg.RedisDB,
			KeyPrefix: a.cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.RedisAddr),
			slog.Int("db", a.cfg.RedisDB),
		)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
}

// Run restores the session, starts the HTTP server and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	if err := a.auth.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	if err := a.cart.Load(ctx); err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	a.Shutdown()
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
}
