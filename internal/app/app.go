package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/natusdeed/fashion-site-sub000/internal/catalog"
	catalogmem "github.com/natusdeed/fashion-site-sub000/internal/catalog/memory"
	catalogpg "github.com/natusdeed/fashion-site-sub000/internal/catalog/postgres"
	"github.com/natusdeed/fashion-site-sub000/internal/config"
	"github.com/natusdeed/fashion-site-sub000/internal/event"
	handler "github.com/natusdeed/fashion-site-sub000/internal/handler/http"
	"github.com/natusdeed/fashion-site-sub000/internal/session"
	"github.com/natusdeed/fashion-site-sub000/internal/store"
	memstore "github.com/natusdeed/fashion-site-sub000/internal/store/memory"
	redisstore "github.com/natusdeed/fashion-site-sub000/internal/store/redis"
	"github.com/natusdeed/fashion-site-sub000/pkg/database"
	"github.com/natusdeed/fashion-site-sub000/pkg/health"
	pkgkafka "github.com/natusdeed/fashion-site-sub000/pkg/kafka"
	"github.com/natusdeed/fashion-site-sub000/pkg/middleware"
	"github.com/natusdeed/fashion-site-sub000/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "storefront"

const (
	sessionSweepInterval = time.Minute
	slowQueryThreshold   = 200 * time.Millisecond
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	kafka          *pkgkafka.Producer
	events         *event.Producer
	sessions       *session.Manager
	shareLimiter   *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	healthHandler := health.NewHandler()

	// Tracing.
	tcfg := tracing.DefaultConfig(ServiceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Enabled = cfg.OTELEnabled
	shutdown, err := tracing.Setup(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	kv, err := a.initStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	products, err := a.initCatalog(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	var opts []session.Option
	if cfg.KafkaEnabled {
		a.kafka = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.events = event.NewProducer(a.kafka, logger)
		opts = append(opts, session.WithHook(a.events.Hook()))
		healthHandler.RegisterOptional("kafka", a.kafka.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.sessions = session.NewManager(kv, session.Config{
		CartKey:     cfg.CartKey,
		WishlistKey: cfg.WishlistKey,
		Origin:      cfg.PublicOrigin,
		IdleTTL:     cfg.SessionIdleTTL(),
	}, logger, opts...)

	a.shareLimiter = middleware.NewRateLimiter(cfg.ShareRateLimitRPS, cfg.ShareRateLimitBurst, nil, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.AllowCredentials = true

	router := handler.NewRouter(handler.RouterConfig{
		Service:      ServiceName,
		Sessions:     a.sessions,
		Catalog:      products,
		Health:       healthHandler,
		ShareLimiter: a.shareLimiter,
		CORS:         cors,
		Logger:       logger,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

func (a *App) initStore(ctx context.Context, h *health.Handler) (store.KV, error) {
	if a.cfg.StoreBackend == config.StoreMemory {
		kv := memstore.New()
		h.Register("store", kv.Ping)
		a.logger.Warn("using in-memory store, carts and wishlists are lost on restart")
		return kv, nil
	}

	rcfg := database.DefaultRedisConfig()
	rcfg.Addr = a.cfg.RedisAddr
	rcfg.Password = a.cfg.RedisPass
	rcfg.DB = a.cfg.RedisDB
	rdb, err := database.NewRedisClient(ctx, rcfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	h.Register("redis", database.RedisCheck(rdb))
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)
	return redisstore.New(rdb), nil
}

func (a *App) initCatalog(ctx context.Context, h *health.Handler) (catalog.Catalog, error) {
	if a.cfg.CatalogDatabaseURL == "" {
		a.logger.Info("serving built-in catalog")
		return catalogmem.New(catalogmem.Seed()...), nil
	}

	pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(a.cfg.CatalogDatabaseURL), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to catalog database: %w", err)
	}
	a.pool = pool
	h.Register("postgres", pool.Ping)

	if err := database.RunMigrations(ctx, pool, catalogpg.Migrations(), a.logger); err != nil {
		return nil, fmt.Errorf("migrate catalog database: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	database.SetSlowQueryLogging(slowQueryThreshold, a.logger)

	products := catalogpg.New(pool)
	if a.cfg.SeedCatalog {
		for _, p := range catalogmem.Seed() {
			if err := products.Upsert(ctx, p); err != nil {
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
		}
		a.logger.Info("seeded catalog database")
	}
	return products, nil
}

// Run starts the HTTP server and background loops and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	background := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(bgCtx)
		}()
	}

	background(func(ctx context.Context) { a.sessions.Run(ctx, sessionSweepInterval) })
	background(a.shareLimiter.Run)
	if a.events != nil {
		background(a.events.Run)
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

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	a.shutdownHTTP()
	// Sessions are closed after the server drains so no request holds a
	// container that is being torn down; queued events are flushed last.
	a.sessions.Shutdown()
	stopBackground()
	wg.Wait()
	a.closeResources()

	a.logger.Info("application shutdown complete")
	return runErr
}

func (a *App) shutdownHTTP() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
}

func (a *App) closeResources() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
