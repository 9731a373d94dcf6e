// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pos-ledger/internal/adapters/db"
	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	redis_a "github.com/ammerola/pos-ledger/internal/adapters/redis_adapter"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/internal/notifier"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting pos ledger api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.NewLogger(&logger.LogConfig{
		Level:          cfg.App.LogLevel,
		Format:         cfg.App.LogFormat,
		Output:         "stdout",
		AddSource:      cfg.App.Debug,
		SampleRate:     cfg.App.LogSample,
		Environment:    cfg.App.Environment,
		ServiceName:    cfg.App.Name,
		ServiceVersion: Version,
	})
	slog.SetDefault(slogger)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("log_level", cfg.App.LogLevel),
	)

	ctx := context.Background()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	deps.events.Start(ctx)
	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", slog.String("address", cfg.GetServerAddress()))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}
	}

	// In-flight requests are done; flush the events they produced.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Notifier.DrainTimeout)
	defer drainCancel()
	if err := deps.events.Close(drainCtx); err != nil {
		slogger.Warn("change events not fully delivered",
			slog.String("error", err.Error()),
			slog.Int("pending", deps.events.Stats().Pending))
	}

	slogger.Info("server shutdown complete")
}

// dependencies holds all application dependencies
type dependencies struct {
	database       ports.Database
	redisClient    *redis.Client
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	events         *notifier.Dispatcher
	routes         *handlers.Routes
}

func (d *dependencies) cleanup() {
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

// stores are the persistence ports behind one store driver
type stores struct {
	stock    ports.StockStore
	ledger   ports.LedgerRepository
	products ports.ProductRepository
	reports  ports.ReportRepository
}

func openStores(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on exit")
		store := memory.NewStore(memory.WithLockTimeout(cfg.Ledger.LockTimeout))
		return &stores{stock: store, ledger: store.Ledger(), products: store, reports: store}, nil
	}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database

	if cfg.Database.AutoMigrate {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool := database.Pool()
	return &stores{
		stock:    db.NewStockStore(database, cfg.Ledger.LockTimeout, logger),
		ledger:   db.NewLedgerRepository(pool, logger),
		products: db.NewProductRepository(pool, logger),
		reports:  db.NewReportRepository(pool, logger),
	}, nil
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	st, err := openStores(ctx, cfg, deps, logger)
	if err != nil {
		deps.cleanup()
		return nil, err
	}

	logger.Info("connecting to Redis", slog.String("addr", cfg.Redis.Addr()))
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolTimeout:  cfg.Redis.PoolTimeout,
	})
	deps.redisClient = redisClient
	if err := redisClient.Ping(ctx).Err(); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)

	sinks := []ports.ChangeSink{
		notifier.NewCacheSink(redis_a.NewCacheManager(cache, logger)),
		notifier.NewRedisPublisher(redisClient, cfg.Notifier.Channel),
	}
	if cfg.Notifier.EnableTasks {
		sinks = append(sinks, notifier.NewTaskSink(deps.asynqClient))
	}
	deps.events = notifier.NewDispatcher(notifier.Config{
		Buffer:          cfg.Notifier.Buffer,
		DeliveryTimeout: cfg.Notifier.DeliveryTimeout,
	}, logger, sinks...)

	engine := services.NewLedgerEngine(
		st.stock,
		st.ledger,
		services.NewAuditRecorder(),
		deps.events,
		services.LedgerOptions{UnitTimeout: cfg.Ledger.UnitTimeout},
		logger,
	)
	catalog := services.NewCatalogService(st.products, cache, deps.events, cfg.Redis.TTL, logger)
	reports := services.NewReportService(st.reports, cache, cfg.Reports.CacheTTL, logger)

	deps.routes = &handlers.Routes{
		Ledger:   handlers.NewLedgerHandler(engine, logger),
		Products: handlers.NewProductHandler(catalog, logger),
		Reports:  handlers.NewReportHandler(reports, deps.asynqClient, logger),
		Health:   handlers.NewHealthHandler(deps.database, redisClient, deps.asynqInspector, deps.events, cfg, logger),
		Verifier: middleware.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	deps.routes.Register(mux)

	chain := []middleware.Middleware{
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration),
		middleware.CORS(cfg.Security.AllowedOrigins),
	}
	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}
	chain = append(chain, middleware.Timeout(cfg.Server.RequestTimeout))

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, chain...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")

	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		SourcePath:  cfg.Database.MigrationPath,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}, logger, 3)
}
