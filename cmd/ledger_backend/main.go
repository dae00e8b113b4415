package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	portssvc "github.com/qslv/transaction-engine/internal/core/ports"
	"github.com/qslv/transaction-engine/internal/core/services"
	"github.com/qslv/transaction-engine/internal/handlers"
	"github.com/qslv/transaction-engine/internal/messaging"
	"github.com/qslv/transaction-engine/internal/metrics"
	"github.com/qslv/transaction-engine/internal/middleware"
	"github.com/qslv/transaction-engine/internal/platform/config"
	"github.com/qslv/transaction-engine/internal/repositories/database/pgsql"
	memstore "github.com/qslv/transaction-engine/internal/repositories/memory"
	"github.com/qslv/transaction-engine/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	metrics.Init()

	provider, cleanup, err := buildRepositories(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	broker := messaging.NewBroker(cfg.QueueBuffer)

	ledgerService := services.NewLedgerService(provider.LedgerRepo, provider.AccountRepo)
	reserveFundsService := services.NewReserveFundsService(ledgerService, provider.AccountRepo, provider.OverdraftRepo)
	transferService := services.NewTransferService(ledgerService, provider.AccountRepo, broker, cfg.Topics.TransferRequest, cfg.AITID)
	fulfillmentService := services.NewFulfillmentService(ledgerService, reserveFundsService, broker, cfg.Topics, cfg.AITID, logger)
	fulfillmentService.Register(broker, cfg.QueueWorkers)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())
	r.Use(middleware.HTTPMetrics())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid rate limit format", slog.String("error", err.Error()))
		os.Exit(1)
	}
	r.Use(middleware.RateLimit(limiter.New(limitermemory.NewStore(), rate)))

	handlers.RegisterRoutes(r, cfg, &portssvc.ServiceContainer{
		Ledger:       ledgerService,
		ReserveFunds: reserveFundsService,
		Transfer:     transferService,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
	if err := broker.Close(shutdownCtx); err != nil {
		logger.Error("Broker shutdown failed", slog.String("error", err.Error()))
	}
}

// buildRepositories wires either the Postgres store (with migrations applied)
// or the in-process store for single-node use.
func buildRepositories(cfg *config.Config, logger *slog.Logger) (portssvc.RepositoryProvider, func(), error) {
	if cfg.UseMemoryStore || cfg.DatabaseURL == "" {
		logger.Info("Using in-memory store")
		return memstore.NewRepositoryProvider(memstore.NewStore()), func() {}, nil
	}

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return portssvc.RepositoryProvider{}, nil, err
	}
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		dbPool.Close()
		return portssvc.RepositoryProvider{}, nil, err
	}

	return pgsql.NewRepositoryProvider(dbPool), func() { database.ClosePgxPool(dbPool) }, nil
}

// runMigrations applies all pending "up" migrations from the migrations
// directory over a temporary database/sql connection.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
