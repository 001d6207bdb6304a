package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopcore/ecommerce-api/internal/api"
	"github.com/shopcore/ecommerce-api/internal/config"
	"github.com/shopcore/ecommerce-api/internal/database"
	"github.com/shopcore/ecommerce-api/internal/logger"
	"github.com/shopcore/ecommerce-api/internal/metrics"
	"github.com/shopcore/ecommerce-api/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, zapLogger)
	defer closeStore()

	// Initialize services
	hasher, err := services.NewBcryptHasher(cfg.Security.BCryptCost)
	if err != nil {
		zapLogger.Fatal("Failed to initialize password hasher", zap.Error(err))
	}
	tokens, err := services.NewTokenService(cfg.JWT.Secret)
	if err != nil {
		zapLogger.Fatal("Failed to initialize token service", zap.Error(err))
	}

	m := metrics.NewWithRuntime()
	authService := services.NewAuthService(store, hasher, tokens, m, zapLogger)

	// Initialize API server
	server := api.NewServer(cfg, zapLogger, authService, tokens, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("Server stopped with error", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

// openStore connects to PostgreSQL when a DSN is configured and falls back
// to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (services.UserStore, func()) {
	if cfg.Database.DSN == "" {
		zapLogger.Warn("DATABASE_DSN not set, using in-memory user store; data is lost on restart")
		return database.NewMemoryUserRepository(), func() {}
	}

	// Initialize database with automigrations enabled
	db, err := database.NewConnection(ctx, cfg.Database, true, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	return database.NewUserRepository(db, zapLogger), db.Close
}
