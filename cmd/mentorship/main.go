package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/mentorship_api/internal/app"
	"github.com/Freeeeeet/mentorship_api/internal/config"
	"github.com/Freeeeeet/mentorship_api/internal/controller"
	"github.com/Freeeeeet/mentorship_api/internal/repository"
	"github.com/Freeeeeet/mentorship_api/internal/repository/base"
	"github.com/Freeeeeet/mentorship_api/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Mentorship API stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting mentorship API",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
	)

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator", zap.Error(err))
	}

	// Репозитории
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	transactor := base.NewTransactor(pool)

	// Сервисы
	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	userService := service.NewUserService(userRepo, tokenService, logger)
	bookingService := service.NewBookingService(transactor, sessionRepo, userRepo, logger)

	scheduler := app.NewScheduler(bookingService, cfg.AuditInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	httpController := controller.NewHTTPController(
		userService,
		bookingService,
		pool,
		tokenService,
		cfg.CORSOrigins,
		logger,
	)

	server := app.NewServer(cfg.HTTPAddr, httpController.Handler(), logger)
	return server.Run(ctx)
}
