package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"    // .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/config"
	"github.com/reviewlens/reviewlens/internal/database"
	"github.com/reviewlens/reviewlens/internal/handler"
	"github.com/reviewlens/reviewlens/internal/logging"
	"github.com/reviewlens/reviewlens/internal/queue"
	"github.com/reviewlens/reviewlens/internal/repository"
	"github.com/reviewlens/reviewlens/internal/router"
	"github.com/reviewlens/reviewlens/internal/service"
)

func main() {
	_ = godotenv.Load() // missing .env is fine in production
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and caching disabled")
	}

	// Revocation entries live in Redis when configured and reachable,
	// otherwise in MySQL.
	var revocations service.RevocationStore = repository.NewRevocationRepo(db)
	if cfg.RevocationBackend == "redis" && rdb != nil {
		revocations = repository.NewRedisRevocationStore(rdb, "revoked")
	}

	users := repository.NewUserRepo(db)
	tokens := service.NewTokenService(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, revocations, users, logger)
	tokens.StartPruner(ctx, cfg.PruneInterval)

	auth := service.NewAuthService(users, tokens, cfg.BcryptCost, logger)
	access := service.NewAccessControl(users, tokens, logger)

	var publisher service.UsagePublisher
	if cfg.AMQPURL != "" {
		p := service.NewAMQPUsagePublisher(cfg.AMQPURL, logger)
		defer p.Close()
		publisher = p
		go queue.StartUsageConsumer(ctx, cfg.AMQPURL, logger)
	}
	usage := service.NewUsageRecorder(repository.NewUsageRepo(db), publisher, logger, cfg.UsageBuffer)
	defer usage.Close()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Auth:   handler.NewAuthHandler(auth, logger),
		Admin:  handler.NewAdminHandler(auth, usage, logger),
		Access: access,
		Usage:  usage,
		Rdb:    rdb,
		Log:    logger,
	})

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
