package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/wager-royale/backend/internal/chain"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/db"
	"github.com/wager-royale/backend/internal/events"
	apphttp "github.com/wager-royale/backend/internal/http"
	"github.com/wager-royale/backend/internal/http/handlers"
	"github.com/wager-royale/backend/internal/locks"
	"github.com/wager-royale/backend/internal/repositories"
	"github.com/wager-royale/backend/internal/resultfeed"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	wagerRepo := repositories.NewWagerRepo(pool)
	inviteRepo := repositories.NewInviteRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Result feed + chain
	feed := resultfeed.NewClient(resultfeed.Options{
		BaseURL:        cfg.ClashRoyaleBaseURL,
		Token:          cfg.ClashRoyaleToken,
		ConnectTimeout: cfg.FeedConnectTimeout,
		Timeout:        cfg.FeedTimeout,
	}, log)
	catalog := resultfeed.NewCatalog(feed, resultfeed.NewRedisCache(rdb), cfg.CardsCacheTTL, log)

	oracle, err := chain.Open(chain.Settings{
		Mode:           cfg.ChainMode,
		RPCURL:         cfg.SolanaRPCURL,
		ProgramID:      cfg.EscrowProgramID,
		Seeds:          chain.Seeds{Escrow: cfg.EscrowSeedEscrow, Vault: cfg.EscrowSeedVault},
		Keypair:        cfg.OracleKeypair,
		RPCTimeout:     cfg.ChainRPCTimeout,
		ConfirmTimeout: cfg.ChainConfirmTimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to set up chain client", zap.Error(err))
	}

	// Services
	wagerService := services.NewWagerService(wagerRepo, userRepo, auditRepo, publisher, log)
	inviteService := services.NewInviteService(inviteRepo, wagerService, auditRepo, publisher, log)
	userService := services.NewUserService(userRepo)
	resolver := services.NewResolver(wagerRepo, feed, auditRepo, publisher, log)
	dispatcher := services.NewDispatcher(wagerRepo, userRepo, oracle.Client,
		locks.NewRedisLocker(rdb, "lock:"), cfg.SettlementLockTTL, auditRepo, publisher, log)

	// Handlers
	wagerHandler := handlers.NewWagerHandler(wagerService, oracle.Escrow, oracle.Pubkey, log)
	inviteHandler := handlers.NewInviteHandler(inviteService, log)
	userHandler := handlers.NewUserHandler(userService, log)
	oracleHandler := handlers.NewOracleHandler(resolver, dispatcher, wagerService, auditRepo, log)
	metaHandler := handlers.NewMetaHandler(catalog)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to wager events", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, wagerHandler, inviteHandler, userHandler, oracleHandler, metaHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
