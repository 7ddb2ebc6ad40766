package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/wager-royale/backend/internal/chain"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/db"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/locks"
	"github.com/wager-royale/backend/internal/repositories"
	"github.com/wager-royale/backend/internal/resultfeed"
	"github.com/wager-royale/backend/internal/scheduler"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		return err
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// Repos
	wagerRepo := repositories.NewWagerRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Feed + chain
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
		return err
	}

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	wagerService := services.NewWagerService(wagerRepo, userRepo, auditRepo, publisher, log)
	resolver := services.NewResolver(wagerRepo, feed, auditRepo, publisher, log)
	dispatcher := services.NewDispatcher(wagerRepo, userRepo, oracle.Client,
		locks.NewRedisLocker(rdb, "lock:"), cfg.SettlementLockTTL, auditRepo, publisher, log)

	queue := scheduler.NewSettlementQueue(dispatcher, cfg.SettlementQueueSize, log)
	sched := scheduler.New(wagerRepo, resolver, wagerService, queue, scheduler.Options{
		Interval:  cfg.ResolveInterval,
		BatchSize: cfg.ResolveBatchSize,
	}, log)

	jobs, err := scheduler.NewJobs(wagerRepo, queue, log)
	if err != nil {
		return err
	}
	if err := jobs.AddSettlementSweep(ctx, cfg.SettlementSweep); err != nil {
		return err
	}
	if err := jobs.AddCatalogWarmup(ctx, catalog, cfg.CardsCacheTTL/2); err != nil {
		return err
	}
	jobs.Start()
	defer func() {
		if err := jobs.Shutdown(); err != nil {
			log.Warn("jobs shutdown failed", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Duration("resolve_interval", cfg.ResolveInterval),
		zap.Int("batch_size", cfg.ResolveBatchSize),
		zap.Duration("settlement_sweep", cfg.SettlementSweep),
		zap.String("chain_mode", cfg.ChainMode),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return queue.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
