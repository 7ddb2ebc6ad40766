package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"github.com/wager-royale/backend/internal/auth"
	"github.com/wager-royale/backend/internal/chain"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/db"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/locks"
	"github.com/wager-royale/backend/internal/repositories"
	"github.com/wager-royale/backend/internal/resultfeed"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

// env holds connections shared by one command invocation.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
	rdb  *redis.Client
	bus  *events.Bus
}

func loadConfig(cmd *cli.Command) (*config.Config, *zap.Logger) {
	cfg := config.Load()
	if v := cmd.String("postgres-dsn"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := cmd.String("chain-mode"); v != "" {
		cfg.ChainMode = v
	}

	log, _ := zap.NewProduction()
	if cmd.Bool("verbose") {
		log, _ = zap.NewDevelopment()
	}
	return cfg, log
}

func openEnv(ctx context.Context, cmd *cli.Command, withRedis bool) (*env, error) {
	cfg, log := loadConfig(cmd)
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, 4, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	e := &env{cfg: cfg, log: log, pool: pool}
	if withRedis {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.rdb = rdb
	}
	return e, nil
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	e.pool.Close()
	_ = e.log.Sync()
}

// publisher falls back to an in-process bus without redis; events are then only logged.
func (e *env) publisher() events.Publisher {
	if e.rdb != nil {
		return events.NewRedisPublisher(e.rdb, e.log)
	}
	if e.bus == nil {
		e.bus = events.NewBus()
		_ = e.bus.Subscribe(context.Background(), events.StreamWager, func(ev events.Event) {
			e.log.Info("event not broadcast, redis disabled",
				zap.String("type", ev.Type),
				zap.Any("payload", ev.Payload),
			)
		})
	}
	return e.bus
}

func (e *env) feed() *resultfeed.Client {
	return resultfeed.NewClient(resultfeed.Options{
		BaseURL:        e.cfg.ClashRoyaleBaseURL,
		Token:          e.cfg.ClashRoyaleToken,
		ConnectTimeout: e.cfg.FeedConnectTimeout,
		Timeout:        e.cfg.FeedTimeout,
	}, e.log)
}

func (e *env) oracle() (*chain.Oracle, error) {
	return chain.Open(chain.Settings{
		Mode:           e.cfg.ChainMode,
		RPCURL:         e.cfg.SolanaRPCURL,
		ProgramID:      e.cfg.EscrowProgramID,
		Seeds:          chain.Seeds{Escrow: e.cfg.EscrowSeedEscrow, Vault: e.cfg.EscrowSeedVault},
		Keypair:        e.cfg.OracleKeypair,
		RPCTimeout:     e.cfg.ChainRPCTimeout,
		ConfirmTimeout: e.cfg.ChainConfirmTimeout,
	}, e.log)
}

func (e *env) wagerService() *services.WagerService {
	return services.NewWagerService(
		repositories.NewWagerRepo(e.pool),
		repositories.NewUserRepo(e.pool),
		repositories.NewAuditRepo(e.pool),
		e.publisher(),
		e.log,
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func operatorID(cmd *cli.Command) (*uuid.UUID, error) {
	raw := cmd.String("operator")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --operator: %w", err)
	}
	return &id, nil
}

func runToken(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := services.NewUserService(repositories.NewUserRepo(e.pool)).EnsureUser(ctx, cmd.String("wallet"))
	if err != nil {
		return err
	}

	ttl := cmd.Duration("ttl")
	if ttl <= 0 {
		ttl = e.cfg.JWTExpiration
	}
	token, err := auth.GenerateJWT(e.cfg.JWTSecret, user.ID, user.WalletAddress, ttl)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"user_id":     user.ID,
		"wallet":      user.WalletAddress,
		"token":       token,
		"is_operator": e.cfg.IsOperator(user.ID),
	})
}

func runResolve(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	resolver := services.NewResolver(repositories.NewWagerRepo(e.pool), e.feed(), repositories.NewAuditRepo(e.pool), e.publisher(), e.log)

	w, err := resolver.ResolveByID(ctx, cmd.Int("id"))
	if err != nil {
		return err
	}
	return printJSON(w)
}

func runSettle(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	oracle, err := e.oracle()
	if err != nil {
		return err
	}
	dispatcher := services.NewDispatcher(
		repositories.NewWagerRepo(e.pool),
		repositories.NewUserRepo(e.pool),
		oracle.Client,
		locks.NewRedisLocker(e.rdb, "lock:"),
		e.cfg.SettlementLockTTL,
		repositories.NewAuditRepo(e.pool),
		e.publisher(),
		e.log,
	)

	w, err := dispatcher.SettleByID(ctx, cmd.Int("id"))
	if err != nil {
		return err
	}
	return printJSON(w)
}

func runRequeue(ctx context.Context, cmd *cli.Command) error {
	op, err := operatorID(cmd)
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	w, err := e.wagerService().Requeue(ctx, cmd.Int("id"), op)
	if err != nil {
		return err
	}
	return printJSON(w)
}

func runForceStatus(ctx context.Context, cmd *cli.Command) error {
	op, err := operatorID(cmd)
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	w, err := e.wagerService().ForceStatus(ctx, cmd.Int("id"), cmd.String("status"), op)
	if err != nil {
		return err
	}
	return printJSON(w)
}

func runPending(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	repo := repositories.NewWagerRepo(e.pool)
	limit := int(cmd.Int("limit"))
	resolution, err := repo.ListPendingResolution(ctx, limit)
	if err != nil {
		return err
	}
	settlement, err := repo.ListPendingSettlement(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"pending_resolution": resolution,
		"pending_settlement": settlement,
	})
}

func runOracleInfo(_ context.Context, cmd *cli.Command) error {
	cfg, log := loadConfig(cmd)
	e := &env{cfg: cfg, log: log}
	oracle, err := e.oracle()
	if err != nil {
		return err
	}

	out := map[string]any{
		"chain_mode":    cfg.ChainMode,
		"program_id":    oracle.Escrow.ProgramID.String(),
		"seeds":         oracle.Escrow.Seeds,
		"oracle_pubkey": oracle.Pubkey,
	}
	if id := cmd.Int("id"); id > 0 {
		addrs, err := oracle.Escrow.Addresses(uint64(id))
		if err != nil {
			return err
		}
		out["addresses"] = addrs
	}
	return printJSON(out)
}

// runCards refreshes the card icon catalog. With --local, or when redis is
// unreachable, the result is not shared with the API.
func runCards(ctx context.Context, cmd *cli.Command) error {
	cfg, log := loadConfig(cmd)
	e := &env{cfg: cfg, log: log}
	defer func() { _ = log.Sync() }()

	var cache resultfeed.Cache = resultfeed.NewMemoryCache()
	if !cmd.Bool("local") {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, catalog not shared", zap.Error(err))
		} else {
			defer rdb.Close()
			cache = resultfeed.NewRedisCache(rdb)
		}
	}

	catalog := resultfeed.NewCatalog(e.feed(), cache, cfg.CardsCacheTTL, log)
	icons, err := catalog.Refresh(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"count": len(icons), "icons": icons})
}
