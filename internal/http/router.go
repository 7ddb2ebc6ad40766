package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/http/handlers"
	"github.com/wager-royale/backend/internal/middleware"
	"github.com/wager-royale/backend/internal/rbac"
	"go.uber.org/zap"
)

// SetupRouter wires all routes. rdb may be nil, rate limiting is skipped then.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	wagerHandler *handlers.WagerHandler,
	inviteHandler *handlers.InviteHandler,
	userHandler *handlers.UserHandler,
	oracleHandler *handlers.OracleHandler,
	metaHandler *handlers.MetaHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Meta (public, no auth required)
	api.Get("/meta/cards", metaHandler.GetCards)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	if rdb != nil {
		protected.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))
	}

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Put("/me", userHandler.UpdateMe)

	// Wagers
	protected.Post("/wagers", wagerHandler.CreateWager)
	protected.Get("/wagers", wagerHandler.ListWagers)
	protected.Get("/wagers/:id", wagerHandler.GetWager)
	protected.Get("/wagers/:id/escrow", wagerHandler.GetEscrow)
	protected.Post("/wagers/:id/deposits/creator", wagerHandler.CreatorDeposit)
	protected.Post("/wagers/:id/deposits/joiner", wagerHandler.JoinerDeposit)
	protected.Post("/wagers/:id/join", wagerHandler.JoinWager)

	// Invites
	protected.Post("/wagers/:id/invites", inviteHandler.CreateInvite)
	protected.Get("/invites/:token", inviteHandler.GetInvite)
	protected.Post("/invites/:token/accept", inviteHandler.AcceptInvite)
	protected.Post("/invites/:token/revoke", inviteHandler.RevokeInvite)

	// Oracle (operators only)
	oracle := protected.Group("/oracle")
	oracle.Post("/wagers/:id/resolve", middleware.RequirePermission(cfg, rbac.PermResolve), oracleHandler.Resolve)
	oracle.Post("/wagers/:id/settle", middleware.RequirePermission(cfg, rbac.PermSettle), oracleHandler.Settle)
	oracle.Post("/wagers/:id/requeue", middleware.RequirePermission(cfg, rbac.PermRequeue), oracleHandler.Requeue)
	oracle.Post("/wagers/:id/status", middleware.RequirePermission(cfg, rbac.PermForceStatus), oracleHandler.ForceStatus)
	oracle.Get("/wagers/:id/audit", middleware.RequirePermission(cfg, rbac.PermViewAudit), oracleHandler.AuditLog)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
