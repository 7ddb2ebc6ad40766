package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/auth"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/http/dto"
	"github.com/wager-royale/backend/internal/rbac"
	"go.uber.org/zap"
)

const CtxUserID = "user_id"

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "missing authorization header")
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return unauthorized(c, "invalid authorization format")
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(CtxUserID, claims.UserID)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: msg, RequestID: GetRequestID(c)})
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

// RequirePermission checks the caller's global role. Operators are the
// users listed in OPERATOR_USER_IDS.
func RequirePermission(cfg *config.Config, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := rbac.RolePlayer
		if cfg.IsOperator(GetUserID(c)) {
			role = rbac.RoleOperator
		}
		if !rbac.HasPermission(role, permission) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "operator access required", RequestID: GetRequestID(c)})
		}
		return c.Next()
	}
}
