package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/http/dto"
	"github.com/wager-royale/backend/internal/middleware"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

type userService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in services.UpdateProfileInput) (*models.User, error)
}

type UserHandler struct {
	users userService
	log   *zap.Logger
}

func NewUserHandler(users userService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.users.Get(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	user, err := h.users.UpdateProfile(c.Context(), middleware.GetUserID(c), services.UpdateProfileInput{
		WalletAddress: req.WalletAddress,
		GameTag:       req.GameTag,
		Email:         req.Email,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}
