package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/http/dto"
	"github.com/wager-royale/backend/internal/middleware"
	"github.com/wager-royale/backend/internal/models"
	"go.uber.org/zap"
)

type inviteService interface {
	Create(ctx context.Context, wagerID int64, inviterID uuid.UUID) (*models.WagerInvite, error)
	Get(ctx context.Context, token string) (*models.WagerInvite, error)
	Accept(ctx context.Context, token string, userID uuid.UUID) (*models.WagerInvite, *models.Wager, error)
	Revoke(ctx context.Context, token string, actorID uuid.UUID) (*models.WagerInvite, error)
}

type InviteHandler struct {
	invites inviteService
	log     *zap.Logger
}

func NewInviteHandler(invites inviteService, log *zap.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, log: log}
}

func (h *InviteHandler) CreateInvite(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	inv, err := h.invites.Create(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InviteHandler) GetInvite(c *fiber.Ctx) error {
	inv, err := h.invites.Get(c.Context(), c.Params("token"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}

func (h *InviteHandler) AcceptInvite(c *fiber.Ctx) error {
	inv, w, err := h.invites.Accept(c.Context(), c.Params("token"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.InviteResponse{Invite: inv, Wager: w}})
}

func (h *InviteHandler) RevokeInvite(c *fiber.Ctx) error {
	inv, err := h.invites.Revoke(c.Context(), c.Params("token"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: inv})
}
