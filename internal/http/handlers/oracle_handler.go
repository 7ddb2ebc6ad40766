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

type resolveService interface {
	ResolveByID(ctx context.Context, id int64) (*models.Wager, error)
}

type settleService interface {
	SettleByID(ctx context.Context, id int64) (*models.Wager, error)
}

type operatorWagerService interface {
	Requeue(ctx context.Context, wagerID int64, operatorID *uuid.UUID) (*models.Wager, error)
	ForceStatus(ctx context.Context, wagerID int64, to string, operatorID *uuid.UUID) (*models.Wager, error)
}

type auditReader interface {
	ListForWager(ctx context.Context, wagerID int64, f models.AuditFilter) ([]models.AuditLog, error)
}

// OracleHandler exposes manual resolution and settlement to operators.
type OracleHandler struct {
	resolver resolveService
	settler  settleService
	wagers   operatorWagerService
	audit    auditReader
	log      *zap.Logger
}

func NewOracleHandler(resolver resolveService, settler settleService, wagers operatorWagerService, audit auditReader, log *zap.Logger) *OracleHandler {
	return &OracleHandler{resolver: resolver, settler: settler, wagers: wagers, audit: audit, log: log}
}

func (h *OracleHandler) Resolve(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	w, err := h.resolver.ResolveByID(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *OracleHandler) Settle(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	w, err := h.settler.SettleByID(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *OracleHandler) Requeue(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	operatorID := middleware.GetUserID(c)
	w, err := h.wagers.Requeue(c.Context(), id, &operatorID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *OracleHandler) ForceStatus(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	var req dto.ForceStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return badRequest(c, "status is required")
	}

	operatorID := middleware.GetUserID(c)
	w, err := h.wagers.ForceStatus(c.Context(), id, req.Status, &operatorID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *OracleHandler) AuditLog(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	f := models.AuditFilter{
		ActorType: c.Query("actor"),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	if f.ActorType != "" && !models.IsValidActorType(f.ActorType) {
		return badRequest(c, "actor must be user, operator or oracle")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	entries, err := h.audit.ListForWager(c.Context(), id, f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
