package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/chain"
	"github.com/wager-royale/backend/internal/http/dto"
	"github.com/wager-royale/backend/internal/middleware"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

type wagerService interface {
	CreateWager(ctx context.Context, creatorID uuid.UUID, in services.CreateWagerInput) (*models.Wager, error)
	GetWager(ctx context.Context, id int64) (*models.Wager, error)
	ListWagers(ctx context.Context, f models.WagerFilter) ([]models.Wager, error)
	RecordDeposit(ctx context.Context, wagerID int64, userID uuid.UUID, role, signature string) (*models.Wager, error)
	Join(ctx context.Context, wagerID int64, userID uuid.UUID, tagB *string) (*models.Wager, error)
}

type WagerHandler struct {
	wagers       wagerService
	escrow       *chain.Escrow
	oraclePubkey string
	log          *zap.Logger
}

// NewWagerHandler; oraclePubkey may be empty when the API runs without the oracle key.
func NewWagerHandler(wagers wagerService, escrow *chain.Escrow, oraclePubkey string, log *zap.Logger) *WagerHandler {
	return &WagerHandler{wagers: wagers, escrow: escrow, oraclePubkey: oraclePubkey, log: log}
}

func (h *WagerHandler) CreateWager(c *fiber.Ctx) error {
	var req dto.CreateWagerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	w, err := h.wagers.CreateWager(c.Context(), middleware.GetUserID(c), services.CreateWagerInput{
		TagA:           req.TagA,
		TagB:           req.TagB,
		AmountLamports: req.AmountLamports,
		DeadlineAt:     req.DeadlineAt,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *WagerHandler) GetWager(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	w, err := h.wagers.GetWager(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *WagerHandler) ListWagers(c *fiber.Ctx) error {
	filter := models.WagerFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		if !models.IsValidWagerStatus(v) {
			return badRequest(c, "invalid status")
		}
		filter.Status = &v
	}
	if c.QueryBool("mine") {
		userID := middleware.GetUserID(c)
		filter.UserID = &userID
	}

	wagers, err := h.wagers.ListWagers(c.Context(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: wagers})
}

func (h *WagerHandler) CreatorDeposit(c *fiber.Ctx) error {
	return h.deposit(c, models.DepositRoleCreator)
}

func (h *WagerHandler) JoinerDeposit(c *fiber.Ctx) error {
	return h.deposit(c, models.DepositRoleJoiner)
}

func (h *WagerHandler) deposit(c *fiber.Ctx, role string) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	var req dto.DepositRequest
	if err := c.BodyParser(&req); err != nil || req.Signature == "" {
		return badRequest(c, "signature is required")
	}

	w, err := h.wagers.RecordDeposit(c.Context(), id, middleware.GetUserID(c), role, req.Signature)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *WagerHandler) JoinWager(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	var req dto.JoinWagerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	w, err := h.wagers.Join(c.Context(), id, middleware.GetUserID(c), req.TagB)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: w})
}

// GetEscrow returns what the client needs to build create/join instructions.
func (h *WagerHandler) GetEscrow(c *fiber.Ctx) error {
	id, ok := wagerIDParam(c)
	if !ok {
		return badRequest(c, "invalid wager id")
	}
	w, err := h.wagers.GetWager(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	addrs, err := h.escrow.Addresses(uint64(w.ID))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.EscrowInfoResponse{
		WagerID:        w.ID,
		ProgramID:      addrs.ProgramID,
		EscrowPDA:      addrs.Escrow,
		EscrowBump:     addrs.EscrowBump,
		VaultPDA:       addrs.Vault,
		VaultBump:      addrs.VaultBump,
		WagerIDSeed:    addrs.WagerIDSeed,
		OraclePubkey:   h.oraclePubkey,
		AmountLamports: w.AmountLamports,
	}})
}
