package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wager-royale/backend/internal/http/dto"
	"github.com/wager-royale/backend/internal/middleware"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var (
		validation *services.ValidationError
		race       *services.RaceError
		resolution *services.ResolutionError
		settlement *services.SettlementError
	)
	switch {
	case errors.As(err, &validation):
		return fiber.StatusUnprocessableEntity, validation.Msg
	case errors.As(err, &race):
		return fiber.StatusConflict, "wager was modified concurrently, retry"
	case errors.As(err, &resolution):
		return fiber.StatusBadGateway, resolution.Error()
	case errors.As(err, &settlement):
		return fiber.StatusBadGateway, settlement.Error()
	case errors.Is(err, services.ErrSettlementInProgress):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, "not found"
	}
	return fiber.StatusInternalServerError, "internal error"
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status, msg := statusFor(err)
	reqID := middleware.GetRequestID(c)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg, RequestID: reqID})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}

func wagerIDParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
