package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/wager-royale/backend/internal/http/dto"
)

type iconCatalog interface {
	IconsByID(ctx context.Context) map[int64]string
}

type MetaHandler struct {
	cards iconCatalog
}

func NewMetaHandler(cards iconCatalog) *MetaHandler {
	return &MetaHandler{cards: cards}
}

// GetCards returns card id -> icon url. Empty when the feed is unavailable.
func (h *MetaHandler) GetCards(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CardsResponse{Icons: h.cards.IconsByID(c.Context())}})
}
