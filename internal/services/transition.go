package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/models"
	"go.uber.org/zap"
)

// journal writes the audit trail and publishes wager events. Both are best effort.
type journal struct {
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func (j journal) statusChanged(ctx context.Context, w *models.Wager, oldStatus string, actorID *uuid.UUID, actorType string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["old_status"] = oldStatus
	meta["new_status"] = w.Status

	action := fmt.Sprintf("wager_status_%s_to_%s", oldStatus, w.Status)
	if err := j.audit.Log(ctx, models.WagerAudit(w.ID, actorType, action, actorID, meta)); err != nil {
		j.log.Warn("audit log failed", zap.Int64("wager_id", w.ID), zap.Error(err))
	}

	j.publish(ctx, events.EventWagerStatusChanged, w, map[string]any{
		"old_status": oldStatus,
		"new_status": w.Status,
	})
}

func (j journal) action(ctx context.Context, w *models.Wager, action string, actorID *uuid.UUID, actorType string, meta map[string]any) {
	if err := j.audit.Log(ctx, models.WagerAudit(w.ID, actorType, action, actorID, meta)); err != nil {
		j.log.Warn("audit log failed", zap.Int64("wager_id", w.ID), zap.Error(err))
	}
}

func (j journal) publish(ctx context.Context, eventType string, w *models.Wager, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["wager_id"] = w.ID
	payload["status"] = w.Status
	payload["creator_id"] = w.CreatorID.String()
	if w.JoinerID != nil {
		payload["joiner_id"] = w.JoinerID.String()
	}
	if err := j.publisher.Publish(ctx, events.StreamWager, events.Event{Type: eventType, Payload: payload}); err != nil {
		j.log.Warn("publish event failed", zap.String("type", eventType), zap.Int64("wager_id", w.ID), zap.Error(err))
	}
}
