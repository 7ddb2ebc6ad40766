package services

import (
	"context"
	"time"

	"github.com/wager-royale/backend/internal/battlelog"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolver decides a wager's outcome from both players' battle logs.
type Resolver struct {
	wagers WagerStore
	feed   BattleFeed
	journal
	now func() time.Time
}

func NewResolver(wagers WagerStore, feed BattleFeed, audit AuditStore, publisher events.Publisher, log *zap.Logger) *Resolver {
	log = log.Named("resolver")
	return &Resolver{
		wagers:  wagers,
		feed:    feed,
		journal: journal{audit: audit, publisher: publisher, log: log},
		now:     time.Now,
	}
}

func (r *Resolver) ResolveByID(ctx context.Context, id int64) (*models.Wager, error) {
	w, err := r.wagers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, w)
}

// Resolve returns the wager after at most one status change. Feed failures
// come back as *ResolutionError with the wager untouched.
func (r *Resolver) Resolve(ctx context.Context, w *models.Wager) (*models.Wager, error) {
	if w.ResolutionNoop() {
		return w, nil
	}

	if w.IsExpiredAt(r.now()) {
		if !w.AwaitsResolution() {
			return w, nil
		}
		return r.expire(ctx, w)
	}

	if !w.AwaitsResolution() || w.TagBValue() == "" {
		return w, nil
	}

	var historyA, historyB []battlelog.Battle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		historyA, err = r.feed.BattleLog(gctx, w.TagA)
		return err
	})
	g.Go(func() error {
		var err error
		historyB, err = r.feed.BattleLog(gctx, w.TagBValue())
		return err
	})
	if err := g.Wait(); err != nil {
		return w, &ResolutionError{WagerID: w.ID, Err: err}
	}

	deadline := w.DeadlineAt
	result, err := battlelog.Match(historyA, historyB, w.TagA, w.TagBValue(), battlelog.Window{
		Start: w.CreatedAt,
		End:   &deadline,
	})
	if err != nil {
		return w, &ResolutionError{WagerID: w.ID, Err: err}
	}
	if result == nil {
		return w, nil
	}

	snapshot, err := battlelog.NewSnapshot(result.Battle, w.TagA, w.TagBValue()).Encode()
	if err != nil {
		return w, &ResolutionError{WagerID: w.ID, Err: err}
	}

	outcome := models.Outcome{
		Status:            models.WagerStatusResolved,
		BattleTime:        result.BattleTime,
		BattleFingerprint: result.Fingerprint,
		WinnerTag:         result.WinnerTag,
		BattleData:        snapshot,
	}
	if result.IsTie {
		outcome.Status = models.WagerStatusRefunded
		outcome.WinnerTag = nil
	}
	return r.apply(ctx, w, outcome)
}

func (r *Resolver) expire(ctx context.Context, w *models.Wager) (*models.Wager, error) {
	oldStatus := w.Status
	if !models.IsValidTransition(oldStatus, models.WagerStatusExpired) {
		return w, invalid("invalid transition from %s to %s", oldStatus, models.WagerStatusExpired)
	}
	if err := r.wagers.UpdateStatus(ctx, w.ID, oldStatus, models.WagerStatusExpired); err != nil {
		return w, storeErr(w.ID, err)
	}

	updated := *w
	updated.Status = models.WagerStatusExpired
	r.log.Info("wager expired", zap.Int64("wager_id", w.ID), zap.String("old_status", oldStatus))
	r.statusChanged(ctx, &updated, oldStatus, nil, models.ActorTypeOracle, map[string]any{"deadline_at": w.DeadlineAt})
	return &updated, nil
}

func (r *Resolver) apply(ctx context.Context, w *models.Wager, o models.Outcome) (*models.Wager, error) {
	oldStatus := w.Status
	if !models.IsValidTransition(oldStatus, o.Status) {
		return w, invalid("invalid transition from %s to %s", oldStatus, o.Status)
	}
	if err := r.wagers.ApplyOutcome(ctx, w.ID, oldStatus, o); err != nil {
		return w, storeErr(w.ID, err)
	}

	updated := *w
	updated.Status = o.Status
	battleTime := o.BattleTime
	fingerprint := o.BattleFingerprint
	updated.BattleTime = &battleTime
	updated.BattleFingerprint = &fingerprint
	updated.WinnerTag = o.WinnerTag
	updated.BattleData = o.BattleData

	fields := []zap.Field{
		zap.Int64("wager_id", w.ID),
		zap.String("new_status", o.Status),
		zap.String("fingerprint", fingerprint),
		zap.Time("battle_time", battleTime),
	}
	if o.WinnerTag != nil {
		fields = append(fields, zap.String("winner_tag", *o.WinnerTag))
	}
	r.log.Info("wager resolved", fields...)

	meta := map[string]any{"battle_fingerprint": fingerprint, "battle_time": battleTime}
	if o.WinnerTag != nil {
		meta["winner_tag"] = *o.WinnerTag
	}
	r.statusChanged(ctx, &updated, oldStatus, nil, models.ActorTypeOracle, meta)
	return &updated, nil
}
