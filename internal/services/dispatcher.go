package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wager-royale/backend/internal/battlelog"
	"github.com/wager-royale/backend/internal/chain"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/locks"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	DefaultSettlementLockTTL = 2 * time.Minute

	recordAttempts = 3
	receiptTTL     = 7 * 24 * time.Hour
)

// settlementReceipt is a confirmed instruction whose row update has not
// landed yet. The next dispatch records it instead of calling the chain.
type settlementReceipt struct {
	Status    string `json:"status"`
	Action    string `json:"action"`
	Signature string `json:"signature"`
}

// Dispatcher moves escrowed funds for resolved, tied, and expired wagers.
type Dispatcher struct {
	wagers  WagerStore
	users   UserStore
	chain   chain.Client
	locker  locks.Store
	lockTTL time.Duration
	journal
	now          func() time.Time
	retryBackoff time.Duration
}

func NewDispatcher(
	wagers WagerStore,
	users UserStore,
	chainClient chain.Client,
	locker locks.Store,
	lockTTL time.Duration,
	audit AuditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *Dispatcher {
	if lockTTL <= 0 {
		lockTTL = DefaultSettlementLockTTL
	}
	log = log.Named("dispatcher")
	return &Dispatcher{
		wagers:  wagers,
		users:   users,
		chain:   chainClient,
		locker:  locker,
		lockTTL: lockTTL,
		journal: journal{audit: audit, publisher: publisher, log: log},
		now:          time.Now,
		retryBackoff: 250 * time.Millisecond,
	}
}

func (d *Dispatcher) Settle(ctx context.Context, w *models.Wager) (*models.Wager, error) {
	return d.SettleByID(ctx, w.ID)
}

// SettleByID sends at most one chain instruction per wager. The row is
// reloaded under the lock so a finished settlement is never repeated.
func (d *Dispatcher) SettleByID(ctx context.Context, id int64) (*models.Wager, error) {
	release, err := d.locker.Acquire(ctx, fmt.Sprintf("settle:%d", id), d.lockTTL)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, ErrSettlementInProgress
		}
		return nil, err
	}
	defer release()

	w, err := d.wagers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.IsSettlementTerminal() {
		return w, nil
	}

	if r, ok := d.loadReceipt(ctx, w.ID); ok {
		d.log.Warn("recording settlement from receipt, chain not called",
			zap.Int64("wager_id", w.ID),
			zap.String("action", r.Action),
			zap.String("signature", r.Signature),
		)
		return d.record(ctx, w, r)
	}

	if to, ok := settlementTarget(w.Status); ok && !models.IsValidTransition(w.Status, to) {
		return w, &SettlementError{WagerID: w.ID, Err: fmt.Errorf("invalid transition %s -> %s", w.Status, to)}
	}

	switch w.Status {
	case models.WagerStatusResolved:
		return d.settleResolved(ctx, w)
	case models.WagerStatusRefunded:
		return d.settleTie(ctx, w)
	case models.WagerStatusExpired:
		return d.refundExpired(ctx, w)
	}
	return w, nil
}

func (d *Dispatcher) settleResolved(ctx context.Context, w *models.Wager) (*models.Wager, error) {
	creator, joiner, err := d.wallets(ctx, w, true)
	if err != nil {
		return w, err
	}
	side, err := winnerSide(w)
	if err != nil {
		return w, &SettlementError{WagerID: w.ID, Err: err}
	}

	sig, err := d.chain.Settle(ctx, uint64(w.ID), side, creator, joiner)
	if err != nil {
		return w, &SettlementError{WagerID: w.ID, Err: err}
	}
	return d.record(ctx, w, settlementReceipt{Status: models.WagerStatusSettled, Action: models.OnchainActionSettle, Signature: sig})
}

func (d *Dispatcher) settleTie(ctx context.Context, w *models.Wager) (*models.Wager, error) {
	creator, joiner, err := d.wallets(ctx, w, true)
	if err != nil {
		return w, err
	}

	sig, err := d.chain.Settle(ctx, uint64(w.ID), chain.WinnerTie, creator, joiner)
	if err != nil {
		return w, &SettlementError{WagerID: w.ID, Err: err}
	}
	return d.record(ctx, w, settlementReceipt{Status: models.WagerStatusRefunded, Action: models.OnchainActionSettleTie, Signature: sig})
}

func (d *Dispatcher) refundExpired(ctx context.Context, w *models.Wager) (*models.Wager, error) {
	creator, joiner, err := d.wallets(ctx, w, false)
	if err != nil {
		return w, err
	}
	if joiner == "" {
		joiner = creator
	}

	sig, err := d.chain.Refund(ctx, uint64(w.ID), creator, joiner)
	if err != nil {
		return w, &SettlementError{WagerID: w.ID, Err: err}
	}
	return d.record(ctx, w, settlementReceipt{Status: models.WagerStatusRefunded, Action: models.OnchainActionRefund, Signature: sig})
}

func (d *Dispatcher) wallets(ctx context.Context, w *models.Wager, needJoiner bool) (string, string, error) {
	creator, err := d.users.GetByID(ctx, w.CreatorID)
	if err != nil {
		return "", "", &SettlementError{WagerID: w.ID, Err: fmt.Errorf("load creator: %w", err)}
	}
	if creator.WalletAddress == "" {
		return "", "", &SettlementError{WagerID: w.ID, Err: errors.New("creator wallet missing")}
	}

	if w.JoinerID == nil {
		if needJoiner {
			return "", "", &SettlementError{WagerID: w.ID, Err: errors.New("joiner missing")}
		}
		return creator.WalletAddress, "", nil
	}
	joiner, err := d.users.GetByID(ctx, *w.JoinerID)
	if err != nil {
		return "", "", &SettlementError{WagerID: w.ID, Err: fmt.Errorf("load joiner: %w", err)}
	}
	if joiner.WalletAddress == "" {
		if needJoiner {
			return "", "", &SettlementError{WagerID: w.ID, Err: errors.New("joiner wallet missing")}
		}
		return creator.WalletAddress, "", nil
	}
	return creator.WalletAddress, joiner.WalletAddress, nil
}

func winnerSide(w *models.Wager) (chain.WinnerSide, error) {
	if w.WinnerTag == nil || *w.WinnerTag == "" {
		return 0, errors.New("winner_tag missing")
	}
	winner, err := battlelog.NormalizeTag(*w.WinnerTag)
	if err != nil {
		return 0, err
	}
	if a, err := battlelog.NormalizeTag(w.TagA); err == nil && a == winner {
		return chain.WinnerCreator, nil
	}
	if b, err := battlelog.NormalizeTag(w.TagBValue()); err == nil && b == winner {
		return chain.WinnerJoiner, nil
	}
	return 0, fmt.Errorf("winner_tag %s matches neither tag_a nor tag_b", winner)
}

// settlementTarget is the status each settlement branch writes.
func settlementTarget(status string) (string, bool) {
	switch status {
	case models.WagerStatusResolved:
		return models.WagerStatusSettled, true
	case models.WagerStatusRefunded, models.WagerStatusExpired:
		return models.WagerStatusRefunded, true
	}
	return "", false
}

func receiptKey(id int64) string {
	return fmt.Sprintf("settle-receipt:%d", id)
}

func (d *Dispatcher) loadReceipt(ctx context.Context, id int64) (settlementReceipt, bool) {
	raw, ok, err := d.locker.Get(ctx, receiptKey(id))
	if err != nil {
		d.log.Error("failed to read settlement receipt", zap.Int64("wager_id", id), zap.Error(err))
		return settlementReceipt{}, false
	}
	if !ok {
		return settlementReceipt{}, false
	}
	var r settlementReceipt
	if err := json.Unmarshal([]byte(raw), &r); err != nil || r.Signature == "" {
		d.log.Error("discarding malformed settlement receipt", zap.Int64("wager_id", id), zap.String("raw", raw))
		return settlementReceipt{}, false
	}
	return r, true
}

// keepReceipt runs on a fresh context, the caller's may already be done.
func (d *Dispatcher) keepReceipt(id int64, r settlementReceipt) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, _ := json.Marshal(r)
	if err := d.locker.Put(ctx, receiptKey(id), string(raw), receiptTTL); err != nil {
		d.log.Error("failed to keep settlement receipt",
			zap.Int64("wager_id", id),
			zap.String("signature", r.Signature),
			zap.Error(err),
		)
	}
}

// writeSettlement retries transient store failures. A stale row is final.
func (d *Dispatcher) writeSettlement(ctx context.Context, id int64, from string, s models.Settlement) error {
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		err = d.wagers.RecordSettlement(ctx, id, from, s)
		if err == nil || errors.Is(err, repositories.ErrStale) || attempt == recordAttempts {
			return err
		}
		d.log.Warn("record settlement failed, retrying",
			zap.Int64("wager_id", id),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(d.retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// record writes action, signature, status and confirmation in one guarded update.
func (d *Dispatcher) record(ctx context.Context, w *models.Wager, r settlementReceipt) (*models.Wager, error) {
	oldStatus := w.Status
	status, action, sig := r.Status, r.Action, r.Signature
	if !models.IsValidTransition(oldStatus, status) {
		return w, &SettlementError{WagerID: w.ID, Err: fmt.Errorf("invalid transition %s -> %s", oldStatus, status)}
	}

	confirmedAt := d.now().UTC()
	err := d.writeSettlement(ctx, w.ID, oldStatus, models.Settlement{
		Status:      status,
		Action:      action,
		Signature:   sig,
		ConfirmedAt: confirmedAt,
	})
	if errors.Is(err, repositories.ErrStale) {
		return w, storeErr(w.ID, err)
	}
	if err != nil {
		// the instruction is already on chain
		d.keepReceipt(w.ID, r)
		d.log.Error("failed to record settlement",
			zap.Int64("wager_id", w.ID),
			zap.String("action", action),
			zap.String("signature", sig),
			zap.Error(err),
		)
		return w, &SettlementError{WagerID: w.ID, Err: fmt.Errorf("record %s %s: %w", action, sig, err)}
	}
	if derr := d.locker.Delete(ctx, receiptKey(w.ID)); derr != nil {
		d.log.Warn("failed to drop settlement receipt", zap.Int64("wager_id", w.ID), zap.Error(derr))
	}

	updated := *w
	updated.Status = status
	updated.OnchainAction = &action
	updated.OnchainSignature = &sig
	updated.OnchainConfirmedAt = &confirmedAt

	d.log.Info("wager settled",
		zap.Int64("wager_id", w.ID),
		zap.String("action", action),
		zap.String("signature", sig),
		zap.String("old_status", oldStatus),
		zap.String("new_status", status),
	)

	meta := map[string]any{"onchain_action": action, "onchain_signature": sig}
	if status != oldStatus {
		d.statusChanged(ctx, &updated, oldStatus, nil, models.ActorTypeOracle, meta)
	} else {
		d.action(ctx, &updated, "wager_"+action, nil, models.ActorTypeOracle, meta)
	}
	d.publish(ctx, events.EventWagerSettled, &updated, map[string]any{
		"onchain_action":    action,
		"onchain_signature": sig,
	})
	return &updated, nil
}
