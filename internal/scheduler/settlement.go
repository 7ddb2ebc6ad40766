package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

// Settler is implemented by services.Dispatcher.
type Settler interface {
	SettleByID(ctx context.Context, id int64) (*models.Wager, error)
}

// SettlementQueue hands wager ids to a single settlement worker. An id that
// is already queued is not queued twice.
type SettlementQueue struct {
	settler Settler
	ch      chan int64
	log     *zap.Logger

	mu      sync.Mutex
	pending map[int64]struct{}
}

func NewSettlementQueue(settler Settler, size int, log *zap.Logger) *SettlementQueue {
	if size <= 0 {
		size = 256
	}
	return &SettlementQueue{
		settler: settler,
		ch:      make(chan int64, size),
		log:     log.Named("settlement"),
		pending: make(map[int64]struct{}),
	}
}

// Enqueue never blocks. It returns false when the id is already queued or
// the buffer is full; the sweep picks those up later.
func (q *SettlementQueue) Enqueue(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[id]; ok {
		return false
	}
	select {
	case q.ch <- id:
		q.pending[id] = struct{}{}
		return true
	default:
		q.log.Warn("settlement queue full", zap.Int64("wager_id", id))
		return false
	}
}

func (q *SettlementQueue) Len() int {
	return len(q.ch)
}

// Run settles queued wagers until ctx is cancelled. Failures are logged and
// left for the next sweep.
func (q *SettlementQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-q.ch:
			q.mu.Lock()
			delete(q.pending, id)
			q.mu.Unlock()
			q.settle(ctx, id)
		}
	}
}

func (q *SettlementQueue) settle(ctx context.Context, id int64) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("panic while settling", zap.Int64("wager_id", id), zap.Any("panic", r))
		}
	}()

	w, err := q.settler.SettleByID(ctx, id)
	switch {
	case err == nil:
		if w.IsSettlementTerminal() {
			q.log.Info("settlement done", zap.Int64("wager_id", id), zap.String("status", w.Status))
		}
	case errors.Is(err, services.ErrSettlementInProgress):
		q.log.Debug("settlement already running elsewhere", zap.Int64("wager_id", id))
	default:
		q.log.Error("settlement failed", zap.Int64("wager_id", id), zap.Error(err))
	}
}
