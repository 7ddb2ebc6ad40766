package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/resultfeed"
	"go.uber.org/zap"
)

const (
	DefaultInterval  = 10 * time.Second
	DefaultBatchSize = 25
)

type PendingStore interface {
	ListPendingResolution(ctx context.Context, limit int) ([]models.Wager, error)
	ListPendingSettlement(ctx context.Context, limit int) ([]models.Wager, error)
}

// Resolver is implemented by services.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, w *models.Wager) (*models.Wager, error)
}

// Failer is implemented by services.WagerService.
type Failer interface {
	MarkFailed(ctx context.Context, w *models.Wager, cause error) (*models.Wager, error)
}

// Enqueuer receives wagers that are ready for settlement.
type Enqueuer interface {
	Enqueue(id int64) bool
}

type Options struct {
	Interval  time.Duration
	BatchSize int
}

// Scheduler periodically resolves the oldest pending wagers. Each run is
// armed only after the previous one finished, so runs never overlap.
type Scheduler struct {
	store    PendingStore
	resolver Resolver
	failer   Failer
	queue    Enqueuer
	opts     Options
	log      *zap.Logger
}

func New(store PendingStore, resolver Resolver, failer Failer, queue Enqueuer, opts Options, log *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Scheduler{
		store:    store,
		resolver: resolver,
		failer:   failer,
		queue:    queue,
		opts:     opts,
		log:      log.Named("scheduler"),
	}
}

// Summary counts the outcomes of one run.
type Summary struct {
	Checked  int
	Changed  int
	Enqueued int
	Failed   int
	Errors   int
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("resolution scheduler started",
		zap.Duration("interval", s.opts.Interval),
		zap.Int("batch_size", s.opts.BatchSize),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("resolution scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		sum, err := s.safeRun(ctx)
		if err != nil && ctx.Err() == nil {
			s.log.Error("resolution run failed", zap.Error(err))
		} else if sum.Checked > 0 {
			s.log.Info("resolution run finished",
				zap.Int("checked", sum.Checked),
				zap.Int("changed", sum.Changed),
				zap.Int("enqueued", sum.Enqueued),
				zap.Int("failed", sum.Failed),
				zap.Int("errors", sum.Errors),
			)
		}
		timer.Reset(s.opts.Interval)
	}
}

func (s *Scheduler) safeRun(ctx context.Context) (sum Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in resolution run: %v", r)
		}
	}()
	return s.RunOnce(ctx)
}

// RunOnce processes a single batch sequentially, oldest first.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	var configLogged bool
	wagers, err := s.store.ListPendingResolution(ctx, s.opts.BatchSize)
	if err != nil {
		return sum, fmt.Errorf("list pending wagers: %w", err)
	}

	for i := range wagers {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		w := &wagers[i]
		sum.Checked++

		updated, err := s.resolver.Resolve(ctx, w)
		if err != nil {
			sum.Errors++
			s.handleError(ctx, w, err, &sum, &configLogged)
			continue
		}

		if updated.Status != w.Status {
			sum.Changed++
		}
		if updated.AwaitsSettlement() && s.queue.Enqueue(updated.ID) {
			sum.Enqueued++
		}
	}
	return sum, nil
}

// handleError parks active wagers that hit a typed feed failure. A config
// error is logged once per run since every wager reports the same cause.
func (s *Scheduler) handleError(ctx context.Context, w *models.Wager, err error, sum *Summary, configLogged *bool) {
	fields := []zap.Field{zap.Int64("wager_id", w.ID), zap.String("status", w.Status), zap.Error(err)}

	var cfgErr *resultfeed.ConfigError
	var httpErr *resultfeed.HTTPError
	var parseErr *resultfeed.ParseError
	isConfig := errors.As(err, &cfgErr)
	feedFailure := isConfig || errors.As(err, &httpErr) || errors.As(err, &parseErr)

	switch {
	case isConfig && !*configLogged:
		*configLogged = true
		s.log.Error("result feed misconfigured", fields...)
	case !feedFailure:
		s.log.Warn("resolve wager failed", fields...)
		return
	}

	if w.Status != models.WagerStatusActive {
		return
	}
	if _, markErr := s.failer.MarkFailed(ctx, w, err); markErr != nil {
		s.log.Error("failed to mark wager failed", zap.Int64("wager_id", w.ID), zap.Error(markErr))
		return
	}
	sum.Failed++
}
