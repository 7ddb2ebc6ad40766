package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/wager-royale/backend/internal/resultfeed"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

// CardCatalog is implemented by resultfeed.Catalog.
type CardCatalog interface {
	Refresh(ctx context.Context) (map[int64]string, error)
}

// Jobs runs the periodic maintenance work on a gocron scheduler.
type Jobs struct {
	sched gocron.Scheduler
	store PendingStore
	queue Enqueuer
	log   *zap.Logger
}

func NewJobs(store PendingStore, queue Enqueuer, log *zap.Logger) (*Jobs, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Jobs{sched: sched, store: store, queue: queue, log: log.Named("jobs")}, nil
}

// SweepSettlements re-enqueues wagers with an outcome but no signature.
func (j *Jobs) SweepSettlements(ctx context.Context) int {
	wagers, err := j.store.ListPendingSettlement(ctx, sweepBatchSize)
	if err != nil {
		j.log.Error("list pending settlements failed", zap.Error(err))
		return 0
	}
	n := 0
	for _, w := range wagers {
		if j.queue.Enqueue(w.ID) {
			n++
		}
	}
	if n > 0 {
		j.log.Info("settlements re-enqueued", zap.Int("count", n))
	}
	return n
}

func (j *Jobs) AddSettlementSweep(ctx context.Context, every time.Duration) error {
	_, err := j.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() { j.SweepSettlements(ctx) }),
		gocron.WithName("settlement-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	return err
}

func (j *Jobs) AddCatalogWarmup(ctx context.Context, catalog CardCatalog, every time.Duration) error {
	_, err := j.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			icons, err := catalog.Refresh(ctx)
			if err != nil {
				j.log.Warn("card catalog refresh failed", zap.Error(err))
				return
			}
			j.log.Info("card catalog refreshed", zap.Int("cards", len(icons)), zap.String("key", resultfeed.CardsCacheKey))
		}),
		gocron.WithName("cards-warmup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	return err
}

func (j *Jobs) Start() {
	j.sched.Start()
}

func (j *Jobs) Shutdown() error {
	return j.sched.Shutdown()
}
