package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

type fakeSettler struct {
	mu    sync.Mutex
	calls []int64
	errs  map[int64]error
}

func (f *fakeSettler) SettleByID(_ context.Context, id int64) (*models.Wager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	action, sig := models.OnchainActionSettle, "sig"
	return &models.Wager{ID: id, Status: models.WagerStatusSettled, OnchainAction: &action, OnchainSignature: &sig}, nil
}

func (f *fakeSettler) called() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

func TestSettlementQueueDedupes(t *testing.T) {
	q := NewSettlementQueue(&fakeSettler{}, 2, zap.NewNop())

	assert.True(t, q.Enqueue(1))
	assert.False(t, q.Enqueue(1), "already queued")
	assert.True(t, q.Enqueue(2))
	assert.False(t, q.Enqueue(3), "buffer full")
	assert.Equal(t, 2, q.Len())
}

func TestSettlementQueueRunSettlesAndSurvivesErrors(t *testing.T) {
	settler := &fakeSettler{errs: map[int64]error{
		1: &services.SettlementError{WagerID: 1, Err: errors.New("rpc down")},
		2: services.ErrSettlementInProgress,
	}}
	q := NewSettlementQueue(settler, 8, zap.NewNop())
	for _, id := range []int64{1, 2, 3} {
		q.Enqueue(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(settler.called()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1, 2, 3}, settler.called())

	// a consumed id can be queued again
	assert.Eventually(t, func() bool { return q.Enqueue(1) }, time.Second, 5*time.Millisecond)
}

func TestSweepSettlementsEnqueuesPending(t *testing.T) {
	store := &fakeStore{settlement: []models.Wager{{ID: 7}, {ID: 8}}}
	queue := &recordingQueue{}
	jobs, err := NewJobs(store, queue, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = jobs.Shutdown() }()

	n := jobs.SweepSettlements(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{7, 8}, queue.snapshot())
}

type countingCatalog struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCatalog) Refresh(context.Context) (map[int64]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return map[int64]string{26000000: "https://cdn/knight.png"}, nil
}

func (c *countingCatalog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestJobsRunOnGocron(t *testing.T) {
	store := &fakeStore{settlement: []models.Wager{{ID: 42}}}
	queue := &recordingQueue{}
	catalog := &countingCatalog{}

	jobs, err := NewJobs(store, queue, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := jobs.AddSettlementSweep(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := jobs.AddCatalogWarmup(ctx, catalog, time.Hour); err != nil {
		t.Fatal(err)
	}
	jobs.Start()
	defer func() { _ = jobs.Shutdown() }()

	assert.Eventually(t, func() bool {
		return len(queue.snapshot()) == 1 && catalog.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
