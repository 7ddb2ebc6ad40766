package chain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type FakeCall struct {
	Op      string
	WagerID uint64
	Winner  WinnerSide
	Creator string
	Joiner  string
}

// FakeClient records calls instead of talking to a cluster. Set Err to inject
// failures and Delay to simulate slow confirmation.
type FakeClient struct {
	mu    sync.Mutex
	calls []FakeCall

	Err   error
	Delay time.Duration
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Settle(ctx context.Context, wagerID uint64, winner WinnerSide, creator, joiner string) (string, error) {
	return f.record(ctx, FakeCall{Op: "settle", WagerID: wagerID, Winner: winner, Creator: creator, Joiner: joiner})
}

func (f *FakeClient) Refund(ctx context.Context, wagerID uint64, creator, joiner string) (string, error) {
	return f.record(ctx, FakeCall{Op: "refund", WagerID: wagerID, Creator: creator, Joiner: joiner})
}

func (f *FakeClient) record(ctx context.Context, call FakeCall) (string, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", &Error{Op: call.Op, WagerID: call.WagerID, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.Err != nil {
		return "", &Error{Op: call.Op, WagerID: call.WagerID, Err: f.Err}
	}
	return fmt.Sprintf("fake-%s-%d-%d", call.Op, call.WagerID, len(f.calls)), nil
}

func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.mu.Unlock()
}
