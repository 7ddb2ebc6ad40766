// Package chain submits oracle instructions to the wager escrow program.
package chain

import (
	"context"
	"fmt"
)

// WinnerSide is the settle instruction's winner argument.
type WinnerSide uint8

const (
	WinnerCreator WinnerSide = 0 // tag_a
	WinnerJoiner  WinnerSide = 1 // tag_b
	WinnerTie     WinnerSide = 2
)

func (w WinnerSide) String() string {
	switch w {
	case WinnerCreator:
		return "creator"
	case WinnerJoiner:
		return "joiner"
	case WinnerTie:
		return "tie"
	}
	return fmt.Sprintf("winner(%d)", uint8(w))
}

// Client submits oracle-signed instructions and blocks until they are confirmed.
// Both methods return the transaction signature.
type Client interface {
	Settle(ctx context.Context, wagerID uint64, winner WinnerSide, creator, joiner string) (string, error)
	Refund(ctx context.Context, wagerID uint64, creator, joiner string) (string, error)
}

// Error wraps a failed on-chain call.
type Error struct {
	Op      string
	WagerID uint64
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chain %s wager=%d: %v", e.Op, e.WagerID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
