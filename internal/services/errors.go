package services

import (
	"errors"
	"fmt"

	"github.com/wager-royale/backend/internal/repositories"
)

var (
	ErrNotFound             = repositories.ErrNotFound
	ErrAlreadyHasJoiner     = &ValidationError{Msg: "wager already has a joiner"}
	ErrSettlementInProgress = errors.New("settlement already in progress")
)

// ValidationError is a rejected input or a request the wager's state does not allow.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RaceError means a concurrent writer changed the row first.
type RaceError struct {
	WagerID int64
	Err     error
}

func (e *RaceError) Error() string {
	return fmt.Sprintf("wager %d changed concurrently: %v", e.WagerID, e.Err)
}

func (e *RaceError) Unwrap() error { return e.Err }

// ResolutionError wraps a result feed failure. Nothing was written.
type ResolutionError struct {
	WagerID int64
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve wager %d: %v", e.WagerID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SettlementError wraps a chain, precondition or persistence failure. When
// the chain call succeeded but the row update did not, the signature is kept
// as a receipt and recorded by the next dispatch.
type SettlementError struct {
	WagerID int64
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settle wager %d: %v", e.WagerID, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }

// storeErr translates a repository failure for wager id.
func storeErr(id int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrStale), errors.Is(err, repositories.ErrConflict):
		return &RaceError{WagerID: id, Err: err}
	}
	return err
}
