package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Wager statuses
const (
	WagerStatusAwaitingCreatorDeposit = "awaiting_creator_deposit"
	WagerStatusAwaitingJoinerDeposit  = "awaiting_joiner_deposit"
	WagerStatusActive                 = "active"
	WagerStatusResolved               = "resolved"
	WagerStatusSettled                = "settled"
	WagerStatusRefunded               = "refunded"
	WagerStatusExpired                = "expired"
	WagerStatusFailed                 = "failed"
)

// On-chain settlement actions
const (
	OnchainActionSettle    = "settle"
	OnchainActionSettleTie = "settle_tie"
	OnchainActionRefund    = "refund"
)

// Valid state transitions: from -> []to
var ValidWagerTransitions = map[string][]string{
	WagerStatusAwaitingCreatorDeposit: {WagerStatusAwaitingJoinerDeposit},
	WagerStatusAwaitingJoinerDeposit:  {WagerStatusActive, WagerStatusResolved, WagerStatusRefunded, WagerStatusExpired},
	WagerStatusActive:                 {WagerStatusResolved, WagerStatusRefunded, WagerStatusExpired, WagerStatusFailed},
	WagerStatusResolved:               {WagerStatusSettled},
	WagerStatusSettled:                {},
	// refunded -> refunded is the settle_tie marker, status itself does not move
	WagerStatusRefunded: {WagerStatusRefunded},
	WagerStatusExpired:  {WagerStatusRefunded},
	// operator re-queue
	WagerStatusFailed: {WagerStatusActive},
}

var AllWagerStatuses = []string{
	WagerStatusAwaitingCreatorDeposit,
	WagerStatusAwaitingJoinerDeposit,
	WagerStatusActive,
	WagerStatusResolved,
	WagerStatusSettled,
	WagerStatusRefunded,
	WagerStatusExpired,
	WagerStatusFailed,
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidWagerTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidWagerStatus(status string) bool {
	_, ok := ValidWagerTransitions[status]
	return ok
}

type Wager struct {
	ID        int64      `json:"id"`
	CreatorID uuid.UUID  `json:"creator_id"`
	JoinerID  *uuid.UUID `json:"joiner_id,omitempty"`

	TagA           string    `json:"tag_a"`
	TagB           *string   `json:"tag_b,omitempty"`
	AmountLamports int64     `json:"amount_lamports"`
	DeadlineAt     time.Time `json:"deadline_at"`
	Status         string    `json:"status"`

	CreatorDepositSignature   *string    `json:"creator_deposit_signature,omitempty"`
	CreatorDepositConfirmedAt *time.Time `json:"creator_deposit_confirmed_at,omitempty"`
	JoinerDepositSignature    *string    `json:"joiner_deposit_signature,omitempty"`
	JoinerDepositConfirmedAt  *time.Time `json:"joiner_deposit_confirmed_at,omitempty"`

	BattleTime        *time.Time      `json:"battle_time,omitempty"`
	BattleFingerprint *string         `json:"battle_fingerprint,omitempty"`
	WinnerTag         *string         `json:"winner_tag,omitempty"`
	BattleData        json.RawMessage `json:"battle_data,omitempty"`

	OnchainAction      *string    `json:"onchain_action,omitempty"`
	OnchainSignature   *string    `json:"onchain_signature,omitempty"`
	OnchainConfirmedAt *time.Time `json:"onchain_confirmed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outcome is what the resolver writes in a single update.
type Outcome struct {
	Status            string
	BattleTime        time.Time
	BattleFingerprint string
	WinnerTag         *string
	BattleData        json.RawMessage
}

// Settlement is what the dispatcher writes in a single update.
type Settlement struct {
	Status      string
	Action      string
	Signature   string
	ConfirmedAt time.Time
}

var (
	ErrTagARequired      = errors.New("tag_a is required")
	ErrTagBRequired      = errors.New("tag_b is required when a joiner is present")
	ErrAmountNotPositive = errors.New("amount_lamports must be greater than 0")
	ErrDeadlineRequired  = errors.New("deadline_at is required")
)

func (w *Wager) Validate() error {
	if w.TagA == "" {
		return ErrTagARequired
	}
	if w.JoinerID != nil && (w.TagB == nil || *w.TagB == "") {
		return ErrTagBRequired
	}
	if w.AmountLamports <= 0 {
		return ErrAmountNotPositive
	}
	if w.DeadlineAt.IsZero() {
		return ErrDeadlineRequired
	}
	return nil
}

// IsSettlementTerminal reports whether the escrow has already been dispatched.
func (w *Wager) IsSettlementTerminal() bool {
	return w.OnchainAction != nil && *w.OnchainAction != "" &&
		w.OnchainSignature != nil && *w.OnchainSignature != ""
}

// ResolutionNoop reports whether the resolver must leave the wager untouched.
func (w *Wager) ResolutionNoop() bool {
	switch w.Status {
	case WagerStatusResolved, WagerStatusSettled, WagerStatusRefunded, WagerStatusExpired:
		return true
	}
	return false
}

func (w *Wager) AwaitsResolution() bool {
	return w.Status == WagerStatusActive || w.Status == WagerStatusAwaitingJoinerDeposit
}

func (w *Wager) AwaitsSettlement() bool {
	if w.IsSettlementTerminal() {
		return false
	}
	switch w.Status {
	case WagerStatusResolved, WagerStatusRefunded, WagerStatusExpired:
		return true
	}
	return false
}

func (w *Wager) IsExpiredAt(now time.Time) bool {
	return !w.DeadlineAt.IsZero() && now.After(w.DeadlineAt)
}

func (w *Wager) HasJoiner() bool {
	return w.JoinerID != nil
}

func (w *Wager) TagBValue() string {
	if w.TagB == nil {
		return ""
	}
	return *w.TagB
}

// Deposit roles
const (
	DepositRoleCreator = "creator"
	DepositRoleJoiner  = "joiner"
)

// WagerFilter narrows wager listings.
type WagerFilter struct {
	Status *string
	UserID *uuid.UUID
	Limit  int
	Offset int
}
