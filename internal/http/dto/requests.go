package dto

import "time"

type CreateWagerRequest struct {
	TagA           *string    `json:"tag_a,omitempty"` // если пусто, берём из профиля
	TagB           *string    `json:"tag_b,omitempty"`
	AmountLamports int64      `json:"amount_lamports"`
	DeadlineAt     *time.Time `json:"deadline_at,omitempty"`
}

type DepositRequest struct {
	Signature string `json:"signature"`
}

type JoinWagerRequest struct {
	TagB *string `json:"tag_b,omitempty"`
}

type UpdateProfileRequest struct {
	WalletAddress *string `json:"wallet_address,omitempty"`
	GameTag       *string `json:"game_tag,omitempty"`
	Email         *string `json:"email,omitempty"`
}

// Operator

type ForceStatusRequest struct {
	Status string `json:"status"`
}
