package dto

import "github.com/wager-royale/backend/internal/models"

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type EscrowInfoResponse struct {
	WagerID        int64  `json:"wager_id"`
	ProgramID      string `json:"program_id"`
	EscrowPDA      string `json:"escrow_pda"`
	EscrowBump     uint8  `json:"escrow_bump"`
	VaultPDA       string `json:"vault_pda"`
	VaultBump      uint8  `json:"vault_bump"`
	WagerIDSeed    string `json:"wager_id_seed"`
	OraclePubkey   string `json:"oracle_pubkey,omitempty"`
	AmountLamports int64  `json:"amount_lamports"`
}

type InviteResponse struct {
	Invite *models.WagerInvite `json:"invite"`
	Wager  *models.Wager       `json:"wager,omitempty"`
}

type CardsResponse struct {
	Icons map[int64]string `json:"icons"`
}
