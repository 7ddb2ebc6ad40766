package models

import (
	"time"

	"github.com/google/uuid"
)

// WagerInvite is a single-use join token for a wager.
type WagerInvite struct {
	ID           uuid.UUID  `json:"id"`
	Token        string     `json:"token"`
	WagerID      int64      `json:"wager_id"`
	InviterID    uuid.UUID  `json:"inviter_id"`
	AcceptedByID *uuid.UUID `json:"accepted_by_id,omitempty"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (i *WagerInvite) IsActive() bool {
	return i.AcceptedAt == nil && i.RevokedAt == nil
}

func (i *WagerInvite) IsAccepted() bool {
	return i.AcceptedAt != nil
}

func (i *WagerInvite) IsRevoked() bool {
	return i.RevokedAt != nil
}
