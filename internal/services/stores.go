package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/battlelog"
	"github.com/wager-royale/backend/internal/models"
)

// WagerStore is implemented by repositories.WagerRepo. Guarded updates
// return repositories.ErrStale when the expected state no longer holds.
type WagerStore interface {
	Create(ctx context.Context, w *models.Wager) error
	GetByID(ctx context.Context, id int64) (*models.Wager, error)
	List(ctx context.Context, f models.WagerFilter) ([]models.Wager, error)
	ListPendingResolution(ctx context.Context, limit int) ([]models.Wager, error)
	ListPendingSettlement(ctx context.Context, limit int) ([]models.Wager, error)
	UpdateStatus(ctx context.Context, id int64, from, to string) error
	ApplyOutcome(ctx context.Context, id int64, from string, o models.Outcome) error
	RecordSettlement(ctx context.Context, id int64, from string, s models.Settlement) error
	RecordDeposit(ctx context.Context, id int64, role, signature, from, to string) error
	AssignJoiner(ctx context.Context, id int64, joinerID uuid.UUID, tagB string) error
}

type InviteStore interface {
	ReplaceActive(ctx context.Context, inv *models.WagerInvite) error
	GetByToken(ctx context.Context, token string) (*models.WagerInvite, error)
	MarkAccepted(ctx context.Context, id, userID uuid.UUID) error
	ReleaseAccepted(ctx context.Context, id, userID uuid.UUID) error
	Revoke(ctx context.Context, id uuid.UUID) error
}

type UserStore interface {
	UpsertByWallet(ctx context.Context, wallet string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, wallet, gameTag, email *string) (*models.User, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// BattleFeed is implemented by resultfeed.Client.
type BattleFeed interface {
	BattleLog(ctx context.Context, tag string) ([]battlelog.Battle, error)
}
