package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wager-royale/backend/internal/models"
)

type InviteRepo struct {
	pool *pgxpool.Pool
}

func NewInviteRepo(pool *pgxpool.Pool) *InviteRepo {
	return &InviteRepo{pool: pool}
}

const inviteColumns = `id, token, wager_id, inviter_id, accepted_by_id, accepted_at, revoked_at, created_at`

func scanInvite(row pgx.Row) (*models.WagerInvite, error) {
	var i models.WagerInvite
	err := row.Scan(&i.ID, &i.Token, &i.WagerID, &i.InviterID, &i.AcceptedByID, &i.AcceptedAt, &i.RevokedAt, &i.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &i, nil
}

// ReplaceActive revokes every open invite of the wager and inserts inv, in one transaction.
func (r *InviteRepo) ReplaceActive(ctx context.Context, inv *models.WagerInvite) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE wager_invites SET revoked_at = now()
		WHERE wager_id = $1 AND accepted_at IS NULL AND revoked_at IS NULL
	`, inv.WagerID); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO wager_invites (token, wager_id, inviter_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, inv.Token, inv.WagerID, inv.InviterID).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	return tx.Commit(ctx)
}

func (r *InviteRepo) GetByToken(ctx context.Context, token string) (*models.WagerInvite, error) {
	return scanInvite(r.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM wager_invites WHERE token = $1`, token))
}

func (r *InviteRepo) MarkAccepted(ctx context.Context, id, userID uuid.UUID) error {
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wager_invites SET accepted_by_id = $2, accepted_at = now()
		WHERE id = $1 AND accepted_at IS NULL AND revoked_at IS NULL
	`, id, userID))
}

// ReleaseAccepted undoes a claim whose join did not go through. The invite is
// reopened unless a newer one became active meanwhile, then it is revoked.
func (r *InviteRepo) ReleaseAccepted(ctx context.Context, id, userID uuid.UUID) error {
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wager_invites w SET
			accepted_by_id = NULL,
			accepted_at = NULL,
			revoked_at = CASE WHEN EXISTS (
				SELECT 1 FROM wager_invites o
				WHERE o.wager_id = w.wager_id AND o.id <> w.id
					AND o.accepted_at IS NULL AND o.revoked_at IS NULL
			) THEN now() END
		WHERE w.id = $1 AND w.accepted_by_id = $2
	`, id, userID))
}

// Revoke is a no-op for invites that are already closed.
func (r *InviteRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wager_invites SET revoked_at = now()
		WHERE id = $1 AND accepted_at IS NULL AND revoked_at IS NULL
	`, id)
	return err
}
