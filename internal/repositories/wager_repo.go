package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wager-royale/backend/internal/models"
)

type WagerRepo struct {
	pool *pgxpool.Pool
}

func NewWagerRepo(pool *pgxpool.Pool) *WagerRepo {
	return &WagerRepo{pool: pool}
}

const wagerColumns = `id, creator_id, joiner_id, tag_a, tag_b, amount_lamports, deadline_at, status,
	creator_deposit_signature, creator_deposit_confirmed_at, joiner_deposit_signature, joiner_deposit_confirmed_at,
	battle_time, battle_fingerprint, winner_tag, battle_data,
	onchain_action, onchain_signature, onchain_confirmed_at, created_at, updated_at`

func scanWager(row pgx.Row) (*models.Wager, error) {
	var w models.Wager
	var battleData []byte
	err := row.Scan(&w.ID, &w.CreatorID, &w.JoinerID, &w.TagA, &w.TagB, &w.AmountLamports, &w.DeadlineAt, &w.Status,
		&w.CreatorDepositSignature, &w.CreatorDepositConfirmedAt, &w.JoinerDepositSignature, &w.JoinerDepositConfirmedAt,
		&w.BattleTime, &w.BattleFingerprint, &w.WinnerTag, &battleData,
		&w.OnchainAction, &w.OnchainSignature, &w.OnchainConfirmedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(battleData) > 0 {
		w.BattleData = battleData
	}
	return &w, nil
}

func (r *WagerRepo) Create(ctx context.Context, w *models.Wager) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO wagers (creator_id, tag_a, tag_b, amount_lamports, deadline_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, w.CreatorID, w.TagA, w.TagB, w.AmountLamports, w.DeadlineAt, w.Status,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	return mapErr(err)
}

func (r *WagerRepo) GetByID(ctx context.Context, id int64) (*models.Wager, error) {
	return scanWager(r.pool.QueryRow(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id = $1`, id))
}

func (r *WagerRepo) List(ctx context.Context, f models.WagerFilter) ([]models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.UserID != nil {
		where = append(where, fmt.Sprintf("(creator_id = $%d OR joiner_id = $%d)", argIdx, argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	return r.query(ctx, query, args...)
}

// ListPendingResolution returns the oldest wagers still waiting for a battle.
func (r *WagerRepo) ListPendingResolution(ctx context.Context, limit int) ([]models.Wager, error) {
	return r.query(ctx, `
		SELECT `+wagerColumns+` FROM wagers
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3
	`, models.WagerStatusActive, models.WagerStatusAwaitingJoinerDeposit, limit)
}

// ListPendingSettlement returns wagers with an outcome but no on-chain signature.
func (r *WagerRepo) ListPendingSettlement(ctx context.Context, limit int) ([]models.Wager, error) {
	return r.query(ctx, `
		SELECT `+wagerColumns+` FROM wagers
		WHERE status IN ($1, $2, $3) AND onchain_signature IS NULL
		ORDER BY updated_at ASC
		LIMIT $4
	`, models.WagerStatusResolved, models.WagerStatusRefunded, models.WagerStatusExpired, limit)
}

func (r *WagerRepo) query(ctx context.Context, query string, args ...any) ([]models.Wager, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wagers []models.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		wagers = append(wagers, *w)
	}
	return wagers, rows.Err()
}

func (r *WagerRepo) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wagers SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to))
}

// ApplyOutcome writes the resolved battle and the new status in one statement.
func (r *WagerRepo) ApplyOutcome(ctx context.Context, id int64, from string, o models.Outcome) error {
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wagers SET
			status = $3,
			battle_time = $4,
			battle_fingerprint = $5,
			winner_tag = $6,
			battle_data = $7,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, o.Status, o.BattleTime, o.BattleFingerprint, o.WinnerTag, []byte(o.BattleData)))
}

// RecordSettlement stores the on-chain evidence. It matches only while no
// signature has been recorded yet.
func (r *WagerRepo) RecordSettlement(ctx context.Context, id int64, from string, s models.Settlement) error {
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wagers SET
			status = $3,
			onchain_action = $4,
			onchain_signature = $5,
			onchain_confirmed_at = $6,
			updated_at = now()
		WHERE id = $1 AND status = $2 AND onchain_signature IS NULL
	`, id, from, s.Status, s.Action, s.Signature, s.ConfirmedAt))
}

// RecordDeposit sets the role's signature once and advances the status.
func (r *WagerRepo) RecordDeposit(ctx context.Context, id int64, role, signature, from, to string) error {
	var column string
	switch role {
	case models.DepositRoleCreator:
		column = "creator_deposit"
	case models.DepositRoleJoiner:
		column = "joiner_deposit"
	default:
		return fmt.Errorf("unknown deposit role %q", role)
	}
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wagers SET
			`+column+`_signature = $4,
			`+column+`_confirmed_at = now(),
			status = $3,
			updated_at = now()
		WHERE id = $1 AND status = $2 AND `+column+`_signature IS NULL
	`, id, from, to, signature))
}

// AssignJoiner claims the joiner seat. Only the first caller matches.
func (r *WagerRepo) AssignJoiner(ctx context.Context, id int64, joinerID uuid.UUID, tagB string) error {
	return expectOne(r.pool.Exec(ctx, `
		UPDATE wagers SET joiner_id = $2, tag_b = $3, updated_at = now()
		WHERE id = $1 AND joiner_id IS NULL AND creator_id <> $2
	`, id, joinerID, tagB))
}
