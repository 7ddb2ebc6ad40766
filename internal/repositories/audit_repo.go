package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wager-royale/backend/internal/models"
)

const maxAuditPage = 200

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	if !models.IsValidActorType(entry.ActorType) {
		return fmt.Errorf("unknown actor type %q", entry.ActorType)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_user_id, actor_type, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ActorUserID, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, entry.Meta)
	return err
}

// ListForWager returns the wager's trail, newest first.
func (r *AuditRepo) ListForWager(ctx context.Context, wagerID int64, f models.AuditFilter) ([]models.AuditLog, error) {
	where := []string{"entity_type = $1", "entity_id = $2"}
	args := []any{models.AuditEntityWager, strconv.FormatInt(wagerID, 10)}
	if f.ActorType != "" {
		args = append(args, f.ActorType)
		where = append(where, fmt.Sprintf("actor_type = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > maxAuditPage {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_user_id, actor_type, action, entity_type, entity_id, meta, created_at
		FROM audit_log WHERE `+strings.Join(where, " AND ")+fmt.Sprintf(`
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorUserID, &l.ActorType, &l.Action, &l.EntityType, &l.EntityID, &l.Meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
