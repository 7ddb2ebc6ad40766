package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wager-royale/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) UpsertByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (wallet_address)
		VALUES ($1)
		ON CONFLICT (wallet_address) DO UPDATE SET updated_at = now()
		RETURNING id, wallet_address, game_tag, email, created_at, updated_at
	`, wallet).Scan(&u.ID, &u.WalletAddress, &u.GameTag, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, wallet_address, game_tag, email, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.WalletAddress, &u.GameTag, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// UpdateProfile overwrites only the fields that are non-nil.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, wallet, gameTag, email *string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET
			wallet_address = COALESCE($2, wallet_address),
			game_tag = COALESCE($3, game_tag),
			email = COALESCE($4, email),
			updated_at = now()
		WHERE id = $1
		RETURNING id, wallet_address, game_tag, email, created_at, updated_at
	`, id, wallet, gameTag, email).Scan(&u.ID, &u.WalletAddress, &u.GameTag, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
