package services

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/repositories"
)

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// EnsureUser returns the account bound to wallet, creating it on first use.
func (s *UserService) EnsureUser(ctx context.Context, wallet string) (*models.User, error) {
	wallet = strings.TrimSpace(wallet)
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return nil, invalid("invalid wallet address")
	}
	return s.users.UpsertByWallet(ctx, wallet)
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

type UpdateProfileInput struct {
	WalletAddress *string
	GameTag       *string
	Email         *string
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*models.User, error) {
	if in.WalletAddress != nil {
		w := strings.TrimSpace(*in.WalletAddress)
		if _, err := solana.PublicKeyFromBase58(w); err != nil {
			return nil, invalid("invalid wallet address")
		}
		in.WalletAddress = &w
	}
	if in.GameTag != nil {
		tag := models.NormalizeGameTag(*in.GameTag)
		if !models.IsValidGameTag(tag) {
			return nil, invalid("invalid game tag %q", tag)
		}
		in.GameTag = &tag
	}
	if in.Email != nil {
		e := strings.TrimSpace(*in.Email)
		if e != "" && !strings.Contains(e, "@") {
			return nil, invalid("invalid email")
		}
		in.Email = &e
	}

	u, err := s.users.UpdateProfile(ctx, id, in.WalletAddress, in.GameTag, in.Email)
	if errors.Is(err, repositories.ErrConflict) {
		return nil, invalid("wallet address is already linked to another account")
	}
	return u, err
}
