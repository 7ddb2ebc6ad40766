package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/rbac"
	"github.com/wager-royale/backend/internal/repositories"
	"go.uber.org/zap"
)

const inviteTokenBytes = 24

type InviteService struct {
	invites InviteStore
	wagers  *WagerService
	journal
}

func NewInviteService(invites InviteStore, wagers *WagerService, audit AuditStore, publisher events.Publisher, log *zap.Logger) *InviteService {
	log = log.Named("invites")
	return &InviteService{
		invites: invites,
		wagers:  wagers,
		journal: journal{audit: audit, publisher: publisher, log: log},
	}
}

func newInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create replaces any open invite of the wager with a fresh token.
func (s *InviteService) Create(ctx context.Context, wagerID int64, inviterID uuid.UUID) (*models.WagerInvite, error) {
	w, err := s.wagers.GetWager(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(rbac.WagerRole(w, inviterID), rbac.PermInvite) {
		return nil, invalid("only the creator can invite")
	}
	if w.Status != models.WagerStatusAwaitingCreatorDeposit && w.Status != models.WagerStatusAwaitingJoinerDeposit {
		return nil, invalid("wager is %s and can no longer be joined", w.Status)
	}
	if w.HasJoiner() {
		return nil, ErrAlreadyHasJoiner
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}
	inv := &models.WagerInvite{
		Token:     token,
		WagerID:   wagerID,
		InviterID: inviterID,
	}
	if err := s.invites.ReplaceActive(ctx, inv); err != nil {
		return nil, storeErr(wagerID, err)
	}

	s.action(ctx, w, "wager_invite_created", &inviterID, models.ActorTypeUser, map[string]any{"invite_id": inv.ID.String()})
	return inv, nil
}

func (s *InviteService) Get(ctx context.Context, token string) (*models.WagerInvite, error) {
	return s.invites.GetByToken(ctx, token)
}

// Accept claims the invite, then joins its wager as that user. The claim
// comes first so a concurrent accept or revoke fails this call. A join that
// does not go through releases the claim.
func (s *InviteService) Accept(ctx context.Context, token string, userID uuid.UUID) (*models.WagerInvite, *models.Wager, error) {
	inv, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if err := closedErr(inv); err != nil {
		return nil, nil, err
	}
	if inv.InviterID == userID {
		return nil, nil, invalid("cannot accept your own invite")
	}

	if err := s.invites.MarkAccepted(ctx, inv.ID, userID); err != nil {
		if !errors.Is(err, repositories.ErrStale) {
			return nil, nil, storeErr(inv.WagerID, err)
		}
		current, gerr := s.invites.GetByToken(ctx, token)
		if gerr != nil {
			return nil, nil, gerr
		}
		if cerr := closedErr(current); cerr != nil {
			return nil, nil, cerr
		}
		return nil, nil, &RaceError{WagerID: inv.WagerID, Err: err}
	}

	w, err := s.wagers.Join(ctx, inv.WagerID, userID, nil)
	if err != nil {
		if rerr := s.invites.ReleaseAccepted(ctx, inv.ID, userID); rerr != nil {
			s.log.Error("failed to release invite claim",
				zap.String("invite_id", inv.ID.String()),
				zap.Int64("wager_id", inv.WagerID),
				zap.Error(rerr),
			)
		}
		return nil, nil, err
	}

	accepted, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		s.log.Warn("reload accepted invite failed", zap.String("invite_id", inv.ID.String()), zap.Error(err))
		now, u := time.Now().UTC(), userID
		inv.AcceptedAt, inv.AcceptedByID = &now, &u
		accepted = inv
	}

	s.action(ctx, w, "wager_invite_accepted", &userID, models.ActorTypeUser, map[string]any{"invite_id": inv.ID.String()})
	return accepted, w, nil
}

// closedErr reports why a closed invite cannot be accepted.
func closedErr(inv *models.WagerInvite) error {
	switch {
	case inv.IsAccepted():
		return ErrAlreadyHasJoiner
	case inv.IsRevoked():
		return invalid("invite was revoked")
	}
	return nil
}

// Revoke closes an open invite. Closed invites are left as they are.
func (s *InviteService) Revoke(ctx context.Context, token string, actorID uuid.UUID) (*models.WagerInvite, error) {
	inv, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.InviterID != actorID {
		return nil, invalid("only the inviter can revoke")
	}
	if !inv.IsActive() {
		return inv, nil
	}
	if err := s.invites.Revoke(ctx, inv.ID); err != nil {
		return nil, err
	}
	return s.invites.GetByToken(ctx, token)
}
