package services

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/rbac"
	"github.com/wager-royale/backend/internal/repositories"
	"go.uber.org/zap"
)

const DefaultWagerDuration = 30 * time.Minute

type WagerService struct {
	wagers WagerStore
	users  UserStore
	journal
	now func() time.Time
}

func NewWagerService(wagers WagerStore, users UserStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *WagerService {
	log = log.Named("wagers")
	return &WagerService{
		wagers:  wagers,
		users:   users,
		journal: journal{audit: audit, publisher: publisher, log: log},
		now:     time.Now,
	}
}

type CreateWagerInput struct {
	TagA           *string
	TagB           *string
	AmountLamports int64
	DeadlineAt     *time.Time
}

func (s *WagerService) CreateWager(ctx context.Context, creatorID uuid.UUID, in CreateWagerInput) (*models.Wager, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	// tag_a по умолчанию берём из профиля создателя
	tagA := creator.GameTagValue()
	if in.TagA != nil && *in.TagA != "" {
		tagA = *in.TagA
	}
	tagA = models.NormalizeGameTag(tagA)
	if tagA == "" {
		return nil, invalid("tag_a is required, set it in the request or your profile")
	}
	if !models.IsValidGameTag(tagA) {
		return nil, invalid("invalid tag_a %q", tagA)
	}

	var tagB *string
	if in.TagB != nil && *in.TagB != "" {
		t := models.NormalizeGameTag(*in.TagB)
		if !models.IsValidGameTag(t) {
			return nil, invalid("invalid tag_b %q", t)
		}
		if t == tagA {
			return nil, invalid("tag_a and tag_b must differ")
		}
		tagB = &t
	}

	now := s.now()
	deadline := now.Add(DefaultWagerDuration)
	if in.DeadlineAt != nil {
		deadline = *in.DeadlineAt
	}
	if !deadline.After(now) {
		return nil, invalid("deadline_at must be in the future")
	}

	w := &models.Wager{
		CreatorID:      creatorID,
		TagA:           tagA,
		TagB:           tagB,
		AmountLamports: in.AmountLamports,
		DeadlineAt:     deadline.UTC(),
		Status:         models.WagerStatusAwaitingCreatorDeposit,
	}
	if err := w.Validate(); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err := s.wagers.Create(ctx, w); err != nil {
		return nil, err
	}

	s.action(ctx, w, "wager_created", &creatorID, models.ActorTypeUser, map[string]any{
		"amount_lamports": w.AmountLamports,
		"tag_a":           w.TagA,
	})
	s.publish(ctx, events.EventWagerCreated, w, nil)
	return w, nil
}

func (s *WagerService) GetWager(ctx context.Context, id int64) (*models.Wager, error) {
	return s.wagers.GetByID(ctx, id)
}

func (s *WagerService) ListWagers(ctx context.Context, f models.WagerFilter) ([]models.Wager, error) {
	if f.Status != nil && !models.IsValidWagerStatus(*f.Status) {
		return nil, invalid("unknown status %q", *f.Status)
	}
	return s.wagers.List(ctx, f)
}

// RecordDeposit stores a deposit signature for the caller's seat. Repeating
// the same signature is a no-op, a different one is rejected.
func (s *WagerService) RecordDeposit(ctx context.Context, wagerID int64, userID uuid.UUID, role, signature string) (*models.Wager, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, invalid("invalid deposit signature")
	}

	w, err := s.wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}

	switch role {
	case models.DepositRoleCreator:
		return s.creatorDeposit(ctx, w, userID, signature)
	case models.DepositRoleJoiner:
		return s.joinerDeposit(ctx, w, userID, signature)
	}
	return nil, invalid("unknown deposit role %q", role)
}

func (s *WagerService) creatorDeposit(ctx context.Context, w *models.Wager, userID uuid.UUID, sig string) (*models.Wager, error) {
	if !rbac.HasPermission(rbac.WagerRole(w, userID), rbac.PermDepositCreator) {
		return nil, invalid("only the creator can record the creator deposit")
	}
	done, err := sameSignature(w.CreatorDepositSignature, sig)
	if err != nil {
		return nil, err
	}
	if done {
		return w, nil
	}
	if w.Status != models.WagerStatusAwaitingCreatorDeposit {
		return nil, invalid("wager is %s, creator deposit not expected", w.Status)
	}
	return s.deposit(ctx, w, userID, models.DepositRoleCreator, sig, models.WagerStatusAwaitingJoinerDeposit)
}

func (s *WagerService) joinerDeposit(ctx context.Context, w *models.Wager, userID uuid.UUID, sig string) (*models.Wager, error) {
	if w.JoinerDepositSignature != nil && *w.JoinerDepositSignature != "" {
		if w.JoinerID == nil || *w.JoinerID != userID {
			return nil, invalid("only the joiner can record the joiner deposit")
		}
		if _, err := sameSignature(w.JoinerDepositSignature, sig); err != nil {
			return nil, err
		}
		return w, nil
	}
	if w.Status != models.WagerStatusAwaitingJoinerDeposit {
		return nil, invalid("wager is %s, joiner deposit not expected", w.Status)
	}

	if w.JoinerID == nil {
		joined, err := s.join(ctx, w, userID, nil)
		if err != nil {
			return nil, err
		}
		w = joined
	}
	if *w.JoinerID != userID {
		return nil, invalid("only the joiner can record the joiner deposit")
	}
	return s.deposit(ctx, w, userID, models.DepositRoleJoiner, sig, models.WagerStatusActive)
}

func (s *WagerService) deposit(ctx context.Context, w *models.Wager, userID uuid.UUID, role, sig, to string) (*models.Wager, error) {
	oldStatus := w.Status
	if !models.IsValidTransition(oldStatus, to) {
		return nil, invalid("invalid transition from %s to %s", oldStatus, to)
	}

	err := s.wagers.RecordDeposit(ctx, w.ID, role, sig, oldStatus, to)
	if errors.Is(err, repositories.ErrStale) {
		// lost to a concurrent request; identical signature is still success
		current, getErr := s.wagers.GetByID(ctx, w.ID)
		if getErr != nil {
			return nil, getErr
		}
		existing := current.CreatorDepositSignature
		if role == models.DepositRoleJoiner {
			existing = current.JoinerDepositSignature
		}
		done, sigErr := sameSignature(existing, sig)
		if sigErr != nil {
			return nil, sigErr
		}
		if done {
			return current, nil
		}
		return nil, storeErr(w.ID, err)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.wagers.GetByID(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit recorded",
		zap.Int64("wager_id", w.ID),
		zap.String("role", role),
		zap.String("signature", sig),
		zap.String("new_status", updated.Status),
	)
	s.statusChanged(ctx, updated, oldStatus, &userID, models.ActorTypeUser, map[string]any{
		"role":      role,
		"signature": sig,
	})
	s.publish(ctx, events.EventDepositRecorded, updated, map[string]any{"role": role, "signature": sig})
	return updated, nil
}

// sameSignature reports true when existing already equals sig and an error
// when a different signature is on record.
func sameSignature(existing *string, sig string) (bool, error) {
	if existing == nil || *existing == "" {
		return false, nil
	}
	if *existing == sig {
		return true, nil
	}
	return false, invalid("a different deposit signature is already recorded")
}

// Join claims the joiner seat for userID.
func (s *WagerService) Join(ctx context.Context, wagerID int64, userID uuid.UUID, tagB *string) (*models.Wager, error) {
	w, err := s.wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, w, userID, tagB)
}

func (s *WagerService) join(ctx context.Context, w *models.Wager, userID uuid.UUID, tagB *string) (*models.Wager, error) {
	if w.Status != models.WagerStatusAwaitingCreatorDeposit && w.Status != models.WagerStatusAwaitingJoinerDeposit {
		return nil, invalid("wager is %s and can no longer be joined", w.Status)
	}
	if rbac.WagerRole(w, userID) == rbac.RoleCreator {
		return nil, invalid("creator cannot join their own wager")
	}
	if w.HasJoiner() {
		return nil, ErrAlreadyHasJoiner
	}

	tag := w.TagBValue()
	if tag == "" && tagB != nil {
		tag = models.NormalizeGameTag(*tagB)
	}
	if tag == "" {
		joiner, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		tag = models.NormalizeGameTag(joiner.GameTagValue())
	}
	if tag == "" {
		return nil, invalid("tag_b is required, set a game tag in your profile")
	}
	if !models.IsValidGameTag(tag) {
		return nil, invalid("invalid tag_b %q", tag)
	}
	if tag == w.TagA {
		return nil, invalid("tag_b must differ from tag_a")
	}

	err := s.wagers.AssignJoiner(ctx, w.ID, userID, tag)
	if errors.Is(err, repositories.ErrStale) {
		current, getErr := s.wagers.GetByID(ctx, w.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.HasJoiner() {
			return nil, ErrAlreadyHasJoiner
		}
		return nil, storeErr(w.ID, err)
	}
	if err != nil {
		return nil, storeErr(w.ID, err)
	}

	updated := *w
	updated.JoinerID = &userID
	updated.TagB = &tag
	s.log.Info("wager joined", zap.Int64("wager_id", w.ID), zap.String("tag_b", tag))
	s.action(ctx, &updated, "wager_joined", &userID, models.ActorTypeUser, map[string]any{"tag_b": tag})
	s.publish(ctx, events.EventWagerJoined, &updated, map[string]any{"joiner_id": userID.String(), "tag_b": tag})
	return &updated, nil
}

// Requeue returns a failed wager to the resolution queue.
func (s *WagerService) Requeue(ctx context.Context, wagerID int64, operatorID *uuid.UUID) (*models.Wager, error) {
	w, err := s.wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WagerStatusFailed {
		return nil, invalid("wager is %s, only failed wagers can be requeued", w.Status)
	}
	return s.transition(ctx, w, models.WagerStatusActive, operatorID, models.ActorTypeOperator)
}

// ForceStatus performs an operator transition. The state machine still applies.
func (s *WagerService) ForceStatus(ctx context.Context, wagerID int64, to string, operatorID *uuid.UUID) (*models.Wager, error) {
	if !models.IsValidWagerStatus(to) {
		return nil, invalid("unknown status %q", to)
	}
	w, err := s.wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, w, to, operatorID, models.ActorTypeOperator)
}

// MarkFailed parks an active wager after a feed failure.
func (s *WagerService) MarkFailed(ctx context.Context, w *models.Wager, cause error) (*models.Wager, error) {
	if w.Status != models.WagerStatusActive {
		return w, nil
	}
	updated, err := s.transition(ctx, w, models.WagerStatusFailed, nil, models.ActorTypeOracle)
	if err != nil {
		return nil, err
	}
	s.log.Warn("wager marked failed", zap.Int64("wager_id", w.ID), zap.Error(cause))
	return updated, nil
}

// transition validates and performs a status transition with audit logging.
func (s *WagerService) transition(ctx context.Context, w *models.Wager, newStatus string, actorID *uuid.UUID, actorType string) (*models.Wager, error) {
	if !models.IsValidTransition(w.Status, newStatus) {
		return nil, invalid("invalid transition from %s to %s", w.Status, newStatus)
	}

	oldStatus := w.Status
	if err := s.wagers.UpdateStatus(ctx, w.ID, oldStatus, newStatus); err != nil {
		return nil, storeErr(w.ID, err)
	}
	updated := *w
	updated.Status = newStatus

	s.statusChanged(ctx, &updated, oldStatus, actorID, actorType, nil)
	return &updated, nil
}
