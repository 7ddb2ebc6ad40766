package services

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/battlelog"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/repositories"
)

type memWagers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Wager

	// recordErrs are returned by RecordSettlement, one per call, before it succeeds
	recordErrs  []error
	recordCalls int
}

func (m *memWagers) failRecord(errs ...error) {
	m.mu.Lock()
	m.recordErrs = append(m.recordErrs, errs...)
	m.mu.Unlock()
}

func newMemWagers() *memWagers {
	return &memWagers{rows: make(map[int64]models.Wager)}
}

func (m *memWagers) put(w models.Wager) *models.Wager {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		m.nextID++
		w.ID = m.nextID
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().Add(-time.Hour)
	}
	m.rows[w.ID] = w
	return &w
}

func (m *memWagers) Create(_ context.Context, w *models.Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	w.ID = m.nextID
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	m.rows[w.ID] = *w
	return nil
}

func (m *memWagers) GetByID(_ context.Context, id int64) (*models.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &w, nil
}

func (m *memWagers) List(_ context.Context, f models.WagerFilter) ([]models.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Wager
	for _, w := range m.rows {
		if f.Status != nil && w.Status != *f.Status {
			continue
		}
		if f.UserID != nil && w.CreatorID != *f.UserID && (w.JoinerID == nil || *w.JoinerID != *f.UserID) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (m *memWagers) ListPendingResolution(_ context.Context, limit int) ([]models.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Wager
	for id := int64(1); id <= m.nextID && len(out) < limit; id++ {
		w, ok := m.rows[id]
		if ok && w.AwaitsResolution() {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWagers) ListPendingSettlement(_ context.Context, limit int) ([]models.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Wager
	for id := int64(1); id <= m.nextID && len(out) < limit; id++ {
		w, ok := m.rows[id]
		if ok && w.AwaitsSettlement() {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWagers) update(id int64, guard func(models.Wager) bool, apply func(*models.Wager)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[id]
	if !ok || !guard(w) {
		return repositories.ErrStale
	}
	apply(&w)
	w.UpdatedAt = time.Now()
	m.rows[id] = w
	return nil
}

func (m *memWagers) UpdateStatus(_ context.Context, id int64, from, to string) error {
	return m.update(id, func(w models.Wager) bool { return w.Status == from }, func(w *models.Wager) { w.Status = to })
}

func (m *memWagers) ApplyOutcome(_ context.Context, id int64, from string, o models.Outcome) error {
	return m.update(id, func(w models.Wager) bool { return w.Status == from }, func(w *models.Wager) {
		bt, fp := o.BattleTime, o.BattleFingerprint
		w.Status = o.Status
		w.BattleTime = &bt
		w.BattleFingerprint = &fp
		w.WinnerTag = o.WinnerTag
		w.BattleData = o.BattleData
	})
}

func (m *memWagers) RecordSettlement(_ context.Context, id int64, from string, s models.Settlement) error {
	m.mu.Lock()
	m.recordCalls++
	if len(m.recordErrs) > 0 {
		err := m.recordErrs[0]
		m.recordErrs = m.recordErrs[1:]
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	return m.update(id, func(w models.Wager) bool {
		return w.Status == from && w.OnchainSignature == nil
	}, func(w *models.Wager) {
		action, sig, at := s.Action, s.Signature, s.ConfirmedAt
		w.Status = s.Status
		w.OnchainAction = &action
		w.OnchainSignature = &sig
		w.OnchainConfirmedAt = &at
	})
}

func (m *memWagers) RecordDeposit(_ context.Context, id int64, role, signature, from, to string) error {
	return m.update(id, func(w models.Wager) bool {
		if w.Status != from {
			return false
		}
		if role == models.DepositRoleCreator {
			return w.CreatorDepositSignature == nil
		}
		return w.JoinerDepositSignature == nil
	}, func(w *models.Wager) {
		sig, now := signature, time.Now()
		if role == models.DepositRoleCreator {
			w.CreatorDepositSignature, w.CreatorDepositConfirmedAt = &sig, &now
		} else {
			w.JoinerDepositSignature, w.JoinerDepositConfirmedAt = &sig, &now
		}
		w.Status = to
	})
}

func (m *memWagers) AssignJoiner(_ context.Context, id int64, joinerID uuid.UUID, tagB string) error {
	return m.update(id, func(w models.Wager) bool {
		return w.JoinerID == nil && w.CreatorID != joinerID
	}, func(w *models.Wager) {
		j, t := joinerID, tagB
		w.JoinerID = &j
		w.TagB = &t
	})
}

type memUsers struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[uuid.UUID]models.User)}
}

// add registers a user with a fresh wallet and the given game tag.
func (m *memUsers) add(tag string) models.User {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}
	u := models.User{ID: uuid.New(), WalletAddress: key.PublicKey().String()}
	if tag != "" {
		u.GameTag = &tag
	}
	m.mu.Lock()
	m.rows[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memUsers) UpsertByWallet(_ context.Context, wallet string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.WalletAddress == wallet {
			return &u, nil
		}
	}
	u := models.User{ID: uuid.New(), WalletAddress: wallet}
	m.rows[u.ID] = u
	return &u, nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, wallet, gameTag, email *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if wallet != nil {
		for other, o := range m.rows {
			if other != id && o.WalletAddress == *wallet {
				return nil, repositories.ErrConflict
			}
		}
		u.WalletAddress = *wallet
	}
	if gameTag != nil {
		u.GameTag = gameTag
	}
	if email != nil {
		u.Email = email
	}
	m.rows[id] = u
	return &u, nil
}

type memInvites struct {
	mu   sync.Mutex
	rows map[string]models.WagerInvite
}

func newMemInvites() *memInvites {
	return &memInvites{rows: make(map[string]models.WagerInvite)}
}

func (m *memInvites) ReplaceActive(_ context.Context, inv *models.WagerInvite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for token, existing := range m.rows {
		if existing.WagerID == inv.WagerID && existing.IsActive() {
			existing.RevokedAt = &now
			m.rows[token] = existing
		}
	}
	if _, dup := m.rows[inv.Token]; dup {
		return repositories.ErrConflict
	}
	inv.ID = uuid.New()
	inv.CreatedAt = now
	m.rows[inv.Token] = *inv
	return nil
}

func (m *memInvites) GetByToken(_ context.Context, token string) (*models.WagerInvite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[token]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &inv, nil
}

func (m *memInvites) find(id uuid.UUID) (string, models.WagerInvite, bool) {
	for token, inv := range m.rows {
		if inv.ID == id {
			return token, inv, true
		}
	}
	return "", models.WagerInvite{}, false
}

func (m *memInvites) MarkAccepted(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, inv, ok := m.find(id)
	if !ok || !inv.IsActive() {
		return repositories.ErrStale
	}
	now, u := time.Now(), userID
	inv.AcceptedAt = &now
	inv.AcceptedByID = &u
	m.rows[token] = inv
	return nil
}

func (m *memInvites) ReleaseAccepted(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, inv, ok := m.find(id)
	if !ok || inv.AcceptedByID == nil || *inv.AcceptedByID != userID {
		return repositories.ErrStale
	}
	inv.AcceptedAt, inv.AcceptedByID = nil, nil
	m.rows[token] = inv
	return nil
}

// revokeAfterRead returns the invite as first read, then revokes it, like a
// revoke landing between the read and the claim.
type revokeAfterRead struct {
	*memInvites
	once sync.Once
}

func (r *revokeAfterRead) GetByToken(ctx context.Context, token string) (*models.WagerInvite, error) {
	inv, err := r.memInvites.GetByToken(ctx, token)
	if err == nil {
		r.once.Do(func() { _ = r.memInvites.Revoke(ctx, inv.ID) })
	}
	return inv, err
}

func (m *memInvites) Revoke(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, inv, ok := m.find(id)
	if !ok || !inv.IsActive() {
		return nil
	}
	now := time.Now()
	inv.RevokedAt = &now
	m.rows[token] = inv
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Log(_ context.Context, entry models.AuditLog) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeFeed struct {
	mu      sync.Mutex
	logs    map[string][]battlelog.Battle
	errs    map[string]error
	fetched []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{logs: map[string][]battlelog.Battle{}, errs: map[string]error{}}
}

func (f *fakeFeed) BattleLog(_ context.Context, tag string) ([]battlelog.Battle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, tag)
	if err := f.errs[tag]; err != nil {
		return nil, err
	}
	return f.logs[tag], nil
}

func (f *fakeFeed) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// duel builds a 1v1 battle between team and opponent tags.
func duel(at time.Time, team string, teamCrowns int, opp string, oppCrowns int) battlelog.Battle {
	return battlelog.Battle{
		BattleTime: at.UTC().Format("20060102T150405.000Z"),
		Type:       "PvP",
		Team:       []battlelog.Player{{Tag: strPtr(team), Name: "team", Crowns: intPtr(teamCrowns)}},
		Opponent:   []battlelog.Player{{Tag: strPtr(opp), Name: "opp", Crowns: intPtr(oppCrowns)}},
	}
}

func testSignature(b byte) string {
	var sig solana.Signature
	for i := range sig {
		sig[i] = b
	}
	return sig.String()
}
