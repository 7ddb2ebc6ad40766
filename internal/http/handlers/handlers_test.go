package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wager-royale/backend/internal/chain"
	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/middleware"
	"github.com/wager-royale/backend/internal/models"
	"github.com/wager-royale/backend/internal/resultfeed"
	"github.com/wager-royale/backend/internal/services"
	"go.uber.org/zap"
)

type fakeWagers struct {
	created    services.CreateWagerInput
	filter     models.WagerFilter
	depositArg string
	err        error
	wager      *models.Wager
}

func (f *fakeWagers) CreateWager(_ context.Context, creatorID uuid.UUID, in services.CreateWagerInput) (*models.Wager, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Wager{ID: 1, CreatorID: creatorID, Status: models.WagerStatusAwaitingCreatorDeposit, AmountLamports: in.AmountLamports}, nil
}

func (f *fakeWagers) GetWager(context.Context, int64) (*models.Wager, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.wager, nil
}

func (f *fakeWagers) ListWagers(_ context.Context, filter models.WagerFilter) ([]models.Wager, error) {
	f.filter = filter
	return []models.Wager{}, f.err
}

func (f *fakeWagers) RecordDeposit(_ context.Context, _ int64, _ uuid.UUID, role, _ string) (*models.Wager, error) {
	f.depositArg = role
	return f.wager, f.err
}

func (f *fakeWagers) Join(context.Context, int64, uuid.UUID, *string) (*models.Wager, error) {
	return f.wager, f.err
}

func withUser(userID uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.CtxUserID, userID)
		return c.Next()
	}
}

func newWagerApp(t *testing.T, fake *fakeWagers, userID uuid.UUID) *fiber.App {
	t.Helper()
	escrow, err := chain.NewEscrow("", chain.DefaultSeeds())
	require.NoError(t, err)
	h := NewWagerHandler(fake, escrow, "oracle-pubkey", zap.NewNop())

	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware(), withUser(userID))
	app.Post("/wagers", h.CreateWager)
	app.Get("/wagers", h.ListWagers)
	app.Get("/wagers/:id", h.GetWager)
	app.Get("/wagers/:id/escrow", h.GetEscrow)
	app.Post("/wagers/:id/deposits/creator", h.CreatorDeposit)
	app.Post("/wagers/:id/deposits/joiner", h.JoinerDeposit)
	app.Post("/wagers/:id/join", h.JoinWager)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &services.ValidationError{Msg: "bad"}, fiber.StatusUnprocessableEntity},
		{"already has joiner", services.ErrAlreadyHasJoiner, fiber.StatusUnprocessableEntity},
		{"not found", services.ErrNotFound, fiber.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", services.ErrNotFound), fiber.StatusNotFound},
		{"race", &services.RaceError{WagerID: 1, Err: errors.New("stale")}, fiber.StatusConflict},
		{"in progress", services.ErrSettlementInProgress, fiber.StatusConflict},
		{"resolution", &services.ResolutionError{WagerID: 1, Err: &resultfeed.HTTPError{Status: 503}}, fiber.StatusBadGateway},
		{"settlement", &services.SettlementError{WagerID: 1, Err: errors.New("rpc down")}, fiber.StatusBadGateway},
		{"settlement wrapping not found", &services.SettlementError{WagerID: 1, Err: services.ErrNotFound}, fiber.StatusBadGateway},
		{"other", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateWager(t *testing.T) {
	userID := uuid.New()
	fake := &fakeWagers{}
	app := newWagerApp(t, fake, userID)

	deadline := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	status, body := do(t, app, "POST", "/wagers", `{"tag_b":"#LQGR","amount_lamports":5000,"deadline_at":"`+deadline+`"}`)

	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, body["ok"])
	data := body["data"].(map[string]any)
	assert.Equal(t, userID.String(), data["creator_id"])
	assert.Equal(t, int64(5000), fake.created.AmountLamports)
	require.NotNil(t, fake.created.TagB)
	assert.Equal(t, "#LQGR", *fake.created.TagB)
	require.NotNil(t, fake.created.DeadlineAt)
}

func TestCreateWagerValidationError(t *testing.T) {
	fake := &fakeWagers{err: &services.ValidationError{Msg: "amount_lamports must be positive"}}
	app := newWagerApp(t, fake, uuid.New())

	status, body := do(t, app, "POST", "/wagers", `{"amount_lamports":0}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "amount_lamports must be positive", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestGetWagerErrors(t *testing.T) {
	app := newWagerApp(t, &fakeWagers{err: services.ErrNotFound}, uuid.New())

	status, _ := do(t, app, "GET", "/wagers/abc", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = do(t, app, "GET", "/wagers/0", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = do(t, app, "GET", "/wagers/7", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestListWagersFilter(t *testing.T) {
	userID := uuid.New()
	fake := &fakeWagers{}
	app := newWagerApp(t, fake, userID)

	status, _ := do(t, app, "GET", "/wagers?status=active&mine=true&limit=5&offset=10", "")
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, fake.filter.Status)
	assert.Equal(t, models.WagerStatusActive, *fake.filter.Status)
	require.NotNil(t, fake.filter.UserID)
	assert.Equal(t, userID, *fake.filter.UserID)
	assert.Equal(t, 5, fake.filter.Limit)
	assert.Equal(t, 10, fake.filter.Offset)

	status, _ = do(t, app, "GET", "/wagers?status=bogus", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestDepositRoutes(t *testing.T) {
	fake := &fakeWagers{wager: &models.Wager{ID: 3, Status: models.WagerStatusAwaitingJoinerDeposit}}
	app := newWagerApp(t, fake, uuid.New())

	status, _ := do(t, app, "POST", "/wagers/3/deposits/creator", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "POST", "/wagers/3/deposits/creator", `{"signature":"sig"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.DepositRoleCreator, fake.depositArg)

	status, _ = do(t, app, "POST", "/wagers/3/deposits/joiner", `{"signature":"sig"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.DepositRoleJoiner, fake.depositArg)
}

func TestJoinConflict(t *testing.T) {
	fake := &fakeWagers{err: &services.RaceError{WagerID: 3, Err: errors.New("stale")}}
	app := newWagerApp(t, fake, uuid.New())

	status, body := do(t, app, "POST", "/wagers/3/join", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.NotEmpty(t, body["error"])
}

func TestGetEscrow(t *testing.T) {
	fake := &fakeWagers{wager: &models.Wager{ID: 42, AmountLamports: 1000}}
	app := newWagerApp(t, fake, uuid.New())

	status, body := do(t, app, "GET", "/wagers/42/escrow", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)

	escrow, _ := chain.NewEscrow("", chain.DefaultSeeds())
	want, err := escrow.Addresses(42)
	require.NoError(t, err)
	assert.Equal(t, want.Escrow, data["escrow_pda"])
	assert.Equal(t, want.Vault, data["vault_pda"])
	assert.Equal(t, chain.DefaultProgramID, data["program_id"])
	assert.Equal(t, "oracle-pubkey", data["oracle_pubkey"])
}

type stubCatalog map[int64]string

func (s stubCatalog) IconsByID(context.Context) map[int64]string { return s }

func TestGetCards(t *testing.T) {
	app := fiber.New()
	app.Get("/meta/cards", NewMetaHandler(stubCatalog{26000000: "https://cdn/knight.png"}).GetCards)

	status, body := do(t, app, "GET", "/meta/cards", "")
	assert.Equal(t, fiber.StatusOK, status)
	icons := body["data"].(map[string]any)["icons"].(map[string]any)
	assert.Equal(t, "https://cdn/knight.png", icons["26000000"])
}

func TestWSHubRecipients(t *testing.T) {
	operator := uuid.New()
	creator := uuid.New()
	joiner := uuid.New()
	bystander := uuid.New()

	hub := NewWSHub(&config.Config{OperatorUserIDs: []uuid.UUID{operator}}, events.NewBus(), zap.NewNop())
	for _, id := range []uuid.UUID{operator, creator, bystander} {
		hub.connections[id] = nil
	}

	got := hub.recipients(events.Event{Type: events.EventWagerJoined, Payload: map[string]any{
		"creator_id": creator.String(),
		"joiner_id":  joiner.String(),
	}})
	assert.ElementsMatch(t, []uuid.UUID{creator, joiner, operator}, got)

	got = hub.recipients(events.Event{Type: events.EventWagerCreated, Payload: map[string]any{
		"creator_id": operator.String(),
	}})
	assert.Equal(t, []uuid.UUID{operator}, got, "operator listed once")
}

type fakeAudit struct {
	wagerID int64
	filter  models.AuditFilter
}

func (f *fakeAudit) ListForWager(_ context.Context, wagerID int64, filter models.AuditFilter) ([]models.AuditLog, error) {
	f.wagerID, f.filter = wagerID, filter
	return []models.AuditLog{models.WagerAudit(wagerID, models.ActorTypeOracle, "wager_settle", nil, nil)}, nil
}

func TestAuditLogFilter(t *testing.T) {
	audit := &fakeAudit{}
	h := NewOracleHandler(nil, nil, nil, audit, zap.NewNop())
	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())
	app.Get("/oracle/wagers/:id/audit", h.AuditLog)

	status, body := do(t, app, "GET", "/oracle/wagers/7/audit?actor=oracle&limit=500&offset=10", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(7), audit.wagerID)
	assert.Equal(t, models.AuditFilter{ActorType: models.ActorTypeOracle, Limit: 50, Offset: 10}, audit.filter)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0].(map[string]any)["entity_id"])

	status, _ = do(t, app, "GET", "/oracle/wagers/7/audit?actor=robot", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

type fakeInvites struct {
	err error
}

func (f *fakeInvites) Create(context.Context, int64, uuid.UUID) (*models.WagerInvite, error) {
	return nil, f.err
}

func (f *fakeInvites) Get(context.Context, string) (*models.WagerInvite, error) {
	return nil, f.err
}

func (f *fakeInvites) Accept(_ context.Context, token string, userID uuid.UUID) (*models.WagerInvite, *models.Wager, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	now := time.Now()
	return &models.WagerInvite{Token: token, WagerID: 9, AcceptedAt: &now, AcceptedByID: &userID},
		&models.Wager{ID: 9, JoinerID: &userID}, nil
}

func (f *fakeInvites) Revoke(context.Context, string, uuid.UUID) (*models.WagerInvite, error) {
	return nil, f.err
}

func TestAcceptInvite(t *testing.T) {
	userID := uuid.New()
	newApp := func(fake *fakeInvites) *fiber.App {
		app := fiber.New()
		app.Use(middleware.RequestIDMiddleware(), withUser(userID))
		app.Post("/invites/:token/accept", NewInviteHandler(fake, zap.NewNop()).AcceptInvite)
		return app
	}

	status, body := do(t, newApp(&fakeInvites{}), "POST", "/invites/tok/accept", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "tok", data["invite"].(map[string]any)["token"])
	assert.Equal(t, userID.String(), data["wager"].(map[string]any)["joiner_id"])

	status, _ = do(t, newApp(&fakeInvites{err: &services.ValidationError{Msg: "invite was revoked"}}), "POST", "/invites/tok/accept", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}
