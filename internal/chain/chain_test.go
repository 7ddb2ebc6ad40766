package chain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiscriminator(t *testing.T) {
	assert.Equal(t, [8]byte{175, 42, 185, 87, 144, 131, 102, 212}, Discriminator("settle"))
	assert.Equal(t, [8]byte{2, 96, 183, 251, 63, 208, 46, 46}, Discriminator("refund"))
}

func TestInstructionData(t *testing.T) {
	settle := SettleData(258, WinnerTie)
	require.Len(t, settle, 17)
	d := Discriminator("settle")
	assert.Equal(t, d[:], settle[:8])
	assert.Equal(t, uint64(258), binary.LittleEndian.Uint64(settle[8:16]))
	assert.Equal(t, byte(2), settle[16])

	refund := RefundData(7)
	require.Len(t, refund, 16)
	r := Discriminator("refund")
	assert.Equal(t, r[:], refund[:8])
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(refund[8:]))
}

func TestEscrowAddresses(t *testing.T) {
	escrow, err := NewEscrow("", Seeds{})
	require.NoError(t, err)
	assert.Equal(t, DefaultProgramID, escrow.ProgramID.String())
	assert.Equal(t, DefaultSeeds(), escrow.Seeds)

	a1, err := escrow.Addresses(1)
	require.NoError(t, err)
	again, err := escrow.Addresses(1)
	require.NoError(t, err)
	assert.Equal(t, a1, again, "derivation must be deterministic")
	assert.NotEqual(t, a1.Escrow, a1.Vault)
	assert.Equal(t, "0100000000000000", a1.WagerIDSeed)

	a2, err := escrow.Addresses(2)
	require.NoError(t, err)
	assert.NotEqual(t, a1.Escrow, a2.Escrow)

	expected, _, err := solana.FindProgramAddress([][]byte{[]byte("escrow"), {1, 0, 0, 0, 0, 0, 0, 0}}, escrow.ProgramID)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), a1.Escrow)
}

func TestEscrowSeedsAreConfigurable(t *testing.T) {
	v1, err := NewEscrow(DefaultProgramID, DefaultSeeds())
	require.NoError(t, err)
	v2, err := NewEscrow(DefaultProgramID, Seeds{Escrow: "escrow_v2", Vault: "vault_v2"})
	require.NoError(t, err)

	a1, err := v1.Addresses(42)
	require.NoError(t, err)
	a2, err := v2.Addresses(42)
	require.NoError(t, err)
	assert.NotEqual(t, a1.Escrow, a2.Escrow)
	assert.NotEqual(t, a1.Vault, a2.Vault)
}

func TestNewEscrowRejectsBadProgramID(t *testing.T) {
	_, err := NewEscrow("not-base58-!!", DefaultSeeds())
	assert.Error(t, err)
}

func TestLoadKeypairInline(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	inline := "["
	for i, b := range key {
		if i > 0 {
			inline += ","
		}
		inline += strconv.Itoa(int(b))
	}
	inline += "]"

	loaded, err := LoadKeypair(inline)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), loaded.PublicKey())

	_, err = LoadKeypair("")
	assert.ErrorIs(t, err, ErrNoKeypair)
	_, err = LoadKeypair("[1,2,3]")
	assert.Error(t, err)
	_, err = LoadKeypair("/nonexistent/oracle.json")
	assert.Error(t, err)
}

type fakeRPC struct {
	mu       sync.Mutex
	sent     []*solana.Transaction
	sendErr  error
	statuses []*rpc.SignatureStatusesResult
	polls    int
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{9, 9, 9}}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st *rpc.SignatureStatusesResult
	if f.polls < len(f.statuses) {
		st = f.statuses[f.polls]
	} else if len(f.statuses) > 0 {
		st = f.statuses[len(f.statuses)-1]
	}
	f.polls++
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{st}}, nil
}

func newTestSolana(t *testing.T, api *fakeRPC, confirm time.Duration) (*SolanaClient, solana.PrivateKey) {
	t.Helper()
	escrow, err := NewEscrow("", DefaultSeeds())
	require.NoError(t, err)
	oracle, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	c := newSolanaClient(api, escrow, oracle, SolanaOptions{
		ConfirmTimeout: confirm,
		PollInterval:   time.Millisecond,
	}, zap.NewNop())
	return c, oracle
}

func randomAddress(t *testing.T) string {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey().String()
}

func TestSolanaSettleBuildsSignedTransaction(t *testing.T) {
	api := &fakeRPC{statuses: []*rpc.SignatureStatusesResult{
		nil,
		{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
		{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
	}}
	client, oracle := newTestSolana(t, api, time.Second)
	creator, joiner := randomAddress(t), randomAddress(t)

	sig, err := client.Settle(context.Background(), 5, WinnerJoiner, creator, joiner)
	require.NoError(t, err)

	require.Len(t, api.sent, 1)
	tx := api.sent[0]
	assert.Equal(t, tx.Signatures[0].String(), sig)
	assert.Equal(t, oracle.PublicKey(), tx.Message.AccountKeys[0], "oracle pays and signs")
	require.Len(t, tx.Message.Instructions, 1)
	assert.Equal(t, []byte(SettleData(5, WinnerJoiner)), []byte(tx.Message.Instructions[0].Data))
	assert.GreaterOrEqual(t, api.polls, 3)
}

func TestSolanaRefundReportsOnchainFailure(t *testing.T) {
	api := &fakeRPC{statuses: []*rpc.SignatureStatusesResult{
		{Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
	}}
	client, _ := newTestSolana(t, api, time.Second)

	_, err := client.Refund(context.Background(), 9, randomAddress(t), randomAddress(t))
	var chainErr *Error
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, "refund", chainErr.Op)
	assert.Equal(t, uint64(9), chainErr.WagerID)
	assert.ErrorIs(t, err, ErrTxFailed)
}

func TestSolanaConfirmTimeout(t *testing.T) {
	api := &fakeRPC{}
	client, _ := newTestSolana(t, api, 20*time.Millisecond)

	_, err := client.Settle(context.Background(), 1, WinnerCreator, randomAddress(t), randomAddress(t))
	assert.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestSolanaSendError(t *testing.T) {
	api := &fakeRPC{sendErr: errors.New("blockhash not found")}
	client, _ := newTestSolana(t, api, time.Second)

	_, err := client.Settle(context.Background(), 1, WinnerCreator, randomAddress(t), randomAddress(t))
	var chainErr *Error
	require.ErrorAs(t, err, &chainErr)
	assert.Contains(t, err.Error(), "blockhash not found")
}

func TestSolanaRejectsBadAddresses(t *testing.T) {
	api := &fakeRPC{}
	client, _ := newTestSolana(t, api, time.Second)

	_, err := client.Settle(context.Background(), 1, WinnerCreator, "bad", randomAddress(t))
	assert.Error(t, err)
	_, err = client.Settle(context.Background(), 1, WinnerSide(3), randomAddress(t), randomAddress(t))
	assert.Error(t, err)
	assert.Empty(t, api.sent)
}

func TestFakeClient(t *testing.T) {
	fake := NewFakeClient()
	sig, err := fake.Settle(context.Background(), 3, WinnerCreator, "creator", "joiner")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	fake.SetErr(errors.New("rpc down"))
	_, err = fake.Refund(context.Background(), 3, "creator", "creator")
	var chainErr *Error
	require.ErrorAs(t, err, &chainErr)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "settle", calls[0].Op)
	assert.Equal(t, "refund", calls[1].Op)
}

func TestOpen(t *testing.T) {
	fake, err := Open(Settings{Mode: ModeFake}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FakeClient{}, fake.Client)
	assert.Empty(t, fake.Pubkey)
	assert.Equal(t, DefaultProgramID, fake.Escrow.ProgramID.String())

	_, err = Open(Settings{Mode: ModeLive}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoKeypair)

	_, err = Open(Settings{Mode: "testnet"}, zap.NewNop())
	assert.Error(t, err)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	path := t.TempDir() + "/oracle.json"
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	live, err := Open(Settings{Mode: ModeLive, Keypair: path}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), live.Pubkey)
	assert.IsType(t, &SolanaClient{}, live.Client)
}
