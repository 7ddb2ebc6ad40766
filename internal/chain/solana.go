package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const DefaultRPCURL = "https://api.devnet.solana.com"

// rpcAPI is the subset of the JSON-RPC client the oracle needs.
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

var (
	ErrConfirmTimeout = errors.New("transaction not confirmed before timeout")
	ErrTxFailed       = errors.New("transaction failed on chain")
)

type SolanaOptions struct {
	RPCURL         string
	RPCTimeout     time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// SolanaClient signs oracle instructions in-process and sends them over RPC.
type SolanaClient struct {
	rpc    rpcAPI
	escrow *Escrow
	oracle solana.PrivateKey
	opts   SolanaOptions
	log    *zap.Logger
}

func NewSolanaClient(escrow *Escrow, oracle solana.PrivateKey, opts SolanaOptions, log *zap.Logger) *SolanaClient {
	if opts.RPCURL == "" {
		opts.RPCURL = DefaultRPCURL
	}
	return newSolanaClient(rpc.New(opts.RPCURL), escrow, oracle, opts, log)
}

func newSolanaClient(api rpcAPI, escrow *Escrow, oracle solana.PrivateKey, opts SolanaOptions, log *zap.Logger) *SolanaClient {
	if opts.RPCTimeout <= 0 {
		opts.RPCTimeout = 8 * time.Second
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 45 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &SolanaClient{rpc: api, escrow: escrow, oracle: oracle, opts: opts, log: log.Named("chain")}
}

func (c *SolanaClient) OraclePublicKey() solana.PublicKey {
	return c.oracle.PublicKey()
}

func (c *SolanaClient) Settle(ctx context.Context, wagerID uint64, winner WinnerSide, creator, joiner string) (string, error) {
	ix, err := c.escrow.SettleInstruction(c.oracle.PublicKey(), wagerID, winner, creator, joiner)
	if err != nil {
		return "", &Error{Op: "settle", WagerID: wagerID, Err: err}
	}
	sig, err := c.submit(ctx, ix)
	if err != nil {
		return "", &Error{Op: "settle", WagerID: wagerID, Err: err}
	}
	c.log.Info("settle confirmed",
		zap.Uint64("wager_id", wagerID),
		zap.Stringer("winner", winner),
		zap.String("signature", sig),
	)
	return sig, nil
}

func (c *SolanaClient) Refund(ctx context.Context, wagerID uint64, creator, joiner string) (string, error) {
	ix, err := c.escrow.RefundInstruction(c.oracle.PublicKey(), wagerID, creator, joiner)
	if err != nil {
		return "", &Error{Op: "refund", WagerID: wagerID, Err: err}
	}
	sig, err := c.submit(ctx, ix)
	if err != nil {
		return "", &Error{Op: "refund", WagerID: wagerID, Err: err}
	}
	c.log.Info("refund confirmed", zap.Uint64("wager_id", wagerID), zap.String("signature", sig))
	return sig, nil
}

func (c *SolanaClient) buildTransaction(ctx context.Context, ix solana.Instruction) (*solana.Transaction, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	defer cancel()

	bh, err := c.rpc.GetLatestBlockhash(rpcCtx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	if bh == nil || bh.Value == nil {
		return nil, errors.New("get latest blockhash: empty result")
	}

	payer := c.oracle.PublicKey()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, bh.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &c.oracle
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

func (c *SolanaClient) submit(ctx context.Context, ix solana.Instruction) (string, error) {
	tx, err := c.buildTransaction(ctx, ix)
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	sig, err := c.rpc.SendTransactionWithOpts(sendCtx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	cancel()
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	if err := c.waitConfirmed(ctx, sig); err != nil {
		return "", fmt.Errorf("%s: %w", sig, err)
	}
	return sig.String(), nil
}

func (c *SolanaClient) waitConfirmed(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(ctx, sig)
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ErrConfirmTimeout
		case <-ticker.C:
		}
	}
}

func (c *SolanaClient) checkStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	defer cancel()

	res, err := c.rpc.GetSignatureStatuses(rpcCtx, false, sig)
	if err != nil {
		// transient, keep polling until the confirm deadline
		c.log.Debug("signature status lookup failed", zap.Error(err))
		return false, nil
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}
	st := res.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("%w: %v", ErrTxFailed, st.Err)
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	}
	return false, nil
}
