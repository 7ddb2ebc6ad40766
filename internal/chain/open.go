package chain

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	ModeLive = "live"
	ModeFake = "fake"
)

type Settings struct {
	Mode           string
	RPCURL         string
	ProgramID      string
	Seeds          Seeds
	Keypair        string
	RPCTimeout     time.Duration
	ConfirmTimeout time.Duration
}

// Oracle bundles the chain client with what the API advertises to clients.
type Oracle struct {
	Client Client
	Escrow *Escrow
	Pubkey string // empty in fake mode
}

func Open(s Settings, log *zap.Logger) (*Oracle, error) {
	escrow, err := NewEscrow(s.ProgramID, s.Seeds)
	if err != nil {
		return nil, err
	}

	switch s.Mode {
	case ModeFake:
		log.Warn("chain mode is fake, settlements are not sent on chain")
		return &Oracle{Client: NewFakeClient(), Escrow: escrow}, nil
	case ModeLive, "":
	default:
		return nil, fmt.Errorf("unknown chain mode %q", s.Mode)
	}

	key, err := LoadKeypair(s.Keypair)
	if err != nil {
		return nil, err
	}
	client := NewSolanaClient(escrow, key, SolanaOptions{
		RPCURL:         s.RPCURL,
		RPCTimeout:     s.RPCTimeout,
		ConfirmTimeout: s.ConfirmTimeout,
	}, log)
	log.Info("oracle loaded",
		zap.String("pubkey", client.OraclePublicKey().String()),
		zap.String("program_id", escrow.ProgramID.String()),
	)
	return &Oracle{Client: client, Escrow: escrow, Pubkey: client.OraclePublicKey().String()}, nil
}
