package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	DefaultProgramID  = "F3AD5yK9rRiCQWesXeSQSTAmRDbe8ruvQVChE5vsyjnR"
	DefaultEscrowSeed = "escrow"
	DefaultVaultSeed  = "vault"
)

// Seeds are the PDA seed prefixes of the deployed program version.
type Seeds struct {
	Escrow string
	Vault  string
}

func DefaultSeeds() Seeds {
	return Seeds{Escrow: DefaultEscrowSeed, Vault: DefaultVaultSeed}
}

// Escrow derives program addresses and instruction payloads.
type Escrow struct {
	ProgramID solana.PublicKey
	Seeds     Seeds
}

func NewEscrow(programID string, seeds Seeds) (*Escrow, error) {
	if programID == "" {
		programID = DefaultProgramID
	}
	pk, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid escrow program id: %w", err)
	}
	if seeds.Escrow == "" {
		seeds.Escrow = DefaultEscrowSeed
	}
	if seeds.Vault == "" {
		seeds.Vault = DefaultVaultSeed
	}
	return &Escrow{ProgramID: pk, Seeds: seeds}, nil
}

type Addresses struct {
	ProgramID   string `json:"program_id"`
	Escrow      string `json:"escrow"`
	EscrowBump  uint8  `json:"escrow_bump"`
	Vault       string `json:"vault"`
	VaultBump   uint8  `json:"vault_bump"`
	WagerIDSeed string `json:"wager_id_seed"` // hex u64le
}

func wagerIDBytes(wagerID uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, wagerID)
	return b
}

func (e *Escrow) EscrowPDA(wagerID uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(e.Seeds.Escrow), wagerIDBytes(wagerID)}, e.ProgramID)
}

func (e *Escrow) VaultPDA(wagerID uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(e.Seeds.Vault), wagerIDBytes(wagerID)}, e.ProgramID)
}

func (e *Escrow) Addresses(wagerID uint64) (Addresses, error) {
	escrow, escrowBump, err := e.EscrowPDA(wagerID)
	if err != nil {
		return Addresses{}, err
	}
	vault, vaultBump, err := e.VaultPDA(wagerID)
	if err != nil {
		return Addresses{}, err
	}
	return Addresses{
		ProgramID:   e.ProgramID.String(),
		Escrow:      escrow.String(),
		EscrowBump:  escrowBump,
		Vault:       vault.String(),
		VaultBump:   vaultBump,
		WagerIDSeed: fmt.Sprintf("%x", wagerIDBytes(wagerID)),
	}, nil
}

// Discriminator is the Anchor method selector: sha256("global:<name>")[:8].
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

func SettleData(wagerID uint64, winner WinnerSide) []byte {
	d := Discriminator("settle")
	data := make([]byte, 0, 17)
	data = append(data, d[:]...)
	data = append(data, wagerIDBytes(wagerID)...)
	return append(data, byte(winner))
}

func RefundData(wagerID uint64) []byte {
	d := Discriminator("refund")
	data := make([]byte, 0, 16)
	data = append(data, d[:]...)
	return append(data, wagerIDBytes(wagerID)...)
}

// oracleInstruction builds settle/refund; both take the same account list.
func (e *Escrow) oracleInstruction(oracle solana.PublicKey, wagerID uint64, creator, joiner string, data []byte) (solana.Instruction, error) {
	escrow, _, err := e.EscrowPDA(wagerID)
	if err != nil {
		return nil, err
	}
	vault, _, err := e.VaultPDA(wagerID)
	if err != nil {
		return nil, err
	}
	creatorPK, err := solana.PublicKeyFromBase58(creator)
	if err != nil {
		return nil, fmt.Errorf("invalid creator address: %w", err)
	}
	joinerPK, err := solana.PublicKeyFromBase58(joiner)
	if err != nil {
		return nil, fmt.Errorf("invalid joiner address: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(oracle, false, true),
		solana.NewAccountMeta(escrow, true, false),
		solana.NewAccountMeta(vault, true, false),
		solana.NewAccountMeta(creatorPK, true, false),
		solana.NewAccountMeta(joinerPK, true, false),
	}
	return solana.NewInstruction(e.ProgramID, accounts, data), nil
}

func (e *Escrow) SettleInstruction(oracle solana.PublicKey, wagerID uint64, winner WinnerSide, creator, joiner string) (solana.Instruction, error) {
	if winner > WinnerTie {
		return nil, fmt.Errorf("invalid winner side %d", winner)
	}
	return e.oracleInstruction(oracle, wagerID, creator, joiner, SettleData(wagerID, winner))
}

func (e *Escrow) RefundInstruction(oracle solana.PublicKey, wagerID uint64, creator, joiner string) (solana.Instruction, error) {
	return e.oracleInstruction(oracle, wagerID, creator, joiner, RefundData(wagerID))
}
