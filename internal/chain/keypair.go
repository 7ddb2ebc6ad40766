package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var ErrNoKeypair = errors.New("ORACLE_AUTHORITY_KEYPAIR_JSON is missing")

// LoadKeypair accepts either an inline JSON byte array (solana-keygen format)
// or a path to a keygen file.
func LoadKeypair(value string) (solana.PrivateKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNoKeypair
	}

	if strings.HasPrefix(value, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(value), &ints); err != nil {
			return nil, fmt.Errorf("parse oracle keypair json: %w", err)
		}
		if len(ints) != 64 {
			return nil, fmt.Errorf("oracle keypair must have 64 bytes, got %d", len(ints))
		}
		key := make([]byte, 64)
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("oracle keypair byte %d out of range", i)
			}
			key[i] = byte(v)
		}
		return solana.PrivateKey(key), nil
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(value)
	if err != nil {
		return nil, fmt.Errorf("read oracle keypair file: %w", err)
	}
	return key, nil
}
