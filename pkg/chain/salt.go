package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DeriveSalt maps an invoice ID to the deterministic bytes32 salt used for
// vault address derivation. The same invoice always yields the same salt, so
// the deposit address can be recomputed from the invoice record alone.
func DeriveSalt(invoiceID string) string {
	hash := gethcrypto.Keccak256([]byte(invoiceID))
	return hexutil.Encode(hash)
}

// ParseSalt decodes a 0x-prefixed 32-byte hex salt.
func ParseSalt(salt string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(strings.TrimSpace(salt))
	if err != nil {
		return out, fmt.Errorf("decoding salt %q: %w", salt, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("salt %q is %d bytes, want 32", salt, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
