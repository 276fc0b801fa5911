package types

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// GravityID identifies one deployed bridge contract. It is embedded in every signed message so a
// signature for one deployment cannot be replayed against another.
type GravityID string

// Bytes32 returns the id right-padded with zero bytes, as the contract stores it.
func (g GravityID) Bytes32() ([32]byte, error) {
	var out [32]byte
	if len(g) > len(out) {
		return out, fmt.Errorf("gravity id %q is %d bytes, longer than 32", string(g), len(g))
	}
	copy(out[:], g)
	return out, nil
}

// ParseGravityID decodes the bytes32 returned by state_gravityId(). Trailing zero padding is
// stripped and the remainder must be valid UTF-8.
func ParseGravityID(raw []byte) (GravityID, error) {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	trimmed := raw[:end]
	if !utf8.Valid(trimmed) {
		return "", fmt.Errorf("gravity id 0x%s is not valid utf-8", hex.EncodeToString(raw))
	}
	return GravityID(trimmed), nil
}

// Checkpoint is the 32-byte Keccak-256 digest anchoring a valset, batch or logic call on the
// EVM contract.
type Checkpoint [32]byte

// Hex renders the checkpoint with a 0x prefix.
func (c Checkpoint) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// Bytes returns a copy of the digest.
func (c Checkpoint) Bytes() []byte {
	out := make([]byte, len(c))
	copy(out, c[:])
	return out
}
