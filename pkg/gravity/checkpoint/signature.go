package checkpoint

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
)

// SignatureLength is r || s || v.
const SignatureLength = 65

// SignCheckpoint produces the Ethereum personal-sign signature orchestrators submit as confirms.
// V is 27 or 28.
func SignCheckpoint(key *ecdsa.PrivateKey, cp types.Checkpoint) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(cp[:]), key)
	if err != nil {
		return nil, fmt.Errorf("sign checkpoint %s: %w", cp.Hex(), err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced sig over cp. Both 0/1 and 27/28 V values are
// accepted.
func RecoverSigner(cp types.Checkpoint, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature has invalid length: expected %d, got %d", SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(cp[:]), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer of %s: %w", cp.Hex(), err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
