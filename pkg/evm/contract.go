// Package evm reads Gravity bridge contract state through read-only view calls.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/logging"
)

const (
	lastValsetNonceSig      = "state_lastValsetNonce()"
	lastValsetCheckpointSig = "state_lastValsetCheckpoint()"
	gravityIDSig            = "state_gravityId()"
)

// Selector returns the 4-byte function selector of a canonical signature.
func Selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// Caller issues view calls and reports the chain head. *ethclient.Client satisfies it.
type Caller interface {
	ethereum.ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
}

// ContractReader issues view calls against one deployed Gravity contract. Every read names the
// block it runs at, so reads sharing a block see one consistent state.
type ContractReader struct {
	caller   Caller
	contract common.Address
	logger   *zap.Logger
}

// NewContractReader binds caller to the contract at address.
func NewContractReader(caller Caller, contract common.Address, logger *zap.Logger) *ContractReader {
	return &ContractReader{caller: caller, contract: contract, logger: logging.OrNop(logger)}
}

// Contract returns the bound contract address.
func (r *ContractReader) Contract() common.Address { return r.contract }

// BlockNumber returns the current head height.
func (r *ContractReader) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := r.caller.BlockNumber(ctx)
	if err != nil {
		return 0, fault.Transport(err, "eth_blockNumber for %s", r.contract.Hex())
	}
	return n, nil
}

// call runs a zero-argument view function at block and returns its 32-byte word.
func (r *ContractReader) call(ctx context.Context, signature string, block uint64) ([]byte, error) {
	msg := ethereum.CallMsg{To: &r.contract, Data: Selector(signature)}
	out, err := r.caller.CallContract(ctx, msg, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fault.Transport(err, "call %s on %s at block %d", signature, r.contract.Hex(), block)
	}
	if len(out) < 32 {
		return nil, fault.Decode(true, nil, "call %s on %s returned %d bytes, want 32", signature, r.contract.Hex(), len(out))
	}
	r.logger.Debug("contract view call",
		zap.String("contract", r.contract.Hex()),
		zap.String("method", signature),
		zap.Uint64("block", block))
	return out[:32], nil
}

// LatestValsetNonce returns state_lastValsetNonce at block. Values above 64 bits are an Overflow fault.
func (r *ContractReader) LatestValsetNonce(ctx context.Context, block uint64) (uint64, error) {
	word, err := r.call(ctx, lastValsetNonceSig, block)
	if err != nil {
		return 0, err
	}
	return DowncastNonce(new(big.Int).SetBytes(word), r.contract)
}

// LastValsetCheckpoint returns state_lastValsetCheckpoint at block.
func (r *ContractReader) LastValsetCheckpoint(ctx context.Context, block uint64) (types.Checkpoint, error) {
	word, err := r.call(ctx, lastValsetCheckpointSig, block)
	if err != nil {
		return types.Checkpoint{}, err
	}
	var cp types.Checkpoint
	copy(cp[:], word)
	return cp, nil
}

// GravityID returns state_gravityId at block. A non-UTF-8 id is a fatal Decode fault.
func (r *ContractReader) GravityID(ctx context.Context, block uint64) (types.GravityID, error) {
	word, err := r.call(ctx, gravityIDSig, block)
	if err != nil {
		return "", err
	}
	id, err := types.ParseGravityID(word)
	if err != nil {
		return "", fault.Decode(true, err, "gravity id of %s", r.contract.Hex())
	}
	return id, nil
}

// DowncastNonce narrows an on-chain uint256 nonce. It never truncates.
func DowncastNonce(n *big.Int, contract common.Address) (uint64, error) {
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, fault.Overflow("valset nonce %s reported by %s does not fit in 64 bits", n.String(), contract.Hex())
	}
	return n.Uint64(), nil
}

// String is used in log fields.
func (r *ContractReader) String() string {
	return fmt.Sprintf("gravity(%s)", r.contract.Hex())
}
