// Package verify resolves the latest validator set that the EVM contract and the Cosmos chain
// agree on.
package verify

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/gravity/checkpoint"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/logging"
)

// ContractReader is the EVM side of the three-way read. *evm.ContractReader implements it.
type ContractReader interface {
	Contract() common.Address
	BlockNumber(ctx context.Context) (uint64, error)
	LatestValsetNonce(ctx context.Context, block uint64) (uint64, error)
	LastValsetCheckpoint(ctx context.Context, block uint64) (types.Checkpoint, error)
	GravityID(ctx context.Context, block uint64) (types.GravityID, error)
}

// Resolution is a valset whose recomputed checkpoint matched the contract's.
type Resolution struct {
	Valset     *types.Valset
	GravityID  types.GravityID
	Checkpoint types.Checkpoint
	// Block is the EVM height the contract state was read at.
	Block uint64
}

// Verifier holds collaborators only; every call reads fresh state.
type Verifier struct {
	contract ContractReader
	valsets  cosmos.ValsetQuerier
	pool     pond.Pool
	logger   *zap.Logger
}

// NewVerifier builds a verifier. A nil pool gets a private three-worker pool.
func NewVerifier(contract ContractReader, valsets cosmos.ValsetQuerier, pool pond.Pool, logger *zap.Logger) *Verifier {
	if pool == nil {
		pool = pond.NewPool(3)
	}
	return &Verifier{contract: contract, valsets: valsets, pool: pool, logger: logging.OrNop(logger)}
}

// ResolveLatestValset returns the Cosmos valset at the contract's latest nonce, after checking
// that its checkpoint is the one the contract stores.
func (v *Verifier) ResolveLatestValset(ctx context.Context) (*types.Valset, error) {
	res, err := v.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.Valset, nil
}

// Resolve is ResolveLatestValset with the gravity id and checkpoint it was verified against.
//
// The head is read once and nonce, checkpoint and gravity id are then read concurrently at that
// block, so a valset update landing mid-read cannot split the pair. Any failure fails the call.
// There is no retry: a retry must repeat all three reads at a fresh block.
func (v *Verifier) Resolve(ctx context.Context) (*Resolution, error) {
	contract := v.contract.Contract()
	block, err := v.contract.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gravity state from %s: %w", contract.Hex(), err)
	}
	var (
		nonce     uint64
		onChain   types.Checkpoint
		gravityID types.GravityID
	)

	group := v.pool.NewGroupContext(ctx)
	gctx := group.Context()
	group.SubmitErr(func() (err error) {
		nonce, err = v.contract.LatestValsetNonce(gctx, block)
		return err
	})
	group.SubmitErr(func() (err error) {
		onChain, err = v.contract.LastValsetCheckpoint(gctx, block)
		return err
	})
	group.SubmitErr(func() (err error) {
		gravityID, err = v.contract.GravityID(gctx, block)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("read gravity state from %s at block %d: %w", contract.Hex(), block, err)
	}

	fetched, err := v.valsets.ValsetByNonce(ctx, nonce)
	if err != nil {
		return nil, fault.Transport(err, "query valset %d for %s", nonce, contract.Hex())
	}
	if fetched == nil {
		return nil, fault.NotFound("contract %s reports valset nonce %d but the cosmos chain has no valset at that nonce",
			contract.Hex(), nonce)
	}
	if fetched.Nonce != nonce {
		return nil, fault.InvariantViolation("requested valset %d for %s, cosmos returned nonce %d",
			nonce, contract.Hex(), fetched.Nonce)
	}

	recomputed, err := checkpoint.ValsetCheckpoint(gravityID, fetched)
	if err != nil {
		return nil, fault.Decode(true, err, "encode valset %d for %s", nonce, contract.Hex())
	}

	if recomputed != onChain {
		diagnosis := "members are correctly ordered; the contract may hold a hijacked validator set update"
		if orderErr := fetched.ValidateOrder(); orderErr != nil {
			diagnosis = "members are not sorted by descending power: " + orderErr.Error()
		}
		f := fault.ConsensusMismatch("valset %d checkpoint mismatch on %s (gravity id %q): contract has %s, cosmos valset hashes to %s; %s",
			nonce, contract.Hex(), string(gravityID), onChain.Hex(), recomputed.Hex(), diagnosis)
		v.logger.Error("valset consensus mismatch",
			zap.String("contract", contract.Hex()),
			zap.Uint64("nonce", nonce),
			zap.String("expected", onChain.Hex()),
			zap.String("actual", recomputed.Hex()),
			zap.String("diagnosis", diagnosis))
		return nil, f
	}

	v.logger.Debug("valset verified",
		zap.String("contract", contract.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("block", block),
		zap.String("checkpoint", onChain.Hex()))
	return &Resolution{Valset: fetched, GravityID: gravityID, Checkpoint: onChain, Block: block}, nil
}
