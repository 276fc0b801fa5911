// Package checkpoint reproduces the Gravity contract's ABI encodings of valsets, batches and logic
// calls, and the Keccak-256 checkpoints that validators sign over them.
package checkpoint

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
)

var (
	bytes32Type, _      = abi.NewType("bytes32", "", nil)
	bytesType, _        = abi.NewType("bytes", "", nil)
	uint256Type, _      = abi.NewType("uint256", "", nil)
	uint256ArrayType, _ = abi.NewType("uint256[]", "", nil)
	addressType, _      = abi.NewType("address", "", nil)
	addressArrayType, _ = abi.NewType("address[]", "", nil)

	valsetArgs = abi.Arguments{
		{Name: "gravityId", Type: bytes32Type},
		{Name: "methodName", Type: bytes32Type},
		{Name: "valsetNonce", Type: uint256Type},
		{Name: "validators", Type: addressArrayType},
		{Name: "powers", Type: uint256ArrayType},
		{Name: "rewardAmount", Type: uint256Type},
		{Name: "rewardToken", Type: addressType},
	}

	batchArgs = abi.Arguments{
		{Name: "gravityId", Type: bytes32Type},
		{Name: "methodName", Type: bytes32Type},
		{Name: "amounts", Type: uint256ArrayType},
		{Name: "destinations", Type: addressArrayType},
		{Name: "fees", Type: uint256ArrayType},
		{Name: "batchNonce", Type: uint256Type},
		{Name: "tokenContract", Type: addressType},
		{Name: "batchTimeout", Type: uint256Type},
	}

	logicCallArgs = abi.Arguments{
		{Name: "gravityId", Type: bytes32Type},
		{Name: "methodName", Type: bytes32Type},
		{Name: "transferAmounts", Type: uint256ArrayType},
		{Name: "transferTokenContracts", Type: addressArrayType},
		{Name: "feeAmounts", Type: uint256ArrayType},
		{Name: "feeTokenContracts", Type: addressArrayType},
		{Name: "logicContractAddress", Type: addressType},
		{Name: "payload", Type: bytesType},
		{Name: "timeout", Type: uint256Type},
		{Name: "invalidationId", Type: bytes32Type},
		{Name: "invalidationNonce", Type: uint256Type},
	}
)

// Method names mixed into each encoding so a signature over one kind never verifies as another.
var (
	valsetMethod    = methodName("checkpoint")
	batchMethod     = methodName("transactionBatch")
	logicCallMethod = methodName("logicCall")
)

func methodName(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

// EncodeValsetConfirm returns the ABI message whose digest is the valset checkpoint. Members are
// encoded in the order given.
func EncodeValsetConfirm(gravityID types.GravityID, vs *types.Valset) ([]byte, error) {
	id, err := gravityID.Bytes32()
	if err != nil {
		return nil, err
	}
	if vs == nil {
		return nil, fmt.Errorf("nil valset")
	}
	validators := make([]common.Address, len(vs.Members))
	powers := make([]*big.Int, len(vs.Members))
	for i, m := range vs.Members {
		validators[i] = m.EthereumAddress
		powers[i] = new(big.Int).SetUint64(m.Power)
	}
	bz, err := valsetArgs.Pack(id, valsetMethod, new(big.Int).SetUint64(vs.Nonce), validators, powers,
		vs.Reward(), vs.RewardTokenAddress())
	if err != nil {
		return nil, fmt.Errorf("encode valset %d: %w", vs.Nonce, err)
	}
	return bz, nil
}

// ValsetCheckpoint is the digest the contract stores as state_lastValsetCheckpoint.
func ValsetCheckpoint(gravityID types.GravityID, vs *types.Valset) (types.Checkpoint, error) {
	bz, err := EncodeValsetConfirm(gravityID, vs)
	if err != nil {
		return types.Checkpoint{}, err
	}
	return Keccak256(bz), nil
}

// EncodeBatch returns the transactionBatch ABI message for an outgoing batch.
func EncodeBatch(gravityID types.GravityID, batch *types.OutgoingTxBatch) ([]byte, error) {
	id, err := gravityID.Bytes32()
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("nil batch")
	}
	amounts := make([]*big.Int, len(batch.Transactions))
	destinations := make([]common.Address, len(batch.Transactions))
	fees := make([]*big.Int, len(batch.Transactions))
	for i, tx := range batch.Transactions {
		amounts[i] = orZero(tx.Token.Amount)
		destinations[i] = tx.DestAddress
		fees[i] = orZero(tx.Fee.Amount)
	}
	bz, err := batchArgs.Pack(id, batchMethod, amounts, destinations, fees,
		new(big.Int).SetUint64(batch.BatchNonce), batch.TokenContract, new(big.Int).SetUint64(batch.BatchTimeout))
	if err != nil {
		return nil, fmt.Errorf("encode batch %d: %w", batch.BatchNonce, err)
	}
	return bz, nil
}

// BatchCheckpoint hashes EncodeBatch.
func BatchCheckpoint(gravityID types.GravityID, batch *types.OutgoingTxBatch) (types.Checkpoint, error) {
	bz, err := EncodeBatch(gravityID, batch)
	if err != nil {
		return types.Checkpoint{}, err
	}
	return Keccak256(bz), nil
}

// EncodeLogicCall returns the logicCall ABI message for an outgoing logic call.
func EncodeLogicCall(gravityID types.GravityID, call *types.OutgoingLogicCall) ([]byte, error) {
	id, err := gravityID.Bytes32()
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("nil logic call")
	}
	if len(call.InvalidationID) > 32 {
		return nil, fmt.Errorf("invalidation id is %d bytes, longer than 32", len(call.InvalidationID))
	}
	var invalidationID [32]byte
	copy(invalidationID[:], call.InvalidationID)

	transferAmounts, transferTokens := splitTokens(call.Transfers)
	feeAmounts, feeTokens := splitTokens(call.Fees)
	payload := call.Payload
	if payload == nil {
		payload = []byte{}
	}
	bz, err := logicCallArgs.Pack(id, logicCallMethod, transferAmounts, transferTokens, feeAmounts, feeTokens,
		call.LogicContractAddress, payload, new(big.Int).SetUint64(call.Timeout), invalidationID,
		new(big.Int).SetUint64(call.InvalidationNonce))
	if err != nil {
		return nil, fmt.Errorf("encode logic call %x/%d: %w", call.InvalidationID, call.InvalidationNonce, err)
	}
	return bz, nil
}

// LogicCallCheckpoint hashes EncodeLogicCall.
func LogicCallCheckpoint(gravityID types.GravityID, call *types.OutgoingLogicCall) (types.Checkpoint, error) {
	bz, err := EncodeLogicCall(gravityID, call)
	if err != nil {
		return types.Checkpoint{}, err
	}
	return Keccak256(bz), nil
}

// OfEvidence computes the checkpoint of whichever object the evidence challenges.
func OfEvidence(gravityID types.GravityID, ev types.BadSignatureEvidence) (types.Checkpoint, error) {
	switch e := ev.(type) {
	case types.ValsetChallenge:
		return ValsetCheckpoint(gravityID, e.Valset)
	case types.BatchChallenge:
		return BatchCheckpoint(gravityID, e.Batch)
	case types.LogicCallChallenge:
		return LogicCallCheckpoint(gravityID, e.Call)
	default:
		return types.Checkpoint{}, fmt.Errorf("unsupported evidence %T", ev)
	}
}

// Keccak256 is the legacy (pre-NIST) Keccak used by the EVM.
func Keccak256(data []byte) types.Checkpoint {
	var out types.Checkpoint
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

func splitTokens(tokens []types.ERC20Token) ([]*big.Int, []common.Address) {
	amounts := make([]*big.Int, len(tokens))
	contracts := make([]common.Address, len(tokens))
	for i, t := range tokens {
		amounts[i] = orZero(t.Amount)
		contracts[i] = t.Contract
	}
	return amounts, contracts
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}
