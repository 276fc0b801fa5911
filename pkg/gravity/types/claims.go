package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/canopy-network/bridgewatch/pkg/wire"
)

// Claim is a typed payload carried inside an attestation.
type Claim interface {
	wire.Message
	// ClaimType is the Any type URL the claim is packed under.
	ClaimType() string
	GetEventNonce() uint64
}

const (
	SendToCosmosClaimType       = "/gravity.v1.MsgSendToCosmosClaim"
	SendERC721ToCosmosClaimType = "/gravity.v1.MsgSendERC721ToCosmosClaim"
	BatchSendToEthClaimType     = "/gravity.v1.MsgBatchSendToEthClaim"
	ERC20DeployedClaimType      = "/gravity.v1.MsgERC20DeployedClaim"
	LogicCallExecutedClaimType  = "/gravity.v1.MsgLogicCallExecutedClaim"
	ValsetUpdatedClaimType      = "/gravity.v1.MsgValsetUpdatedClaim"
)

// fieldHandlers decodes known fields by number. Wire type mismatches on known fields are errors.
type fieldHandlers map[protowire.Number]func(wire.Field) error

func (h fieldHandlers) decode(bz []byte) error {
	return wire.Walk(bz, func(f wire.Field) error {
		if fn, ok := h[f.Num]; ok {
			return fn(f)
		}
		return nil
	})
}

func uintField(dst *uint64) func(wire.Field) error {
	return func(f wire.Field) error {
		if err := f.Expect(protowire.VarintType); err != nil {
			return err
		}
		*dst = f.Varint
		return nil
	}
}

func stringField(dst *string) func(wire.Field) error {
	return func(f wire.Field) error {
		if err := f.Expect(protowire.BytesType); err != nil {
			return err
		}
		*dst = f.String()
		return nil
	}
}

func bytesField(dst *[]byte) func(wire.Field) error {
	return func(f wire.Field) error {
		if err := f.Expect(protowire.BytesType); err != nil {
			return err
		}
		*dst = append([]byte(nil), f.Bytes...)
		return nil
	}
}

// MsgSendToCosmosClaim records an ERC-20 deposit into the bridge contract.
type MsgSendToCosmosClaim struct {
	EventNonce     uint64
	EthBlockHeight uint64
	TokenContract  string
	Amount         string
	EthereumSender string
	CosmosReceiver string
	Orchestrator   string
	EvmChainPrefix string
}

func (*MsgSendToCosmosClaim) ClaimType() string      { return SendToCosmosClaimType }
func (m *MsgSendToCosmosClaim) GetEventNonce() uint64 { return m.EventNonce }

// AmountInt parses Amount as an unsigned integer.
func (m *MsgSendToCosmosClaim) AmountInt() (*big.Int, error) {
	n, ok := new(big.Int).SetString(m.Amount, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid deposit amount %q", m.Amount)
	}
	return n, nil
}

func (m *MsgSendToCosmosClaim) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, m.EventNonce)
	b = wire.AppendUint64(b, 2, m.EthBlockHeight)
	b = wire.AppendString(b, 3, m.TokenContract)
	b = wire.AppendString(b, 4, m.Amount)
	b = wire.AppendString(b, 5, m.EthereumSender)
	b = wire.AppendString(b, 6, m.CosmosReceiver)
	b = wire.AppendString(b, 7, m.Orchestrator)
	b = wire.AppendString(b, 8, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgSendToCosmosClaim) Unmarshal(bz []byte) error {
	*m = MsgSendToCosmosClaim{}
	return fieldHandlers{
		1: uintField(&m.EventNonce),
		2: uintField(&m.EthBlockHeight),
		3: stringField(&m.TokenContract),
		4: stringField(&m.Amount),
		5: stringField(&m.EthereumSender),
		6: stringField(&m.CosmosReceiver),
		7: stringField(&m.Orchestrator),
		8: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}

// MsgSendERC721ToCosmosClaim records an ERC-721 deposit into the GravityERC721 contract.
type MsgSendERC721ToCosmosClaim struct {
	EventNonce     uint64
	EthBlockHeight uint64
	TokenContract  string
	TokenID        string
	EthereumSender string
	CosmosReceiver string
	Orchestrator   string
	TokenURI       string
	EvmChainPrefix string
}

func (*MsgSendERC721ToCosmosClaim) ClaimType() string      { return SendERC721ToCosmosClaimType }
func (m *MsgSendERC721ToCosmosClaim) GetEventNonce() uint64 { return m.EventNonce }

func (m *MsgSendERC721ToCosmosClaim) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, m.EventNonce)
	b = wire.AppendUint64(b, 2, m.EthBlockHeight)
	b = wire.AppendString(b, 3, m.TokenContract)
	b = wire.AppendString(b, 4, m.TokenID)
	b = wire.AppendString(b, 5, m.EthereumSender)
	b = wire.AppendString(b, 6, m.CosmosReceiver)
	b = wire.AppendString(b, 7, m.Orchestrator)
	b = wire.AppendString(b, 8, m.TokenURI)
	b = wire.AppendString(b, 9, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgSendERC721ToCosmosClaim) Unmarshal(bz []byte) error {
	*m = MsgSendERC721ToCosmosClaim{}
	return fieldHandlers{
		1: uintField(&m.EventNonce),
		2: uintField(&m.EthBlockHeight),
		3: stringField(&m.TokenContract),
		4: stringField(&m.TokenID),
		5: stringField(&m.EthereumSender),
		6: stringField(&m.CosmosReceiver),
		7: stringField(&m.Orchestrator),
		8: stringField(&m.TokenURI),
		9: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}

// MsgBatchSendToEthClaim records that a batch was executed on the EVM chain.
type MsgBatchSendToEthClaim struct {
	EventNonce     uint64
	EthBlockHeight uint64
	BatchNonce     uint64
	TokenContract  string
	Orchestrator   string
	EvmChainPrefix string
}

func (*MsgBatchSendToEthClaim) ClaimType() string      { return BatchSendToEthClaimType }
func (m *MsgBatchSendToEthClaim) GetEventNonce() uint64 { return m.EventNonce }

func (m *MsgBatchSendToEthClaim) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, m.EventNonce)
	b = wire.AppendUint64(b, 2, m.EthBlockHeight)
	b = wire.AppendUint64(b, 3, m.BatchNonce)
	b = wire.AppendString(b, 4, m.TokenContract)
	b = wire.AppendString(b, 5, m.Orchestrator)
	b = wire.AppendString(b, 6, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgBatchSendToEthClaim) Unmarshal(bz []byte) error {
	*m = MsgBatchSendToEthClaim{}
	return fieldHandlers{
		1: uintField(&m.EventNonce),
		2: uintField(&m.EthBlockHeight),
		3: uintField(&m.BatchNonce),
		4: stringField(&m.TokenContract),
		5: stringField(&m.Orchestrator),
		6: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}

// MsgERC20DeployedClaim records deployment of a Cosmos-originated ERC-20 representation.
type MsgERC20DeployedClaim struct {
	EventNonce     uint64
	EthBlockHeight uint64
	CosmosDenom    string
	TokenContract  string
	Name           string
	Symbol         string
	Decimals       uint64
	Orchestrator   string
	EvmChainPrefix string
}

func (*MsgERC20DeployedClaim) ClaimType() string      { return ERC20DeployedClaimType }
func (m *MsgERC20DeployedClaim) GetEventNonce() uint64 { return m.EventNonce }

func (m *MsgERC20DeployedClaim) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, m.EventNonce)
	b = wire.AppendUint64(b, 2, m.EthBlockHeight)
	b = wire.AppendString(b, 3, m.CosmosDenom)
	b = wire.AppendString(b, 4, m.TokenContract)
	b = wire.AppendString(b, 5, m.Name)
	b = wire.AppendString(b, 6, m.Symbol)
	b = wire.AppendUint64(b, 7, m.Decimals)
	b = wire.AppendString(b, 8, m.Orchestrator)
	b = wire.AppendString(b, 9, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgERC20DeployedClaim) Unmarshal(bz []byte) error {
	*m = MsgERC20DeployedClaim{}
	return fieldHandlers{
		1: uintField(&m.EventNonce),
		2: uintField(&m.EthBlockHeight),
		3: stringField(&m.CosmosDenom),
		4: stringField(&m.TokenContract),
		5: stringField(&m.Name),
		6: stringField(&m.Symbol),
		7: uintField(&m.Decimals),
		8: stringField(&m.Orchestrator),
		9: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}

// MsgLogicCallExecutedClaim records that a logic call was executed on the EVM chain.
type MsgLogicCallExecutedClaim struct {
	EventNonce        uint64
	EthBlockHeight    uint64
	InvalidationID    []byte
	InvalidationNonce uint64
	Orchestrator      string
	EvmChainPrefix    string
}

func (*MsgLogicCallExecutedClaim) ClaimType() string      { return LogicCallExecutedClaimType }
func (m *MsgLogicCallExecutedClaim) GetEventNonce() uint64 { return m.EventNonce }

func (m *MsgLogicCallExecutedClaim) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, m.EventNonce)
	b = wire.AppendUint64(b, 2, m.EthBlockHeight)
	b = wire.AppendBytes(b, 3, m.InvalidationID)
	b = wire.AppendUint64(b, 4, m.InvalidationNonce)
	b = wire.AppendString(b, 5, m.Orchestrator)
	b = wire.AppendString(b, 6, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgLogicCallExecutedClaim) Unmarshal(bz []byte) error {
	*m = MsgLogicCallExecutedClaim{}
	return fieldHandlers{
		1: uintField(&m.EventNonce),
		2: uintField(&m.EthBlockHeight),
		3: bytesField(&m.InvalidationID),
		4: uintField(&m.InvalidationNonce),
		5: stringField(&m.Orchestrator),
		6: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}

// MsgValsetUpdatedClaim records a ValsetUpdatedEvent emitted by the contract.
type MsgValsetUpdatedClaim struct {
	EventNonce     uint64
	ValsetNonce    uint64
	EthBlockHeight uint64
	Members        []ValsetMember
	RewardAmount   *big.Int
	RewardToken    *common.Address
	Orchestrator   string
	EvmChainPrefix string
}

func (*MsgValsetUpdatedClaim) ClaimType() string      { return ValsetUpdatedClaimType }
func (m *MsgValsetUpdatedClaim) GetEventNonce() uint64 { return m.EventNonce }

func (m *MsgValsetUpdatedClaim) Marshal() ([]byte, error) {
	var b []byte
	var err error
	b = wire.AppendUint64(b, 1, m.EventNonce)
	b = wire.AppendUint64(b, 2, m.ValsetNonce)
	b = wire.AppendUint64(b, 3, m.EthBlockHeight)
	for i := range m.Members {
		if b, err = wire.AppendMessage(b, 4, &bridgeValidator{m.Members[i]}); err != nil {
			return nil, err
		}
	}
	if m.RewardAmount != nil && m.RewardAmount.Sign() != 0 {
		b = wire.AppendString(b, 5, m.RewardAmount.String())
	}
	if m.RewardToken != nil {
		b = wire.AppendString(b, 6, m.RewardToken.Hex())
	}
	b = wire.AppendString(b, 7, m.Orchestrator)
	b = wire.AppendString(b, 8, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgValsetUpdatedClaim) Unmarshal(bz []byte) error {
	*m = MsgValsetUpdatedClaim{}
	return fieldHandlers{
		1: uintField(&m.EventNonce),
		2: uintField(&m.ValsetNonce),
		3: uintField(&m.EthBlockHeight),
		4: func(f wire.Field) error {
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			var bv bridgeValidator
			if err := bv.Unmarshal(f.Bytes); err != nil {
				return err
			}
			m.Members = append(m.Members, bv.ValsetMember)
			return nil
		},
		5: func(f wire.Field) (err error) {
			m.RewardAmount, err = parseAmount(f)
			return err
		},
		6: func(f wire.Field) (err error) {
			m.RewardToken, err = parseOptionalAddress(f)
			return err
		},
		7: stringField(&m.Orchestrator),
		8: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}

// PackClaim wraps a claim in an Any under its own type URL.
func PackClaim(c Claim) (*wire.Any, error) {
	return wire.PackAny(c.ClaimType(), c)
}
