package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/canopy-network/bridgewatch/pkg/wire"
)

const (
	OutgoingTxBatchTypeURL   = "/gravity.v1.OutgoingTxBatch"
	OutgoingLogicCallTypeURL = "/gravity.v1.OutgoingLogicCall"
)

// ERC20Token is an amount of a specific ERC-20 contract.
type ERC20Token struct {
	Contract common.Address
	Amount   *big.Int
}

func (t *ERC20Token) amount() *big.Int {
	if t.Amount == nil {
		return new(big.Int)
	}
	return t.Amount
}

func (t *ERC20Token) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendString(b, 1, t.Contract.Hex())
	b = wire.AppendString(b, 2, t.amount().String())
	return b, nil
}

func (t *ERC20Token) Unmarshal(bz []byte) error {
	*t = ERC20Token{}
	return wire.Walk(bz, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			t.Contract, err = parseAddress(f)
		case 2:
			t.Amount, err = parseAmount(f)
		}
		return err
	})
}

// OutgoingTransferTx is one transfer inside a batch.
type OutgoingTransferTx struct {
	ID          uint64
	Sender      string
	DestAddress common.Address
	Token       ERC20Token
	Fee         ERC20Token
}

func (tx *OutgoingTransferTx) Marshal() ([]byte, error) {
	var b []byte
	var err error
	b = wire.AppendUint64(b, 1, tx.ID)
	b = wire.AppendString(b, 2, tx.Sender)
	b = wire.AppendString(b, 3, tx.DestAddress.Hex())
	if b, err = wire.AppendMessage(b, 4, &tx.Token); err != nil {
		return nil, err
	}
	return wire.AppendMessage(b, 5, &tx.Fee)
}

// OutgoingTxBatch is a batch of transfers of a single token, executed on the EVM chain as one call.
type OutgoingTxBatch struct {
	BatchNonce         uint64
	BatchTimeout       uint64
	Transactions       []OutgoingTransferTx
	TokenContract      common.Address
	CosmosBlockCreated uint64
}

func (bt *OutgoingTxBatch) Marshal() ([]byte, error) {
	var b []byte
	var err error
	b = wire.AppendUint64(b, 1, bt.BatchNonce)
	b = wire.AppendUint64(b, 2, bt.BatchTimeout)
	for i := range bt.Transactions {
		if b, err = wire.AppendMessage(b, 3, &bt.Transactions[i]); err != nil {
			return nil, err
		}
	}
	b = wire.AppendString(b, 4, bt.TokenContract.Hex())
	b = wire.AppendUint64(b, 5, bt.CosmosBlockCreated)
	return b, nil
}

// OutgoingLogicCall is an arbitrary contract call carried over the bridge.
type OutgoingLogicCall struct {
	Transfers            []ERC20Token
	Fees                 []ERC20Token
	LogicContractAddress common.Address
	Payload              []byte
	Timeout              uint64
	InvalidationID       []byte
	InvalidationNonce    uint64
	CosmosBlockCreated   uint64
}

func (lc *OutgoingLogicCall) Marshal() ([]byte, error) {
	var b []byte
	var err error
	for i := range lc.Transfers {
		if b, err = wire.AppendMessage(b, 1, &lc.Transfers[i]); err != nil {
			return nil, err
		}
	}
	for i := range lc.Fees {
		if b, err = wire.AppendMessage(b, 2, &lc.Fees[i]); err != nil {
			return nil, err
		}
	}
	b = wire.AppendString(b, 3, lc.LogicContractAddress.Hex())
	b = wire.AppendBytes(b, 4, lc.Payload)
	b = wire.AppendUint64(b, 5, lc.Timeout)
	b = wire.AppendBytes(b, 6, lc.InvalidationID)
	b = wire.AppendUint64(b, 7, lc.InvalidationNonce)
	b = wire.AppendUint64(b, 8, lc.CosmosBlockCreated)
	return b, nil
}
