package types

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/canopy-network/bridgewatch/pkg/wire"
)

// ValsetTypeURL is the Any type URL of a gravity.v1.Valset.
const ValsetTypeURL = "/gravity.v1.Valset"

// ValsetMember is one bridge validator: its voting power and EVM signing address.
type ValsetMember struct {
	Power           uint64
	EthereumAddress common.Address
}

// Valset is a validator set produced by Cosmos-side consensus, referenced by Nonce.
//
// The EVM contract verifies signatures in strictly descending power order. Members are kept
// in the order they were produced; use ValidateOrder before checkpointing anything you built.
type Valset struct {
	Nonce        uint64
	Members      []ValsetMember
	Height       uint64
	RewardAmount *big.Int
	RewardToken  *common.Address
}

// NewValset builds a valset with its members sorted for contract submission.
func NewValset(nonce uint64, members []ValsetMember, rewardAmount *big.Int, rewardToken *common.Address) *Valset {
	sorted := make([]ValsetMember, len(members))
	copy(sorted, members)
	v := &Valset{Nonce: nonce, Members: sorted, RewardAmount: rewardAmount, RewardToken: rewardToken}
	v.SortMembers()
	return v
}

// SortMembers orders members by power descending, breaking ties by address descending.
func (v *Valset) SortMembers() {
	sort.SliceStable(v.Members, func(i, j int) bool {
		a, b := v.Members[i], v.Members[j]
		if a.Power == b.Power {
			return bytes.Compare(a.EthereumAddress.Bytes(), b.EthereumAddress.Bytes()) > 0
		}
		return a.Power > b.Power
	})
}

// ValidateOrder reports the first member whose power exceeds its predecessor's.
func (v *Valset) ValidateOrder() error {
	for i := 1; i < len(v.Members); i++ {
		if v.Members[i].Power > v.Members[i-1].Power {
			return fmt.Errorf("valset %d: member %d (%s, power %d) outranks member %d (power %d)",
				v.Nonce, i, v.Members[i].EthereumAddress.Hex(), v.Members[i].Power, i-1, v.Members[i-1].Power)
		}
	}
	return nil
}

// ValidateBasic checks the fields required for checkpointing.
func (v *Valset) ValidateBasic() error {
	if len(v.Members) == 0 {
		return fmt.Errorf("valset %d: no members", v.Nonce)
	}
	if v.RewardAmount != nil && v.RewardAmount.Sign() < 0 {
		return fmt.Errorf("valset %d: negative reward amount %s", v.Nonce, v.RewardAmount)
	}
	return nil
}

// Reward returns the reward amount, treating nil as zero.
func (v *Valset) Reward() *big.Int {
	if v.RewardAmount == nil {
		return new(big.Int)
	}
	return v.RewardAmount
}

// RewardTokenAddress returns the reward token, treating nil as the zero address.
func (v *Valset) RewardTokenAddress() common.Address {
	if v.RewardToken == nil {
		return common.Address{}
	}
	return *v.RewardToken
}

// Equal compares every field, not just the nonce.
func (v *Valset) Equal(o *Valset) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Nonce != o.Nonce || v.Height != o.Height || len(v.Members) != len(o.Members) {
		return false
	}
	for i := range v.Members {
		if v.Members[i] != o.Members[i] {
			return false
		}
	}
	if v.Reward().Cmp(o.Reward()) != 0 {
		return false
	}
	if (v.RewardToken == nil) != (o.RewardToken == nil) {
		return false
	}
	return v.RewardToken == nil || *v.RewardToken == *o.RewardToken
}

// Marshal encodes the gravity.v1.Valset wire form.
func (v *Valset) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, v.Nonce)
	for i := range v.Members {
		var err error
		if b, err = wire.AppendMessage(b, 2, &bridgeValidator{v.Members[i]}); err != nil {
			return nil, err
		}
	}
	b = wire.AppendUint64(b, 3, v.Height)
	if v.RewardAmount != nil && v.RewardAmount.Sign() != 0 {
		b = wire.AppendString(b, 4, v.RewardAmount.String())
	}
	if v.RewardToken != nil {
		b = wire.AppendString(b, 5, v.RewardToken.Hex())
	}
	return b, nil
}

// Unmarshal decodes the gravity.v1.Valset wire form.
func (v *Valset) Unmarshal(bz []byte) error {
	*v = Valset{}
	return wire.Walk(bz, func(f wire.Field) error {
		switch f.Num {
		case 1:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			v.Nonce = f.Varint
		case 2:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			var m bridgeValidator
			if err := m.Unmarshal(f.Bytes); err != nil {
				return fmt.Errorf("valset member %d: %w", len(v.Members), err)
			}
			v.Members = append(v.Members, m.ValsetMember)
		case 3:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			v.Height = f.Varint
		case 4:
			amount, err := parseAmount(f)
			if err != nil {
				return fmt.Errorf("reward amount: %w", err)
			}
			v.RewardAmount = amount
		case 5:
			addr, err := parseOptionalAddress(f)
			if err != nil {
				return fmt.Errorf("reward token: %w", err)
			}
			v.RewardToken = addr
		}
		return nil
	})
}

// bridgeValidator is the gravity.v1.BridgeValidator wire form of a ValsetMember.
type bridgeValidator struct {
	ValsetMember
}

func (m *bridgeValidator) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, m.Power)
	b = wire.AppendString(b, 2, m.EthereumAddress.Hex())
	return b, nil
}

func (m *bridgeValidator) Unmarshal(bz []byte) error {
	m.ValsetMember = ValsetMember{}
	return wire.Walk(bz, func(f wire.Field) error {
		switch f.Num {
		case 1:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			m.Power = f.Varint
		case 2:
			addr, err := parseAddress(f)
			if err != nil {
				return err
			}
			m.EthereumAddress = addr
		}
		return nil
	})
}

func parseAddress(f wire.Field) (common.Address, error) {
	if err := f.Expect(protowire.BytesType); err != nil {
		return common.Address{}, err
	}
	s := f.String()
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("field %d: invalid ethereum address %q", f.Num, s)
	}
	return common.HexToAddress(s), nil
}

func parseOptionalAddress(f wire.Field) (*common.Address, error) {
	if len(f.Bytes) == 0 {
		return nil, nil
	}
	addr, err := parseAddress(f)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func parseAmount(f wire.Field) (*big.Int, error) {
	if err := f.Expect(protowire.BytesType); err != nil {
		return nil, err
	}
	if len(f.Bytes) == 0 {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(f.String(), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("field %d: invalid unsigned integer %q", f.Num, f.String())
	}
	return n, nil
}
