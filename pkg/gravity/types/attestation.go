package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/canopy-network/bridgewatch/pkg/wire"
)

// Attestation is the Cosmos-side aggregate of validator votes for one observed EVM event.
// Claim is nil while the attestation is still pending.
type Attestation struct {
	Observed bool
	Votes    []string
	Height   uint64
	Claim    *wire.Any
}

func (a *Attestation) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendBool(b, 1, a.Observed)
	for _, v := range a.Votes {
		b = wire.AppendString(b, 2, v)
	}
	b = wire.AppendUint64(b, 3, a.Height)
	if a.Claim != nil {
		var err error
		if b, err = wire.AppendMessage(b, 4, a.Claim); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (a *Attestation) Unmarshal(bz []byte) error {
	*a = Attestation{}
	return wire.Walk(bz, func(f wire.Field) error {
		switch f.Num {
		case 1:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			a.Observed = f.Bool()
		case 2:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			a.Votes = append(a.Votes, f.String())
		case 3:
			if err := f.Expect(protowire.VarintType); err != nil {
				return err
			}
			a.Height = f.Varint
		case 4:
			if err := f.Expect(protowire.BytesType); err != nil {
				return err
			}
			a.Claim = &wire.Any{}
			if err := a.Claim.Unmarshal(f.Bytes); err != nil {
				return fmt.Errorf("attestation claim: %w", err)
			}
		}
		return nil
	})
}
