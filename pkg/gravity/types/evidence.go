package types

import (
	"errors"

	"github.com/canopy-network/bridgewatch/pkg/wire"
)

// MsgSubmitBadSignatureEvidenceTypeURL is the message type of an evidence submission.
const MsgSubmitBadSignatureEvidenceTypeURL = "/gravity.v1.MsgSubmitBadSignatureEvidence"

// EvidenceKind identifies which object a bad signature was produced over.
type EvidenceKind int

const (
	ValsetEvidence EvidenceKind = iota
	BatchEvidence
	LogicCallEvidence
)

func (k EvidenceKind) String() string {
	switch k {
	case ValsetEvidence:
		return "valset"
	case BatchEvidence:
		return "batch"
	case LogicCallEvidence:
		return "logic_call"
	default:
		return "unknown"
	}
}

// BadSignatureEvidence is one of ValsetChallenge, BatchChallenge or LogicCallChallenge.
type BadSignatureEvidence interface {
	Kind() EvidenceKind
	// Subject packs the challenged object the way the slashing endpoint expects it.
	Subject() (*wire.Any, error)
	isEvidence()
}

var errNoSubject = errors.New("evidence has no subject")

// ValsetChallenge accuses a validator of signing a valset that was never produced.
type ValsetChallenge struct {
	Valset *Valset
}

func (ValsetChallenge) Kind() EvidenceKind { return ValsetEvidence }
func (ValsetChallenge) isEvidence()        {}

func (c ValsetChallenge) Subject() (*wire.Any, error) {
	if c.Valset == nil {
		return nil, errNoSubject
	}
	return wire.PackAny(ValsetTypeURL, c.Valset)
}

// BatchChallenge accuses a validator of signing a batch that was never produced.
type BatchChallenge struct {
	Batch *OutgoingTxBatch
}

func (BatchChallenge) Kind() EvidenceKind { return BatchEvidence }
func (BatchChallenge) isEvidence()        {}

func (c BatchChallenge) Subject() (*wire.Any, error) {
	if c.Batch == nil {
		return nil, errNoSubject
	}
	return wire.PackAny(OutgoingTxBatchTypeURL, c.Batch)
}

// LogicCallChallenge accuses a validator of signing a logic call that was never produced.
type LogicCallChallenge struct {
	Call *OutgoingLogicCall
}

func (LogicCallChallenge) Kind() EvidenceKind { return LogicCallEvidence }
func (LogicCallChallenge) isEvidence()        {}

func (c LogicCallChallenge) Subject() (*wire.Any, error) {
	if c.Call == nil {
		return nil, errNoSubject
	}
	return wire.PackAny(OutgoingLogicCallTypeURL, c.Call)
}

// MsgSubmitBadSignatureEvidence is the gravity.v1 evidence message. Signature is hex without 0x.
type MsgSubmitBadSignatureEvidence struct {
	Subject        *wire.Any
	Signature      string
	Sender         string
	EvmChainPrefix string
}

func (m *MsgSubmitBadSignatureEvidence) Marshal() ([]byte, error) {
	var b []byte
	if m.Subject != nil {
		var err error
		if b, err = wire.AppendMessage(b, 1, m.Subject); err != nil {
			return nil, err
		}
	}
	b = wire.AppendString(b, 2, m.Signature)
	b = wire.AppendString(b, 3, m.Sender)
	b = wire.AppendString(b, 4, m.EvmChainPrefix)
	return b, nil
}

func (m *MsgSubmitBadSignatureEvidence) Unmarshal(bz []byte) error {
	*m = MsgSubmitBadSignatureEvidence{}
	return fieldHandlers{
		1: func(f wire.Field) error {
			m.Subject = &wire.Any{}
			return m.Subject.Unmarshal(f.Bytes)
		},
		2: stringField(&m.Signature),
		3: stringField(&m.Sender),
		4: stringField(&m.EvmChainPrefix),
	}.decode(bz)
}
