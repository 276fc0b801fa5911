// Package slashing submits bad-signature evidence and checks what slashing must have changed.
package slashing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/gravity/checkpoint"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/logging"
)

// ErrNoEvidence is returned when SubmitEvidence is given no evidence to report.
var ErrNoEvidence = errors.New("no bad signature evidence")

// Submitter sends evidence for one EVM chain prefix.
type Submitter struct {
	evmChainPrefix string
	fee            cosmos.Coin
	logger         *zap.Logger
}

func NewSubmitter(evmChainPrefix string, fee cosmos.Coin, logger *zap.Logger) *Submitter {
	return &Submitter{evmChainPrefix: evmChainPrefix, fee: fee, logger: logging.OrNop(logger)}
}

// SubmitEvidence reports signature as a bad signature over the evidence subject. submitter is the
// key-bound broadcaster that signs the transaction. The checkpoint is computed for logging only.
// Failures are returned as-is; nothing is retried.
func (s *Submitter) SubmitEvidence(
	ctx context.Context,
	signature []byte,
	evidence types.BadSignatureEvidence,
	submitter cosmos.EvidenceBroadcaster,
	gravityID types.GravityID,
) (*cosmos.TxResponse, error) {
	if isNilEvidence(evidence) {
		return nil, ErrNoEvidence
	}
	subject, err := evidence.Subject()
	if err != nil {
		return nil, fmt.Errorf("%s evidence: %w", evidence.Kind(), err)
	}

	fields := []zap.Field{
		zap.String("evmChainPrefix", s.evmChainPrefix),
		zap.String("kind", evidence.Kind().String()),
		zap.String("gravityId", string(gravityID)),
	}
	if cp, err := checkpoint.OfEvidence(gravityID, evidence); err != nil {
		fields = append(fields, zap.NamedError("checkpointError", err))
	} else {
		fields = append(fields, zap.String("checkpoint", cp.Hex()))
		if signer, err := checkpoint.RecoverSigner(cp, signature); err == nil {
			fields = append(fields, zap.String("signer", signer.Hex()))
		}
	}
	s.logger.Info("submitting bad signature evidence", fields...)

	msg := &types.MsgSubmitBadSignatureEvidence{
		Subject:        subject,
		Signature:      hex.EncodeToString(signature),
		EvmChainPrefix: s.evmChainPrefix,
	}
	resp, err := submitter.SubmitBadSignatureEvidence(ctx, msg, s.fee)
	if err != nil {
		return resp, fmt.Errorf("submit %s evidence: %w", evidence.Kind(), err)
	}
	if resp == nil {
		return nil, fmt.Errorf("submit %s evidence: empty broadcast response", evidence.Kind())
	}
	s.logger.Info("evidence accepted",
		zap.String("evmChainPrefix", s.evmChainPrefix),
		zap.String("txHash", resp.TxHash),
		zap.Int64("height", resp.Height))
	return resp, nil
}

func isNilEvidence(e types.BadSignatureEvidence) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
