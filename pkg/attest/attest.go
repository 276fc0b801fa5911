// Package attest scans a page of attestations for claims of one kind.
package attest

import (
	"context"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/logging"
)

// ClaimPtr constrains PT to a pointer to T that decodes as a Claim.
type ClaimPtr[T any] interface {
	*T
	types.Claim
}

// ForEachAttestation fetches exactly one page and calls visit once for every attestation whose
// claim decodes as T. Pending attestations, claims of another kind and undecodable payloads are
// skipped. Only a fetch failure is returned.
func ForEachAttestation[T any, PT ClaimPtr[T]](
	ctx context.Context,
	querier cosmos.AttestationQuerier,
	req cosmos.AttestationsRequest,
	logger *zap.Logger,
	visit func(PT),
) error {
	logger = logging.OrNop(logger)
	page, err := querier.Attestations(ctx, req)
	if err != nil {
		return err
	}

	want := PT(new(T)).ClaimType()
	for i := range page {
		a := &page[i]
		if a.Claim == nil {
			continue
		}
		if a.Claim.TypeURL != want {
			continue
		}
		claim := PT(new(T))
		if err := claim.Unmarshal(a.Claim.Value); err != nil {
			logger.Debug("skipping undecodable claim",
				zap.String("claimType", want),
				zap.Uint64("height", a.Height),
				zap.Error(err))
			continue
		}
		visit(claim)
	}
	return nil
}

// Any reports whether some attestation on the page carries a T for which match returns true.
// Every matching claim is visited; found never resets once set.
func Any[T any, PT ClaimPtr[T]](
	ctx context.Context,
	querier cosmos.AttestationQuerier,
	req cosmos.AttestationsRequest,
	logger *zap.Logger,
	match func(PT) bool,
) (bool, error) {
	found := false
	err := ForEachAttestation[T, PT](ctx, querier, req, logger, func(c PT) {
		found = match(c) || found
	})
	return found, err
}
