package slashing

import (
	"context"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
)

// CheckValidator reports whether operator is listed under status, and if so whether it is jailed.
func CheckValidator(ctx context.Context, q cosmos.ValidatorQuerier, operator string, status cosmos.BondStatus) (inSet, jailed bool, err error) {
	validators, err := q.Validators(ctx, status)
	if err != nil {
		return false, false, err
	}
	for _, v := range validators {
		if v.OperatorAddress == operator {
			return true, v.Jailed, nil
		}
	}
	return false, false, nil
}

// ExpectBonded is the pre-submission check: bonded and not jailed.
func ExpectBonded(ctx context.Context, q cosmos.ValidatorQuerier, operator string) error {
	inSet, jailed, err := CheckValidator(ctx, q, operator, cosmos.Bonded)
	if err != nil {
		return err
	}
	if !inSet {
		return fault.InvariantViolation("validator %s is not in the bonded set", operator)
	}
	if jailed {
		return fault.InvariantViolation("validator %s is bonded but already jailed", operator)
	}
	return nil
}

// ExpectJailed is the post-submission check: unbonding, jailed and still listed.
func ExpectJailed(ctx context.Context, q cosmos.ValidatorQuerier, operator string) error {
	inSet, jailed, err := CheckValidator(ctx, q, operator, cosmos.Unbonding)
	if err != nil {
		return err
	}
	if !inSet {
		return fault.InvariantViolation("slashed validator %s vanished from the unbonding set", operator)
	}
	if !jailed {
		return fault.InvariantViolation("validator %s is unbonding but was not jailed", operator)
	}
	return nil
}

// LatestValsetNonce returns the highest nonce among valsets, or nil when there are none.
func LatestValsetNonce(valsets []types.Valset) *uint64 {
	var latest *uint64
	for i := range valsets {
		if latest == nil || valsets[i].Nonce > *latest {
			n := valsets[i].Nonce
			latest = &n
		}
	}
	return latest
}

// VerifyValsetRotation checks that slashing produced a new valset. A nil nonce means no valset
// existed at that point.
func VerifyValsetRotation(before, after *uint64) error {
	switch {
	case before != nil && after != nil:
		if *after <= *before {
			return fault.InvariantViolation("no new validator set after slashing: latest nonce %d, was %d", *after, *before)
		}
		return nil
	case before == nil && after != nil:
		return nil
	case before != nil && after == nil:
		return fault.InvariantViolation("validator sets disappeared after slashing: nonce %d was known before", *before)
	default:
		return fault.InvariantViolation("no validator set exists before or after slashing")
	}
}

// LogValidatorStatus logs every bonded validator with its tokens and jailed flag.
func LogValidatorStatus(ctx context.Context, q cosmos.ValidatorQuerier, logger *zap.Logger) error {
	validators, err := q.Validators(ctx, cosmos.Bonded)
	if err != nil {
		return err
	}
	for _, v := range validators {
		logger.Info("validator",
			zap.String("operator", v.OperatorAddress),
			zap.String("tokens", v.Tokens),
			zap.Bool("jailed", v.Jailed),
			zap.Stringer("status", v.Status))
	}
	return nil
}
