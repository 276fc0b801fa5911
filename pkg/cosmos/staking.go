package cosmos

import (
	"context"
	"fmt"

	queryv1beta1 "cosmossdk.io/api/cosmos/base/query/v1beta1"
	stakingv1beta1 "cosmossdk.io/api/cosmos/staking/v1beta1"
	"google.golang.org/grpc"
)

const methodStakingValidators = "/cosmos.staking.v1beta1.Query/Validators"

// BondStatus is cosmos.staking.v1beta1.BondStatus. String returns the enum name, which is also the
// query filter value.
type BondStatus = stakingv1beta1.BondStatus

const (
	Unspecified = stakingv1beta1.BondStatus_BOND_STATUS_UNSPECIFIED
	Unbonded    = stakingv1beta1.BondStatus_BOND_STATUS_UNBONDED
	Unbonding   = stakingv1beta1.BondStatus_BOND_STATUS_UNBONDING
	Bonded      = stakingv1beta1.BondStatus_BOND_STATUS_BONDED
)

// Validator is the subset of cosmos.staking.v1beta1.Validator the bridge checks.
type Validator struct {
	OperatorAddress string
	Jailed          bool
	Status          BondStatus
	Tokens          string
}

// ValidatorQuerier lists staking validators filtered by status.
type ValidatorQuerier interface {
	Validators(ctx context.Context, status BondStatus) ([]Validator, error)
}

var _ ValidatorQuerier = (*StakingQueryClient)(nil)

// StakingQueryClient wraps the cosmos.staking.v1beta1.Query service.
type StakingQueryClient struct {
	client   stakingv1beta1.QueryClient
	pageSize uint64
}

func NewStakingQueryClient(cc grpc.ClientConnInterface) *StakingQueryClient {
	return &StakingQueryClient{client: stakingv1beta1.NewQueryClient(cc), pageSize: 200}
}

// Validators returns every validator with the given status across all pages.
func (c *StakingQueryClient) Validators(ctx context.Context, status BondStatus) ([]Validator, error) {
	return ListPaged(ctx, c.pageSize, func(ctx context.Context, page *queryv1beta1.PageRequest) ([]Validator, *queryv1beta1.PageResponse, error) {
		resp, err := c.client.Validators(ctx, &stakingv1beta1.QueryValidatorsRequest{Status: status.String(), Pagination: page})
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", methodStakingValidators, err)
		}
		out := make([]Validator, 0, len(resp.GetValidators()))
		for _, v := range resp.GetValidators() {
			out = append(out, Validator{
				OperatorAddress: v.GetOperatorAddress(),
				Jailed:          v.GetJailed(),
				Status:          v.GetStatus(),
				Tokens:          v.GetTokens(),
			})
		}
		return out, resp.GetPagination(), nil
	})
}
