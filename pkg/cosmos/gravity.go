package cosmos

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/wire"
)

const (
	methodValsetRequest      = "/gravity.v1.Query/ValsetRequest"
	methodLastValsetRequests = "/gravity.v1.Query/LastValsetRequests"
	methodGetAttestations    = "/gravity.v1.Query/GetAttestations"
)

// AttestationsRequest selects one page of attestations. Zero fields are left to the node's
// defaults (limit 1000, newest first).
type AttestationsRequest struct {
	Limit     uint64
	OrderBy   string
	ClaimType string
	Nonce     uint64
	Height    uint64
	UseV1Key  bool
}

// AttestationQuerier fetches a single page of attestations.
type AttestationQuerier interface {
	Attestations(ctx context.Context, req AttestationsRequest) ([]types.Attestation, error)
}

// ValsetQuerier reads Cosmos-side valsets.
type ValsetQuerier interface {
	ValsetByNonce(ctx context.Context, nonce uint64) (*types.Valset, error)
	LastValsetRequests(ctx context.Context) ([]types.Valset, error)
}

var (
	_ AttestationQuerier = (*GravityQueryClient)(nil)
	_ ValsetQuerier      = (*GravityQueryClient)(nil)
)

// GravityQueryClient is the gravity.v1.Query service for one EVM chain prefix.
type GravityQueryClient struct {
	cc     grpc.ClientConnInterface
	prefix string
}

func NewGravityQueryClient(cc grpc.ClientConnInterface, evmChainPrefix string) *GravityQueryClient {
	return &GravityQueryClient{cc: cc, prefix: evmChainPrefix}
}

// EvmChainPrefix returns the chain prefix every query is scoped to.
func (c *GravityQueryClient) EvmChainPrefix() string { return c.prefix }

// ValsetByNonce returns the valset produced at nonce, or nil when the node has none.
func (c *GravityQueryClient) ValsetByNonce(ctx context.Context, nonce uint64) (*types.Valset, error) {
	req := &valsetRequestRequest{Nonce: nonce, EvmChainPrefix: c.prefix}
	resp := new(valsetRequestResponse)
	if err := invoke(ctx, c.cc, methodValsetRequest, req, resp); err != nil {
		return nil, err
	}
	return resp.Valset, nil
}

// LastValsetRequests returns the most recent valsets, newest first.
func (c *GravityQueryClient) LastValsetRequests(ctx context.Context) ([]types.Valset, error) {
	req := &lastValsetRequestsRequest{EvmChainPrefix: c.prefix}
	resp := new(lastValsetRequestsResponse)
	if err := invoke(ctx, c.cc, methodLastValsetRequests, req, resp); err != nil {
		return nil, err
	}
	return resp.Valsets, nil
}

// Attestations fetches one page; it never follows pagination.
func (c *GravityQueryClient) Attestations(ctx context.Context, req AttestationsRequest) ([]types.Attestation, error) {
	wreq := &getAttestationsRequest{AttestationsRequest: req, EvmChainPrefix: c.prefix}
	resp := new(getAttestationsResponse)
	if err := invoke(ctx, c.cc, methodGetAttestations, wreq, resp); err != nil {
		return nil, err
	}
	return resp.Attestations, nil
}

type valsetRequestRequest struct {
	Nonce          uint64
	EvmChainPrefix string
}

func (r *valsetRequestRequest) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, r.Nonce)
	b = wire.AppendString(b, 2, r.EvmChainPrefix)
	return b, nil
}

type valsetRequestResponse struct {
	Valset *types.Valset
}

func (r *valsetRequestResponse) Unmarshal(bz []byte) error {
	r.Valset = nil
	return wire.Walk(bz, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}
		if err := f.Expect(protowire.BytesType); err != nil {
			return err
		}
		vs := new(types.Valset)
		if err := vs.Unmarshal(f.Bytes); err != nil {
			return fmt.Errorf("valset: %w", err)
		}
		r.Valset = vs
		return nil
	})
}

type lastValsetRequestsRequest struct {
	EvmChainPrefix string
}

func (r *lastValsetRequestsRequest) Marshal() ([]byte, error) {
	return wire.AppendString(nil, 1, r.EvmChainPrefix), nil
}

type lastValsetRequestsResponse struct {
	Valsets []types.Valset
}

func (r *lastValsetRequestsResponse) Unmarshal(bz []byte) error {
	r.Valsets = nil
	return wire.Walk(bz, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}
		if err := f.Expect(protowire.BytesType); err != nil {
			return err
		}
		var vs types.Valset
		if err := vs.Unmarshal(f.Bytes); err != nil {
			return fmt.Errorf("valset %d: %w", len(r.Valsets), err)
		}
		r.Valsets = append(r.Valsets, vs)
		return nil
	})
}

type getAttestationsRequest struct {
	AttestationsRequest
	EvmChainPrefix string
}

func (r *getAttestationsRequest) Marshal() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, r.Limit)
	b = wire.AppendString(b, 2, r.OrderBy)
	b = wire.AppendString(b, 3, r.ClaimType)
	b = wire.AppendUint64(b, 4, r.Nonce)
	b = wire.AppendUint64(b, 5, r.Height)
	b = wire.AppendBool(b, 6, r.UseV1Key)
	b = wire.AppendString(b, 7, r.EvmChainPrefix)
	return b, nil
}

type getAttestationsResponse struct {
	Attestations []types.Attestation
}

func (r *getAttestationsResponse) Unmarshal(bz []byte) error {
	r.Attestations = nil
	return wire.Walk(bz, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}
		if err := f.Expect(protowire.BytesType); err != nil {
			return err
		}
		var a types.Attestation
		if err := a.Unmarshal(f.Bytes); err != nil {
			return fmt.Errorf("attestation %d: %w", len(r.Attestations), err)
		}
		r.Attestations = append(r.Attestations, a)
		return nil
	})
}
