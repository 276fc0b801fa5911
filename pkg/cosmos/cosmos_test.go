package cosmos

import (
	"context"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"

	abciv1beta1 "cosmossdk.io/api/cosmos/base/abci/v1beta1"
	queryv1beta1 "cosmossdk.io/api/cosmos/base/query/v1beta1"
	nftv1beta1 "cosmossdk.io/api/cosmos/nft/v1beta1"
	stakingv1beta1 "cosmossdk.io/api/cosmos/staking/v1beta1"
	txv1beta1 "cosmossdk.io/api/cosmos/tx/v1beta1"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/retry"
	"github.com/canopy-network/bridgewatch/pkg/wire"
)

type handler func(req []byte) ([]byte, error)

type service func(req proto.Message) (proto.Message, error)

// fakeConn serves Invoke from per-method handlers. Gravity calls go through the wire codec both
// ways; generated SDK clients are served proto messages directly.
type fakeConn struct {
	handlers map[string]handler
	requests map[string][][]byte
	services map[string]service
	calls    map[string][]proto.Message
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		handlers: map[string]handler{},
		requests: map[string][][]byte{},
		services: map[string]service{},
		calls:    map[string][]proto.Message{},
	}
}

func (f *fakeConn) Invoke(_ context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	if req, ok := args.(proto.Message); ok {
		svc, ok := f.services[method]
		if !ok {
			return errors.New("unimplemented " + method)
		}
		f.calls[method] = append(f.calls[method], proto.Clone(req))
		resp, err := svc(req)
		if err != nil {
			return err
		}
		proto.Merge(reply.(proto.Message), resp)
		return nil
	}
	if len(opts) == 0 {
		return errors.New("codec not forced")
	}
	h, ok := f.handlers[method]
	if !ok {
		return errors.New("unimplemented " + method)
	}
	req, err := WireCodec{}.Marshal(args)
	if err != nil {
		return err
	}
	f.requests[method] = append(f.requests[method], req)
	resp, err := h(req)
	if err != nil {
		return err
	}
	return WireCodec{}.Unmarshal(resp, reply)
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func fields(t *testing.T, bz []byte) map[int][]wire.Field {
	t.Helper()
	out := map[int][]wire.Field{}
	require.NoError(t, wire.Walk(bz, func(f wire.Field) error {
		out[int(f.Num)] = append(out[int(f.Num)], f)
		return nil
	}))
	return out
}

func testValset(nonce uint64) *types.Valset {
	return types.NewValset(nonce, []types.ValsetMember{
		{Power: 70, EthereumAddress: common.HexToAddress("0x01")},
		{Power: 30, EthereumAddress: common.HexToAddress("0x02")},
	}, big.NewInt(0), nil)
}

func TestCodecName(t *testing.T) {
	assert.Equal(t, "proto", WireCodec{}.Name())
	_, err := WireCodec{}.Marshal(struct{}{})
	require.Error(t, err)
	require.Error(t, WireCodec{}.Unmarshal(nil, struct{}{}))
}

func TestValsetByNonce(t *testing.T) {
	conn := newFakeConn()
	vs := testValset(9)
	conn.handlers[methodValsetRequest] = func(req []byte) ([]byte, error) {
		return wire.AppendMessage(nil, 1, vs)
	}

	got, err := NewGravityQueryClient(conn, "gravity").ValsetByNonce(context.Background(), 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, vs.Equal(got))

	req := fields(t, conn.requests[methodValsetRequest][0])
	assert.Equal(t, uint64(9), req[1][0].Varint)
	assert.Equal(t, "gravity", req[2][0].String())
}

func TestValsetByNonceAbsent(t *testing.T) {
	conn := newFakeConn()
	conn.handlers[methodValsetRequest] = func([]byte) ([]byte, error) { return nil, nil }

	got, err := NewGravityQueryClient(conn, "gravity").ValsetByNonce(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLastValsetRequests(t *testing.T) {
	conn := newFakeConn()
	conn.handlers[methodLastValsetRequests] = func([]byte) ([]byte, error) {
		b, err := wire.AppendMessage(nil, 1, testValset(5))
		if err != nil {
			return nil, err
		}
		return wire.AppendMessage(b, 1, testValset(4))
	}

	got, err := NewGravityQueryClient(conn, "gravity").LastValsetRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(5), got[0].Nonce)
	assert.Equal(t, uint64(4), got[1].Nonce)
}

func TestAttestationsRequestEncoding(t *testing.T) {
	conn := newFakeConn()
	claim, err := types.PackClaim(&types.MsgBatchSendToEthClaim{EventNonce: 1, BatchNonce: 2})
	require.NoError(t, err)
	conn.handlers[methodGetAttestations] = func([]byte) ([]byte, error) {
		b, err := wire.AppendMessage(nil, 1, &types.Attestation{Observed: true, Claim: claim})
		if err != nil {
			return nil, err
		}
		return wire.AppendMessage(b, 1, &types.Attestation{Height: 3})
	}

	got, err := NewGravityQueryClient(conn, "gravity").Attestations(context.Background(), AttestationsRequest{Limit: 50, OrderBy: "desc"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, claim, got[0].Claim)
	assert.Nil(t, got[1].Claim)

	req := fields(t, conn.requests[methodGetAttestations][0])
	assert.Equal(t, uint64(50), req[1][0].Varint)
	assert.Equal(t, "desc", req[2][0].String())
	assert.Equal(t, "gravity", req[7][0].String())
	assert.Len(t, conn.requests[methodGetAttestations], 1, "one page only")
}

func TestTransportErrorNamesMethod(t *testing.T) {
	conn := newFakeConn()
	conn.handlers[methodGetAttestations] = func([]byte) ([]byte, error) { return nil, errors.New("unavailable") }

	_, err := NewGravityQueryClient(conn, "gravity").Attestations(context.Background(), AttestationsRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), methodGetAttestations)
}

func TestListPagedFollowsNextKey(t *testing.T) {
	pages := map[string]struct {
		items []int
		next  string
	}{
		"":  {items: []int{1, 2}, next: "b"},
		"b": {items: []int{3}, next: "c"},
		"c": {items: []int{4}},
	}
	var keys []string
	got, err := ListPaged(context.Background(), 2, func(_ context.Context, page *queryv1beta1.PageRequest) ([]int, *queryv1beta1.PageResponse, error) {
		assert.Equal(t, uint64(2), page.Limit)
		keys = append(keys, string(page.Key))
		p := pages[string(page.Key)]
		return p.items, &queryv1beta1.PageResponse{NextKey: []byte(p.next)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)
	assert.Equal(t, []string{"", "b", "c"}, keys)
}

func TestListPagedStopsOnError(t *testing.T) {
	cause := errors.New("unavailable")
	calls := 0
	got, err := ListPaged(context.Background(), 10, func(context.Context, *queryv1beta1.PageRequest) ([]string, *queryv1beta1.PageResponse, error) {
		calls++
		if calls == 2 {
			return nil, nil, cause
		}
		return []string{"a"}, &queryv1beta1.PageResponse{NextKey: []byte("more")}, nil
	})
	require.ErrorIs(t, err, cause)
	assert.Nil(t, got)
	assert.Equal(t, 2, calls)
}

func TestListPagedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := ListPaged(ctx, 10, func(context.Context, *queryv1beta1.PageRequest) ([]string, *queryv1beta1.PageResponse, error) {
		calls++
		cancel()
		return []string{"a"}, &queryv1beta1.PageResponse{NextKey: []byte("more")}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValidatorsFollowsPagination(t *testing.T) {
	conn := newFakeConn()
	conn.services[methodStakingValidators] = func(req proto.Message) (proto.Message, error) {
		if len(req.(*stakingv1beta1.QueryValidatorsRequest).GetPagination().GetKey()) == 0 {
			return &stakingv1beta1.QueryValidatorsResponse{
				Validators: []*stakingv1beta1.Validator{
					{OperatorAddress: "gravityvaloper1a", Status: stakingv1beta1.BondStatus_BOND_STATUS_BONDED, Tokens: "100"},
				},
				Pagination: &queryv1beta1.PageResponse{NextKey: []byte("next")},
			}, nil
		}
		return &stakingv1beta1.QueryValidatorsResponse{
			Validators: []*stakingv1beta1.Validator{
				{OperatorAddress: "gravityvaloper1b", Status: stakingv1beta1.BondStatus_BOND_STATUS_BONDED, Jailed: true, Tokens: "5"},
			},
		}, nil
	}

	got, err := NewStakingQueryClient(conn).Validators(context.Background(), Bonded)
	require.NoError(t, err)
	assert.Equal(t, []Validator{
		{OperatorAddress: "gravityvaloper1a", Status: Bonded, Tokens: "100"},
		{OperatorAddress: "gravityvaloper1b", Status: Bonded, Jailed: true, Tokens: "5"},
	}, got)

	reqs := conn.calls[methodStakingValidators]
	require.Len(t, reqs, 2)
	first := reqs[0].(*stakingv1beta1.QueryValidatorsRequest)
	assert.Equal(t, "BOND_STATUS_BONDED", first.Status)
	assert.Equal(t, uint64(200), first.GetPagination().GetLimit())
	assert.Empty(t, first.GetPagination().GetKey())
	assert.Equal(t, []byte("next"), reqs[1].(*stakingv1beta1.QueryValidatorsRequest).GetPagination().GetKey())
}

func TestValidatorsTransportErrorNamesMethod(t *testing.T) {
	conn := newFakeConn()
	conn.services[methodStakingValidators] = func(proto.Message) (proto.Message, error) { return nil, errors.New("unavailable") }

	_, err := NewStakingQueryClient(conn).Validators(context.Background(), Unbonding)
	require.Error(t, err)
	assert.Contains(t, err.Error(), methodStakingValidators)
}

func TestBondStatusString(t *testing.T) {
	assert.Equal(t, "BOND_STATUS_UNBONDING", Unbonding.String())
	assert.Equal(t, "9", BondStatus(9).String())
}

func TestNFTs(t *testing.T) {
	conn := newFakeConn()
	class := ERC721ClassID("0xabc")
	conn.services[methodNFTs] = func(proto.Message) (proto.Message, error) {
		return &nftv1beta1.QueryNFTsResponse{
			Nfts: []*nftv1beta1.NFT{{ClassId: class, Id: "1", Uri: "ipfs://token/1"}},
		}, nil
	}

	got, err := NewNFTQueryClient(conn).NFTs(context.Background(), class, "gravity1owner")
	require.NoError(t, err)
	assert.Equal(t, []NFT{{ClassID: "gravityerc7210xabc", ID: "1", URI: "ipfs://token/1"}}, got)

	reqs := conn.calls[methodNFTs]
	require.Len(t, reqs, 1)
	req := reqs[0].(*nftv1beta1.QueryNFTsRequest)
	assert.Equal(t, class, req.ClassId)
	assert.Equal(t, "gravity1owner", req.Owner)
	assert.Equal(t, uint64(100), req.GetPagination().GetLimit())
}

type fakeSigner struct {
	msgs []*wire.Any
	err  error
}

func (s *fakeSigner) Address() string { return "gravity1submitter" }

func (s *fakeSigner) SignTx(_ context.Context, msgs []*wire.Any, fee Coin) ([]byte, error) {
	s.msgs = msgs
	return []byte("signed:" + fee.Amount + fee.Denom), s.err
}

func broadcastReply(code uint32) service {
	return func(proto.Message) (proto.Message, error) {
		return &txv1beta1.BroadcastTxResponse{TxResponse: &abciv1beta1.TxResponse{
			Height: 42, Txhash: "ABCDEF", Code: code, RawLog: "log",
		}}, nil
	}
}

func TestSubmitBadSignatureEvidence(t *testing.T) {
	conn := newFakeConn()
	conn.services[methodBroadcastTx] = broadcastReply(0)
	signer := &fakeSigner{}
	subject, err := types.ValsetChallenge{Valset: testValset(1)}.Subject()
	require.NoError(t, err)

	resp, err := NewTxClient(conn, signer).SubmitBadSignatureEvidence(context.Background(),
		&types.MsgSubmitBadSignatureEvidence{Subject: subject, Signature: "00", EvmChainPrefix: "gravity"},
		Coin{Denom: "ugraviton", Amount: "10"})
	require.NoError(t, err)
	assert.Equal(t, &TxResponse{Height: 42, TxHash: "ABCDEF", RawLog: "log"}, resp)

	require.Len(t, signer.msgs, 1)
	assert.Equal(t, types.MsgSubmitBadSignatureEvidenceTypeURL, signer.msgs[0].TypeURL)
	var sent types.MsgSubmitBadSignatureEvidence
	require.NoError(t, sent.Unmarshal(signer.msgs[0].Value))
	assert.Equal(t, "gravity1submitter", sent.Sender)

	reqs := conn.calls[methodBroadcastTx]
	require.Len(t, reqs, 1)
	req := reqs[0].(*txv1beta1.BroadcastTxRequest)
	assert.Equal(t, []byte("signed:10ugraviton"), req.TxBytes)
	assert.Equal(t, txv1beta1.BroadcastMode_BROADCAST_MODE_SYNC, req.Mode)
}

func TestSubmitBadSignatureEvidenceRejected(t *testing.T) {
	conn := newFakeConn()
	conn.services[methodBroadcastTx] = broadcastReply(5)

	resp, err := NewTxClient(conn, &fakeSigner{}).SubmitBadSignatureEvidence(context.Background(),
		&types.MsgSubmitBadSignatureEvidence{}, Coin{})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, uint32(5), resp.Code)
}

func TestSubmitBadSignatureEvidenceEmptyReply(t *testing.T) {
	conn := newFakeConn()
	conn.services[methodBroadcastTx] = func(proto.Message) (proto.Message, error) {
		return &txv1beta1.BroadcastTxResponse{}, nil
	}

	resp, err := NewTxClient(conn, &fakeSigner{}).SubmitBadSignatureEvidence(context.Background(),
		&types.MsgSubmitBadSignatureEvidence{}, Coin{})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestDialWithoutLogger(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}
	conn, err := Dial(context.Background(), lis.Addr().String(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}
