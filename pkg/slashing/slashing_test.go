package slashing

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/gravity/checkpoint"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
)

const (
	gravityID types.GravityID = "defaultgravityid"
	operator                  = "gravityvaloper1q9r3p4t5k8m2ex7l0dfz6u3wjhn5c4s7ya0g2v"
)

type fakeValidators struct {
	byStatus map[cosmos.BondStatus][]cosmos.Validator
	err      error
}

func (f *fakeValidators) Validators(_ context.Context, status cosmos.BondStatus) ([]cosmos.Validator, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byStatus[status], nil
}

// jail moves operator from the bonded to the unbonding set.
func (f *fakeValidators) jail(op string) {
	var kept []cosmos.Validator
	for _, v := range f.byStatus[cosmos.Bonded] {
		if v.OperatorAddress == op {
			v.Jailed = true
			v.Status = cosmos.Unbonding
			f.byStatus[cosmos.Unbonding] = append(f.byStatus[cosmos.Unbonding], v)
			continue
		}
		kept = append(kept, v)
	}
	f.byStatus[cosmos.Bonded] = kept
}

type fakeBroadcaster struct {
	msgs   []*types.MsgSubmitBadSignatureEvidence
	fees   []cosmos.Coin
	resp   *cosmos.TxResponse
	err    error
	onSend func()
}

func (f *fakeBroadcaster) SubmitBadSignatureEvidence(_ context.Context, msg *types.MsgSubmitBadSignatureEvidence, fee cosmos.Coin) (*cosmos.TxResponse, error) {
	f.msgs = append(f.msgs, msg)
	f.fees = append(f.fees, fee)
	if f.onSend != nil {
		f.onSend()
	}
	return f.resp, f.err
}

func bondedSet() *fakeValidators {
	return &fakeValidators{byStatus: map[cosmos.BondStatus][]cosmos.Validator{
		cosmos.Bonded: {
			{OperatorAddress: "gravityvaloper1other", Tokens: "1000", Status: cosmos.Bonded},
			{OperatorAddress: operator, Tokens: "5000", Status: cosmos.Bonded},
		},
	}}
}

func u64(n uint64) *uint64 { return &n }

func TestCheckValidator(t *testing.T) {
	q := bondedSet()
	inSet, jailed, err := CheckValidator(context.Background(), q, operator, cosmos.Bonded)
	require.NoError(t, err)
	assert.True(t, inSet)
	assert.False(t, jailed)

	inSet, _, err = CheckValidator(context.Background(), q, operator, cosmos.Unbonding)
	require.NoError(t, err)
	assert.False(t, inSet)

	q.err = errors.New("connection refused")
	_, _, err = CheckValidator(context.Background(), q, operator, cosmos.Bonded)
	require.Error(t, err)
}

func TestExpectBondedAndJailed(t *testing.T) {
	ctx := context.Background()
	q := bondedSet()

	require.NoError(t, ExpectBonded(ctx, q, operator))
	err := ExpectJailed(ctx, q, operator)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindInvariantViolation))

	q.jail(operator)
	require.NoError(t, ExpectJailed(ctx, q, operator))
	err = ExpectBonded(ctx, q, operator)
	require.Error(t, err)
	assert.True(t, fault.IsFatal(err))
}

func TestExpectJailedRejectsUnbondingWithoutJail(t *testing.T) {
	q := &fakeValidators{byStatus: map[cosmos.BondStatus][]cosmos.Validator{
		cosmos.Unbonding: {{OperatorAddress: operator, Status: cosmos.Unbonding}},
	}}
	err := ExpectJailed(context.Background(), q, operator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not jailed")
}

func TestExpectBondedRejectsJailedBonded(t *testing.T) {
	q := &fakeValidators{byStatus: map[cosmos.BondStatus][]cosmos.Validator{
		cosmos.Bonded: {{OperatorAddress: operator, Status: cosmos.Bonded, Jailed: true}},
	}}
	err := ExpectBonded(context.Background(), q, operator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already jailed")
}

func TestLatestValsetNonce(t *testing.T) {
	assert.Nil(t, LatestValsetNonce(nil))
	got := LatestValsetNonce([]types.Valset{{Nonce: 4}, {Nonce: 9}, {Nonce: 7}})
	require.NotNil(t, got)
	assert.Equal(t, uint64(9), *got)
}

func TestVerifyValsetRotation(t *testing.T) {
	cases := []struct {
		name          string
		before, after *uint64
		ok            bool
	}{
		{"advanced", u64(3), u64(4), true},
		{"first valset", nil, u64(1), true},
		{"disappeared", u64(3), nil, false},
		{"never existed", nil, nil, false},
		{"unchanged", u64(3), u64(3), false},
		{"went backwards", u64(3), u64(2), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyValsetRotation(tc.before, tc.after)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, fault.IsFatal(err))
			assert.True(t, fault.IsKind(err, fault.KindInvariantViolation))
		})
	}
}

func TestSubmitEvidenceForwardsReceipt(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	bogus := types.NewValset(500, []types.ValsetMember{
		{Power: 1337, EthereumAddress: crypto.PubkeyToAddress(key.PublicKey)},
	}, nil, nil)
	cp, err := checkpoint.ValsetCheckpoint(gravityID, bogus)
	require.NoError(t, err)
	sig, err := checkpoint.SignCheckpoint(key, cp)
	require.NoError(t, err)

	b := &fakeBroadcaster{resp: &cosmos.TxResponse{TxHash: "ABCD", Height: 42}}
	fee := cosmos.Coin{Denom: "ugraviton", Amount: "100"}
	s := NewSubmitter("gravity", fee, zaptest.NewLogger(t))

	resp, err := s.SubmitEvidence(context.Background(), sig, types.ValsetChallenge{Valset: bogus}, b, gravityID)
	require.NoError(t, err)
	assert.Equal(t, "ABCD", resp.TxHash)

	require.Len(t, b.msgs, 1)
	msg := b.msgs[0]
	assert.Equal(t, hex.EncodeToString(sig), msg.Signature)
	assert.Equal(t, "gravity", msg.EvmChainPrefix)
	assert.Equal(t, types.ValsetTypeURL, msg.Subject.TypeURL)
	assert.Equal(t, fee, b.fees[0])

	var decoded types.Valset
	require.NoError(t, decoded.Unmarshal(msg.Subject.Value))
	assert.True(t, decoded.Equal(bogus))
}

func TestSubmitEvidenceDoesNotRetry(t *testing.T) {
	b := &fakeBroadcaster{err: errors.New("account sequence mismatch")}
	s := NewSubmitter("gravity", cosmos.Coin{}, zaptest.NewLogger(t))
	ev := types.ValsetChallenge{Valset: types.NewValset(1, nil, nil, nil)}

	_, err := s.SubmitEvidence(context.Background(), []byte{0x01}, ev, b, gravityID)
	require.Error(t, err)
	assert.Len(t, b.msgs, 1)
}

func TestSubmitEvidenceWithoutSubject(t *testing.T) {
	b := &fakeBroadcaster{}
	s := NewSubmitter("gravity", cosmos.Coin{}, zaptest.NewLogger(t))

	_, err := s.SubmitEvidence(context.Background(), nil, types.BatchChallenge{}, b, gravityID)
	require.Error(t, err)
	assert.Empty(t, b.msgs)
}

func TestSubmitEvidenceRejectsNilEvidence(t *testing.T) {
	b := &fakeBroadcaster{}
	s := NewSubmitter("gravity", cosmos.Coin{}, zaptest.NewLogger(t))

	for name, ev := range map[string]types.BadSignatureEvidence{
		"nil interface": nil,
		"nil pointer":   (*types.ValsetChallenge)(nil),
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := s.SubmitEvidence(context.Background(), []byte{0x01}, ev, b, gravityID)
			require.ErrorIs(t, err, ErrNoEvidence)
			assert.Nil(t, resp)
		})
	}
	assert.Empty(t, b.msgs)
}

// A validator signs a valset that was never produced and gets jailed for it.
func TestValsetEvidenceSlashesSigner(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	q := bondedSet()
	valsetsBefore := []types.Valset{{Nonce: 1}, {Nonce: 2}}
	valsetsAfter := []types.Valset{{Nonce: 1}, {Nonce: 2}, {Nonce: 3}}

	b := &fakeBroadcaster{
		resp:   &cosmos.TxResponse{TxHash: "F00D"},
		onSend: func() { q.jail(operator) },
	}

	require.NoError(t, LogValidatorStatus(ctx, q, logger))
	before := LatestValsetNonce(valsetsBefore)

	bogus := types.NewValset(500, []types.ValsetMember{
		{Power: 1337, EthereumAddress: crypto.PubkeyToAddress(key.PublicKey)},
	}, nil, nil)
	encoded, err := checkpoint.EncodeValsetConfirm(gravityID, bogus)
	require.NoError(t, err)
	sig, err := checkpoint.SignCheckpoint(key, checkpoint.Keccak256(encoded))
	require.NoError(t, err)

	require.NoError(t, ExpectBonded(ctx, q, operator))
	_, err = NewSubmitter("gravity", cosmos.Coin{Denom: "ugraviton", Amount: "1"}, logger).
		SubmitEvidence(ctx, sig, types.ValsetChallenge{Valset: bogus}, b, gravityID)
	require.NoError(t, err)
	require.NoError(t, ExpectJailed(ctx, q, operator))

	after := LatestValsetNonce(valsetsAfter)
	require.NoError(t, VerifyValsetRotation(before, after))
}
