package evm

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
)

var contract = common.HexToAddress("0x7580bFE88Dd3d07947908FAE12d95872a260F2D8")

type fakeCaller struct {
	results map[string][]byte
	err     error
	headErr error
	head    uint64
	calls   []ethereum.CallMsg
	blocks  []*big.Int
}

func (f *fakeCaller) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	f.blocks = append(f.blocks, block)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[hex.EncodeToString(msg.Data)], nil
}

func (f *fakeCaller) set(signature string, word []byte) {
	if f.results == nil {
		f.results = map[string][]byte{}
	}
	f.results[hex.EncodeToString(Selector(signature))] = word
}

func uintWord(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func TestSelector(t *testing.T) {
	// transfer(address,uint256)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
}

func TestContractReaderReadsState(t *testing.T) {
	caller := &fakeCaller{head: 812}
	caller.set(lastValsetNonceSig, uintWord(big.NewInt(12)))
	idWord := make([]byte, 32)
	copy(idWord, "defaultgravityid")
	caller.set(gravityIDSig, idWord)
	cpWord := common.HexToHash("0x11").Bytes()
	caller.set(lastValsetCheckpointSig, cpWord)

	r := NewContractReader(caller, contract, zaptest.NewLogger(t))
	ctx := context.Background()

	block, err := r.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(812), block)

	nonce, err := r.LatestValsetNonce(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), nonce)

	id, err := r.GravityID(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, types.GravityID("defaultgravityid"), id)

	cp, err := r.LastValsetCheckpoint(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, cpWord, cp.Bytes())

	require.Len(t, caller.calls, 3)
	for i, c := range caller.calls {
		assert.Equal(t, contract, *c.To)
		require.NotNil(t, caller.blocks[i], "call %d ran against the moving head", i)
		assert.Equal(t, uint64(812), caller.blocks[i].Uint64())
	}
}

func TestBlockNumberErrorIsTransport(t *testing.T) {
	caller := &fakeCaller{headErr: errors.New("timeout")}

	_, err := NewContractReader(caller, contract, nil).BlockNumber(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTransport))
	assert.Contains(t, err.Error(), contract.Hex())
}

func TestLatestValsetNonceOverflowIsFatal(t *testing.T) {
	caller := &fakeCaller{}
	tooBig := new(big.Int).Lsh(big.NewInt(1), 64)
	caller.set(lastValsetNonceSig, uintWord(tooBig))

	_, err := NewContractReader(caller, contract, nil).LatestValsetNonce(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindOverflow))
	assert.True(t, fault.IsFatal(err))
	assert.ErrorIs(t, err, fault.ErrOverflow)
	assert.Contains(t, err.Error(), tooBig.String())
}

func TestDowncastNonceBoundary(t *testing.T) {
	maxNonce := new(big.Int).SetUint64(^uint64(0))
	n, err := DowncastNonce(maxNonce, contract)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), n)

	_, err = DowncastNonce(big.NewInt(-1), contract)
	require.Error(t, err)
}

func TestGravityIDNotUTF8IsFatalDecode(t *testing.T) {
	caller := &fakeCaller{}
	word := make([]byte, 32)
	word[0], word[1] = 0xff, 0xfe
	caller.set(gravityIDSig, word)

	_, err := NewContractReader(caller, contract, nil).GravityID(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindDecode))
	assert.True(t, fault.IsFatal(err))
}

func TestTransportErrorIsNotFatal(t *testing.T) {
	cause := errors.New("connection refused")
	caller := &fakeCaller{err: cause}

	_, err := NewContractReader(caller, contract, nil).LastValsetCheckpoint(context.Background(), 1)
	require.ErrorIs(t, err, cause)
	assert.True(t, fault.IsKind(err, fault.KindTransport))
	assert.False(t, fault.IsFatal(err))
}

func TestShortReturnIsDecodeFault(t *testing.T) {
	caller := &fakeCaller{}
	caller.set(lastValsetNonceSig, []byte{0x01})

	_, err := NewContractReader(caller, contract, nil).LatestValsetNonce(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindDecode))
}

func TestEventTopics(t *testing.T) {
	topics := EventTopics()
	require.Len(t, topics, len(EventSignatures))
	assert.Equal(t, SendToCosmosEventSig, topics[Topic(SendToCosmosEventSig)])
	// keccak("Transfer(address,address,uint256)")
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", Topic("Transfer(address,address,uint256)").Hex())
}

func TestBlocksToSearch(t *testing.T) {
	t.Setenv("BLOCK_TO_SEARCH", "")
	assert.Equal(t, uint64(5000), BlocksToSearch())
	t.Setenv("BLOCK_TO_SEARCH", "250")
	assert.Equal(t, uint64(250), BlocksToSearch())
}
