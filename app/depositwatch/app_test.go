package depositwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/bridgewatch/pkg/confirm"
	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
)

var deposit = confirm.ERC721Deposit{
	TokenContract: "0x8d31bEa3d6C3A3Bf0c4C1a0C44F1E0A9538c6C4A",
	Sender:        "0xBf660843528035a5A4921534E156a27e64B231fE",
	Receiver:      "gravity1jv65s3grqf6v6jl3dp4t6c9t9rk99cd8r0kyvz",
	TokenID:       "1",
}

type staticAttestations []types.Attestation

func (s staticAttestations) Attestations(context.Context, cosmos.AttestationsRequest) ([]types.Attestation, error) {
	return s, nil
}

type staticNFTs []cosmos.NFT

func (s staticNFTs) NFTs(context.Context, string, string) ([]cosmos.NFT, error) { return s, nil }

type instantBlocks struct{}

func (instantBlocks) WaitForNextBlock(context.Context) error {
	time.Sleep(time.Millisecond)
	return nil
}

func newApp(t *testing.T, atts staticAttestations, nfts staticNFTs) *App {
	t.Helper()
	cfg := confirm.Config{Interval: 5 * time.Millisecond, Timeout: 100 * time.Millisecond, BlockFallback: time.Millisecond}
	logger := zaptest.NewLogger(t)
	closed := false
	app := &App{
		Confirmer: confirm.New(atts, nfts, cfg, logger),
		Waiter:    instantBlocks{},
		Deposit:   deposit,
		Logger:    logger,
		closers:   []func() error{func() error { closed = true; return nil }},
	}
	t.Cleanup(func() { assert.True(t, closed, "Run must release its connections") })
	return app
}

func depositAttestation(t *testing.T) types.Attestation {
	t.Helper()
	packed, err := types.PackClaim(&types.MsgSendERC721ToCosmosClaim{
		TokenContract:  deposit.TokenContract,
		TokenID:        deposit.TokenID,
		EthereumSender: deposit.Sender,
		CosmosReceiver: deposit.Receiver,
	})
	require.NoError(t, err)
	return types.Attestation{Observed: true, Claim: packed}
}

func TestRunConfirmsDeposit(t *testing.T) {
	app := newApp(t, staticAttestations{depositAttestation(t)}, staticNFTs{{ID: "1"}})
	err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))
}

func TestRunTimesOutWithoutAttestation(t *testing.T) {
	app := newApp(t, staticAttestations{{}}, staticNFTs{{ID: "1"}})
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindTimeout))
	assert.Equal(t, 1, ExitCode(err))
}

func TestRunTimesOutWithoutNFT(t *testing.T) {
	app := newApp(t, staticAttestations{depositAttestation(t)}, staticNFTs{{ID: "2"}})
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gravityerc721")
	assert.Equal(t, 1, ExitCode(err))
}

func TestValidateNamesMissingSettings(t *testing.T) {
	require.NoError(t, validate(deposit))
	err := validate(confirm.ERC721Deposit{TokenContract: deposit.TokenContract})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETH_SENDER")
	assert.Contains(t, err.Error(), "TOKEN_ID")
	assert.Equal(t, 1, ExitCode(errors.New("any")))
}
