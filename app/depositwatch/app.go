// Package depositwatch confirms one ERC-721 deposit end to end: first the Cosmos attestation, then
// the minted NFT in the receiver's account.
package depositwatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/confirm"
	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/retry"
	"github.com/canopy-network/bridgewatch/pkg/rpc"
	"github.com/canopy-network/bridgewatch/pkg/utils"
)

// App holds what one deposit check needs.
type App struct {
	Confirmer *confirm.Confirmer
	Waiter    rpc.BlockWaiter
	Deposit   confirm.ERC721Deposit
	Logger    *zap.Logger

	closers []func() error
}

// Initialize builds the App from the environment.
//
// Environment variables:
//   - COSMOS_GRPC_URL: Cosmos gRPC endpoint (default: "localhost:9090")
//   - EVM_CHAIN_PREFIX: bridge prefix used for attestation queries (default: "gravity")
//   - ERC721_CONTRACT, ETH_SENDER, COSMOS_RECEIVER, TOKEN_ID: the deposit (required)
//   - COMETBFT_WS_URL: websocket endpoint for block waits; when unset COMETBFT_RPC_URL is polled
//   - COMETBFT_RPC_URL: comma-separated CometBFT HTTP RPC endpoints (default: "http://localhost:26657")
//   - COMETBFT_POLL_EVERY: height poll interval for HTTP block waits (default: 500ms)
//   - CONFIRM_POLL_INTERVAL, CONFIRM_TIMEOUT, CONFIRM_BLOCK_FALLBACK: see confirm.DefaultConfig
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	deposit := confirm.ERC721Deposit{
		TokenContract: utils.Env("ERC721_CONTRACT", ""),
		Sender:        utils.Env("ETH_SENDER", ""),
		Receiver:      utils.Env("COSMOS_RECEIVER", ""),
		TokenID:       utils.Env("TOKEN_ID", ""),
	}
	if err := validate(deposit); err != nil {
		return nil, err
	}

	conn, err := cosmos.Dial(ctx, utils.Env("COSMOS_GRPC_URL", "localhost:9090"), retry.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}

	var waiter rpc.BlockWaiter
	if ws := utils.Env("COMETBFT_WS_URL", ""); ws != "" {
		waiter = rpc.NewWSBlockWaiter(ws, logger)
	} else {
		endpoints := utils.EnvList("COMETBFT_RPC_URL")
		if len(endpoints) == 0 {
			endpoints = []string{"http://localhost:26657"}
		}
		waiter = rpc.NewHTTPWithOpts(rpc.Opts{
			Endpoints: endpoints,
			PollEvery: utils.EnvDuration("COMETBFT_POLL_EVERY", 500*time.Millisecond),
		})
	}

	gravity := cosmos.NewGravityQueryClient(conn, utils.Env("EVM_CHAIN_PREFIX", "gravity"))
	return &App{
		Confirmer: confirm.New(gravity, cosmos.NewNFTQueryClient(conn), confirm.DefaultConfig(), logger),
		Waiter:    waiter,
		Deposit:   deposit,
		Logger:    logger,
		closers:   []func() error{conn.Close},
	}, nil
}

func validate(d confirm.ERC721Deposit) error {
	var missing []string
	for _, kv := range [][2]string{
		{"ERC721_CONTRACT", d.TokenContract},
		{"ETH_SENDER", d.Sender},
		{"COSMOS_RECEIVER", d.Receiver},
		{"TOKEN_ID", d.TokenID},
	} {
		if kv[1] == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing deposit settings: %v", missing)
	}
	return nil
}

// Run waits for the attestation and then for NFT ownership, each within its own deadline.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	logger := a.Logger.With(
		zap.String("contract", a.Deposit.TokenContract),
		zap.String("tokenId", a.Deposit.TokenID),
		zap.String("receiver", a.Deposit.Receiver))

	logger.Info("waiting for send_erc721_to_cosmos attestation")
	out, err := a.Confirmer.ERC721Deposit(ctx, a.Deposit)
	if err != nil {
		a.logFailure(logger, "attestation not confirmed", out.Attempts, err)
		return err
	}

	logger.Info("attestation observed, waiting for nft ownership")
	out, err = a.Confirmer.NFTOwned(ctx, a.Waiter, a.Deposit.TokenContract, a.Deposit.Receiver, a.Deposit.TokenID)
	if err != nil {
		a.logFailure(logger, "nft not moved to receiver", out.Attempts, err)
		return err
	}
	logger.Info("deposit complete", zap.Duration("elapsed", out.Elapsed))
	return nil
}

// logFailure logs a timeout at Warn and any other failure, faults included, at Error.
func (a *App) logFailure(logger *zap.Logger, msg string, attempts int, err error) {
	if fault.IsKind(err, fault.KindTimeout) {
		logger.Warn(msg, zap.Int("attempts", attempts), zap.Error(err))
		return
	}
	logger.Error(msg, zap.Int("attempts", attempts), zap.Bool("fatal", fault.IsFatal(err)), zap.Error(err))
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// ExitCode maps Run's result to a process status: 0 confirmed, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
