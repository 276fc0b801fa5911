// Package confirm waits for a bridge operation to be recorded on the Cosmos chain.
//
// Attestation checks poll at a fixed interval. NFT ownership polls once per Cosmos block.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/attest"
	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/poll"
	"github.com/canopy-network/bridgewatch/pkg/rpc"
	"github.com/canopy-network/bridgewatch/pkg/utils"
)

// Config controls poll cadence and deadlines.
type Config struct {
	Interval      time.Duration
	Timeout       time.Duration
	BlockFallback time.Duration
	OrderBy       string
}

// DefaultConfig reads CONFIRM_POLL_INTERVAL (10s), CONFIRM_TIMEOUT (300s) and
// CONFIRM_BLOCK_FALLBACK (1s).
func DefaultConfig() Config {
	return Config{
		Interval:      utils.EnvDuration("CONFIRM_POLL_INTERVAL", 10*time.Second),
		Timeout:       utils.EnvDuration("CONFIRM_TIMEOUT", 300*time.Second),
		BlockFallback: utils.EnvDuration("CONFIRM_BLOCK_FALLBACK", time.Second),
		OrderBy:       "desc",
	}
}

// Confirmer runs confirmation polls against one Cosmos chain.
type Confirmer struct {
	attestations cosmos.AttestationQuerier
	nfts         cosmos.NFTQuerier
	cfg          Config
	logger       *zap.Logger
}

// New builds a Confirmer. nfts may be nil when NFTOwned is never called.
func New(attestations cosmos.AttestationQuerier, nfts cosmos.NFTQuerier, cfg Config, logger *zap.Logger) *Confirmer {
	return &Confirmer{attestations: attestations, nfts: nfts, cfg: cfg, logger: logging.OrNop(logger)}
}

// ERC20Deposit identifies a SendToCosmos event.
type ERC20Deposit struct {
	TokenContract string
	Sender        string
	Receiver      string
	Amount        *big.Int
}

// ERC721Deposit identifies a SendERC721ToCosmos event.
type ERC721Deposit struct {
	TokenContract string
	Sender        string
	Receiver      string
	TokenID       string
}

func (c *Confirmer) request() cosmos.AttestationsRequest {
	return cosmos.AttestationsRequest{OrderBy: c.cfg.OrderBy}
}

func (c *Confirmer) await(ctx context.Context, name string, check poll.Check, backoff poll.Backoff) (poll.Outcome, error) {
	out, err := poll.Await(ctx, check, poll.Options{
		Name:     name,
		Deadline: c.cfg.Timeout,
		Backoff:  backoff,
		Logger:   c.logger,
	})
	if err == nil {
		c.logger.Info("confirmed", zap.String("check", name), zap.Int("attempts", out.Attempts), zap.Duration("elapsed", out.Elapsed))
	}
	return out, err
}

// sameEVMAddress compares hex addresses ignoring checksum case.
func sameEVMAddress(a, b string) bool { return strings.EqualFold(a, b) }

// ERC20Deposit waits for a MsgSendToCosmosClaim matching d.
func (c *Confirmer) ERC20Deposit(ctx context.Context, d ERC20Deposit) (poll.Outcome, error) {
	check := func(ctx context.Context) (bool, error) {
		return attest.Any(ctx, c.attestations, c.request(), c.logger, func(m *types.MsgSendToCosmosClaim) bool {
			if !sameEVMAddress(m.TokenContract, d.TokenContract) || !sameEVMAddress(m.EthereumSender, d.Sender) || m.CosmosReceiver != d.Receiver {
				return false
			}
			if d.Amount == nil {
				return true
			}
			amount, err := m.AmountInt()
			return err == nil && amount.Cmp(d.Amount) == 0
		})
	}
	return c.await(ctx, fmt.Sprintf("send_to_cosmos %s -> %s", d.TokenContract, d.Receiver), check, poll.FixedInterval(c.cfg.Interval))
}

// ERC721Deposit waits for a MsgSendERC721ToCosmosClaim matching d.
func (c *Confirmer) ERC721Deposit(ctx context.Context, d ERC721Deposit) (poll.Outcome, error) {
	check := func(ctx context.Context) (bool, error) {
		return attest.Any(ctx, c.attestations, c.request(), c.logger, func(m *types.MsgSendERC721ToCosmosClaim) bool {
			return sameEVMAddress(m.TokenContract, d.TokenContract) &&
				m.CosmosReceiver == d.Receiver &&
				sameEVMAddress(m.EthereumSender, d.Sender) &&
				m.TokenID == d.TokenID
		})
	}
	return c.await(ctx, fmt.Sprintf("send_erc721_to_cosmos %s #%s", d.TokenContract, d.TokenID), check, poll.FixedInterval(c.cfg.Interval))
}

// ValsetUpdated waits for a MsgValsetUpdatedClaim for nonce.
func (c *Confirmer) ValsetUpdated(ctx context.Context, nonce uint64) (poll.Outcome, error) {
	check := func(ctx context.Context) (bool, error) {
		return attest.Any(ctx, c.attestations, c.request(), c.logger, func(m *types.MsgValsetUpdatedClaim) bool {
			return m.ValsetNonce == nonce
		})
	}
	return c.await(ctx, fmt.Sprintf("valset_updated %d", nonce), check, poll.FixedInterval(c.cfg.Interval))
}

// BatchExecuted waits for a MsgBatchSendToEthClaim for the batch nonce of tokenContract.
func (c *Confirmer) BatchExecuted(ctx context.Context, nonce uint64, tokenContract string) (poll.Outcome, error) {
	check := func(ctx context.Context) (bool, error) {
		return attest.Any(ctx, c.attestations, c.request(), c.logger, func(m *types.MsgBatchSendToEthClaim) bool {
			return m.BatchNonce == nonce && sameEVMAddress(m.TokenContract, tokenContract)
		})
	}
	return c.await(ctx, fmt.Sprintf("batch_send_to_eth %s %d", tokenContract, nonce), check, poll.FixedInterval(c.cfg.Interval))
}

// NFTOwned waits, one Cosmos block at a time, until owner holds tokenID of the bridged class of
// the ERC-721 contract. Query failures are retried on the next block.
func (c *Confirmer) NFTOwned(ctx context.Context, waiter rpc.BlockWaiter, contract, owner, tokenID string) (poll.Outcome, error) {
	if c.nfts == nil {
		return poll.Outcome{}, errors.New("nft ownership check needs an nft querier")
	}
	classID := cosmos.ERC721ClassID(contract)
	check := func(ctx context.Context) (bool, error) {
		nfts, err := c.nfts.NFTs(ctx, classID, owner)
		if err != nil {
			return false, err
		}
		for _, n := range nfts {
			if n.ID == tokenID {
				return true, nil
			}
		}
		c.logger.Debug("nft not yet owned", zap.String("classId", classID), zap.String("owner", owner), zap.Int("held", len(nfts)))
		return false, nil
	}
	backoff := poll.BlockAligned(waiter, c.cfg.BlockFallback, c.logger)
	return c.await(ctx, fmt.Sprintf("nft %s #%s owned by %s", classID, tokenID, owner), check, backoff)
}
