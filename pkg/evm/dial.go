package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/retry"
)

// Dial connects to an EVM JSON-RPC endpoint, retrying until the node answers eth_chainId.
func Dial(ctx context.Context, url string, cfg retry.Config, logger *zap.Logger) (*ethclient.Client, error) {
	logger = logging.OrNop(logger)
	var client *ethclient.Client
	err := retry.WithBackoff(ctx, cfg, logger, "evm dial "+url, func() error {
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return err
		}
		chainID, err := c.ChainID(ctx)
		if err != nil {
			c.Close()
			return fmt.Errorf("eth_chainId: %w", err)
		}
		logger.Info("connected to evm node", zap.String("url", url), zap.String("chainId", chainID.String()))
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
