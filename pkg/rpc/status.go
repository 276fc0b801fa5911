package rpc

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const statusPath = "/status"

// Status is the part of CometBFT's /status result the bridge uses.
type Status struct {
	NodeInfo struct {
		Network string `json:"network"`
		Moniker string `json:"moniker"`
	} `json:"node_info"`
	SyncInfo struct {
		LatestBlockHeight string    `json:"latest_block_height"`
		LatestBlockTime   time.Time `json:"latest_block_time"`
		CatchingUp        bool      `json:"catching_up"`
	} `json:"sync_info"`
}

// Height parses the latest block height.
func (s *Status) Height() (uint64, error) {
	h, err := strconv.ParseUint(s.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("latest_block_height %q: %w", s.SyncInfo.LatestBlockHeight, err)
	}
	return h, nil
}

// Status returns the node's /status.
func (c *HTTPClient) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.getJSON(ctx, statusPath, &st); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &st, nil
}

// LatestHeight returns the node's latest committed block height.
func (c *HTTPClient) LatestHeight(ctx context.Context) (uint64, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.Height()
}

// WaitForNextBlock returns once the height advances past the height observed on entry.
func (c *HTTPClient) WaitForNextBlock(ctx context.Context) error {
	start, err := c.LatestHeight(ctx)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for block after %d: %w", start, ctx.Err())
		case <-ticker.C:
		}
		h, err := c.LatestHeight(ctx)
		if err != nil {
			return err
		}
		if h > start {
			return nil
		}
	}
}
