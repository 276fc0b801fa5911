package rpc

import (
	"context"
)

// BlockWaiter blocks until the chain produces its next block.
type BlockWaiter interface {
	WaitForNextBlock(ctx context.Context) error
}

var (
	_ BlockWaiter = (*HTTPClient)(nil)
	_ BlockWaiter = (*WSBlockWaiter)(nil)
)
