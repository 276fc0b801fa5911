package poll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/rpc"
)

// Backoff suspends between checks. remaining is the time left before the deadline. Wait returns
// false when the next check could not start before the deadline, and an error only when ctx ends.
type Backoff interface {
	Wait(ctx context.Context, remaining time.Duration) (bool, error)
}

type fixedInterval struct {
	interval time.Duration
}

// FixedInterval sleeps d between checks. When d would end past the deadline it gives up at once.
func FixedInterval(d time.Duration) Backoff {
	return fixedInterval{interval: d}
}

func (f fixedInterval) Wait(ctx context.Context, remaining time.Duration) (bool, error) {
	if f.interval > remaining {
		return false, nil
	}
	return true, sleep(ctx, f.interval)
}

type blockAligned struct {
	waiter   rpc.BlockWaiter
	fallback time.Duration
	logger   *zap.Logger
}

// BlockAligned waits for the destination chain's next block, bounded by the deadline. Waiter
// errors are treated as transient: it logs them and sleeps fallback instead.
func BlockAligned(waiter rpc.BlockWaiter, fallback time.Duration, logger *zap.Logger) Backoff {
	return blockAligned{waiter: waiter, fallback: fallback, logger: logging.OrNop(logger)}
}

func (b blockAligned) Wait(ctx context.Context, remaining time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, remaining)
	err := b.waiter.WaitForNextBlock(waitCtx)
	deadlineHit := errors.Is(waitCtx.Err(), context.DeadlineExceeded)
	cancel()

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case deadlineHit:
		return false, nil
	}

	b.logger.Warn("block wait failed, falling back to fixed sleep",
		zap.Duration("fallback", b.fallback),
		zap.Error(err))
	if b.fallback > remaining {
		return false, nil
	}
	return true, sleep(ctx, b.fallback)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
