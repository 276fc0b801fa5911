// Package poll waits, within a deadline, for a cross-chain condition to become true.
//
// Await is strictly sequential: check, then back off, then check again. The deadline is measured on
// the monotonic clock from loop entry, and the check is never started once the deadline has passed.
package poll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/logging"
)

// State of a poll.
type State int

const (
	Polling State = iota
	Confirmed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Confirmed:
		return "confirmed"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome reports how a poll ended.
type Outcome struct {
	State    State
	Attempts int
	Elapsed  time.Duration
	// LastErr is the most recent transient check error, if any.
	LastErr error
}

// Check reports whether the awaited condition holds. Errors are transient unless they carry a
// fatal fault, which stops the poll.
type Check func(ctx context.Context) (bool, error)

// Options configure Await.
type Options struct {
	// Name identifies the poll in logs and in the timeout message.
	Name     string
	Deadline time.Duration
	Backoff  Backoff
	Logger   *zap.Logger
}

// Await runs check until it returns true, a fatal fault is returned, ctx is cancelled or the
// deadline passes. A deadline expiry returns a TimedOut outcome and a non-fatal Timeout fault.
func Await(ctx context.Context, check Check, opts Options) (Outcome, error) {
	logger := logging.OrNop(opts.Logger)
	if opts.Backoff == nil {
		return Outcome{}, fmt.Errorf("poll %s: no backoff strategy", opts.Name)
	}
	if opts.Deadline <= 0 {
		return Outcome{}, fmt.Errorf("poll %s: deadline must be positive", opts.Name)
	}

	start := time.Now()
	out := Outcome{State: Polling}
	remaining := func() time.Duration { return opts.Deadline - time.Since(start) }

	for {
		out.Attempts++
		ok, err := runCheck(ctx, check, remaining())
		out.Elapsed = time.Since(start)

		switch {
		case err == nil && ok:
			out.State = Confirmed
			logger.Debug("poll confirmed",
				zap.String("poll", opts.Name),
				zap.Int("attempts", out.Attempts),
				zap.Duration("elapsed", out.Elapsed))
			return out, nil
		case err != nil && fault.IsFatal(err):
			return out, err
		case err != nil && ctx.Err() != nil:
			return out, fmt.Errorf("poll %s: %w", opts.Name, ctx.Err())
		case err != nil:
			out.LastErr = err
			logger.Warn("poll check failed, retrying",
				zap.String("poll", opts.Name),
				zap.Int("attempt", out.Attempts),
				zap.Duration("remaining", remaining()),
				zap.Error(err))
		}

		left := remaining()
		if left <= 0 {
			return timedOut(opts, out, start)
		}
		again, err := opts.Backoff.Wait(ctx, left)
		if err != nil {
			out.Elapsed = time.Since(start)
			return out, fmt.Errorf("poll %s: %w", opts.Name, err)
		}
		if !again || remaining() <= 0 {
			return timedOut(opts, out, start)
		}
	}
}

// runCheck bounds a single check by the time left so a hung query cannot outlive the deadline.
func runCheck(ctx context.Context, check Check, left time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, left)
	defer cancel()
	return check(ctx)
}

func timedOut(opts Options, out Outcome, start time.Time) (Outcome, error) {
	out.State = TimedOut
	out.Elapsed = time.Since(start)
	if out.LastErr != nil {
		return out, fault.Timeout("%s not confirmed after %d attempts in %s (last error: %v)",
			opts.Name, out.Attempts, out.Elapsed.Round(time.Millisecond), out.LastErr)
	}
	return out, fault.Timeout("%s not confirmed after %d attempts in %s",
		opts.Name, out.Attempts, out.Elapsed.Round(time.Millisecond))
}
