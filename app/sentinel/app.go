package sentinel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/cosmos"
	"github.com/canopy-network/bridgewatch/pkg/evm"
	"github.com/canopy-network/bridgewatch/pkg/fault"
	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/redis"
	"github.com/canopy-network/bridgewatch/pkg/retry"
	"github.com/canopy-network/bridgewatch/pkg/utils"
	"github.com/canopy-network/bridgewatch/pkg/verify"
)

// ErrHalted is the cause Start returns when a fatal fault stopped the sentinel.
var ErrHalted = errors.New("sentinel halted")

// App re-verifies every configured bridge on each Cron tick and serves the results over HTTP.
type App struct {
	// Cron is the scheduler that triggers verification at specified intervals, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Status holds the latest result per EVM chain prefix.
	Status *xsync.Map[string, BridgeStatus]

	Events redis.Publisher
	Policy MismatchPolicy

	// Pool runs bridges concurrently. Verifiers read through their own pool so a bridge task never
	// waits on work queued behind it.
	Pool pond.Pool

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the API.
	Server *http.Server

	// TickTimeout bounds one verification pass.
	TickTimeout time.Duration

	bridges []watchedBridge
	halt    chan error
	closers []func() error
}

// New builds an App with no bridges. Use Watch to add them.
func New(logger *zap.Logger, events redis.Publisher, policy MismatchPolicy, pool pond.Pool) *App {
	if events == nil {
		events = redis.NopPublisher{}
	}
	if pool == nil {
		pool = pond.NewPool(utils.EnvInt("VERIFY_WORKERS", 16))
	}
	return &App{
		CronSpec:    "*/30 * * * * *",
		Status:      xsync.NewMap[string, BridgeStatus](),
		Events:      events,
		Policy:      policy,
		Pool:        pool,
		Logger:      logging.OrNop(logger),
		TickTimeout: 25 * time.Second,
		halt:        make(chan error, 1),
	}
}

// Watch registers a bridge and the resolver that verifies it.
func (a *App) Watch(b Bridge, r Resolver) {
	a.bridges = append(a.bridges, watchedBridge{Bridge: b, resolver: r})
	a.Status.Store(b.EvmChainPrefix, BridgeStatus{EvmChainPrefix: b.EvmChainPrefix, Contract: b.Contract.Hex()})
}

// Initialize builds the App from the environment.
//
// Environment variables:
//   - BRIDGES: comma-separated "prefix|contract|evmRPC" entries (required)
//   - COSMOS_GRPC_URL: Cosmos gRPC endpoint (default: "localhost:9090")
//   - CRON_SPEC: verification schedule, seconds field included (default: "*/30 * * * * *")
//   - MISMATCH_POLICY: halt or degrade (default: "halt")
//   - REDIS_ENABLED: publish bridge events to Redis (default: false)
//   - VERIFY_WORKERS: bridges verified concurrently (default: 16)
//   - ADDR: HTTP listen address (default: ":3003")
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	bridges, err := ParseBridges(utils.EnvList("BRIDGES"))
	if err != nil {
		return nil, err
	}
	if len(bridges) == 0 {
		return nil, errors.New("BRIDGES is empty")
	}
	policy, err := ParseMismatchPolicy(utils.Env("MISMATCH_POLICY", string(PolicyHalt)))
	if err != nil {
		return nil, err
	}

	var events redis.Publisher = redis.NopPublisher{}
	var closers []func() error
	if utils.EnvBool("REDIS_ENABLED", false) {
		rc, err := redis.NewClient(ctx, logger)
		if err != nil {
			return nil, err
		}
		events = rc
		closers = append(closers, rc.Close)
	}

	retryCfg := retry.DefaultConfig()
	conn, err := cosmos.Dial(ctx, utils.Env("COSMOS_GRPC_URL", "localhost:9090"), retryCfg, logger)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	closers = append(closers, conn.Close)

	app := New(logger, events, policy, nil)
	app.CronSpec = utils.Env("CRON_SPEC", app.CronSpec)
	app.TickTimeout = utils.EnvDuration("TICK_TIMEOUT", app.TickTimeout)
	reads := pond.NewPool(3 * len(bridges))
	app.closers = append(closers, func() error { reads.StopAndWait(); return nil })
	for _, b := range bridges {
		client, err := evm.Dial(ctx, b.EVMRPC, retryCfg, logger)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("bridge %s: %w", b.EvmChainPrefix, err)
		}
		app.closers = append(app.closers, func() error { client.Close(); return nil })

		reader := evm.NewContractReader(client, b.Contract, logger)
		valsets := cosmos.NewGravityQueryClient(conn, b.EvmChainPrefix)
		app.Watch(b, verify.NewVerifier(reader, valsets, reads, logger.With(zap.String("evmChainPrefix", b.EvmChainPrefix))))
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger, app.CronSpec); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

// SetupScheduler sets up the cron scheduler. Overlapping ticks are skipped.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() { a.VerifyOnce(ctx) })
	return err
}

// VerifyOnce runs one verification pass bounded by TickTimeout.
func (a *App) VerifyOnce(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, a.TickTimeout)
	defer cancel()
	a.VerifyAll(rctx)
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[sentinel] Cron started", zap.String("cronSpec", a.CronSpec), zap.Int("bridges", len(a.bridges)))
}

// StopCron stops the cron scheduler and waits for a running pass.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// VerifyAll verifies every bridge that is not halted, concurrently.
func (a *App) VerifyAll(ctx context.Context) {
	group := a.Pool.NewGroup()
	for i := range a.bridges {
		b := &a.bridges[i]
		group.Submit(func() { a.verifyBridge(ctx, b) })
	}
	_ = group.Wait()
}

func (a *App) verifyBridge(ctx context.Context, b *watchedBridge) {
	prev, _ := a.Status.Load(b.EvmChainPrefix)
	if prev.Halted {
		return
	}
	next := prev
	next.CheckedAt = time.Now().UTC()
	ev := redis.BridgeEvent{EvmChainPrefix: b.EvmChainPrefix, Contract: b.Contract.Hex(), Time: next.CheckedAt}

	res, err := b.resolver.Resolve(ctx)
	switch {
	case err == nil:
		next.Nonce = res.Valset.Nonce
		next.Checkpoint = res.Checkpoint.Hex()
		next.GravityID = string(res.GravityID)
		next.EVMBlock = res.Block
		next.VerifiedAt = next.CheckedAt
		next.LastError = ""
		next.Failures = 0
		ev.Type, ev.Nonce, ev.Checkpoint = redis.EventValsetVerified, next.Nonce, next.Checkpoint
		a.Logger.Info("valset verified",
			zap.String("evmChainPrefix", b.EvmChainPrefix),
			zap.Uint64("nonce", next.Nonce),
			zap.Uint64("evmBlock", next.EVMBlock),
			zap.String("checkpoint", next.Checkpoint))
	case fault.IsFatal(err):
		next.Halted = true
		next.LastError = err.Error()
		next.Failures++
		ev.Type, ev.Error = redis.EventBridgeHalted, err.Error()
		a.Logger.Error("bridge halted",
			zap.String("evmChainPrefix", b.EvmChainPrefix),
			zap.String("contract", b.Contract.Hex()),
			zap.String("policy", string(a.Policy)),
			zap.Error(err))
	default:
		next.LastError = err.Error()
		next.Failures++
		ev.Type, ev.Error = redis.EventVerifyFailed, err.Error()
		a.Logger.Warn("verification failed, retrying next tick",
			zap.String("evmChainPrefix", b.EvmChainPrefix),
			zap.Int("failures", next.Failures),
			zap.Error(err))
	}
	a.Status.Store(b.EvmChainPrefix, next)
	a.Events.PublishEvent(ctx, ev)

	if next.Halted && a.Policy == PolicyHalt {
		select {
		case a.halt <- fmt.Errorf("%w: bridge %s: %w", ErrHalted, b.EvmChainPrefix, err):
		default:
		}
	}
}

// Statuses returns every bridge status in configuration order.
func (a *App) Statuses() []BridgeStatus {
	out := make([]BridgeStatus, 0, len(a.bridges))
	for _, b := range a.bridges {
		if s, ok := a.Status.Load(b.EvmChainPrefix); ok {
			out = append(out, s)
		}
	}
	return out
}

// Ready is false while any bridge is halted.
func (a *App) Ready() bool {
	ready := true
	a.Status.Range(func(_ string, s BridgeStatus) bool {
		if s.Halted {
			ready = false
			return false
		}
		return true
	})
	return ready
}

func (a *App) close() {
	closeAll(a.closers)
	a.closers = nil
}

// closeAll releases in reverse acquisition order.
func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i]()
	}
}

// Start serves HTTP and blocks until ctx is done or a fatal fault halts the sentinel under
// PolicyHalt. The returned error wraps ErrHalted in the latter case.
func (a *App) Start(ctx context.Context) error {
	if a.Server != nil {
		go func() {
			if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("[sentinel] http server stopped", zap.Error(err))
			}
		}()
	}

	var cause error
	select {
	case <-ctx.Done():
	case cause = <-a.halt:
	}

	if a.Server != nil {
		_ = a.Server.Close()
	}
	a.Logger.Info("[sentinel] shutting down…")
	a.StopCron()
	a.Pool.StopAndWait()
	a.close()
	a.Logger.Info("さようなら!")
	return cause
}
