package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/utils"
)

// Default stream configuration
const (
	DefaultStreamMaxLen = 10000 // Default max entries per stream
	DefaultStream       = "bridgewatch:events"
)

// Event types published by the sentinel.
const (
	EventValsetVerified = "valset.verified"
	EventBridgeHalted   = "bridge.halted"
	EventVerifyFailed   = "verify.failed"
)

// BridgeEvent is the payload published for every verification outcome.
type BridgeEvent struct {
	Type           string    `json:"type"`
	EvmChainPrefix string    `json:"evmChainPrefix"`
	Contract       string    `json:"contract"`
	Nonce          uint64    `json:"nonce,omitempty"`
	Checkpoint     string    `json:"checkpoint,omitempty"`
	Error          string    `json:"error,omitempty"`
	Time           time.Time `json:"time"`
}

// Channel is the Pub/Sub channel for an event, e.g. "bridgewatch:gravity:valset.verified".
func (e BridgeEvent) Channel() string {
	return fmt.Sprintf("bridgewatch:%s:%s", e.EvmChainPrefix, e.Type)
}

// Publisher emits bridge events. Delivery is best-effort.
type Publisher interface {
	PublishEvent(ctx context.Context, ev BridgeEvent)
}

// NopPublisher drops every event. Used when REDIS_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, BridgeEvent) {}

// backend is the subset of *redis.Client the publisher uses.
type backend interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Client wraps the Redis client for bridge event notifications (Pub/Sub and Streams).
type Client struct {
	client       backend
	logger       *zap.Logger
	stream       string
	streamMaxLen int64 // Max entries per stream (0 = unlimited)
}

var _ Publisher = (*Client)(nil)

// NewClient creates a new Redis client using environment variables for configuration.
// Environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
//   - REDIS_STREAM: stream receiving every event (default: "bridgewatch:events")
//   - REDIS_STREAM_MAXLEN: Max entries per stream (default: 10000, 0 = unlimited)
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)
	streamMaxLen := utils.EnvInt64("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		// Connection pool
		PoolSize:     10,
		MinIdleConns: 2,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := newClient(rdb, logger, utils.Env("REDIS_STREAM", DefaultStream), streamMaxLen)
	if err := c.Health(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	c.logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db),
		zap.Int64("streamMaxLen", streamMaxLen))
	return c, nil
}

func newClient(b backend, logger *zap.Logger, stream string, streamMaxLen int64) *Client {
	return &Client{client: b, logger: logging.OrNop(logger), stream: stream, streamMaxLen: streamMaxLen}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health pings Redis with a 5s timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Publish publishes a message to a Redis Pub/Sub channel.
// This is a best-effort operation - errors are logged but not returned.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// XAdd adds an entry to a stream. Uses MAXLEN to cap stream size if configured.
// Returns the entry ID (e.g., "1234567890123-0"), or "" when the write failed.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) string {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}

	// Approximate MAXLEN trimming
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}

	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		c.logger.Warn("Failed to add to Redis stream",
			zap.String("stream", stream),
			zap.Error(err))
		return ""
	}
	return id
}

// PublishEvent sends ev to its Pub/Sub channel and appends it to the event stream.
func (c *Client) PublishEvent(ctx context.Context, ev BridgeEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		c.logger.Warn("Failed to encode bridge event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	c.Publish(ctx, ev.Channel(), payload)
	c.XAdd(ctx, c.stream, map[string]interface{}{
		"type":           ev.Type,
		"evmChainPrefix": ev.EvmChainPrefix,
		"payload":        string(payload),
	})
}
