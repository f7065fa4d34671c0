package redishost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/resend-mcp-go/sessions"
)

// Config for the Redis-backed Host. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=resend-mcp:sessions:"`
	// MaxLen approximately bounds each session stream. ENV: SESSIONS_STREAM_MAXLEN
	MaxLen int64 `env:"SESSIONS_STREAM_MAXLEN,default=1000"`
	// TTL expires idle streams. ENV: SESSIONS_STREAM_TTL
	TTL time.Duration `env:"SESSIONS_STREAM_TTL,default=1h"`
}

// Host is a sessions.Host backed by Redis Streams.
type Host struct {
	client    *redis.Client
	keyPrefix string
	maxLen    int64
	ttl       time.Duration
	block     time.Duration
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Host, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "resend-mcp:sessions:"
	}
	return &Host{
		client:    cl,
		keyPrefix: prefix,
		maxLen:    cfg.MaxLen,
		ttl:       cfg.TTL,
		block:     500 * time.Millisecond,
	}, nil
}

// NewFromEnv builds a Host using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Host, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode redis host config: %w", err)
	}
	return New(ctx, cfg)
}

// Close closes the Redis client.
func (h *Host) Close() error { return h.client.Close() }

var _ sessions.Host = (*Host)(nil)

func (h *Host) streamKey(sessionID string) string { return h.keyPrefix + "stream:" + sessionID }
func (h *Host) goneKey(sessionID string) string   { return h.keyPrefix + "gone:" + sessionID }

// PublishSession appends data to the session stream with XADD.
func (h *Host) PublishSession(ctx context.Context, sessionID string, data []byte) (string, error) {
	key := h.streamKey(sessionID)
	args := &redis.XAddArgs{Stream: key, Values: map[string]any{"d": data}}
	if h.maxLen > 0 {
		args.MaxLen = h.maxLen
		args.Approx = true
	}
	pipe := h.client.TxPipeline()
	add := pipe.XAdd(ctx, args)
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redis xadd: %w", err)
	}
	return add.Val(), nil
}

// SubscribeSession polls the stream with blocking XREAD. An empty
// lastEventID starts at the current tail of the stream.
func (h *Host) SubscribeSession(ctx context.Context, sessionID string, lastEventID string, handler sessions.MessageHandlerFunction) error {
	key := h.streamKey(sessionID)
	start := lastEventID
	if start == "" {
		// Resolve "$" once; re-reading from "$" on every poll would skip
		// entries added between reads.
		start = "0-0"
		last, err := h.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis xrevrange: %w", err)
		}
		if len(last) > 0 {
			start = last[0].ID
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		gone, err := h.client.Exists(ctx, h.goneKey(sessionID)).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("redis exists: %w", err)
		}
		if gone == 1 {
			return nil
		}

		res, err := h.client.XRead(ctx, &redis.XReadArgs{Streams: []string{key, start}, Count: 16, Block: h.block}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("redis xread: %w", err)
		}
		for _, stream := range res {
			for _, m := range stream.Messages {
				start = m.ID
				if err := handler(ctx, m.ID, payload(m.Values["d"])); err != nil {
					return err
				}
			}
		}
	}
}

func payload(v any) []byte {
	switch v := v.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}

// CleanupSession deletes the stream and marks the session gone so that
// subscribers on any replica stop.
func (h *Host) CleanupSession(ctx context.Context, sessionID string) error {
	c := context.WithoutCancel(ctx)
	pipe := h.client.TxPipeline()
	pipe.Del(c, h.streamKey(sessionID))
	pipe.Set(c, h.goneKey(sessionID), "1", time.Minute)
	if _, err := pipe.Exec(c); err != nil {
		return fmt.Errorf("redis cleanup: %w", err)
	}
	return nil
}
