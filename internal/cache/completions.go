package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
)

// CompletionStore holds raw completion text keyed by prompt digest.
type CompletionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Close() error
}

type redisCompletionStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCompletionStore builds a store with the given addr/password/db.
func NewRedisCompletionStore(addr, password string, db int, ttl time.Duration, prefix string) (CompletionStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "completion"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisCompletionStore{client: client, ttl: ttl, prefix: prefix}, nil
}

func (s *redisCompletionStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

func (s *redisCompletionStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, nil
	}
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisCompletionStore) Set(ctx context.Context, key string, value string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *redisCompletionStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// CachedCompleter serves repeated prompts from a CompletionStore. Store
// failures are logged and the call falls through to the wrapped completer;
// failed completions are never stored.
type CachedCompleter struct {
	next   llm.Completer
	store  CompletionStore
	model  string
	logger *slog.Logger
}

func NewCachedCompleter(next llm.Completer, store CompletionStore, model string, logger *slog.Logger) *CachedCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCompleter{next: next, store: store, model: model, logger: logger}
}

// Key is the store key for prompt under the configured model.
func (c *CachedCompleter) Key(prompt string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	key := c.Key(prompt)

	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("cache.completion.get_failed", "req_id", rid, "error", err)
	} else if ok {
		c.logger.Info("cache.completion.hit", "req_id", rid, "key", key[:12], "bytes", len(v))
		return v, nil
	}

	out, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, out); err != nil {
		c.logger.Warn("cache.completion.set_failed", "req_id", rid, "error", err)
	}
	return out, nil
}
