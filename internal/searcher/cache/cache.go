// Package cache memoises search results in Redis. Keys embed the index
// fingerprint, so a rebuild with different content never serves stale
// results; old keys simply expire.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/resilience"
)

const keyPrefix = "helpdesk-search:"

// Backend is satisfied by *redis.Client.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
	Errors   int64  `json:"errors"`
	Breaker  string `json:"breaker"`
	Rejected int64  `json:"breaker_rejected"`
}

// QueryCache wraps a Backend with request coalescing and a circuit breaker.
// Backend failures are logged and treated as misses.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

func New(backend Backend, ttl time.Duration, breaker *resilience.CircuitBreaker) *QueryCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: breaker,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies a query against one index build. Clause order under the
// top-level And does not change results, so it does not change the key.
func Key(fingerprint string, node parser.Node, limit int) string {
	raw := canonical(node) + "|limit=" + strconv.Itoa(limit)
	return fmt.Sprintf("%s%s:%016x", keyPrefix, fingerprint, xxhash.Sum64String(raw))
}

func canonical(node parser.Node) string {
	and, ok := node.(parser.And)
	if !ok {
		return node.String()
	}
	parts := make([]string, len(and.Children))
	for i, c := range and.Children {
		parts[i] = canonical(c)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers with the same key and stores its result. The bool
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate removes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	counts := c.breaker.Counts()
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Errors:   c.errors.Load(),
		Breaker:  counts.State.String(),
		Rejected: counts.Rejected,
	}
}
