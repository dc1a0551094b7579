package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/resilience"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (m *memoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memoryBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func mustParse(t *testing.T, q string) parser.Node {
	t.Helper()
	node, err := parser.Parse(q)
	require.NoError(t, err)
	return node
}

func TestKeyNormalisesClauseOrderAndCase(t *testing.T) {
	a := Key("fp", mustParse(t, `Reset "Password Link"`), 4)
	b := Key("fp", mustParse(t, `"password link"   reset`), 4)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Key("fp2", mustParse(t, `reset "password link"`), 4), "fingerprint is part of the key")
	assert.NotEqual(t, a, Key("fp", mustParse(t, `reset "password link"`), 3), "limit is part of the key")
	assert.NotEqual(t, a, Key("fp", mustParse(t, `reset "link password"`), 4), "phrase order matters")
	assert.True(t, strings.HasPrefix(a, keyPrefix+"fp:"))
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return &executor.SearchResult{Query: "vpn", Status: executor.StatusNoResults}, nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, int32(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestComputeErrorIsNotCached(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, backend.data)
}

func TestBackendFailureDegradesToCompute(t *testing.T) {
	backend := newMemoryBackend()
	backend.err = errors.New("connection refused")
	breaker := resilience.NewCircuitBreaker("test-cache", resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	c := New(backend, time.Minute, breaker)

	for i := 0; i < 3; i++ {
		result, hit, err := c.GetOrCompute(context.Background(), "k", func() (*executor.SearchResult, error) {
			return &executor.SearchResult{Status: executor.StatusFound}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, executor.StatusFound, result.Status)
	}
	assert.Equal(t, "open", c.Stats().Breaker)
	assert.Positive(t, c.Stats().Errors)
	assert.Positive(t, c.Stats().Rejected)
}

func TestInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["other:key"] = []byte("x")
	c := New(backend, time.Minute, nil)
	_, _, err := c.GetOrCompute(context.Background(), Key("fp", mustParse(t, "vpn"), 4), func() (*executor.SearchResult, error) {
		return &executor.SearchResult{}, nil
	})
	require.NoError(t, err)

	deleted, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Contains(t, backend.data, "other:key")
}
