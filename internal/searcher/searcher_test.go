package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
)

func page(id, content string) pages.Page {
	return pages.Page{ID: id, Title: "Title " + id, Source: pages.Inline(content)}
}

func resultIDs(r *executor.SearchResult) []string {
	ids := make([]string, len(r.Results))
	for i, res := range r.Results {
		ids[i] = res.PageID
	}
	return ids
}

func TestSearcherEndToEnd(t *testing.T) {
	s, report := New([]pages.Page{
		page("P1", "alpha beta"),
		page("P2", "beta gamma"),
	}, Options{})
	require.Equal(t, 2, report.Indexed)

	result, err := s.Search(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, resultIDs(result))
	assert.Equal(t, "beta", result.Query)
	assert.Equal(t, "Title: Title P1\nalpha beta\n", result.Results[0].String())

	result, err = s.Search(context.Background(), `"gamma beta"`)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestSearcherQueryErrors(t *testing.T) {
	s, _ := New([]pages.Page{page("P1", "alpha")}, Options{})
	for _, q := range []string{"", "   "} {
		_, err := s.Search(context.Background(), q)
		assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)
	}
	_, err := s.Search(context.Background(), `"alpha`)
	assert.ErrorIs(t, err, apperrors.ErrMalformedQuery)
}

func TestSearcherCapsResults(t *testing.T) {
	var pageList []pages.Page
	for i := 0; i < 12; i++ {
		pageList = append(pageList, page(fmt.Sprintf("p%02d", i), "printer jam"))
	}
	s, _ := New(pageList, Options{})
	result, err := s.Search(context.Background(), "printer")
	require.NoError(t, err)
	assert.Len(t, result.Results, 4)
	assert.Equal(t, 12, result.TotalHits)

	assert.Equal(t, 2, s.Limit(2))
	assert.Equal(t, 4, s.Limit(50))
	assert.Equal(t, 4, s.Limit(0))
}

func TestSearcherStemming(t *testing.T) {
	s, _ := New([]pages.Page{page("P1", "Resetting passwords")}, Options{Stemming: true})
	result, err := s.Search(context.Background(), "reset password")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, resultIDs(result))
}

func TestRebuildWithFewerPagesDropsPostings(t *testing.T) {
	full, _ := New([]pages.Page{page("keep", "shared"), page("gone", "shared unique")}, Options{})
	require.NotEmpty(t, full.Postings("unique"))

	reduced, _ := New([]pages.Page{page("keep", "shared")}, Options{})
	assert.Empty(t, reduced.Postings("unique"))
	for _, p := range reduced.Postings("shared") {
		assert.Equal(t, 0, int(p.Segment))
	}
	assert.NotEqual(t, full.Fingerprint(), reduced.Fingerprint())
}

type mutableStore struct {
	mu    sync.Mutex
	pages []pages.Page
	err   error
}

func (m *mutableStore) List(ctx context.Context) ([]pages.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pages.Page(nil), m.pages...), m.err
}

func (m *mutableStore) set(p []pages.Page, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages, m.err = p, err
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *recordingTracker) Track(e analytics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestServiceAudiencesAndSwap(t *testing.T) {
	secret := page("internal", "vpn internal setup")
	secret.Private = true
	store := &mutableStore{pages: []pages.Page{page("public", "vpn setup"), secret}}
	tracker := &recordingTracker{}
	svc := NewService(store, ServiceConfig{Metrics: metrics.New(prometheus.NewRegistry()), Tracker: tracker})

	assert.False(t, svc.Ready())
	_, err := svc.Search(context.Background(), pages.AudienceGuest, "vpn", 0)
	assert.ErrorIs(t, err, apperrors.ErrPageSourceUnavailable)

	summary, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.True(t, svc.Ready())
	assert.Equal(t, 1, summary.Reports[pages.AudienceGuest].Indexed)
	assert.Equal(t, 2, summary.Reports[pages.AudienceMember].Indexed)

	guest, err := svc.Search(context.Background(), pages.AudienceGuest, "vpn", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"public"}, resultIDs(guest.SearchResult))
	member, err := svc.Search(context.Background(), pages.AudienceMember, "vpn", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "internal"}, resultIDs(member.SearchResult))

	old := svc.Searcher(pages.AudienceGuest)
	store.set([]pages.Page{page("public", "vpn setup"), page("new", "vpn guide")}, nil)
	_, err = svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, old, svc.Searcher(pages.AudienceGuest))

	oldResult, err := old.Search(context.Background(), "vpn")
	require.NoError(t, err)
	assert.Equal(t, []string{"public"}, resultIDs(oldResult), "a replaced searcher keeps answering from its own index")

	guest, err = svc.Search(context.Background(), pages.AudienceGuest, "vpn", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "new"}, resultIDs(guest.SearchResult))

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	assert.NotEmpty(t, tracker.events)
}

func TestServiceKeepsIndexWhenStoreFails(t *testing.T) {
	store := &mutableStore{pages: []pages.Page{page("a", "printer")}}
	svc := NewService(store, ServiceConfig{})
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	store.set(nil, errors.New("connection refused"))
	_, err = svc.Rebuild(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrPageSourceUnavailable)

	out, err := svc.Search(context.Background(), pages.AudienceGuest, "printer", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resultIDs(out.SearchResult))
}

func TestServiceRecordsUnreadablePages(t *testing.T) {
	store := &mutableStore{pages: []pages.Page{
		page("ok", "router reboot"),
		{ID: "broken", Title: "Broken", Source: pages.File("/nonexistent/helpdesk.txt")},
	}}
	svc := NewService(store, ServiceConfig{})
	summary, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Reports[pages.AudienceMember].Failures, 1)
	assert.ErrorIs(t, summary.Reports[pages.AudienceMember].Failures[0].Err, apperrors.ErrContentUnreadable)

	out, err := svc.Search(context.Background(), pages.AudienceMember, "router", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, resultIDs(out.SearchResult))
}

type memoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return 0, nil
}

func TestServiceUsesCacheAcrossEquivalentQueries(t *testing.T) {
	store := &mutableStore{pages: []pages.Page{page("a", "reset password link")}}
	qc := cache.New(&memoryBackend{data: map[string][]byte{}}, time.Minute, nil)
	svc := NewService(store, ServiceConfig{Cache: qc})
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	first, err := svc.Search(context.Background(), pages.AudienceGuest, "reset password", 0)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Search(context.Background(), pages.AudienceGuest, "PASSWORD reset", 0)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "PASSWORD reset", second.Query)
	assert.Equal(t, resultIDs(first.SearchResult), resultIDs(second.SearchResult))
}

func TestRunRebuildsCoalescesRequests(t *testing.T) {
	store := &mutableStore{pages: []pages.Page{page("a", "alpha")}}
	svc := NewService(store, ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunRebuilds(ctx, 5*time.Millisecond) }()

	for i := 0; i < 5; i++ {
		svc.RequestRebuild()
	}
	assert.Eventually(t, svc.Ready, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRunRebuildsRetriesUntilFirstBuild(t *testing.T) {
	store := &mutableStore{err: errors.New("connection refused")}
	svc := NewService(store, ServiceConfig{RetryInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunRebuilds(ctx, 0) }()

	svc.RequestRebuild()
	time.Sleep(30 * time.Millisecond)
	assert.False(t, svc.Ready())

	// No further request is made; the pending retry picks up the recovery.
	store.set([]pages.Page{page("a", "alpha")}, nil)
	assert.Eventually(t, svc.Ready, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunRebuildsDoesNotRetryOnceLive(t *testing.T) {
	store := &mutableStore{pages: []pages.Page{page("a", "alpha")}}
	svc := NewService(store, ServiceConfig{RetryInterval: time.Millisecond})
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	before := svc.Stats().LastBuild

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunRebuilds(ctx, 0) }()

	store.set(nil, errors.New("connection refused"))
	svc.RequestRebuild()
	time.Sleep(20 * time.Millisecond)
	store.set([]pages.Page{page("b", "beta")}, nil)
	time.Sleep(20 * time.Millisecond)

	assert.Same(t, before, svc.Stats().LastBuild, "a live index is only rebuilt on request")
	assert.True(t, svc.Ready())
	cancel()
	require.NoError(t, <-done)
}
