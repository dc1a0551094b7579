package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/tracing"
)

// Audiences lists every audience the Service builds an index for.
var Audiences = []pages.Audience{pages.AudienceGuest, pages.AudienceMember}

// Tracker is satisfied by *analytics.Collector.
type Tracker interface {
	Track(event analytics.Event)
}

// ServiceConfig wires optional collaborators; nil fields are skipped.
type ServiceConfig struct {
	Options Options
	Timeout time.Duration
	Cache   *cache.QueryCache
	Metrics *metrics.Metrics
	Tracer  *tracing.Tracer
	Tracker Tracker
	// RetryInterval is the first wait before RunRebuilds retries a failed
	// rebuild while no index exists yet; it doubles up to a minute. Default 1s.
	RetryInterval time.Duration
}

// BuildSummary describes the last successful rebuild.
type BuildSummary struct {
	BuiltAt time.Time                               `json:"built_at"`
	Reports map[pages.Audience]*indexer.BuildReport `json:"reports"`
}

// Outcome is a search result plus how it was produced.
type Outcome struct {
	*executor.SearchResult
	Audience pages.Audience `json:"audience"`
	CacheHit bool           `json:"cache_hit"`
	Took     time.Duration  `json:"-"`
}

type AudienceStats struct {
	Audience    pages.Audience `json:"audience"`
	Pages       int            `json:"pages"`
	Fingerprint string         `json:"fingerprint"`
	Index       index.Stats    `json:"index"`
}

type ServiceStats struct {
	Audiences []AudienceStats `json:"audiences"`
	LastBuild *BuildSummary   `json:"last_build,omitempty"`
}

// Service owns the live Searcher for each audience. Searches load the current
// Searcher without locking; Rebuild builds replacements from the page store
// and swaps them in, so in-flight searches finish on the index they started
// with.
type Service struct {
	store     pages.Store
	cfg       ServiceConfig
	searchers map[pages.Audience]*atomic.Pointer[Searcher]
	lastBuild atomic.Pointer[BuildSummary]
	rebuildMu sync.Mutex
	trigger   chan struct{}
	logger    *slog.Logger
}

func NewService(store pages.Store, cfg ServiceConfig) *Service {
	searchers := make(map[pages.Audience]*atomic.Pointer[Searcher], len(Audiences))
	for _, aud := range Audiences {
		searchers[aud] = new(atomic.Pointer[Searcher])
	}
	return &Service{
		store:     store,
		cfg:       cfg,
		searchers: searchers,
		trigger:   make(chan struct{}, 1),
		logger:    slog.Default().With("component", "search-service"),
	}
}

// Searcher returns the live Searcher for audience, or nil before the first
// successful build.
func (s *Service) Searcher(audience pages.Audience) *Searcher {
	ptr, ok := s.searchers[audience]
	if !ok {
		return nil
	}
	return ptr.Load()
}

// Ready reports whether every audience has an index.
func (s *Service) Ready() bool {
	for _, aud := range Audiences {
		if s.Searcher(aud) == nil {
			return false
		}
	}
	return true
}

// Rebuild lists the page set and builds one index per audience. If the
// store cannot be listed the error wraps ErrPageSourceUnavailable and the
// previous indexes stay live. Unreadable pages do not fail the rebuild.
func (s *Service) Rebuild(ctx context.Context) (*BuildSummary, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	all, err := s.store.List(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrPageSourceUnavailable) {
			err = fmt.Errorf("%w: %w", apperrors.ErrPageSourceUnavailable, err)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.IndexBuildsTotal.WithLabelValues("failed").Inc()
		}
		s.logger.Error("index rebuild failed, keeping previous index", "error", err)
		return nil, err
	}

	summary := &BuildSummary{
		BuiltAt: time.Now().UTC(),
		Reports: make(map[pages.Audience]*indexer.BuildReport, len(Audiences)),
	}
	for _, aud := range Audiences {
		sr, report := New(pages.Visible(all, aud), s.cfg.Options)
		s.searchers[aud].Store(sr)
		summary.Reports[aud] = report
		s.recordBuild(aud, report)
	}
	s.lastBuild.Store(summary)

	// The member set includes every page, so its failures cover all audiences.
	unreadable := 0
	for _, f := range summary.Reports[pages.AudienceMember].Failures {
		if errors.Is(f.Err, apperrors.ErrContentUnreadable) {
			unreadable++
		}
		s.logger.Warn("page skipped", "page_id", f.PageID, "reason", f.Reason)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
		s.cfg.Metrics.PagesUnreadableTotal.Add(float64(unreadable))
		s.cfg.Metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.Info("index rebuilt",
		"pages", len(all),
		"unreadable", unreadable,
		"duration", time.Since(start),
	)
	return summary, nil
}

func (s *Service) recordBuild(aud pages.Audience, report *indexer.BuildReport) {
	s.logger.Debug("audience index built",
		"audience", aud,
		"indexed", report.Indexed,
		"segments", report.Segments,
		"terms", report.Terms,
		"fingerprint", report.Fingerprint,
	)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PagesIndexed.WithLabelValues(string(aud)).Set(float64(report.Indexed))
		s.cfg.Metrics.IndexSegments.WithLabelValues(string(aud)).Set(float64(report.Segments))
		s.cfg.Metrics.IndexTerms.WithLabelValues(string(aud)).Set(float64(report.Terms))
	}
	if s.cfg.Tracker != nil {
		s.cfg.Tracker.Track(analytics.IndexBuildEvent{
			Audience:    string(aud),
			Pages:       report.Pages,
			Indexed:     report.Indexed,
			Unreadable:  len(report.Failures),
			Segments:    report.Segments,
			Terms:       report.Terms,
			Fingerprint: report.Fingerprint,
			DurationMs:  report.Duration.Milliseconds(),
			Timestamp:   time.Now().UTC(),
		})
	}
}

// RequestRebuild asks RunRebuilds for a rebuild without blocking. Requests
// that arrive while one is pending are merged.
func (s *Service) RequestRebuild() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunRebuilds performs requested rebuilds until ctx is cancelled, waiting
// debounce after a request so that bursts of changes cause one rebuild.
// While the service has never built an index, a failed rebuild is retried
// with backoff without waiting for another request.
func (s *Service) RunRebuilds(ctx context.Context, debounce time.Duration) error {
	initial := s.cfg.RetryInterval
	if initial <= 0 {
		initial = time.Second
	}
	backoff := initial
	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
		case <-retry:
		}
		retry = nil
		if debounce > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(debounce):
			}
			select {
			case <-s.trigger:
			default:
			}
		}
		_, err := s.Rebuild(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = initial
			continue
		}
		if s.Ready() {
			s.logger.Warn("requested rebuild failed", "error", err)
			continue
		}
		s.logger.Warn("rebuild failed with no index live, retrying", "error", err, "retry_in", backoff)
		retry = time.After(backoff)
		backoff = min(2*backoff, time.Minute)
	}
}

// Search runs query for audience. limit is clamped to the configured cap.
func (s *Service) Search(ctx context.Context, audience pages.Audience, query string, limit int) (*Outcome, error) {
	start := time.Now()
	ctx, finish := s.cfg.Tracer.Start(ctx, "search", logger.RequestID(ctx))
	defer finish()

	sr := s.Searcher(audience)
	if sr == nil {
		return nil, apperrors.New(apperrors.ErrPageSourceUnavailable, http.StatusServiceUnavailable, "search index is not ready")
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	node, err := sr.Parse(query)
	parseSpan.End()
	if err != nil {
		s.recordSearch(ctx, audience, query, nil, nil, false, time.Since(start), err)
		return nil, err
	}
	limit = sr.Limit(limit)

	execCtx, execSpan := tracing.StartChildSpan(ctx, "execute")
	compute := func() (*executor.SearchResult, error) {
		return resilience.WithTimeout(execCtx, s.cfg.Timeout, "search", func(ctx context.Context) (*executor.SearchResult, error) {
			return sr.Execute(ctx, node, limit)
		})
	}
	var result *executor.SearchResult
	hit := false
	if s.cfg.Cache != nil {
		result, hit, err = s.cfg.Cache.GetOrCompute(execCtx, cache.Key(sr.Fingerprint(), node, limit), compute)
	} else {
		result, err = compute()
	}
	execSpan.SetAttr("cache_hit", hit)
	execSpan.End()
	if err != nil {
		s.recordSearch(ctx, audience, query, node, nil, hit, time.Since(start), err)
		return nil, err
	}

	// Results may be shared with other callers through the cache; copy
	// before stamping the caller's query text.
	own := *result
	own.Query = query
	outcome := &Outcome{
		SearchResult: &own,
		Audience:     audience,
		CacheHit:     hit,
		Took:         time.Since(start),
	}
	s.recordSearch(ctx, audience, query, node, outcome.SearchResult, hit, outcome.Took, nil)
	return outcome, nil
}

func (s *Service) recordSearch(
	ctx context.Context,
	audience pages.Audience,
	query string,
	node parser.Node,
	result *executor.SearchResult,
	hit bool,
	took time.Duration,
	err error,
) {
	outcome := apperrors.Kind(err)
	if err == nil {
		outcome = string(result.Status)
	}
	cacheStatus := "none"
	if s.cfg.Cache != nil {
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	}
	if m := s.cfg.Metrics; m != nil {
		m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			m.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
			m.SearchResultsCount.Observe(float64(len(result.Results)))
			if cacheStatus == "hit" {
				m.CacheHitsTotal.Inc()
			} else if cacheStatus == "miss" {
				m.CacheMissesTotal.Inc()
			}
		}
	}

	log := logger.FromContext(ctx)
	if err != nil {
		log.Info("search rejected", "query", query, "audience", audience, "kind", outcome, "error", err)
	} else {
		log.Debug("search completed",
			"query", query,
			"audience", audience,
			"status", result.Status,
			"total_hits", result.TotalHits,
			"returned", len(result.Results),
			"cache", cacheStatus,
			"took", took,
		)
	}

	if s.cfg.Tracker == nil {
		return
	}
	event := analytics.SearchEvent{
		Query:     query,
		Audience:  string(audience),
		Status:    outcome,
		CacheHit:  hit,
		LatencyUs: took.Microseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}
	if node != nil {
		event.Terms = parser.Terms(node)
	}
	if err != nil {
		event.ErrorKind = outcome
	} else {
		event.TotalHits = result.TotalHits
		event.Returned = len(result.Results)
	}
	s.cfg.Tracker.Track(event)
}

// Stats describes the live indexes.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{LastBuild: s.lastBuild.Load()}
	for _, aud := range Audiences {
		sr := s.Searcher(aud)
		if sr == nil {
			continue
		}
		stats.Audiences = append(stats.Audiences, AudienceStats{
			Audience:    aud,
			Pages:       sr.PageCount(),
			Fingerprint: sr.Fingerprint(),
			Index:       sr.Stats(),
		})
	}
	return stats
}
