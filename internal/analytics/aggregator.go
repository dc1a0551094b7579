package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches      int64             `json:"total_searches"`
	CacheHits          int64             `json:"cache_hits"`
	CacheMisses        int64             `json:"cache_misses"`
	ZeroResultCount    int64             `json:"zero_result_count"`
	ErrorCount         int64             `json:"error_count"`
	ErrorsByKind       map[string]int64  `json:"errors_by_kind"`
	SearchesByAudience map[string]int64  `json:"searches_by_audience"`
	AvgLatencyUs       float64           `json:"avg_latency_us"`
	P50LatencyUs       int64             `json:"p50_latency_us"`
	P95LatencyUs       int64             `json:"p95_latency_us"`
	P99LatencyUs       int64             `json:"p99_latency_us"`
	TopQueries         []QueryCount      `json:"top_queries"`
	ZeroResultQueries  []QueryCount      `json:"zero_result_queries"`
	QueriesPerMinute   float64           `json:"queries_per_minute"`
	IndexBuilds        int64             `json:"index_builds"`
	LastBuilds         []IndexBuildEvent `json:"last_builds,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into running totals. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	errors            int64
	errorsByKind      map[string]int64
	byAudience        map[string]int64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	indexBuilds       int64
	lastBuilds        map[string]IndexBuildEvent
	startTime         time.Time

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAggregator returns an empty Aggregator. m may be nil.
func NewAggregator(m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		errorsByKind:      make(map[string]int64),
		byAudience:        make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		lastBuilds:        make(map[string]IndexBuildEvent),
		startTime:         time.Now(),
		metrics:           m,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka MessageHandler feeding agg. Messages are
// dispatched on the type header, falling back to the payload's "type" field.
// Undecodable messages are logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		eventType := EventType(msg.Type)
		if eventType == "" {
			var probe struct {
				Type EventType `json:"type"`
			}
			if err := json.Unmarshal(msg.Value, &probe); err != nil {
				agg.logger.Error("failed to decode analytics event", "error", err)
				return nil
			}
			eventType = probe.Type
		}
		switch eventType {
		case EventSearch:
			event, err := kafka.DecodeJSON[SearchEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		case EventIndexBuild:
			event, err := kafka.DecodeJSON[IndexBuildEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode index build event", "error", err)
				return nil
			}
			agg.RecordIndexBuild(event)
		default:
			agg.logger.Warn("ignoring unknown analytics event", "type", eventType)
			return nil
		}
		if agg.metrics != nil {
			agg.metrics.AnalyticsEventsTotal.WithLabelValues(string(eventType)).Inc()
		}
		return nil
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.byAudience[event.Audience]++
	if event.ErrorKind != "" {
		a.errors++
		a.errorsByKind[event.ErrorKind]++
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.recordLatency(event.LatencyUs)
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
}

// recordLatency keeps the most recent maxLatencySamples values in a ring.
func (a *Aggregator) recordLatency(us int64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, us)
		return
	}
	a.latencies[a.latencyNext] = us
	a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
}

func (a *Aggregator) RecordIndexBuild(event IndexBuildEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexBuilds++
	a.lastBuilds[event.Audience] = event
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:      a.totalSearches,
		CacheHits:          a.cacheHits,
		CacheMisses:        a.cacheMisses,
		ZeroResultCount:    a.zeroResults,
		ErrorCount:         a.errors,
		ErrorsByKind:       copyCounts(a.errorsByKind),
		SearchesByAudience: copyCounts(a.byAudience),
		IndexBuilds:        a.indexBuilds,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	for _, build := range a.lastBuilds {
		stats.LastBuilds = append(stats.LastBuilds, build)
	}
	sort.Slice(stats.LastBuilds, func(i, j int) bool {
		return stats.LastBuilds[i].Audience < stats.LastBuilds[j].Audience
	})

	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
