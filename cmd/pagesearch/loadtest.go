package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"reset password",
	`"forgot password"`,
	"vpn",
	"vpn staff account",
	"printer badge",
	"secure print queue",
	"email link expires",
	"guest network",
	"service desk",
	"kettle",
}

type loadTestConfig struct {
	BaseURL     string
	APIKey      string
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

type loadStats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	noResults atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, code int, body searchBody, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if code >= 200 && code < 300 {
		s.success.Add(1)
		if body.Status == "no_results" {
			s.noResults.Add(1)
		}
		if body.CacheHit {
			s.cacheHits.Add(1)
		}
	} else {
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

type searchBody struct {
	Status   string `json:"status"`
	CacheHit bool   `json:"cache_hit"`
}

func loadTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "loadtest",
		Usage: "Send concurrent search requests to a running service and report latency",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Base URL of the search service or gateway", Value: "http://localhost:8080"},
			&cli.StringFlag{Name: "api-key", Usage: "Member API key sent as X-API-Key"},
			&cli.IntFlag{Name: "concurrency", Usage: "Number of concurrent workers", Value: 10},
			&cli.DurationFlag{Name: "duration", Usage: "Test duration", Value: 30 * time.Second},
			&cli.StringSliceFlag{Name: "query", Usage: "Query to send; repeat for several (defaults to a built-in set)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := loadTestConfig{
				BaseURL:     c.String("url"),
				APIKey:      c.String("api-key"),
				Concurrency: c.Int("concurrency"),
				Duration:    c.Duration("duration"),
				Queries:     c.StringSlice("query"),
			}
			if len(cfg.Queries) == 0 {
				cfg.Queries = defaultLoadQueries
			}
			if cfg.Concurrency <= 0 {
				return errors.New("concurrency must be positive")
			}

			fmt.Println(headerStyle.Render("Helpdesk search load test"))
			fmt.Printf("Target:      %s\n", cfg.BaseURL)
			fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
			fmt.Printf("Duration:    %s\n", cfg.Duration)
			fmt.Printf("Queries:     %d unique\n\n", len(cfg.Queries))

			stats, err := runLoadTest(ctx, cfg)
			if err != nil {
				return err
			}
			printLoadReport(os.Stdout, stats, cfg.Duration)
			if stats.total.Load() == 0 {
				return errors.New("no requests completed; is the service running?")
			}
			return nil
		},
	}
}

func runLoadTest(ctx context.Context, cfg loadTestConfig) (*loadStats, error) {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; gctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				req, err := http.NewRequestWithContext(gctx, http.MethodGet,
					cfg.BaseURL+"/api/v1/search?q="+url.QueryEscape(query), nil)
				if err != nil {
					return fmt.Errorf("building request: %w", err)
				}
				if cfg.APIKey != "" {
					req.Header.Set("X-API-Key", cfg.APIKey)
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					stats.record(time.Since(start), 0, searchBody{}, err)
					continue
				}
				var body searchBody
				_ = json.NewDecoder(resp.Body).Decode(&body)
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(time.Since(start), resp.StatusCode, body, nil)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintln(w, headerStyle.Render("Results"))
	fmt.Fprintf(w, "Total requests: %d\n", total)
	fmt.Fprintf(w, "Successful:     %d\n", stats.success.Load())
	fmt.Fprintf(w, "Failed:         %d\n", stats.failed.Load())
	fmt.Fprintf(w, "No results:     %d\n", stats.noResults.Load())
	fmt.Fprintf(w, "Cache hits:     %d\n", stats.cacheHits.Load())
	if total > 0 && duration > 0 {
		fmt.Fprintf(w, "Requests/sec:   %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(stats.codes))
	for code, n := range stats.codes {
		counts[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Latency"))
		fmt.Fprintf(w, "Min: %s\n", latencies[0])
		fmt.Fprintf(w, "Avg: %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(w, "P50: %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P95: %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99: %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max: %s\n", latencies[len(latencies)-1])
	}

	if len(codes) > 0 {
		slices.Sort(codes)
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Status codes"))
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, counts[code])
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
