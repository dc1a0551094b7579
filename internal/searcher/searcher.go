// Package searcher is the entry point for helpdesk page search. A Searcher is
// an immutable index plus the query pipeline over it; a Service keeps the
// current Searcher per audience and swaps in rebuilt ones.
package searcher

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/parser"
)

// Options configures a Searcher. The zero value returns at most four whole
// paragraphs per query without stemming.
type Options struct {
	MaxResults    int
	SnippetLength int
	Stemming      bool
}

func (o Options) maxResults() int {
	if o.MaxResults <= 0 {
		return merger.DefaultLimit
	}
	return o.MaxResults
}

// Searcher answers queries against one built page set. It is safe for
// concurrent use and never changes after New returns.
type Searcher struct {
	engine   *indexer.Engine
	executor *executor.Executor
	opts     Options
}

// New indexes pageList in order. Pages whose content cannot be read are left
// out and listed in the report; the rest are searchable.
func New(pageList []pages.Page, opts Options) (*Searcher, *indexer.BuildReport) {
	engine, report := indexer.NewEngine(pageList, indexer.Options{
		Analyzer: tokenizer.Analyzer{Stemming: opts.Stemming},
	})
	return &Searcher{
		engine:   engine,
		executor: executor.New(engine, formatter.Formatter{SnippetLength: opts.SnippetLength}),
		opts:     opts,
	}, report
}

// Search parses query and returns up to MaxResults results. A blank query
// fails with ErrEmptyQuery and an unclosed quote with ErrMalformedQuery; no
// matches is not an error but a result with Status no_results.
func (s *Searcher) Search(ctx context.Context, query string) (*executor.SearchResult, error) {
	node, err := s.Parse(query)
	if err != nil {
		return nil, err
	}
	result, err := s.Execute(ctx, node, 0)
	if err != nil {
		return nil, err
	}
	result.Query = query
	return result, nil
}

// Parse parses query with the analyzer the index was built with.
func (s *Searcher) Parse(query string) (parser.Node, error) {
	return parser.ParseWith(query, s.engine.Analyzer())
}

// Execute runs a parsed query. limit is clamped to (0, MaxResults]; zero or
// less means MaxResults.
func (s *Searcher) Execute(ctx context.Context, node parser.Node, limit int) (*executor.SearchResult, error) {
	return s.executor.Execute(ctx, node, s.Limit(limit))
}

// Limit clamps a requested result count to the configured cap.
func (s *Searcher) Limit(requested int) int {
	max := s.opts.maxResults()
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}

// Fingerprint identifies the indexed content and analyzer.
func (s *Searcher) Fingerprint() string {
	return s.engine.Fingerprint()
}

func (s *Searcher) PageCount() int {
	return s.engine.PageCount()
}

func (s *Searcher) Stats() index.Stats {
	return s.engine.Stats()
}

// Postings exposes the raw postings of a normalised term, mainly for
// diagnostics.
func (s *Searcher) Postings(term string) index.PostingList {
	return s.engine.Search(term)
}
