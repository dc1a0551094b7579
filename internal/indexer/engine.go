// Package indexer builds the immutable search index for one page set.
// Construction segments and tokenizes every page synchronously; a page whose
// content cannot be read is recorded in the BuildReport and skipped.
package indexer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

type Options struct {
	Analyzer tokenizer.Analyzer
}

// PageFailure records a page that was left out of the index.
type PageFailure struct {
	PageID string `json:"page_id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

type BuildReport struct {
	Pages       int           `json:"pages"`
	Indexed     int           `json:"indexed"`
	Segments    int           `json:"segments"`
	Terms       int           `json:"terms"`
	Failures    []PageFailure `json:"failures,omitempty"`
	Fingerprint string        `json:"fingerprint"`
	Duration    time.Duration `json:"duration"`
}

// Engine is a built index plus the metadata queries need. It never changes
// after NewEngine returns; a new page set needs a new Engine.
type Engine struct {
	index       *index.InvertedIndex
	analyzer    tokenizer.Analyzer
	pageOrder   map[string]int
	fingerprint string
}

// NewEngine indexes pages in the given order. The caller decides which pages
// are eligible; every page handed in is indexed unless its content is
// unreadable or its id repeats an earlier page.
func NewEngine(pageList []pages.Page, opts Options) (*Engine, *BuildReport) {
	start := time.Now()
	builder := index.NewBuilder()
	hash := xxhash.New()
	hash.WriteString(strconv.FormatBool(opts.Analyzer.Stemming))

	report := &BuildReport{Pages: len(pageList)}
	pageOrder := make(map[string]int, len(pageList))

	for _, p := range pageList {
		if _, dup := pageOrder[p.ID]; dup {
			err := fmt.Errorf("page %q: %w: duplicate page id", p.ID, apperrors.ErrInvalidInput)
			report.Failures = append(report.Failures, PageFailure{PageID: p.ID, Reason: err.Error(), Err: err})
			continue
		}
		segments, err := segment.Page(p)
		if err != nil {
			report.Failures = append(report.Failures, PageFailure{PageID: p.ID, Reason: err.Error(), Err: err})
			continue
		}
		pageOrder[p.ID] = len(pageOrder)
		report.Indexed++

		hash.WriteString("\x00p")
		hash.WriteString(p.ID)
		hash.WriteString("\x00")
		hash.WriteString(p.Title)
		for _, seg := range segments {
			hash.WriteString("\x00s")
			hash.WriteString(seg.Text)
			builder.Add(seg, opts.Analyzer.Tokenize(seg.Text))
		}
	}

	ix := builder.Build()
	stats := ix.Stats()
	e := &Engine{
		index:       ix,
		analyzer:    opts.Analyzer,
		pageOrder:   pageOrder,
		fingerprint: fmt.Sprintf("%016x", hash.Sum64()),
	}
	report.Segments = stats.Segments
	report.Terms = stats.Terms
	report.Fingerprint = e.fingerprint
	report.Duration = time.Since(start)
	return e, report
}

// Analyzer returns the analyzer the index was built with; queries must be
// parsed with it.
func (e *Engine) Analyzer() tokenizer.Analyzer {
	return e.analyzer
}

// Search returns the postings for a normalised term.
func (e *Engine) Search(term string) index.PostingList {
	return e.index.Postings(term)
}

func (e *Engine) Segment(ref index.SegmentRef) (segment.Segment, bool) {
	return e.index.Segment(ref)
}

func (e *Engine) Tokens(ref index.SegmentRef) []tokenizer.Token {
	return e.index.Tokens(ref)
}

// PageOrder returns the position at which the page was first indexed.
func (e *Engine) PageOrder(pageID string) (int, bool) {
	order, ok := e.pageOrder[pageID]
	return order, ok
}

// PageCount returns the number of pages that made it into the index.
func (e *Engine) PageCount() int {
	return len(e.pageOrder)
}

// Fingerprint identifies the indexed document set and analyzer settings.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

func (e *Engine) Stats() index.Stats {
	return e.index.Stats()
}

func (e *Engine) Snapshot() []index.TermEntry {
	return e.index.Snapshot()
}
