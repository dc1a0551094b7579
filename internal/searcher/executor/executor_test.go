package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/parser"
)

func newExecutor(t *testing.T, pageList ...pages.Page) *Executor {
	t.Helper()
	engine, report := indexer.NewEngine(pageList, indexer.Options{})
	require.Empty(t, report.Failures)
	return New(engine, formatter.Formatter{})
}

func page(id, content string) pages.Page {
	return pages.Page{ID: id, Title: id, Source: pages.Inline(content)}
}

func run(t *testing.T, ex *Executor, query string, limit int) *SearchResult {
	t.Helper()
	node, err := parser.Parse(query)
	require.NoError(t, err)
	result, err := ex.Execute(context.Background(), node, limit)
	require.NoError(t, err)
	return result
}

func ids(r *SearchResult) []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.PageID
	}
	return out
}

func TestAlphaBetaGamma(t *testing.T) {
	ex := newExecutor(t,
		page("P1", "alpha beta"),
		page("P2", "beta gamma"),
		page("P3", "gamma then beta"),
	)

	beta := run(t, ex, "beta", 4)
	assert.Equal(t, []string{"P1", "P2", "P3"}, ids(beta))
	assert.Equal(t, beta.Results[0].Score, beta.Results[1].Score)

	assert.Equal(t, []string{"P1"}, ids(run(t, ex, "alpha beta", 4)))
	assert.Equal(t, []string{"P2"}, ids(run(t, ex, `"beta gamma"`, 4)))
	assert.Equal(t, []string{"P3"}, ids(run(t, ex, `"gamma then beta"`, 4)))
}

func TestAbsentPhraseIsNoResults(t *testing.T) {
	ex := newExecutor(t, page("P1", "alpha beta"), page("P2", "beta gamma"))

	result := run(t, ex, `"gamma beta"`, 4)
	assert.True(t, result.Empty())
	assert.Equal(t, StatusNoResults, result.Status)
	assert.Empty(t, result.Results)
	assert.Zero(t, result.TotalHits)

	assert.True(t, run(t, ex, "missing", 4).Empty())
}

func TestResultCapAndTotalHits(t *testing.T) {
	var pageList []pages.Page
	for i := 0; i < 9; i++ {
		pageList = append(pageList, page(fmt.Sprintf("page-%d", i), "reset your password here"))
	}
	ex := newExecutor(t, pageList...)

	result := run(t, ex, `"reset your password"`, 4)
	assert.Len(t, result.Results, 4)
	assert.Equal(t, 9, result.TotalHits)
	assert.Equal(t, []string{"page-0", "page-1", "page-2", "page-3"}, ids(result))
}

func TestPhraseInEverySegmentGivesOneResultPerPage(t *testing.T) {
	ex := newExecutor(t,
		page("a", "open a ticket\n\nto open a ticket use the form\n\nopen a ticket again"),
		page("b", "please open a ticket"),
	)
	result := run(t, ex, `"open a ticket"`, 4)
	assert.Equal(t, []string{"a", "b"}, ids(result))
	assert.Equal(t, "open a ticket", result.Results[0].Snippet)
}

func TestScoresAddUpAndBestSegmentWins(t *testing.T) {
	ex := newExecutor(t,
		page("low", "printer setup"),
		page("high", "printer\n\nprinter printer setup guide for the printer"),
	)
	result := run(t, ex, "printer setup", 4)
	require.Equal(t, []string{"high", "low"}, ids(result))
	assert.Equal(t, 4.0, result.Results[0].Score)
	assert.Equal(t, "printer printer setup guide for the printer", result.Results[0].Snippet)
	assert.Equal(t, 2.0, result.Results[1].Score)
}

func TestOverlappingPhraseOccurrences(t *testing.T) {
	ex := newExecutor(t, page("a", "go go go"))
	result := run(t, ex, `"go go"`, 4)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 2.0, result.Results[0].Score)
}

func TestDeterministicOrdering(t *testing.T) {
	var pageList []pages.Page
	for i := 0; i < 20; i++ {
		pageList = append(pageList, page(fmt.Sprintf("p%02d", i), "vpn access and vpn setup"))
	}
	ex := newExecutor(t, pageList...)

	first := run(t, ex, "vpn", 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, run(t, ex, "vpn", 4))
	}
}

func TestUnreadablePageNeverAppears(t *testing.T) {
	pageList := []pages.Page{
		page("ok", "shared words here"),
		{ID: "broken", Title: "broken", Source: pages.File("/nonexistent/helpdesk/page.txt")},
		page("also-ok", "more shared words"),
	}
	engine, report := indexer.NewEngine(pageList, indexer.Options{})
	require.Len(t, report.Failures, 1)
	ex := New(engine, formatter.Formatter{})

	assert.Equal(t, []string{"ok", "also-ok"}, ids(run(t, ex, "shared", 4)))
}

func TestCancelledContext(t *testing.T) {
	ex := newExecutor(t, page("a", "alpha"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Execute(ctx, parser.Term{Text: "alpha"}, 4)
	assert.ErrorIs(t, err, context.Canceled)
}
