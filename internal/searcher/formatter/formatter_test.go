package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/ranker"
)

type fakeSource []segment.Segment

func (f fakeSource) Segment(ref index.SegmentRef) (segment.Segment, bool) {
	if ref < 0 || int(ref) >= len(f) {
		return segment.Segment{}, false
	}
	return f[ref], true
}

func (f fakeSource) Tokens(ref index.SegmentRef) []tokenizer.Token {
	return tokenizer.Tokenize(f[ref].Text)
}

var long = "Billing questions are handled by the finance team. " +
	"To reset your password open the account page and choose the reset option. " +
	"Contact support if the email never arrives."

func TestFormatWholeParagraph(t *testing.T) {
	src := fakeSource{{PageID: "p1", Title: "Account", Text: long}}
	results := Formatter{}.Format([]ranker.ScoredDoc{{PageID: "p1", Segment: 0, Score: 2}}, src, []string{"reset"})

	require.Len(t, results, 1)
	assert.Equal(t, Result{PageID: "p1", Title: "Account", Snippet: long, Score: 2}, results[0])
	assert.Equal(t, "Title: Account\n"+long+"\n", results[0].String())
}

func TestFormatSnippetWindow(t *testing.T) {
	src := fakeSource{{PageID: "p1", Title: "Account", Text: long}}
	results := Formatter{SnippetLength: 40}.Format([]ranker.ScoredDoc{{PageID: "p1"}}, src, []string{"password"})

	require.Len(t, results, 1)
	snippet := results[0].Snippet
	assert.True(t, strings.HasPrefix(snippet, ellipsis))
	assert.True(t, strings.HasSuffix(snippet, ellipsis))
	assert.Contains(t, snippet, "password")
	assert.LessOrEqual(t, len([]rune(snippet)), 40+2*len(ellipsis))
}

func TestFormatSnippetAtEdges(t *testing.T) {
	src := fakeSource{
		{PageID: "p1", Title: "A", Text: long},
		{PageID: "p2", Title: "B", Text: "short text"},
	}
	results := Formatter{SnippetLength: 30}.Format([]ranker.ScoredDoc{
		{PageID: "p1", Segment: 0},
		{PageID: "p2", Segment: 1},
	}, src, []string{"billing", "arrives"})

	require.Len(t, results, 2)
	assert.True(t, strings.HasPrefix(results[0].Snippet, "Billing"))
	assert.True(t, strings.HasSuffix(results[0].Snippet, ellipsis))
	assert.Equal(t, "short text", results[1].Snippet)
}

func TestFormatSkipsUnknownSegments(t *testing.T) {
	results := Formatter{}.Format([]ranker.ScoredDoc{{Segment: 5}}, fakeSource{}, nil)
	assert.Empty(t, results)
}
