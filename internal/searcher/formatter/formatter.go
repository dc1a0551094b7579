// Package formatter renders ranked candidates into display results.
package formatter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/ranker"
)

const ellipsis = "..."

type Result struct {
	PageID  string  `json:"page_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// String renders the result the way the console prints it.
func (r Result) String() string {
	return fmt.Sprintf("Title: %s\n%s\n", r.Title, r.Snippet)
}

// Source resolves the segment text and tokens behind a ranked doc.
type Source interface {
	Segment(ref index.SegmentRef) (segment.Segment, bool)
	Tokens(ref index.SegmentRef) []tokenizer.Token
}

// Formatter builds Results. With SnippetLength 0 the snippet is the whole
// paragraph; otherwise it is a window of at most SnippetLength runes around
// the first matched term, marked with "..." where text was cut.
type Formatter struct {
	SnippetLength int
}

// Format converts docs in order. Docs whose segment is unknown to src are
// skipped.
func (f Formatter) Format(docs []ranker.ScoredDoc, src Source, terms []string) []Result {
	wanted := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		wanted[t] = struct{}{}
	}
	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		seg, ok := src.Segment(doc.Segment)
		if !ok {
			continue
		}
		snippet := seg.Text
		if f.SnippetLength > 0 {
			snippet = window(seg.Text, firstMatch(src.Tokens(doc.Segment), wanted), f.SnippetLength)
		}
		results = append(results, Result{
			PageID:  seg.PageID,
			Title:   seg.Title,
			Snippet: snippet,
			Score:   doc.Score,
		})
	}
	return results
}

// firstMatch returns the byte offset of the first token whose term is
// wanted, or 0.
func firstMatch(tokens []tokenizer.Token, wanted map[string]struct{}) int {
	for _, tok := range tokens {
		if _, ok := wanted[tok.Term]; ok {
			return tok.Start
		}
	}
	return 0
}

// window cuts text to length runes, placing the match about a quarter of the
// way in so some leading context survives.
func window(text string, matchOffset, length int) string {
	total := utf8.RuneCountInString(text)
	if total <= length {
		return text
	}
	matchRune := utf8.RuneCountInString(text[:matchOffset])
	begin := matchRune - length/4
	if begin < 0 {
		begin = 0
	}
	end := begin + length
	if end > total {
		end = total
		begin = end - length
	}

	runes := []rune(text)
	var b strings.Builder
	if begin > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(strings.TrimSpace(string(runes[begin:end])))
	if end < total {
		b.WriteString(ellipsis)
	}
	return b.String()
}
