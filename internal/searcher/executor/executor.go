package executor

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/ranker"
)

type Status string

const (
	StatusFound     Status = "found"
	StatusNoResults Status = "no_results"
)

type SearchResult struct {
	Query     string             `json:"query"`
	Status    Status             `json:"status"`
	TotalHits int                `json:"total_hits"`
	Results   []formatter.Result `json:"results"`
}

// Empty reports whether the query matched nothing.
func (r *SearchResult) Empty() bool {
	return r.Status == StatusNoResults
}

type Executor struct {
	engine    *indexer.Engine
	formatter formatter.Formatter
}

func New(engine *indexer.Engine, f formatter.Formatter) *Executor {
	return &Executor{
		engine:    engine,
		formatter: f,
	}
}

// Execute evaluates node against the index and returns at most limit results,
// one per page. TotalHits counts matching pages before the cap.
func (e *Executor) Execute(ctx context.Context, node parser.Node, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	scores := e.evaluate(node)
	candidates := ranker.Rank(scores, e.engine)
	top := merger.TopK(candidates, limit)

	result := &SearchResult{
		Query:     node.String(),
		Status:    StatusFound,
		TotalHits: len(candidates),
		Results:   e.formatter.Format(top, e.engine, parser.Terms(node)),
	}
	if len(result.Results) == 0 {
		result.Status = StatusNoResults
	}
	return result, nil
}

// evaluate returns the score of every segment matching node.
func (e *Executor) evaluate(node parser.Node) map[index.SegmentRef]float64 {
	switch n := node.(type) {
	case parser.Term:
		postings := e.engine.Search(n.Text)
		scores := make(map[index.SegmentRef]float64, len(postings))
		for _, p := range postings {
			scores[p.Segment] = float64(p.Frequency)
		}
		return scores
	case parser.Phrase:
		return e.evaluatePhrase(n.Terms)
	case parser.And:
		return e.evaluateAnd(n.Children)
	default:
		return nil
	}
}

// evaluateAnd intersects the children's matches, starting from the smallest
// set, and sums their scores.
func (e *Executor) evaluateAnd(children []parser.Node) map[index.SegmentRef]float64 {
	if len(children) == 0 {
		return nil
	}
	sets := make([]map[index.SegmentRef]float64, len(children))
	shortest := 0
	for i, child := range children {
		sets[i] = e.evaluate(child)
		if len(sets[i]) == 0 {
			return nil
		}
		if len(sets[i]) < len(sets[shortest]) {
			shortest = i
		}
	}
	result := make(map[index.SegmentRef]float64, len(sets[shortest]))
	for ref := range sets[shortest] {
		total := 0.0
		matched := true
		for _, set := range sets {
			score, ok := set[ref]
			if !ok {
				matched = false
				break
			}
			total += score
		}
		if matched {
			result[ref] = total
		}
	}
	return result
}

// evaluatePhrase scores each segment by how many times the terms occur
// contiguously and in order. Overlapping occurrences each count.
func (e *Executor) evaluatePhrase(terms []string) map[index.SegmentRef]float64 {
	if len(terms) == 0 {
		return nil
	}
	lists := make([]index.PostingList, len(terms))
	for i, term := range terms {
		lists[i] = e.engine.Search(term)
		if len(lists[i]) == 0 {
			return nil
		}
	}

	// positions[i][ref] holds the token positions of terms[i] in segment ref.
	positions := make([]map[index.SegmentRef]map[int]struct{}, len(terms))
	for i := 1; i < len(terms); i++ {
		positions[i] = make(map[index.SegmentRef]map[int]struct{}, len(lists[i]))
		for _, p := range lists[i] {
			set := make(map[int]struct{}, len(p.Positions))
			for _, pos := range p.Positions {
				set[pos] = struct{}{}
			}
			positions[i][p.Segment] = set
		}
	}

	scores := make(map[index.SegmentRef]float64)
	for _, first := range lists[0] {
		count := 0
		for _, start := range first.Positions {
			if phraseAt(positions, first.Segment, start) {
				count++
			}
		}
		if count > 0 {
			scores[first.Segment] = float64(count)
		}
	}
	return scores
}

func phraseAt(positions []map[index.SegmentRef]map[int]struct{}, ref index.SegmentRef, start int) bool {
	for i := 1; i < len(positions); i++ {
		set, ok := positions[i][ref]
		if !ok {
			return false
		}
		if _, ok := set[start+i]; !ok {
			return false
		}
	}
	return true
}
