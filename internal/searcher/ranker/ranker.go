// Package ranker turns per-segment scores into per-page candidates and
// defines the result order.
//
// Scoring is additive term frequency: a segment's score is the sum, over the
// query's clauses, of how often the clause occurs in it. There is no IDF or
// length normalisation.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/segment"
)

type ScoredDoc struct {
	PageID  string           `json:"page_id"`
	Segment index.SegmentRef `json:"segment"`
	Score   float64          `json:"score"`
	Order   int              `json:"order"`
}

// Lookup resolves segment refs and page build order. *indexer.Engine
// satisfies it.
type Lookup interface {
	Segment(ref index.SegmentRef) (segment.Segment, bool)
	PageOrder(pageID string) (int, bool)
}

// Rank keeps one candidate per page: its highest-scoring segment, the
// earliest segment on a tie. The result is unordered; use Sort or
// merger.TopK.
func Rank(scores map[index.SegmentRef]float64, lookup Lookup) []ScoredDoc {
	best := make(map[string]ScoredDoc, len(scores))
	for ref, score := range scores {
		seg, ok := lookup.Segment(ref)
		if !ok {
			continue
		}
		order, ok := lookup.PageOrder(seg.PageID)
		if !ok {
			continue
		}
		candidate := ScoredDoc{
			PageID:  seg.PageID,
			Segment: ref,
			Score:   score,
			Order:   order,
		}
		current, exists := best[seg.PageID]
		if !exists || Less(candidate, current) {
			best[seg.PageID] = candidate
		}
	}
	result := make([]ScoredDoc, 0, len(best))
	for _, doc := range best {
		result = append(result, doc)
	}
	return result
}

// Less reports whether a ranks before b: higher score first, then the page
// indexed first, then the earlier segment.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.Segment < b.Segment
}

// Sort orders docs in place by Less.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		return Less(docs[i], docs[j])
	})
}
