package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/tokenizer"
)

// Builder accumulates segments into an InvertedIndex. It is not safe for
// concurrent use and must not be used after Build.
type Builder struct {
	postings map[string]PostingList
	segments []segment.Segment
	tokens   [][]tokenizer.Token
	total    int
}

func NewBuilder() *Builder {
	return &Builder{
		postings: make(map[string]PostingList),
	}
}

// Add indexes one segment given its tokens and returns the ref assigned to it.
func (b *Builder) Add(seg segment.Segment, tokens []tokenizer.Token) SegmentRef {
	ref := SegmentRef(len(b.segments))
	b.segments = append(b.segments, seg)
	b.tokens = append(b.tokens, tokens)
	b.total += len(tokens)

	termData := make(map[string]*Posting)
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				Segment:   ref,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
			order = append(order, token.Term)
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}
	for _, term := range order {
		b.postings[term] = append(b.postings[term], *termData[term])
	}
	return ref
}

// Build freezes the accumulated data. Every posting list is ordered by
// segment ref.
func (b *Builder) Build() *InvertedIndex {
	ix := &InvertedIndex{
		postings: b.postings,
		segments: b.segments,
		tokens:   b.tokens,
		total:    b.total,
	}
	b.postings = nil
	b.segments = nil
	b.tokens = nil
	return ix
}

// InvertedIndex maps terms to postings and keeps each segment's token
// sequence for phrase matching. It is immutable, so concurrent readers need
// no locking. Returned slices are shared and must not be modified.
type InvertedIndex struct {
	postings map[string]PostingList
	segments []segment.Segment
	tokens   [][]tokenizer.Token
	total    int
}

// Postings returns the postings for an already-normalised term.
func (ix *InvertedIndex) Postings(term string) PostingList {
	return ix.postings[term]
}

// Segment returns the segment behind ref.
func (ix *InvertedIndex) Segment(ref SegmentRef) (segment.Segment, bool) {
	if ref < 0 || int(ref) >= len(ix.segments) {
		return segment.Segment{}, false
	}
	return ix.segments[ref], true
}

// Tokens returns the token sequence of the segment behind ref.
func (ix *InvertedIndex) Tokens(ref SegmentRef) []tokenizer.Token {
	if ref < 0 || int(ref) >= len(ix.tokens) {
		return nil
	}
	return ix.tokens[ref]
}

// SegmentCount returns the number of indexed segments.
func (ix *InvertedIndex) SegmentCount() int {
	return len(ix.segments)
}

func (ix *InvertedIndex) Stats() Stats {
	postings := 0
	for _, list := range ix.postings {
		postings += len(list)
	}
	return Stats{
		Segments: len(ix.segments),
		Terms:    len(ix.postings),
		Postings: postings,
		Tokens:   ix.total,
	}
}

// Snapshot returns every term with its postings, ordered by term.
func (ix *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(ix.postings))
	for term, postings := range ix.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
