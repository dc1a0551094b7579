// Package parser turns a free-text query into a query tree. The grammar is
//
//	query  = { clause }
//	clause = phrase | word
//	phrase = '"' { any rune except '"' } '"'
//	word   = run of runes that are neither whitespace nor '"'
//
// All clauses are combined under one implicit And. Clause text is normalised
// with the same analyzer the index was built with.
package parser

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

// Node is one clause of a parsed query.
type Node interface {
	String() string
	node()
}

// Term matches segments containing the term.
type Term struct {
	Text string
}

// Phrase matches segments containing Terms contiguously and in order.
type Phrase struct {
	Terms []string
}

// And matches segments satisfying every child.
type And struct {
	Children []Node
}

func (Term) node()   {}
func (Phrase) node() {}
func (And) node()    {}

func (t Term) String() string { return t.Text }

func (p Phrase) String() string { return strconv.Quote(strings.Join(p.Terms, " ")) }

func (a And) String() string {
	parts := make([]string, len(a.Children))
	for i, c := range a.Children {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Parse parses query with the default analyzer.
func Parse(query string) (Node, error) {
	return ParseWith(query, tokenizer.Default)
}

// ParseWith parses query, normalising terms with analyzer. It fails with
// ErrEmptyQuery for blank input or input with no searchable terms, and with
// ErrMalformedQuery for an unterminated phrase.
func ParseWith(query string, analyzer tokenizer.Analyzer) (Node, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.ErrEmptyQuery, http.StatusBadRequest, "query is blank")
	}
	p := &queryParser{input: query, analyzer: analyzer}
	children, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyQuery, http.StatusBadRequest, "query has no searchable terms")
	}
	return And{Children: children}, nil
}

// Terms lists the distinct terms of a tree in first-seen order.
func Terms(n Node) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Term:
			add(v.Text)
		case Phrase:
			for _, t := range v.Terms {
				add(t)
			}
		case And:
			for _, c := range v.Children {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

type queryParser struct {
	input    string
	pos      int
	analyzer tokenizer.Analyzer
}

func (p *queryParser) parseQuery() ([]Node, error) {
	var children []Node
	for {
		p.skipSpace()
		if p.eof() {
			return children, nil
		}
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		if clause != nil {
			children = append(children, clause)
		}
	}
}

// parseClause returns nil for a clause that normalises to no terms.
func (p *queryParser) parseClause() (Node, error) {
	if p.input[p.pos] == '"' {
		return p.parsePhrase()
	}
	return p.parseWord(), nil
}

func (p *queryParser) parsePhrase() (Node, error) {
	open := p.pos
	p.pos++
	end := strings.IndexByte(p.input[p.pos:], '"')
	if end < 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, http.StatusBadRequest,
			"unterminated phrase starting at offset %d", open)
	}
	body := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	terms := p.analyzer.Terms(body)
	if len(terms) == 0 {
		return nil, nil
	}
	return Phrase{Terms: terms}, nil
}

func (p *queryParser) parseWord() Node {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if r == '"' || unicode.IsSpace(r) {
			break
		}
		p.pos += size
	}
	terms := p.analyzer.Terms(p.input[start:p.pos])
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return Term{Text: terms[0]}
	default:
		// "e-mail" must keep its parts adjacent, as they are in the text.
		return Phrase{Terms: terms}
	}
}

func (p *queryParser) skipSpace() {
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *queryParser) eof() bool {
	return p.pos >= len(p.input)
}
