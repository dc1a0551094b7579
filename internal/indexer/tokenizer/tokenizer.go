// Package tokenizer provides text tokenisation for the search engine.
// It NFKC-normalises and lower-cases input and splits on non-alphanumeric
// boundaries. Stemming is opt-in through Analyzer; there is no stop-word list.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// Token represents a single normalised term, its ordinal position among the
// tokens of the text, and the byte range [Start, End) of the source word it
// came from.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Analyzer turns text into Tokens. The zero value performs no stemming.
// The same Analyzer must be used for indexing and for query parsing.
type Analyzer struct {
	Stemming bool
}

// Default is the analyzer used by Tokenize.
var Default = Analyzer{}

// Tokenize breaks text into lower-cased Tokens using the Default analyzer.
func Tokenize(text string) []Token {
	return Default.Tokenize(text)
}

// Terms returns only the term strings of Tokenize(text).
func Terms(text string) []string {
	return Default.Terms(text)
}

// Tokenize breaks text into normalised Tokens. It is a pure function of the
// analyzer settings and the input.
func (a Analyzer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6+1)
	pos := 0
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := text[start:end]
		for _, term := range a.normalize(word) {
			tokens = append(tokens, Token{
				Term:     term,
				Position: pos,
				Start:    start,
				End:      end,
			})
			pos++
		}
		start = -1
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
		i += size
	}
	flush(len(text))
	return tokens
}

// Terms returns only the term strings of a.Tokenize(text).
func (a Analyzer) Terms(text string) []string {
	tokens := a.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// normalize maps one source word to its terms. Compatibility normalisation
// can expand a word into pieces that are not all alphanumeric (for example
// "½" becomes "1⁄2"), so the result is split again.
func (a Analyzer) normalize(word string) []string {
	folded := strings.ToLower(norm.NFKC.String(word))
	parts := strings.FieldsFunc(folded, func(r rune) bool {
		return !isWordRune(r)
	})
	if a.Stemming {
		for i, p := range parts {
			if stemmed := english.Stem(p, false); stemmed != "" {
				parts[i] = stemmed
			}
		}
	}
	return parts
}

// isWordRune accepts combining marks so decomposed input ("e" + U+0301)
// stays in one word and composes under NFKC.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
