package searcher

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
)

var vocabulary = strings.Fields(`account password reset vpn printer badge email
laptop network ticket billing invoice access guest staff desk phone queue
release colour approval team lead floor secure connection clock client`)

func benchPages(n int) []pages.Page {
	out := make([]pages.Page, n)
	for i := range out {
		var paragraphs []string
		for p := 0; p < 3; p++ {
			words := make([]string, 40)
			for w := range words {
				words[w] = vocabulary[(i*7+p*13+w*3)%len(vocabulary)]
			}
			paragraphs = append(paragraphs, strings.Join(words, " "))
		}
		out[i] = pages.Page{
			ID:     fmt.Sprintf("page-%04d", i),
			Title:  fmt.Sprintf("Page %d", i),
			Source: pages.Inline(strings.Join(paragraphs, "\n\n")),
		}
	}
	return out
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000} {
		pageList := benchPages(n)
		b.Run(fmt.Sprintf("pages_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = New(pageList, Options{})
			}
		})
	}
}

func BenchmarkSearch(b *testing.B) {
	sr, _ := New(benchPages(1000), Options{})
	queries := []struct {
		name  string
		query string
	}{
		{"term", "password"},
		{"and", "vpn access staff"},
		{"phrase", `"reset vpn"`},
		{"mixed", `"password reset" ticket`},
		{"miss", "kettle"},
	}
	ctx := context.Background()
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := sr.Search(ctx, q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
