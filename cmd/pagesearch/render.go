package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("32"))
)

// renderOutcome prints the results in the helpdesk's "Title: ..." layout.
func renderOutcome(w io.Writer, outcome *searcher.Outcome) {
	if outcome.Empty() {
		fmt.Fprintln(w, noDataStyle.Render("No results found for query: "+outcome.Query))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("Search Results:"))
	for _, r := range outcome.Results {
		fmt.Fprintln(w, titleStyle.Render("Title: "+r.Title))
		fmt.Fprintln(w, r.Snippet)
	}
	fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("%d of %d matching pages, %s",
		len(outcome.Results), outcome.TotalHits, outcome.Took.Round(time.Microsecond))))
}

func renderQueryError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("invalid query (%s): %v", apperrors.Kind(err), err)))
}

func renderStats(w io.Writer, stats searcher.ServiceStats) {
	fmt.Fprintln(w, headerStyle.Render("Index statistics:"))
	for _, aud := range stats.Audiences {
		fmt.Fprintln(w, titleStyle.Render(strings.ToUpper(string(aud.Audience))))
		fmt.Fprintf(w, "  pages:       %d\n", aud.Pages)
		fmt.Fprintf(w, "  segments:    %d\n", aud.Index.Segments)
		fmt.Fprintf(w, "  terms:       %d\n", aud.Index.Terms)
		fmt.Fprintf(w, "  fingerprint: %s\n", aud.Fingerprint)
	}
	if stats.LastBuild == nil {
		return
	}
	for _, aud := range searcher.Audiences {
		report := stats.LastBuild.Reports[aud]
		if report == nil {
			continue
		}
		for _, f := range report.Failures {
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("  skipped %s (%s): %s", f.PageID, aud, f.Reason)))
		}
	}
}

func renderKeys(w io.Writer, keys []apikey.KeyInfo) {
	if len(keys) == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No active API keys."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Active API keys (%d):", len(keys))))
	for _, k := range keys {
		role := "member"
		if k.Admin {
			role = "admin"
		}
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %s  %-16s %-6s limit=%d expires=%s\n", k.ID, k.Member, role, k.RateLimit, expires)
	}
}
