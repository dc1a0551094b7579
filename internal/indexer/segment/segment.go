// Package segment splits page content into paragraph-level segments, the
// unit the index stores and matches.
package segment

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

// Segment is one paragraph of a page. Ordinal is the paragraph's index among
// the page's non-empty paragraphs.
type Segment struct {
	PageID  string
	Title   string
	Text    string
	Ordinal int
}

// Page reads the page's content and splits it. A content source that cannot
// be read yields an error wrapping ErrContentUnreadable.
func Page(p pages.Page) ([]Segment, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("page %q: %w: no content source", p.ID, apperrors.ErrContentUnreadable)
	}
	content, err := p.Source.ReadContent()
	if err != nil {
		return nil, fmt.Errorf("page %q: %w: %w", p.ID, apperrors.ErrContentUnreadable, err)
	}
	return Split(p.ID, p.Title, content), nil
}

// Split breaks content on runs of one or more blank lines (empty or
// whitespace-only). Chunks are trimmed and empty ones dropped. Content
// without paragraph breaks yields a single segment.
func Split(pageID, title, content string) []Segment {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var (
		segments []Segment
		current  []string
	)
	emit := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if text == "" {
			return
		}
		segments = append(segments, Segment{
			PageID:  pageID,
			Title:   title,
			Text:    text,
			Ordinal: len(segments),
		})
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		current = append(current, line)
	}
	emit()
	return segments
}
