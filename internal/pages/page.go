// Package pages defines the helpdesk page records handed to the search
// engine, the content sources they read from, the stores that list them,
// and the visibility rule callers apply before building an index.
package pages

import (
	"context"
	"fmt"
	"os"
	"sort"
)

// Audience identifies who a page set is built for.
type Audience string

const (
	AudienceGuest  Audience = "guest"
	AudienceMember Audience = "member"
)

// ParseAudience maps a config or request value to an Audience, defaulting to
// guest for anything unrecognised.
func ParseAudience(s string) Audience {
	if Audience(s) == AudienceMember {
		return AudienceMember
	}
	return AudienceGuest
}

// ContentSource yields the raw text of a page.
type ContentSource interface {
	ReadContent() (string, error)
}

// Inline is content held in memory.
type Inline string

func (c Inline) ReadContent() (string, error) {
	return string(c), nil
}

// File is content stored in a text file, read each time it is requested.
type File string

func (f File) ReadContent() (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", string(f), err)
	}
	return string(data), nil
}

// Page is one helpdesk web page.
type Page struct {
	ID      string
	Title   string
	Source  ContentSource
	Private bool
}

// Store lists the current page set.
type Store interface {
	List(ctx context.Context) ([]Page, error)
}

// FromMap flattens an id-keyed page map into a slice ordered by id, so that
// building from a map is reproducible.
func FromMap(m map[string]Page) []Page {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Page, 0, len(ids))
	for _, id := range ids {
		p := m[id]
		if p.ID == "" {
			p.ID = id
		}
		out = append(out, p)
	}
	return out
}

// Visible returns the pages the audience may search. Guests never see
// private pages; members see everything. The input slice is not modified.
func Visible(all []Page, audience Audience) []Page {
	out := make([]Page, 0, len(all))
	for _, p := range all {
		if p.Private && audience != AudienceMember {
			continue
		}
		out = append(out, p)
	}
	return out
}
