package segment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

func texts(segs []Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"no breaks", "one line\nsecond line", []string{"one line\nsecond line"}},
		{"single blank line", "first\n\nsecond", []string{"first", "second"}},
		{"many blank lines", "first\n\n\n\nsecond", []string{"first", "second"}},
		{"whitespace-only separator", "first\n  \t \nsecond", []string{"first", "second"}},
		{"crlf", "first\r\n\r\nsecond\r\n", []string{"first", "second"}},
		{"leading and trailing blanks", "\n\n  first  \n\n", []string{"first"}},
		{"empty", "", nil},
		{"whitespace only", " \n\n \t\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split("p", "Title", tt.content)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, texts(got))
		})
	}
}

func TestSplitKeepsPageIdentityAndOrdinals(t *testing.T) {
	segs := Split("faq", "FAQ", "a\n\nb\n\n\nc")
	require.Len(t, segs, 3)
	for i, s := range segs {
		assert.Equal(t, "faq", s.PageID)
		assert.Equal(t, "FAQ", s.Title)
		assert.Equal(t, i, s.Ordinal)
	}
}

func TestPageReportsUnreadableContent(t *testing.T) {
	p := pages.Page{ID: "gone", Title: "Gone", Source: pages.File(filepath.Join(t.TempDir(), "nope.txt"))}
	_, err := Page(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrContentUnreadable)
	assert.Contains(t, err.Error(), `"gone"`)

	_, err = Page(pages.Page{ID: "nil"})
	assert.ErrorIs(t, err, apperrors.ErrContentUnreadable)
}

func TestPageInline(t *testing.T) {
	segs, err := Page(pages.Page{ID: "x", Title: "X", Source: pages.Inline("alpha\n\nbeta")})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, texts(segs))
}
