package pages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
)

func TestVisibleHidesPrivatePagesFromGuests(t *testing.T) {
	all := []Page{
		{ID: "a", Title: "Public", Source: Inline("x")},
		{ID: "b", Title: "Staff only", Source: Inline("y"), Private: true},
		{ID: "c", Title: "Also public", Source: Inline("z")},
	}

	guest := Visible(all, AudienceGuest)
	member := Visible(all, AudienceMember)

	require.Len(t, guest, 2)
	assert.Equal(t, "a", guest[0].ID)
	assert.Equal(t, "c", guest[1].ID)
	assert.Len(t, member, 3)
	assert.Len(t, all, 3, "input must not be modified")
}

func TestFromMapOrdersByID(t *testing.T) {
	got := FromMap(map[string]Page{
		"Webpage": {Title: "Webpage"},
		"Article": {Title: "Article"},
		"Blog":    {ID: "blog-1", Title: "Blog"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Article", got[0].ID)
	assert.Equal(t, "blog-1", got[1].ID)
	assert.Equal(t, "Webpage", got[2].ID)
}

func TestParseAudience(t *testing.T) {
	assert.Equal(t, AudienceMember, ParseAudience("member"))
	assert.Equal(t, AudienceGuest, ParseAudience("guest"))
	assert.Equal(t, AudienceGuest, ParseAudience("admin"))
}

func TestFileContentMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.txt")).ReadContent()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCatalogStoreList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "article.txt"), []byte("Per aspera ad astra"), 0o644))
	catalog := `
pages:
  - id: article
    title: Article
    path: article.txt
  - title: Staff Rota
    content: |
      Monday: Alice
    private: true
`
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))

	got, err := NewCatalogStore(path).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "article", got[0].ID)
	assert.Equal(t, File(filepath.Join(dir, "article.txt")), got[0].Source)
	content, err := got[0].Source.ReadContent()
	require.NoError(t, err)
	assert.Equal(t, "Per aspera ad astra", content)

	assert.Equal(t, "Staff Rota", got[1].ID, "title doubles as id")
	assert.True(t, got[1].Private)
	assert.Equal(t, Inline("Monday: Alice\n"), got[1].Source)
}

func TestCatalogStoreErrors(t *testing.T) {
	_, err := NewCatalogStore(filepath.Join(t.TempDir(), "none.yaml")).List(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrPageSourceUnavailable)

	_, err = ParseCatalog([]byte("pages: [unterminated"), ".")
	assert.ErrorIs(t, err, apperrors.ErrPageSourceUnavailable)

	_, err = ParseCatalog([]byte("pages:\n  - id: a\n    title: A\n  - id: a\n    title: B\n"), ".")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ParseCatalog([]byte("pages:\n  - content: orphan\n"), ".")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRecordValidateAndPage(t *testing.T) {
	assert.ErrorIs(t, Record{Title: "x"}.Validate(), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, Record{ID: "x"}.Validate(), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, Record{ID: "x", Title: "X", Content: "a", ContentPath: "b"}.Validate(), apperrors.ErrInvalidInput)
	assert.NoError(t, Record{ID: "x", Title: "X"}.Validate())
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(Record{Title: "x"}.Validate()))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(Record{ID: "x", Title: "X", Content: "a", ContentPath: "b"}.Validate()))

	assert.Equal(t, Inline("body"), Record{ID: "x", Content: "body"}.Page().Source)
	assert.Equal(t, File("/srv/x.txt"), Record{ID: "x", ContentPath: "/srv/x.txt"}.Page().Source)
}

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, event kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func TestNotifierPageChanged(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub)

	require.NoError(t, n.PageChanged(context.Background(), "faq", ChangeUpserted))
	require.Len(t, pub.events, 1)
	assert.Equal(t, "faq", pub.events[0].Key)
	assert.Equal(t, ChangeEventType, pub.events[0].Type)

	data, err := json.Marshal(pub.events[0].Value)
	require.NoError(t, err)
	decoded, err := kafka.DecodeJSON[ChangeEvent](data)
	require.NoError(t, err)
	assert.Equal(t, "faq", decoded.PageID)
	assert.Equal(t, ChangeUpserted, decoded.Action)

	pub.err = errors.New("broker down")
	assert.Error(t, n.PageChanged(context.Background(), "faq", ChangeDeleted))
}

func TestPostgresStoreDeleteRequiresID(t *testing.T) {
	store := &PostgresStore{}
	err := store.Delete(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
}
