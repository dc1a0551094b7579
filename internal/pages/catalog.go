package pages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
)

// CatalogEntry is one page in a YAML catalog file. Exactly one of Path and
// Content should be set; a relative Path is resolved against the catalog's
// directory.
type CatalogEntry struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`
	Private bool   `yaml:"private"`
}

type catalogFile struct {
	Pages []CatalogEntry `yaml:"pages"`
}

// CatalogStore lists pages described by a YAML catalog. The file is re-read
// on every List so edits are picked up by the next rebuild.
type CatalogStore struct {
	path string
}

// NewCatalogStore creates a store over the catalog at path.
func NewCatalogStore(path string) *CatalogStore {
	return &CatalogStore{path: path}
}

// Path returns the catalog file location.
func (s *CatalogStore) Path() string {
	return s.path
}

// List parses the catalog and returns its pages in file order.
func (s *CatalogStore) List(ctx context.Context) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w: %v", s.path, apperrors.ErrPageSourceUnavailable, err)
	}
	return ParseCatalog(data, filepath.Dir(s.path))
}

// ParseCatalog decodes catalog YAML. baseDir resolves relative content paths.
func ParseCatalog(data []byte, baseDir string) ([]Page, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w: %v", apperrors.ErrPageSourceUnavailable, err)
	}
	seen := make(map[string]struct{}, len(file.Pages))
	out := make([]Page, 0, len(file.Pages))
	for i, entry := range file.Pages {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = strings.TrimSpace(entry.Title)
		}
		if id == "" {
			return nil, fmt.Errorf("catalog entry %d: %w: id or title is required", i, apperrors.ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog entry %d: %w: duplicate page id %q", i, apperrors.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
		out = append(out, Page{
			ID:      id,
			Title:   entry.Title,
			Source:  entry.source(baseDir),
			Private: entry.Private,
		})
	}
	return out, nil
}

func (e CatalogEntry) source(baseDir string) ContentSource {
	if e.Path == "" {
		return Inline(e.Content)
	}
	path := e.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return File(path)
}
