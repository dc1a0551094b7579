package pages

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
)

const pagesSchema = `CREATE TABLE IF NOT EXISTS pages (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	content_path TEXT NOT NULL DEFAULT '',
	is_private   BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps pages in the `pages` table; Migrate creates it.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// Record is the row shape written by Upsert.
type Record struct {
	ID          string
	Title       string
	Content     string
	ContentPath string
	Private     bool
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "page-store"),
	}
}

// Migrate creates the pages table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, pagesSchema)
}

// List returns every page ordered by id.
func (s *PostgresStore) List(ctx context.Context) ([]Page, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, title, content, content_path, is_private FROM pages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w: %v", apperrors.ErrPageSourceUnavailable, err)
	}
	defer rows.Close()

	var out []Page
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.ContentPath, &rec.Private); err != nil {
			return nil, fmt.Errorf("scanning page row: %w: %v", apperrors.ErrPageSourceUnavailable, err)
		}
		out = append(out, rec.Page())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w: %v", apperrors.ErrPageSourceUnavailable, err)
	}
	return out, nil
}

// Upsert inserts or replaces a page.
func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pages (id, title, content, content_path, is_private, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			content_path = EXCLUDED.content_path,
			is_private = EXCLUDED.is_private,
			updated_at = NOW()`,
			rec.ID, rec.Title, rec.Content, rec.ContentPath, rec.Private)
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting page %s: %w", rec.ID, err)
	}
	s.logger.Info("page upserted", "page_id", rec.ID, "private", rec.Private)
	return nil
}

// Delete removes the page with id. An unknown id wraps ErrPageNotFound.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "page id is required")
	}
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting page %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting page %s: %w", id, err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrPageNotFound, http.StatusNotFound, "page %q does not exist", id)
	}
	s.logger.Info("page deleted", "page_id", id)
	return nil
}

// Validate checks the fields Upsert relies on.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "page id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "page title is required")
	}
	if r.Content != "" && r.ContentPath != "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "set either content or content path, not both")
	}
	return nil
}

// Page converts the row into a Page.
func (r Record) Page() Page {
	var src ContentSource = Inline(r.Content)
	if r.ContentPath != "" {
		src = File(r.ContentPath)
	}
	return Page{ID: r.ID, Title: r.Title, Source: src, Private: r.Private}
}
