package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run one query and print the results",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results (capped by search.maxResults)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			svc, cfg, closeFn, err := openService(ctx, c)
			if err != nil {
				return err
			}
			defer closeFn()

			outcome, err := svc.Search(ctx, audience(c, cfg), query, c.Int("limit"))
			if err != nil {
				if isQueryError(err) {
					renderQueryError(os.Stdout, err)
					return nil
				}
				return err
			}
			renderOutcome(os.Stdout, outcome)
			return nil
		},
	}
}

func consoleCommand() *cli.Command {
	return &cli.Command{
		Name:  "console",
		Usage: "Prompt for queries until EOF or 'exit'",
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, cfg, closeFn, err := openService(ctx, c)
			if err != nil {
				return err
			}
			defer closeFn()
			return runConsole(ctx, os.Stdin, os.Stdout, svc, audience(c, cfg))
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Build the index and print its statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, _, closeFn, err := openService(ctx, c)
			if err != nil {
				return err
			}
			defer closeFn()
			renderStats(os.Stdout, svc.Stats())
			return nil
		},
	}
}

func addPageCommand() *cli.Command {
	return &cli.Command{
		Name:  "add-page",
		Usage: "Insert or replace a page in the PostgreSQL page store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Page id (defaults to the title)"},
			&cli.StringFlag{Name: "title", Usage: "Page title", Required: true},
			&cli.StringFlag{Name: "content", Usage: "Page text"},
			&cli.StringFlag{Name: "file", Usage: "Path of a file holding the page text"},
			&cli.BoolFlag{Name: "private", Usage: "Only show the page to members"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			contentPath, err := resolveContentPath(c.String("file"))
			if err != nil {
				return err
			}
			rec := pages.Record{
				ID:          c.String("id"),
				Title:       c.String("title"),
				Content:     c.String("content"),
				ContentPath: contentPath,
				Private:     c.Bool("private"),
			}
			if strings.TrimSpace(rec.ID) == "" {
				rec.ID = rec.Title
			}
			return withPageStore(ctx, c, func(cfg *config.Config, store *pages.PostgresStore) error {
				if err := store.Upsert(ctx, rec); err != nil {
					return err
				}
				notifyChange(ctx, cfg, rec.ID, pages.ChangeUpserted)
				fmt.Fprintln(os.Stdout, okStyle.Render("saved page "+rec.ID))
				return nil
			})
		},
	}
}

func removePageCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove-page",
		Usage:     "Delete a page from the PostgreSQL page store",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id := strings.TrimSpace(c.Args().First())
			if id == "" {
				return errors.New("usage: pagesearch remove-page <id>")
			}
			return withPageStore(ctx, c, func(cfg *config.Config, store *pages.PostgresStore) error {
				if err := store.Delete(ctx, id); err != nil {
					return err
				}
				notifyChange(ctx, cfg, id, pages.ChangeDeleted)
				fmt.Fprintln(os.Stdout, okStyle.Render("removed page "+id))
				return nil
			})
		},
	}
}

// withPageStore opens the PostgreSQL page store, migrated, for fn.
func withPageStore(ctx context.Context, c *cli.Command, fn func(*config.Config, *pages.PostgresStore) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	store := pages.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return fn(cfg, store)
}

// notifyChange publishes a page-change event when Kafka is configured. The
// store write has already happened, so a failure is only logged.
func notifyChange(ctx context.Context, cfg *config.Config, id string, action pages.ChangeAction) {
	if len(cfg.Kafka.Brokers) == 0 {
		return
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageChanges)
	defer producer.Close()
	if err := pages.NewNotifier(producer).PageChanged(ctx, id, action); err != nil {
		slog.Warn("page stored but change event not published", "page_id", id, "action", action, "error", err)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(logger.New(os.Stderr, c.String("log-level"), "text"))
	return cfg, nil
}

// openService loads the page set and builds the index in-process.
func openService(ctx context.Context, c *cli.Command) (*searcher.Service, *config.Config, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	var store pages.Store
	closeFn := func() {}
	switch cfg.Pages.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store = pages.NewPostgresStore(db)
		closeFn = func() { db.Close() }
	default:
		store = pages.NewCatalogStore(cfg.Pages.CatalogPath)
	}

	svc := searcher.NewService(store, searcher.ServiceConfig{
		Options: searcher.Options{
			MaxResults:    cfg.Search.MaxResults,
			SnippetLength: cfg.Search.SnippetLength,
			Stemming:      cfg.Search.Stemming,
		},
		Timeout: cfg.Search.Timeout,
	})
	if _, err := svc.Rebuild(ctx); err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return svc, cfg, closeFn, nil
}

func audience(c *cli.Command, cfg *config.Config) pages.Audience {
	if c.Bool("member") {
		return pages.AudienceMember
	}
	return pages.ParseAudience(cfg.Search.DefaultAudience)
}

// Searcher is the part of *searcher.Service the console uses.
type Searcher interface {
	Search(ctx context.Context, audience pages.Audience, query string, limit int) (*searcher.Outcome, error)
}

// runConsole reads one query per line from in and writes results to out.
// Invalid queries are reported and the loop continues.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, svc Searcher, aud pages.Audience) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("Enter your search query: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := scanner.Text()
		switch strings.TrimSpace(query) {
		case "exit", "quit":
			return nil
		}

		outcome, err := svc.Search(ctx, aud, query, 0)
		if err != nil {
			if !isQueryError(err) {
				return err
			}
			renderQueryError(out, err)
			continue
		}
		renderOutcome(out, outcome)
	}
}

func isQueryError(err error) bool {
	return errors.Is(err, apperrors.ErrEmptyQuery) || errors.Is(err, apperrors.ErrMalformedQuery)
}

// resolveContentPath makes a --file argument absolute. The searcher reads
// the file from its own working directory, not the caller's.
func resolveContentPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving content path %s: %w", path, err)
	}
	return abs, nil
}
