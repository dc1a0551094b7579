package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
)

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Manage member API keys",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Issue a key for a member",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "member", Usage: "Member name forwarded to the search service", Required: true},
					&cli.IntFlag{Name: "rate-limit", Usage: "Requests per rate window", Value: 120},
					&cli.DurationFlag{Name: "expires-in", Usage: "Expiry, e.g. 720h (optional)"},
					&cli.BoolFlag{Name: "admin", Usage: "Allow the admin API"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withValidator(ctx, c, func(v *apikey.Validator) error {
						req := apikey.NewKey{
							Member:    c.String("member"),
							Admin:     c.Bool("admin"),
							RateLimit: c.Int("rate-limit"),
						}
						if d := c.Duration("expires-in"); d > 0 {
							t := time.Now().Add(d).UTC()
							req.ExpiresAt = &t
						}
						raw, info, err := v.CreateKey(ctx, req)
						if err != nil {
							return err
						}
						fmt.Println(okStyle.Render("API key created for " + info.Member))
						fmt.Printf("  id:  %s\n", info.ID)
						fmt.Printf("  key: %s\n", raw)
						fmt.Println(metaStyle.Render("Store this key securely, it cannot be retrieved again."))
						return nil
					})
				},
			},
			{
				Name:      "revoke",
				Usage:     "Deactivate a key by id",
				ArgsUsage: "<key-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("key id is required")
					}
					return withValidator(ctx, c, func(v *apikey.Validator) error {
						if err := v.RevokeKey(ctx, id); err != nil {
							return err
						}
						fmt.Println(okStyle.Render("revoked " + id))
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "List active keys",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withValidator(ctx, c, func(v *apikey.Validator) error {
						keys, err := v.ListKeys(ctx)
						if err != nil {
							return err
						}
						renderKeys(os.Stdout, keys)
						return nil
					})
				},
			},
		},
	}
}

func withValidator(ctx context.Context, c *cli.Command, fn func(v *apikey.Validator) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	v := apikey.NewValidator(db)
	if err := v.Migrate(ctx); err != nil {
		return err
	}
	return fn(v)
}
