// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"codeberg.org/procclean/reviewgate/internal/app"
	"codeberg.org/procclean/reviewgate/internal/config"
	"codeberg.org/procclean/reviewgate/internal/database"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/server"
	"github.com/urfave/cli/v3"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	return server.Run(ctx, cmd)
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Start the HTTP server",
			Action: serve,
		},
		{
			Name:  "codes",
			Usage: "Manage access codes",
			Commands: []*cli.Command{
				{
					Name:  "generate",
					Usage: "Create random codes",
					Flags: []cli.Flag{
						&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "Number of codes"},
						&cli.StringFlag{Name: "prefix", Usage: "Code prefix"},
						&cli.StringFlag{Name: "label", Usage: "Client label"},
					},
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						res, err := a.Codes.Generate(ctx, int(cmd.Int("count")), cmd.String("prefix"), cmd.String("label"))
						if err != nil {
							return err
						}
						return printJSON(cmd, res)
					}),
				},
				{
					Name:      "import",
					Usage:     "Import codes from a JSON file",
					ArgsUsage: "FILE",
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						raw, err := readInput(cmd)
						if err != nil {
							return err
						}
						res, err := a.Codes.Import(ctx, raw)
						if err != nil {
							return err
						}
						return printJSON(cmd, res)
					}),
				},
				{
					Name:  "list",
					Usage: "List codes",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "status", Value: string(models.CodeAvailable), Usage: "available or used"},
					},
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						list, err := a.Codes.List(ctx, models.CodeStatus(cmd.String("status")))
						if err != nil {
							return err
						}
						if list == nil {
							list = []models.AccessCode{}
						}
						return printJSON(cmd, list)
					}),
				},
			},
		},
		{
			Name:  "reviews",
			Usage: "Manage reviews",
			Commands: []*cli.Command{
				{
					Name:      "import",
					Usage:     "Import reviews from a JSON file",
					ArgsUsage: "FILE",
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						raw, err := readInput(cmd)
						if err != nil {
							return err
						}
						res, err := a.Reviews.Import(ctx, raw)
						if err != nil {
							return err
						}
						return printJSON(cmd, res)
					}),
				},
			},
		},
		{
			Name:  "audit",
			Usage: "Inspect code and review consistency",
			Commands: []*cli.Command{
				{
					Name:  "reconcile",
					Usage: "Record an audit entry for every broken code/review pair",
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						report, err := a.Audit.Reconcile(ctx)
						if err != nil {
							return err
						}
						return printJSON(cmd, report)
					}),
				},
				{
					Name:  "list",
					Usage: "List open audit entries",
					Flags: []cli.Flag{
						&cli.BoolFlag{Name: "all", Usage: "Include resolved entries"},
					},
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						list, err := a.Audit.List(ctx, cmd.Bool("all"))
						if err != nil {
							return err
						}
						if list == nil {
							list = []models.AuditEntry{}
						}
						return printJSON(cmd, list)
					}),
				},
			},
		},
		{
			Name:  "db",
			Usage: "Inspect and roll back the schema",
			Commands: []*cli.Command{
				{
					Name:  "status",
					Usage: "Print the applied schema version",
					Action: withApp(func(_ context.Context, cmd *cli.Command, a *app.App) error {
						return printVersion(cmd, a)
					}),
				},
				{
					Name:  "rollback",
					Usage: "Roll back the last migration",
					Action: withApp(func(_ context.Context, cmd *cli.Command, a *app.App) error {
						if err := database.MigrateDown(a.DB.DB); err != nil {
							return fmt.Errorf("rolling back: %w", err)
						}
						return printVersion(cmd, a)
					}),
				},
			},
		},
		{
			Name:  "admin",
			Usage: "Manage admin accounts",
			Commands: []*cli.Command{
				{
					Name:  "create",
					Usage: "Create an admin account",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "email", Required: true, Usage: "Login e-mail"},
						&cli.StringFlag{Name: "password", Required: true, Usage: "Password", Sources: cli.EnvVars("ADMIN_NEW_PASSWORD")},
					},
					Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
						admin, err := a.Auth.CreateAdmin(ctx, cmd.String("email"), cmd.String("password"))
						if err != nil {
							return err
						}
						return printJSON(cmd, admin)
					}),
				},
			},
		},
	}
}

// withApp opens the database and services for a maintenance command.
func withApp(fn func(ctx context.Context, cmd *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		// Command output goes to stdout, so logs go to stderr.
		server.SetupLogger(cmd.Root().ErrWriter, cfg.Log.Level, cfg.Log.Format)

		a, err := app.Open(cfg)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck // read-mostly command

		return fn(ctx, cmd, a)
	}
}

// readInput reads the file named by the first argument, or stdin for "-"
// or no argument.
func readInput(cmd *cli.Command) ([]byte, error) {
	name := cmd.Args().First()
	if name == "" || name == "-" {
		return io.ReadAll(cmd.Root().Reader)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return raw, nil
}

func printVersion(cmd *cli.Command, a *app.App) error {
	version, err := database.SchemaVersion(a.DB.DB)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	return printJSON(cmd, map[string]int64{"version": version})
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
