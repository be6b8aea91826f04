package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/errors"
	"github.com/Mk007V2/timecapsule/internal/mail"
	"github.com/Mk007V2/timecapsule/internal/ops"
	"github.com/Mk007V2/timecapsule/internal/sweep"
	"github.com/Mk007V2/timecapsule/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, store *attach.Store, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "timecapsule",
		Usage:   "Schedule emails for future delivery",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(db, store, cfg),
			sweepCmd(db, store, cfg),
			createCmd(db, store, cfg),
			listCmd(db),
			showCmd(db),
			deleteCmd(db, store),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command: HTTP server plus the delivery sweep.
func serveCmd(db *sql.DB, store *attach.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server and the delivery sweep",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8025, Usage: "Port to listen on"},
			&cli.BoolFlag{Name: "no-sweep", Usage: "Serve the API without delivering capsules"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if !c.Bool("no-sweep") {
				sender := mail.NewSMTPSender(cfg.Mail)
				sweeper := sweep.New(db, sender, store, cfg)
				go sweeper.Run(ctx)
			}

			srv := web.NewServer(db, store, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// sweepCmd creates the sweep command: one delivery pass, report on stdout.
func sweepCmd(db *sql.DB, store *attach.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run a single delivery pass over due capsules",
		Action: func(c *cli.Context) error {
			sender := mail.NewSMTPSender(cfg.Mail)
			sweeper := sweep.New(db, sender, store, cfg)

			report, err := sweeper.SweepOnce(c.Context)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"due":     report.Due,
				"sent":    report.Sent,
				"failed":  report.Failed,
				"skipped": report.Skipped,
			})
		},
	}
}

// createCmd creates the create command.
func createCmd(db *sql.DB, store *attach.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Schedule a capsule (reads the body from stdin if --body is omitted)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Required: true, Usage: "Recipient email address"},
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Required: true, Usage: "Email subject"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Email body"},
			&cli.StringFlag{Name: "send-at", Required: true, Usage: "Delivery time: Unix timestamp or RFC 3339"},
			&cli.StringFlag{Name: "attach", Aliases: []string{"a"}, Usage: "Path to a file to attach"},
		},
		Action: func(c *cli.Context) error {
			body := c.String("body")
			if body == "" {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("body must be given via --body or piped on stdin"))
				}
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				body = text
			}

			sendAt, err := parseSendAt(c.String("send-at"))
			if err != nil {
				return outputError(err)
			}

			input := ops.CreateInput{
				RecipientEmail: c.String("to"),
				Subject:        c.String("subject"),
				Body:           body,
				SendAt:         sendAt,
			}

			if path := c.String("attach"); path != "" {
				content, err := os.ReadFile(path)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("cannot read attachment: %v", err)))
				}
				input.Attachment = &ops.AttachmentInput{
					Filename: filepath.Base(path),
					Content:  content,
				}
			}

			output, err := ops.Create(c.Context, db, store, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List capsules newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Page size"},
			&cli.IntFlag{Name: "offset", Usage: "Number of items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a capsule by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("capsule ID is required"))
			}

			output, err := ops.Fetch(c.Context, db, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB, store *attach.Store) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a capsule (cancels delivery if still pending)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("capsule ID is required"))
			}

			output, err := ops.Delete(c.Context, db, store, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// parseSendAt accepts a Unix timestamp or an RFC 3339 time.
func parseSendAt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewInvalidRequest("send-at is required")
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.Unix(), nil
	}
	return 0, errors.NewInvalidRequest("send-at must be a Unix timestamp or RFC 3339 time")
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.CapsuleError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
