package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cortex/internal/config"
	"github.com/hpungsan/cortex/internal/diagnose"
	"github.com/hpungsan/cortex/internal/errors"
	"github.com/hpungsan/cortex/internal/relay"
	"github.com/hpungsan/cortex/internal/store"
	"github.com/hpungsan/cortex/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "cortex",
		Usage:   "Browser bug capture relay",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(cfg),
			webCmd(cfg),
			listCmd(cfg),
			showCmd(cfg),
			latestCmd(cfg),
			diagnosisCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command: the relay daemon.
func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the relay daemon that receives capsules from the browser bridge",
		Action: func(c *cli.Context) error {
			st := store.New(cfg.DataDir)
			diagnoser := diagnose.New(cfg)
			srv := relay.NewServer(cfg, st, diagnoser)

			printPairingBanner(cfg)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// webCmd creates the web command: the read-only capsule viewer.
func webCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Run the read-only capsule viewer",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Viewer port (default from CORTEX_WEB_PORT)"},
		},
		Action: func(c *cli.Context) error {
			port := cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			st := store.New(cfg.DataDir)
			srv := web.NewServer(st, Version, cfg.Host, port)
			if err := web.Run(srv); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List captured capsule IDs (newest first)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: store.DefaultListLimit, Usage: "Maximum IDs to return"},
		},
		Action: func(c *cli.Context) error {
			st := store.New(cfg.DataDir)
			ids, err := st.ListRecentIDs(c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"ids": ids})
		},
	}
}

// showCmd creates the show command.
func showCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a capsule by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("capsule ID is required"))
			}
			st := store.New(cfg.DataDir)
			caps, err := st.Get(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(caps)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recently captured capsule",
		Action: func(c *cli.Context) error {
			st := store.New(cfg.DataDir)
			ids, err := st.ListRecentIDs(1)
			if err != nil {
				return outputError(err)
			}
			if len(ids) == 0 {
				return outputError(errors.NewNotFound("no capsules found"))
			}
			caps, err := st.Get(ids[0])
			if err != nil {
				return outputError(err)
			}
			return outputJSON(caps)
		},
	}
}

// diagnosisCmd creates the diagnosis command.
func diagnosisCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "diagnosis",
		Usage:     "Print the diagnosis text for a capsule (defaults to the latest)",
		ArgsUsage: "[id]",
		Action: func(c *cli.Context) error {
			st := store.New(cfg.DataDir)

			id := c.Args().First()
			if id == "" {
				ids, err := st.ListRecentIDs(1)
				if err != nil {
					return outputError(err)
				}
				if len(ids) == 0 {
					return outputError(errors.NewNotFound("no capsules found"))
				}
				id = ids[0]
			}

			text, err := st.GetDiagnosis(id)
			if err != nil {
				return outputError(err)
			}
			fmt.Println(text)
			return nil
		},
	}
}

// printPairingBanner shows the relay address and auth code the browser
// bridge needs to connect.
func printPairingBanner(cfg *config.Config) {
	fmt.Printf("Cortex relay listening on ws://%s\n", cfg.RelayAddr())
	if cfg.GeneratedAuthCode {
		fmt.Printf("Auth code (generated, set CORTEX_AUTH_CODE to pin it): %s\n", cfg.AuthCode)
	} else {
		fmt.Println("Auth code: configured via CORTEX_AUTH_CODE")
	}
	fmt.Printf("Capsules stored under %s\n", cfg.DataDir)
	if cfg.APIKey == "" {
		fmt.Println("OPENROUTER_API_KEY not set: diagnosis is disabled")
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.CortexError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
