// Command reconkg is the CLI surface over the attack-data knowledge engine:
// a thin cobra-based adapter onto internal/facade, printing one JSON
// document per invocation, in the teacher's bd-examples command layout
// (global flags, one subcommand file per verb).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reconkg/engine/internal/config"
	"github.com/reconkg/engine/internal/facade"
	"github.com/reconkg/engine/internal/graphstore"
)

var (
	dbPath     string
	configPath string
	jsonPretty bool

	rootEngine *facade.Engine
	rootStore  *graphstore.Store
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reconkg",
		Short: "Attack-data knowledge engine: property graph, bounded traversal, and Datalog over recon facts",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return openEngine(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rootStore != nil {
				_ = rootStore.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "reconkg.db", "path to the sqlite database file")
	root.PersistentFlags().StringVar(&configPath, "config", config.FileName, "path to reconkg.yaml")
	root.PersistentFlags().BoolVar(&jsonPretty, "pretty", false, "pretty-print JSON output")

	root.AddCommand(
		newMigrateCmd(),
		newNodeCmd(),
		newEdgeCmd(),
		newTraverseCmd(),
		newPresetCmd(),
		newDatalogCmd(),
		newRulesCmd(),
		newStatsCmd(),
	)
	return root
}

func openEngine(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "reconkg.db" {
		cfg.Database = dbPath
	}

	opts := &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	store, err := graphstore.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	rootStore = store
	rootEngine = facade.NewEngine(store)
	return nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// dispatch runs one facade operation and prints its Response as JSON,
// returning a non-nil error (already printed) when the Response reports
// isError, so cobra exits non-zero without a second error line.
func dispatch(cmd *cobra.Command, operation string, args any) error {
	d := facade.NewDispatcher()
	rootEngine.RegisterAll(d)

	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	resp := d.Dispatch(cmd.Context(), facade.Request{Operation: operation, Args: raw})
	printResponse(cmd, resp)
	if resp.IsError {
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}

func printResponse(cmd *cobra.Command, resp facade.Response) {
	var out []byte
	var err error
	if jsonPretty {
		out, err = json.MarshalIndent(resp, "", "  ")
	} else {
		out, err = json.Marshal(resp)
	}
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), `{"isError":true,"message":%q}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
