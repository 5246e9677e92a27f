package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/dan-solli/one/pkg/config"
	"github.com/spf13/cobra"
)

// app carries state shared by subcommands once flags are parsed.
type app struct {
	cfg   *config.Config
	debug bool
}

// flagKeys maps command-line flags onto config keys. Flags win over the
// environment and the config file when set.
var flagKeys = map[string]string{
	"model":             "model",
	"provider":          "provider",
	"timeout":           "timeout",
	"history":           "history_path",
	"trace-file":        "trace_path",
	"trace-by-provider": "trace_partition",
	"temperature":       "temperature",
	"max-tokens":        "max_tokens",
	"system":            "system",
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "one",
		Short: "One interface for OpenAI and Anthropic text generation",
		Long: `one sends prompts to OpenAI- or Anthropic-style backends and returns
either free text or JSON validated against a schema built from --field flags.

The backend is detected from the model identifier. Credentials are read from
OPENAI_API_KEY / ANTHROPIC_API_KEY, ONE_* variables or the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (YAML, JSON or TOML)")
	flags.StringP("model", "m", "", "model identifier (default gpt-4o-mini)")
	flags.String("provider", "", "provider override: openai or anthropic")
	flags.Duration("timeout", 0, "request timeout (default 60s)")
	flags.String("history", "", "SQLite database recording call metadata")
	flags.String("trace-file", "", "JSON Lines trace file (writing needs a build with -tags tracing)")
	flags.Bool("trace-by-provider", false, "write one trace file per provider next to --trace-file")
	flags.BoolVar(&a.debug, "debug", false, "log debug output to stderr")

	cmd.AddCommand(
		newGenerateCmd(a),
		newDetectCmd(),
		newHistoryCmd(a),
		newTraceCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	v := cfg.Viper()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	if err := cfg.Refresh(); err != nil {
		return err
	}

	a.cfg = cfg
	a.debug = a.debug || misc.Truthy(os.Getenv("DEBUG"))
	return nil
}

// logger returns nil unless debug output was requested.
func (a *app) logger() *slog.Logger {
	if !a.debug {
		return nil
	}
	return slog.Default()
}
