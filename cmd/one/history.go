package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dan-solli/one/pkg/history"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var opts history.ListOptions
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded generation calls",
		Long: `History lists calls recorded in the database given by --history,
ONE_HISTORY_PATH or history_path in the config file. Prompts and replies are
never stored; only a SHA-256 of each prompt is kept. Pass an ID to
"one trace" to see the call's stage timings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Get().HistoryPath
			if path == "" {
				return errors.New("no history database: set --history or ONE_HISTORY_PATH")
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			if since > 0 {
				opts.Since = time.Now().Add(-since)
			}
			entries, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no calls recorded")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries))
			return err
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.Limit, "limit", "n", history.DefaultListLimit, "maximum entries to show")
	flags.StringVar(&opts.Provider, "provider-filter", "", "only show calls to this provider")
	flags.StringVar(&opts.Status, "status", "", "only show success or error calls")
	flags.DurationVar(&since, "since", 0, "only show calls newer than this, e.g. 24h")
	return cmd
}

func historyTable(entries []history.Entry) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.Separator = "  "
	table.AddRow("ID", "TIME", "PROVIDER", "MODEL", "MODE", "STATUS", "MS", "SCHEMA", "ERROR")
	for _, e := range entries {
		table.AddRow(
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			e.Provider,
			e.Model,
			e.Mode,
			e.Status,
			e.DurationMs,
			e.SchemaName,
			e.ErrorType,
		)
	}
	return table
}
