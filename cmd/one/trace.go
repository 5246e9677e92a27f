package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dan-solli/one/pkg/trace"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newTraceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <operation-id>",
		Short: "Show the recorded stages of one call",
		Long: `Trace looks up a call by the ID shown in "one history" in the file given by
--trace-file, its provider partitions and their rotated copies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Get().TracePath
			if path == "" {
				return errors.New("no trace file: set --trace-file or ONE_TRACE_PATH")
			}

			rec, err := trace.FindOperation(path, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), recordTable(rec))
			return err
		},
	}
}

func recordTable(rec *trace.TraceRecord) string {
	summary := uitable.New()
	summary.RightAlign(0)
	summary.Separator = " "
	summary.AddRow("operation:", rec.OperationID)
	summary.AddRow("time:", rec.Timestamp.Local().Format("2006-01-02 15:04:05.000"))
	summary.AddRow("provider:", rec.Provider)
	summary.AddRow("model:", rec.Model)
	summary.AddRow("mode:", rec.Mode)
	if rec.SchemaName != "" {
		summary.AddRow("schema:", rec.SchemaName)
	}
	summary.AddRow("status:", rec.Status)
	if rec.ErrorType != "" {
		summary.AddRow("error:", rec.ErrorType)
	}
	summary.AddRow("total ms:", rec.DurationMs)

	spans := uitable.New()
	spans.Separator = "  "
	spans.AddRow("STAGE", "MS", "OK", "ERROR", "COUNTERS")
	for _, s := range rec.Spans {
		spans.AddRow(s.Name, s.DurationMs, s.OK, s.ErrorType, formatCounters(s.Counters))
	}
	return summary.String() + "\n\n" + spans.String() + "\n"
}

func formatCounters(counters map[string]int64) string {
	if len(counters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counters[k])
	}
	return strings.Join(parts, " ")
}
