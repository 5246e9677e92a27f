package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/dan-solli/one/pkg/history"
	"github.com/dan-solli/one/pkg/one"
	"github.com/dan-solli/one/pkg/trace"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type generateFlags struct {
	fields     []string
	schemaName string
	extra      []string
	showTrace  bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var gf generateFlags

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate free text or structured JSON",
		Long: `Generate sends the prompt (the argument, or stdin when it is absent or "-")
and prints the reply.

With one or more --field flags the reply is JSON validated against the schema
they describe:

  one generate "Extract: John Smith is 30" --field name:string --field age:integer
  one generate "..." --field tags:string[] --field level:string=low|high --field note:string?`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, args, gf)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&gf.fields, "field", "f", nil, "schema field name:type[][?][=a|b] (repeatable)")
	flags.StringVar(&gf.schemaName, "schema-name", "response", "name of the generated schema")
	flags.StringArrayVar(&gf.extra, "extra", nil, "backend option key=value, value parsed as JSON when possible (repeatable)")
	flags.BoolVar(&gf.showTrace, "show-trace", false, "print per-stage timings to stderr")
	flags.Float64P("temperature", "t", 0, "sampling temperature within [0, 2] (default 0.7)")
	flags.Int("max-tokens", 0, "reply length cap")
	flags.String("system", "", "system prompt")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, args []string, gf generateFlags) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	opts := a.cfg.GenerateOptions()
	if len(gf.fields) > 0 {
		d, err := parseFields(gf.schemaName, gf.fields)
		if err != nil {
			return err
		}
		opts = append(opts, one.WithSchema(d))
	}
	if len(gf.extra) > 0 {
		extra, err := parseExtra(gf.extra)
		if err != nil {
			return err
		}
		opts = append(opts, one.WithExtra(extra))
	}

	settings := a.cfg.Get()
	cfg := a.cfg.ModelConfig()
	cfg.TraceEnabled = cfg.TraceEnabled || gf.showTrace

	if settings.TracePath != "" {
		if !trace.Enabled {
			ancli.PrintWarn("trace file ignored: built without -tags tracing\n")
		}
		var traceOpts []trace.FileExporterOption
		if settings.TracePartition {
			traceOpts = append(traceOpts, trace.WithProviderPartitions())
		}
		exporter, err := trace.NewFileExporter(settings.TracePath, traceOpts...)
		if err != nil {
			return err
		}
		defer exporter.Close()
		cfg.TraceExporter = exporter
	}

	if settings.HistoryPath != "" {
		store, err := history.Open(settings.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		cfg.History = store
	}

	m, err := one.New(cfg)
	if err != nil {
		return err
	}
	m.WithLogger(a.logger())

	res, err := m.Generate(cmd.Context(), prompt, opts...)
	if err != nil {
		return describeError(err)
	}

	if gf.showTrace && res.Trace != nil {
		fmt.Fprint(cmd.ErrOrStderr(), traceTable(res.Trace))
	}
	return printResult(cmd.OutOrStdout(), res)
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	return string(b), nil
}

func parseExtra(pairs []string) (map[string]any, error) {
	extra := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("extra %q: want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		extra[key] = v
	}
	return extra, nil
}

func printResult(w io.Writer, res *one.Result) error {
	if res.Raw == nil {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, res.Raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func traceTable(tr *one.OperationTrace) string {
	table := uitable.New()
	table.Separator = "  "
	table.AddRow("STAGE", "MS", "OK", "ERROR")
	for _, span := range tr.Spans {
		table.AddRow(span.Name, span.DurationMs, span.OK, span.ErrorType)
	}
	table.AddRow("total", tr.TotalDurationMs, "", "")
	return table.String() + "\n"
}

// describeError puts each schema violation on its own line.
func describeError(err error) error {
	var ve *one.ValidationError
	if !errors.As(err, &ve) || len(ve.Violations) < 2 {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "reply does not match schema %q:", ve.Schema)
	for _, v := range ve.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return errors.New(b.String())
}
