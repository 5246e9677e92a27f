package main

import (
	"fmt"
	"strings"

	"github.com/dan-solli/one/pkg/llm"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [model]",
		Short: "Show which provider serves a model, or list providers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				_, err := fmt.Fprintln(out, registrationTable(llm.Registrations()))
				return err
			}

			kind, err := llm.Detect(args[0])
			if err != nil {
				return err
			}
			reg, _ := llm.Lookup(kind)

			table := uitable.New()
			table.RightAlign(0)
			table.Separator = " "
			table.AddRow("provider:", string(kind))
			table.AddRow("model:", llm.WireModel(args[0]))
			table.AddRow("base url:", reg.DefaultBaseURL)
			table.AddRow("credential:", reg.CredentialEnv)
			_, err = fmt.Fprintln(out, table)
			return err
		},
	}
}

func registrationTable(regs []llm.Registration) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Separator = "  "
	table.AddRow("PROVIDER", "PREFIXES", "DEFAULT MODEL", "CREDENTIAL")
	for _, r := range regs {
		table.AddRow(string(r.Kind), strings.Join(r.Prefixes, " "), r.DefaultModel, r.CredentialEnv)
	}
	return table
}
