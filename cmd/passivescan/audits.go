package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/passivescan/internal/audit"
	"github.com/nao1215/passivescan/internal/model"
	"github.com/spf13/cobra"
)

// NewAuditsCmd creates the audits command.
func NewAuditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audits",
		Short: "List the registered audits",
		Long: `Audits prints the name, category and required artifacts of every
built-in audit. Names can be passed to 'passivescan audit --disable'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jsonOutput, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			return listAudits(cmd.OutOrStdout(), audit.NewRegistry().Metas(), jsonOutput)
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output audit metadata in JSON format")

	return cmd
}

// listAudits writes audit descriptors as text or JSON.
func listAudits(out io.Writer, metas []model.AuditMeta, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(metas)
	}

	fmt.Fprintf(out, "Registered audits (%d):\n\n", len(metas))
	for _, m := range metas {
		fmt.Fprintf(out, "  %s\n", m.Name)
		fmt.Fprintf(out, "    Category:  %s\n", m.Category)
		fmt.Fprintf(out, "    Title:     %s\n", m.Description)
		fmt.Fprintf(out, "    Artifacts: %s\n", strings.Join(m.RequiredArtifacts, ", "))
	}
	return nil
}
