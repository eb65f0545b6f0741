package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for passivescan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passivescan",
		Short: "Audit page snapshots for non-passive scroll-blocking listeners",
		Long: `passivescan checks captured page snapshots for touch and wheel event
listeners that block scrolling. A listener is reported when it was registered
by a script on the page's own host, was not marked passive, and never calls
preventDefault().

Snapshots are JSON files holding the URL and PageLevelEventListeners
artifacts recorded by a browser gatherer. Results are stored locally so later
runs can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewAuditsCmd())
	cmd.AddCommand(NewGUIDCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
