package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/passivescan/internal/guid"
	"github.com/spf13/cobra"
)

// NewGUIDCmd creates the guid command.
func NewGUIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guid",
		Short: "Print identifiers from the allocator",
		Long: `Guid prints identifiers from the allocator used to tag audit outcomes.

Simple identifiers count up from 1 and are unique within one process.
Random identifiers (--uuid) are version 4 UUIDs.

Examples:
  passivescan guid
  passivescan guid -n 3
  passivescan guid --uuid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, err := cmd.Flags().GetInt("count")
			if err != nil {
				return err
			}
			random, err := cmd.Flags().GetBool("uuid")
			if err != nil {
				return err
			}
			return printIDs(cmd.OutOrStdout(), guid.NewAllocator(), count, random)
		},
	}

	cmd.Flags().IntP("count", "n", 1, "Number of identifiers to print")
	cmd.Flags().BoolP("uuid", "u", false, "Print random UUIDs instead of simple identifiers")

	return cmd
}

// printIDs writes count identifiers from a, one per line.
func printIDs(out io.Writer, a *guid.Allocator, count int, random bool) error {
	if count <= 0 {
		return errors.New("count must be positive")
	}
	for range count {
		if random {
			fmt.Fprintln(out, a.AllocateUUID4())
			continue
		}
		fmt.Fprintln(out, a.AllocateSimple())
	}
	return nil
}
