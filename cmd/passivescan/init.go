package main

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/passivescan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/passivescan.yaml
var configTemplate embed.FS

// templatePath is the embedded configuration template.
const templatePath = "templates/passivescan.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new passivescan configuration file",
		Long: `Initialize creates a new .passivescan configuration file in the current directory.

The generated file documents the default report format, the
failOnViolation switch and the list of disabled audits.

Examples:
  # Create .passivescan in current directory
  passivescan init

  # Create config file at a specific path
  passivescan init -o ci/passivescan.yaml

  # Force overwrite existing file
  passivescan init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	return writeConfigTemplate(cmd.OutOrStdout(), outputPath, force)
}

// writeConfigTemplate writes the embedded template to outputPath.
func writeConfigTemplate(out io.Writer, outputPath string, force bool) error {
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to set the default report format or disable audits.")

	return nil
}
