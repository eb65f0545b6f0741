package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/nao1215/passivescan/internal/artifact"
	"github.com/nao1215/passivescan/internal/audit"
	"github.com/nao1215/passivescan/internal/config"
	"github.com/nao1215/passivescan/internal/database"
	plog "github.com/nao1215/passivescan/internal/log"
	"github.com/nao1215/passivescan/internal/model"
	"github.com/nao1215/passivescan/internal/pipeline"
	"github.com/nao1215/passivescan/internal/report"
	"github.com/spf13/cobra"
)

// ErrViolationsFound is returned when --fail is set and an audit failed.
var ErrViolationsFound = errors.New("audit failures found")

// ErrSnapshotsFailed is returned when a snapshot could not be audited.
var ErrSnapshotsFailed = errors.New("snapshots could not be audited")

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [snapshot...]",
		Short: "Audit page snapshots for non-passive scroll-blocking listeners",
		Long: `Audit reads one or more page snapshots and runs every registered audit.

Arguments may be snapshot files, directories (their *.json files are audited
in name order), or "-" to read a snapshot from standard input.

Each run is stored in the history database so that 'passivescan compare'
can show new and resolved violations.

Examples:
  # Audit a single snapshot
  passivescan audit home.json

  # Audit every snapshot in a directory, four at a time
  passivescan audit --batch 4 snapshots/

  # Read a snapshot from a pipe and print JSON
  cat home.json | passivescan audit --json -

  # Fail the build when any audit fails
  passivescan audit --fail snapshots/

Configuration file (.passivescan) example:
  defaults:
    format: markdown
    failOnViolation: true
  audits:
    disabled: []`,
		Args: cobra.ArbitraryArgs,
		RunE: runAuditCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of snapshots audited concurrently")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time limit for auditing one snapshot (0 disables)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .passivescan in current or home directory)")
	cmd.Flags().StringSlice("disable", nil,
		"Audits to skip (repeatable, see 'passivescan audits')")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	cmd.Flags().Bool("no-save", false,
		"Do not store results in the history database")
	cmd.Flags().BoolP("fail", "f", false,
		"Exit with an error when any audit fails")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// runAuditCmd executes the audit command.
func runAuditCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildAuditConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, logJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runAudit(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildAuditConfig creates a Config from cobra command flags and the
// optional configuration file.
func buildAuditConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.DisabledAudits, err = cmd.Flags().GetStringSlice("disable")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	cfg.FailOnViolation, err = cmd.Flags().GetBool("fail")
	if err != nil {
		return nil, err
	}

	// An explicitly named file must exist; the default lookup is optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Inputs = args

	return cfg, nil
}

// setupLogger creates the sanitizing logger used by all commands.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return plog.NewJSONLogger(w, verbose)
	}
	return plog.NewLogger(w, verbose)
}

// reportFormat maps the format flags to a report.Format.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// runAudit audits every snapshot named by cfg.Inputs and writes the reports
// to out (or cfg.ReportFile) in input order.
func runAudit(ctx context.Context, cfg *config.Config, out, errOut io.Writer, logger *slog.Logger) error {
	sources, err := artifact.Collect(cfg.Inputs)
	if err != nil {
		return err
	}

	registry := audit.NewRegistry(
		audit.WithDisabled(cfg.DisabledAudits...),
		audit.WithLogger(logger),
	)
	warnUnknownAudits(cfg.DisabledAudits, logger)

	logger.Info("starting audit",
		"snapshots", len(sources),
		"audits", registry.Len(),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	configOpts := []pipeline.DefaultPipelineOption{}
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
		configOpts = append(configOpts, pipeline.WithPipelineStore(db))
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(registry, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithTimeout(cfg.Timeout),
		pipeline.WithBatchLogger(logger),
	)

	reports, batchErr := bp.ProcessBatch(ctx, sources)

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer, err := report.NewWriter(reportFormat(cfg), output, cfg.Verbose)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Error != nil && len(r.Outcomes) == 0 {
			failed++
			fmt.Fprintf(errOut, "Audit error for %s: %v\n", r.Source, r.Error)
			continue
		}
		if _, err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", r.Source, err)
		}
	}

	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrSnapshotsFailed, failed, len(reports))
	}
	if cfg.FailOnViolation && slices.ContainsFunc(reports, (*model.Report).Failed) {
		return ErrViolationsFound
	}
	return nil
}

// warnUnknownAudits logs disabled names that match no built-in audit.
func warnUnknownAudits(disabled []string, logger *slog.Logger) {
	known := make(map[string]bool)
	for _, a := range audit.BuiltinAudits() {
		known[a.Meta().Name] = true
	}
	for _, name := range disabled {
		if !known[name] {
			logger.Warn("unknown audit in disabled list", "audit", name)
		}
	}
}

// openOutput returns the report destination. An empty path writes to
// fallback; otherwise the file is created with owner-only permissions.
func openOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
