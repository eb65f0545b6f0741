package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/passivescan/internal/config"
	"github.com/nao1215/passivescan/internal/database"
	"github.com/nao1215/passivescan/internal/model"
	"github.com/nao1215/passivescan/internal/report"
	"github.com/spf13/cobra"
)

// sinceLayout is the date format accepted by --since.
const sinceLayout = "2006-01-02"

// compareOptions holds the parsed compare flags.
type compareOptions struct {
	pageURL   string
	list      bool
	listPages bool
	withRunID string
	withID    int64
	since     string
	format    report.Format
}

// NewCompareCmd creates the compare command.
// It compares stored runs of a page from the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [page-url]",
		Short: "Compare audit results with earlier runs",
		Long: `Compare shows how a page's violations changed between stored runs.

The latest run of the page is compared with the run before it, or with the
run selected by --with-run-id, --with-id or --since. The output lists
violations that appeared and violations that were resolved.

Use 'passivescan audit' to create runs. The page URL is the final URL
recorded in the snapshot; --list-pages shows the stored URLs.

Examples:
  # Compare the latest two runs of a page
  passivescan compare https://example.com/

  # List run history for a page
  passivescan compare --list https://example.com/

  # Compare with a specific run
  passivescan compare --with-run-id 0b6c... https://example.com/

  # Compare with the first run on or after a date
  passivescan compare --since 2026-01-01 https://example.com/

  # List all audited pages
  passivescan compare --list-pages`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified page")
	cmd.Flags().BoolP("list-pages", "L", false,
		"List all audited pages in the database")

	cmd.Flags().StringP("with-run-id", "r", "",
		"Compare with the run that has this run ID")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare with the run that has this database ID (see --list)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// parseCompareOptions reads and validates the compare flags.
func parseCompareOptions(cmd *cobra.Command, args []string) (compareOptions, error) {
	var opts compareOptions
	var err error

	if opts.listPages, err = cmd.Flags().GetBool("list-pages"); err != nil {
		return opts, err
	}
	if opts.list, err = cmd.Flags().GetBool("list"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = cmd.Flags().GetString("with-run-id"); err != nil {
		return opts, err
	}
	if opts.withID, err = cmd.Flags().GetInt64("with-id"); err != nil {
		return opts, err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return opts, err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return opts, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return opts, err
	}
	switch {
	case jsonOutput && markdownOutput:
		return opts, config.ErrConflictingReportFormats
	case jsonOutput:
		opts.format = report.FormatJSON
	case markdownOutput:
		opts.format = report.FormatMarkdown
	default:
		opts.format = report.FormatText
	}

	selectors := 0
	for _, set := range []bool{opts.withRunID != "", opts.withID != 0, opts.since != ""} {
		if set {
			selectors++
		}
	}
	if selectors > 1 {
		return opts, errors.New("--with-run-id, --with-id and --since are mutually exclusive")
	}

	if opts.listPages {
		return opts, nil
	}
	if len(args) == 0 {
		return opts, errors.New("page URL is required (use --list-pages to see audited pages)")
	}
	opts.pageURL = args[0]
	return opts, nil
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Arguments are checked before the database is opened.
	opts, err := parseCompareOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runCompare(context.Background(), db, opts, cmd.OutOrStdout())
}

// runCompare dispatches to listing or comparison.
func runCompare(ctx context.Context, db *database.AuditDB, opts compareOptions, out io.Writer) error {
	if opts.listPages {
		return listAuditedPages(ctx, db, out)
	}
	if opts.list {
		return listRunHistory(ctx, db, opts.pageURL, out)
	}
	return runComparison(ctx, db, opts, out)
}

// listAuditedPages lists all pages that have runs in the database.
func listAuditedPages(ctx context.Context, db *database.AuditDB, out io.Writer) error {
	pages, err := db.ListAuditedPages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	if len(pages) == 0 {
		fmt.Fprintln(out, "No audited pages found in the database.")
		fmt.Fprintln(out, "\nUse 'passivescan audit <snapshot>' to audit a page.")
		return nil
	}

	fmt.Fprintf(out, "Audited pages (%d):\n\n", len(pages))
	for _, page := range pages {
		fmt.Fprintf(out, "  • %s\n", page)
	}
	fmt.Fprintln(out, "\nUse 'passivescan compare --list <page-url>' to see run history for a page.")

	return nil
}

// listRunHistory lists all runs stored for a page.
func listRunHistory(ctx context.Context, db *database.AuditDB, pageURL string, out io.Writer) error {
	runs, err := db.HistoryWithMetadata(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", pageURL)
		fmt.Fprintln(out, "\nUse 'passivescan audit' to audit this page.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", pageURL, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-36s  %s\n", "ID", "Date", "Run ID", "Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-36s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.RunID,
			formatRunSummary(meta.Summary),
		)
	}

	fmt.Fprintln(out, "\nUse 'passivescan compare <page-url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'passivescan compare --with-id <id> <page-url>' to compare with a specific run.")

	return nil
}

// formatRunSummary formats outcome counts for history listings.
func formatRunSummary(s model.Summary) string {
	if s.Total() == 0 {
		return "No audits"
	}

	parts := []string{fmt.Sprintf("pass:%d", s.Passed), fmt.Sprintf("fail:%d", s.Failed)}
	if s.NotRun > 0 {
		parts = append(parts, fmt.Sprintf("not-run:%d", s.NotRun))
	}
	parts = append(parts, fmt.Sprintf("violations:%d", s.Violations))
	return strings.Join(parts, " ")
}

// runComparison compares the latest run of a page with an earlier one.
func runComparison(ctx context.Context, db *database.AuditDB, opts compareOptions, out io.Writer) error {
	reports, err := db.ReportHistory(ctx, opts.pageURL)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no run history found for %s", opts.pageURL)
	}

	current := reports[0]
	previous, err := selectPrevious(ctx, db, opts, reports)
	if err != nil {
		return err
	}

	return report.WriteComparison(out, report.Compare(previous, current), opts.format)
}

// selectPrevious picks the run to compare the latest run against.
// reports is the page's history, newest first.
func selectPrevious(ctx context.Context, db *database.AuditDB, opts compareOptions, reports []*model.Report) (*model.Report, error) {
	current := reports[0]

	var previous *model.Report
	switch {
	case opts.withRunID != "":
		r, err := db.GetReportByRunID(ctx, opts.withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run %s: %w", opts.withRunID, err)
		}
		if r == nil {
			return nil, fmt.Errorf("run %s not found", opts.withRunID)
		}
		previous = r
	case opts.withID != 0:
		r, err := db.GetReportByID(ctx, opts.withID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", opts.withID, err)
		}
		if r == nil {
			return nil, fmt.Errorf("run with ID %d not found", opts.withID)
		}
		previous = r
	case opts.since != "":
		sinceDate, err := time.ParseInLocation(sinceLayout, opts.since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Oldest matching run first.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateAudited.Before(sinceDate) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("no runs found since %s", opts.since)
		}
	default:
		if len(reports) < 2 {
			return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
		}
		return reports[1], nil
	}

	if previous.PageURL != current.PageURL {
		return nil, fmt.Errorf("run %s belongs to %s, not %s", previous.RunID, previous.PageURL, current.PageURL)
	}
	if previous.RunID == current.RunID {
		return nil, errors.New("the selected run is the latest run; at least 2 runs are required for comparison")
	}
	return previous, nil
}
