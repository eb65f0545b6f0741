package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/passivescan/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// codePreviewLength is how much of a violation's code is shown without verbose.
const codePreviewLength = 100

// TextWriter outputs human-readable text reports.
// Audits are grouped by category, each violation listed with its location
// and reconstructed addEventListener call.
type TextWriter struct {
	baseWriter

	// verbose adds help text and untruncated code.
	verbose bool

	// heading renders category headings.
	heading cases.Caser
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		heading:    cases.Upper(language.English),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *TextWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeOutcomes(&sb, report)
	w.writeOrigins(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeRule writes a titled section separator.
func writeRule(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *TextWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                    PASSIVE EVENT LISTENER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Page:     %s\n", report.PageURL)
	fmt.Fprintf(sb, "Snapshot: %s\n", report.Source)
	if report.RunID != "" {
		fmt.Fprintf(sb, "Run ID:   %s\n", report.RunID)
	}
	fmt.Fprintf(sb, "Audited:  %s\n", report.DateAudited.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:   %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the outcome counts.
func (w *TextWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	summary := summaryOf(report)

	writeRule(sb, "SUMMARY")
	fmt.Fprintf(sb, "  PASS:       %d\n", summary.Passed)
	fmt.Fprintf(sb, "  FAIL:       %d\n", summary.Failed)
	fmt.Fprintf(sb, "  NOT RUN:    %d\n", summary.NotRun)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  VIOLATIONS: %d\n", summary.Violations)
	sb.WriteString("\n")
}

// writeOutcomes writes each audit under its category heading.
func (w *TextWriter) writeOutcomes(sb *strings.Builder, report *model.Report) {
	for _, group := range groupByCategory(report.Outcomes) {
		writeRule(sb, w.heading.String(group.category))
		for _, outcome := range group.outcomes {
			w.writeOutcome(sb, outcome)
		}
	}
}

// writeOutcome writes a single audit result.
func (w *TextWriter) writeOutcome(sb *strings.Builder, outcome model.AuditOutcome) {
	result := outcome.Result
	fmt.Fprintf(sb, "[%s] %s\n", result.RawValue, outcome.Meta.Name)
	if outcome.Meta.Description != "" {
		fmt.Fprintf(sb, "  %s\n", outcome.Meta.Description)
	}
	if result.DebugString != "" {
		fmt.Fprintf(sb, "  Reason: %s\n", result.DebugString)
	}
	if w.verbose && outcome.Meta.HelpText != "" {
		fmt.Fprintf(sb, "  Help: %s\n", outcome.Meta.HelpText)
	}

	for _, v := range result.Violations() {
		code := v.Code
		if !w.verbose {
			code = truncateString(code, codePreviewLength)
		}
		fmt.Fprintf(sb, "  * %s  %s\n", v.Label, v.URL)
		fmt.Fprintf(sb, "    %s\n", code)
	}
	sb.WriteString("\n")
}

// writeOrigins writes the listener origin breakdown.
func (w *TextWriter) writeOrigins(sb *strings.Builder, report *model.Report) {
	origins := report.Origins
	if origins == nil {
		return
	}

	writeRule(sb, "LISTENER ORIGINS")
	fmt.Fprintf(sb, "  Page host:    %s\n", origins.PageHost)
	fmt.Fprintf(sb, "  First-party:  %d\n", origins.FirstParty)
	fmt.Fprintf(sb, "  Third-party:  %d\n", origins.ThirdParty)
	if len(origins.Sites) > 0 {
		sb.WriteString("\n")
		for _, site := range origins.Sites {
			fmt.Fprintf(sb, "  %-40s %d\n", site.Site, site.Listeners)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by passivescan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// categoryGroup holds the outcomes of one category.
type categoryGroup struct {
	category string
	outcomes []model.AuditOutcome
}

// groupByCategory groups outcomes by category, keeping first-seen order.
func groupByCategory(outcomes []model.AuditOutcome) []categoryGroup {
	var groups []categoryGroup
	index := make(map[string]int)

	for _, o := range outcomes {
		category := o.Meta.Category
		if category == "" {
			category = "Other"
		}
		i, ok := index[category]
		if !ok {
			i = len(groups)
			index[category] = i
			groups = append(groups, categoryGroup{category: category})
		}
		groups[i].outcomes = append(groups[i].outcomes, o)
	}
	return groups
}
