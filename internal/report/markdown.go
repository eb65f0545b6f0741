package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/passivescan/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := summaryOf(report)

	w.writeHeader(md, report)
	w.writeSummary(md, summary)
	w.writeOutcomes(md, report)
	w.writeOrigins(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("Passive Event Listener Report")
	md.PlainText("")

	rows := [][]string{
		{"Page", "`" + report.PageURL + "`"},
		{"Snapshot", "`" + report.Source + "`"},
	}
	if report.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + report.RunID + "`"})
	}
	rows = append(rows,
		[]string{"Audited", report.DateAudited.Format("2006-01-02 15:04:05 MST")},
		[]string{"Status", statusText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the outcome table, pie chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Audits"},
		Rows: [][]string{
			{"✅ Pass", strconv.Itoa(summary.Passed)},
			{"❌ Fail", strconv.Itoa(summary.Failed)},
			{"⏸️ Not run", strconv.Itoa(summary.NotRun)},
			{"**Violations**", "**" + strconv.Itoa(summary.Violations) + "**"},
		},
	})
	md.PlainText("")

	if summary.Total() > 0 {
		w.writePieChart(md, summary)
	}

	switch {
	case summary.Failed > 0:
		md.Warningf("%d audit(s) failed with %d violation(s).", summary.Failed, summary.Violations)
	case summary.NotRun > 0:
		md.Note("Some audits could not run because their artifacts were missing.")
	default:
		md.Tip("All audits passed.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of audit status.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Audit Status"),
		piechart.WithShowData(true),
	)

	if summary.Passed > 0 {
		chart.LabelAndIntValue("Pass", uint64(summary.Passed))
	}
	if summary.Failed > 0 {
		chart.LabelAndIntValue("Fail", uint64(summary.Failed))
	}
	if summary.NotRun > 0 {
		chart.LabelAndIntValue("Not run", uint64(summary.NotRun))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeOutcomes writes each audit under its category heading.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, report *model.Report) {
	md.H2("Audits")
	md.PlainText("")

	if len(report.Outcomes) == 0 {
		md.PlainText("No audits were run.")
		md.PlainText("")
		return
	}

	for _, group := range groupByCategory(report.Outcomes) {
		md.PlainText("### " + group.category)
		md.PlainText("")
		for _, outcome := range group.outcomes {
			w.writeOutcome(md, outcome)
		}
	}
}

// writeOutcome writes one audit with its violation table.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, outcome model.AuditOutcome) {
	result := outcome.Result
	md.PlainTextf("#### %s `%s`", statusEmoji(result.RawValue), outcome.Meta.Name)
	md.PlainText("")
	if outcome.Meta.Description != "" {
		md.PlainText(outcome.Meta.Description)
		md.PlainText("")
	}
	if result.DebugString != "" {
		md.PlainTextf("*%s*", result.DebugString)
		md.PlainText("")
	}

	violations := result.Violations()
	if len(violations) > 0 {
		rows := make([][]string, len(violations))
		for i, v := range violations {
			rows[i] = []string{
				v.Label,
				truncateString(v.URL, 60),
				"`" + truncateString(v.Code, 80) + "`",
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Location", "Script", "Code"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if outcome.Meta.HelpText != "" {
		md.Details("Learn more", outcome.Meta.HelpText)
		md.PlainText("")
	}
}

// writeOrigins writes the listener origin table.
func (w *MarkdownWriter) writeOrigins(md *markdown.Markdown, report *model.Report) {
	origins := report.Origins
	if origins == nil {
		return
	}

	md.H2("Listener Origins")
	md.PlainText("")

	rows := [][]string{
		{"First-party (`" + origins.PageHost + "`)", strconv.Itoa(origins.FirstParty)},
		{"Third-party", strconv.Itoa(origins.ThirdParty)},
	}
	for _, site := range origins.Sites {
		rows = append(rows, []string{site.Site, strconv.Itoa(site.Listeners)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Origin", "Listeners"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by passivescan*")
}

// statusEmoji returns a status marker for Markdown output.
func statusEmoji(v model.RawValue) string {
	switch v {
	case model.RawValuePass:
		return "✅"
	case model.RawValueFail:
		return "❌"
	default:
		return "⏸️"
	}
}
