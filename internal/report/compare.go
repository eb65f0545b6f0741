package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/passivescan/internal/model"
)

// Direction values of a Comparison.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"
)

// Comparison describes how violations changed between two runs of a page.
type Comparison struct {
	// PageURL is the compared page.
	PageURL string `json:"page_url"`

	// Previous describes the older run.
	Previous RunInfo `json:"previous_run"`

	// Current describes the newer run.
	Current RunInfo `json:"current_run"`

	// NewViolations are present in Current but not in Previous.
	NewViolations []ComparedViolation `json:"new_violations,omitempty"`

	// ResolvedViolations are present in Previous but not in Current.
	ResolvedViolations []ComparedViolation `json:"resolved_violations,omitempty"`

	// UnchangedCount is the number of violations present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Direction is improved, worsened or unchanged.
	Direction string `json:"direction"`
}

// RunInfo summarizes one side of a comparison.
type RunInfo struct {
	RunID       string        `json:"run_id"`
	DateAudited time.Time     `json:"date_audited"`
	Summary     model.Summary `json:"summary"`
}

// ComparedViolation is a violation tagged with the audit that reported it.
type ComparedViolation struct {
	Audit string `json:"audit"`
	model.ViolationEntry
}

// Compare computes the differences from previous to current.
// Violations are matched by audit, event type, script URL and position.
func Compare(previous, current *model.Report) *Comparison {
	c := &Comparison{
		PageURL:  current.PageURL,
		Previous: runInfo(previous),
		Current:  runInfo(current),
	}

	before := violationSet(previous)
	after := violationSet(current)

	for key, v := range after {
		if _, ok := before[key]; !ok {
			c.NewViolations = append(c.NewViolations, v)
		}
	}
	for key, v := range before {
		if _, ok := after[key]; ok {
			c.UnchangedCount++
			continue
		}
		c.ResolvedViolations = append(c.ResolvedViolations, v)
	}
	sortViolations(c.NewViolations)
	sortViolations(c.ResolvedViolations)

	switch {
	case c.Current.Summary.Violations < c.Previous.Summary.Violations:
		c.Direction = DirectionImproved
	case c.Current.Summary.Violations > c.Previous.Summary.Violations:
		c.Direction = DirectionWorsened
	default:
		c.Direction = DirectionUnchanged
	}
	return c
}

// runInfo extracts the comparison metadata of a report.
func runInfo(report *model.Report) RunInfo {
	return RunInfo{
		RunID:       report.RunID,
		DateAudited: report.DateAudited,
		Summary:     *summaryOf(report),
	}
}

// violationSet indexes a report's violations by identity.
func violationSet(report *model.Report) map[string]ComparedViolation {
	set := make(map[string]ComparedViolation)
	for _, o := range report.Outcomes {
		for _, v := range o.Result.Violations() {
			key := strings.Join([]string{o.Meta.Name, v.Type, v.URL, strconv.Itoa(v.Line), strconv.Itoa(v.Col)}, "|")
			set[key] = ComparedViolation{Audit: o.Meta.Name, ViolationEntry: v}
		}
	}
	return set
}

// sortViolations orders violations by audit, script URL and position.
func sortViolations(vs []ComparedViolation) {
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Audit != b.Audit {
			return a.Audit < b.Audit
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		return a.Type < b.Type
	})
}

// WriteComparison renders c in the given format.
func WriteComparison(w io.Writer, c *Comparison, format Format) error {
	switch format {
	case FormatText, "":
		return writeComparisonText(w, c)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(c)
	case FormatMarkdown:
		return writeComparisonMarkdown(w, c)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// writeComparisonText renders c as human-readable text.
func writeComparisonText(w io.Writer, c *Comparison) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: %s\n", c.PageURL)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "\nStatus: %s\n", formatDirection(c.Direction))
	fmt.Fprintf(&sb, "\nPrevious run: %s  %s\n", c.Previous.DateAudited.Format("2006-01-02 15:04:05"), c.Previous.RunID)
	fmt.Fprintf(&sb, "Current run:  %s  %s\n", c.Current.DateAudited.Format("2006-01-02 15:04:05"), c.Current.RunID)

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  %-12s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 48) + "\n")
	for _, row := range summaryRows(c) {
		fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", row.label, row.previous, row.current, formatDelta(row.current-row.previous))
	}

	if len(c.NewViolations) > 0 {
		fmt.Fprintf(&sb, "\nNew Violations (%d):\n", len(c.NewViolations))
		for _, v := range c.NewViolations {
			fmt.Fprintf(&sb, "  [+] %s  %s  %s\n", v.Type, v.Label, v.URL)
		}
	}
	if len(c.ResolvedViolations) > 0 {
		fmt.Fprintf(&sb, "\nResolved Violations (%d):\n", len(c.ResolvedViolations))
		for _, v := range c.ResolvedViolations {
			fmt.Fprintf(&sb, "  [-] %s  %s  %s\n", v.Type, v.Label, v.URL)
		}
	}
	if c.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d violations\n", c.UnchangedCount)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// writeComparisonMarkdown renders c as Markdown.
func writeComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1("Run Comparison: " + c.PageURL)
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatDirection(c.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		c.Previous.DateAudited.Format("2006-01-02 15:04"),
		c.Current.DateAudited.Format("2006-01-02 15:04"),
		"-",
	}}
	for _, row := range summaryRows(c) {
		rows = append(rows, []string{
			row.label,
			strconv.Itoa(row.previous),
			strconv.Itoa(row.current),
			formatDelta(row.current - row.previous),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(c.NewViolations) > 0 {
		md.H2(fmt.Sprintf("New Violations (%d)", len(c.NewViolations)))
		md.PlainText("")
		items := make([]string, len(c.NewViolations))
		for i, v := range c.NewViolations {
			items[i] = fmt.Sprintf("**%s** `%s` %s", v.Type, v.URL, v.Label)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(c.ResolvedViolations) > 0 {
		md.H2(fmt.Sprintf("Resolved Violations (%d)", len(c.ResolvedViolations)))
		md.PlainText("")
		items := make([]string, len(c.ResolvedViolations))
		for i, v := range c.ResolvedViolations {
			items[i] = fmt.Sprintf("~~**%s** `%s` %s~~", v.Type, v.URL, v.Label)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d violations unchanged*", c.UnchangedCount)
	}

	return md.Build()
}

// summaryRow is one line of the comparison summary table.
type summaryRow struct {
	label             string
	previous, current int
}

// summaryRows returns the counts shown in comparison tables.
func summaryRows(c *Comparison) []summaryRow {
	p, n := c.Previous.Summary, c.Current.Summary
	return []summaryRow{
		{"Passed", p.Passed, n.Passed},
		{"Failed", p.Failed, n.Failed},
		{"Not run", p.NotRun, n.NotRun},
		{"Violations", p.Violations, n.Violations},
	}
}

// formatDirection formats the change direction for display.
func formatDirection(direction string) string {
	switch direction {
	case DirectionImproved:
		return "IMPROVED (fewer violations)"
	case DirectionWorsened:
		return "WORSENED (more violations)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
