package model

import (
	"time"
)

// Report is the result of auditing one captured snapshot.
// It holds every audit outcome plus the context needed to render and store
// the run.
type Report struct {
	// RunID is a random UUID identifying this run across databases.
	RunID string `json:"run_id"`

	// Source is the snapshot file the artifacts were read from ("-" for stdin).
	Source string `json:"source"`

	// PageURL is the final URL of the audited page.
	PageURL string `json:"page_url"`

	// DateAudited is when the run started.
	DateAudited time.Time `json:"date_audited"`

	// Artifacts is the decoded snapshot.
	Artifacts *Artifacts `json:"-"` // Excluded from JSON; stored by the gatherer

	// Outcomes holds audit results in registration order.
	Outcomes []AuditOutcome `json:"outcomes"`

	// Origins breaks the page's listeners down by registering site.
	Origins *OriginBreakdown `json:"origins,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Summary counts outcomes by status.
	Summary *Summary `json:"summary,omitempty"`

	// TimedOut is true if the run was cancelled before all steps finished.
	TimedOut bool `json:"timed_out"`

	// Error contains any error that stopped or degraded the run.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// AuditOutcome pairs an audit's metadata with its result.
type AuditOutcome struct {
	// Seq is a process-unique sequence number tagging this outcome.
	Seq uint64 `json:"seq"`

	// Meta is the audit descriptor.
	Meta AuditMeta `json:"meta"`

	// Result is what the audit returned.
	Result AuditResult `json:"result"`
}

// OriginBreakdown counts the page's listeners by registering site.
type OriginBreakdown struct {
	// PageHost is the host the listeners were compared against.
	PageHost string `json:"page_host"`

	// FirstParty counts listeners registered by scripts on PageHost.
	FirstParty int `json:"first_party"`

	// ThirdParty counts listeners registered from any other host.
	ThirdParty int `json:"third_party"`

	// Sites lists listener counts per registrable domain, largest first.
	Sites []SiteCount `json:"sites,omitempty"`
}

// SiteCount is the number of listeners registered from one site.
type SiteCount struct {
	Site      string `json:"site"`
	Listeners int    `json:"listeners"`
}

// NewReport creates a new report for a snapshot source.
func NewReport(source string) *Report {
	return &Report{
		Source:      source,
		DateAudited: time.Now(),
		Outcomes:    make([]AuditOutcome, 0),
	}
}

// AddOutcome appends an outcome and keeps the summary in sync.
func (r *Report) AddOutcome(outcome AuditOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	if r.Summary == nil {
		r.Summary = &Summary{}
	}
	r.Summary.add(outcome.Result)
}

// Outcome returns the outcome of the named audit.
func (r *Report) Outcome(name string) (AuditOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Meta.Name == name {
			return o, true
		}
	}
	return AuditOutcome{}, false
}

// Failed reports whether any audit failed.
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Result.RawValue == RawValueFail {
			return true
		}
	}
	return false
}

// SetError records err on the report.
func (r *Report) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
