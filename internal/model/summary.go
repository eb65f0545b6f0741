package model

// Summary condenses a Report into counts for quick review.
type Summary struct {
	// Passed is the number of audits that passed.
	Passed int `json:"passed"`

	// Failed is the number of audits that failed.
	Failed int `json:"failed"`

	// NotRun is the number of audits that could not run.
	NotRun int `json:"not_run"`

	// Violations is the total number of violation entries.
	Violations int `json:"violations"`
}

// NewSummary computes a Summary from the report's outcomes.
func NewSummary(report *Report) *Summary {
	s := &Summary{}
	for _, o := range report.Outcomes {
		s.add(o.Result)
	}
	return s
}

// Total returns the number of audits counted.
func (s *Summary) Total() int {
	return s.Passed + s.Failed + s.NotRun
}

// add counts one result.
func (s *Summary) add(result AuditResult) {
	switch result.RawValue {
	case RawValuePass:
		s.Passed++
	case RawValueFail:
		s.Failed++
	case RawValueNotRun:
		s.NotRun++
	}
	s.Violations += len(result.Violations())
}
