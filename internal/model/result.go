package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawValue is the pass/fail outcome of an audit, or NotRun when the audit
// could not evaluate the snapshot.
//
// It serializes as true, false or -1 to match the report formatter contract.
type RawValue int

const (
	// RawValueNotRun means the audit could not run.
	RawValueNotRun RawValue = iota

	// RawValuePass means the page complies.
	RawValuePass

	// RawValueFail means the page does not comply.
	RawValueFail
)

// RawValueFromBool converts a compliance flag to a RawValue.
func RawValueFromBool(pass bool) RawValue {
	if pass {
		return RawValuePass
	}
	return RawValueFail
}

// String returns a human-readable representation of the value.
func (v RawValue) String() string {
	switch v {
	case RawValuePass:
		return "PASS"
	case RawValueFail:
		return "FAIL"
	case RawValueNotRun:
		return "NOT RUN"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the value as true, false or -1.
func (v RawValue) MarshalJSON() ([]byte, error) {
	switch v {
	case RawValuePass:
		return []byte("true"), nil
	case RawValueFail:
		return []byte("false"), nil
	default:
		return []byte(notRunSentinel), nil
	}
}

// UnmarshalJSON decodes true, false or -1.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); {
	case s == "true":
		*v = RawValuePass
	case s == "false":
		*v = RawValueFail
	case isNotRunSentinel(data):
		*v = RawValueNotRun
	default:
		return fmt.Errorf("invalid rawValue %s", s)
	}
	return nil
}

// FormatterURLList tags extended info holding a list of source locations.
const FormatterURLList = "urllist"

// ExtendedInfo is the structured diagnostic payload of an audit result.
type ExtendedInfo struct {
	// Formatter selects how a report formatter renders Value.
	Formatter string `json:"formatter"`

	// Value is the ordered list of violations. It is empty, not nil, when the
	// page complies.
	Value []ViolationEntry `json:"value"`
}

// AuditResult is the outcome of one audit against one snapshot.
type AuditResult struct {
	// RawValue is pass, fail or not run.
	RawValue RawValue

	// DebugString explains a NotRun result.
	DebugString string

	// ExtendedInfo is set when the audit evaluated listeners.
	ExtendedInfo *ExtendedInfo

	// Upstream carries extra members of a passed-through gatherer failure.
	Upstream map[string]json.RawMessage
}

// Violations returns the violation entries, or nil without extended info.
func (r AuditResult) Violations() []ViolationEntry {
	if r.ExtendedInfo == nil {
		return nil
	}
	return r.ExtendedInfo.Value
}

// MarshalJSON encodes the result as a flat object. Upstream members are
// emitted alongside rawValue, debugString and extendedInfo.
func (r AuditResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Upstream)+3)
	for k, v := range r.Upstream {
		out[k] = v
	}
	out["rawValue"] = r.RawValue
	if r.DebugString != "" {
		out["debugString"] = r.DebugString
	}
	if r.ExtendedInfo != nil {
		out["extendedInfo"] = r.ExtendedInfo
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an object produced by MarshalJSON.
func (r *AuditResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var result AuditResult
	if raw, ok := fields["rawValue"]; ok {
		if err := json.Unmarshal(raw, &result.RawValue); err != nil {
			return err
		}
		delete(fields, "rawValue")
	}
	if raw, ok := fields["debugString"]; ok {
		if err := json.Unmarshal(raw, &result.DebugString); err != nil {
			return err
		}
		delete(fields, "debugString")
	}
	if raw, ok := fields["extendedInfo"]; ok {
		var info ExtendedInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return err
		}
		if info.Value == nil {
			info.Value = []ViolationEntry{}
		}
		result.ExtendedInfo = &info
		delete(fields, "extendedInfo")
	}
	if len(fields) > 0 {
		result.Upstream = fields
	}

	*r = result
	return nil
}

// AuditMeta is the static descriptor of an audit.
type AuditMeta struct {
	// Category groups audits in reports.
	Category string `json:"category"`

	// Name is the audit identifier.
	Name string `json:"name"`

	// Description is the one-line title shown when the audit passes.
	Description string `json:"description"`

	// HelpText explains how to fix a failing audit. It may contain HTML.
	HelpText string `json:"helpText"` //nolint:tagliatelle // formatter field name

	// RequiredArtifacts lists the artifact names the audit reads.
	RequiredArtifacts []string `json:"requiredArtifacts"` //nolint:tagliatelle // formatter field name
}
