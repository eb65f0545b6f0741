package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Artifact names as used by audit metadata and snapshot files.
const (
	ArtifactURL                     = "URL"
	ArtifactPageLevelEventListeners = "PageLevelEventListeners"
)

// ErrMalformedArtifact is returned when an artifact is neither a valid value
// nor one of the gatherer's failure sentinels.
var ErrMalformedArtifact = errors.New("malformed artifact")

// notRunSentinel is the gatherer's out-of-band "did not run" marker.
const notRunSentinel = "-1"

// ArtifactState is the state of a gathered artifact.
type ArtifactState int

const (
	// ArtifactNotRun means the gatherer did not run or produced no value.
	ArtifactNotRun ArtifactState = iota

	// ArtifactFailed means the gatherer ran and reported a failure.
	ArtifactFailed

	// ArtifactReady means the gatherer produced a usable value.
	ArtifactReady
)

// String returns a human-readable representation of the state.
func (s ArtifactState) String() string {
	switch s {
	case ArtifactNotRun:
		return "not-run"
	case ArtifactFailed:
		return "failed"
	case ArtifactReady:
		return "ready"
	default:
		return "unknown"
	}
}

// GathererFailure is the payload a gatherer attaches when it reports
// rawValue -1. Every field other than rawValue and debugString is kept as
// raw JSON so that it can be passed through untouched.
type GathererFailure struct {
	// DebugString is the gatherer's explanation, if any.
	DebugString string

	// Fields holds the remaining members of the failure object.
	Fields map[string]json.RawMessage
}

// AuditResult returns the failure as an audit result, unchanged.
func (f GathererFailure) AuditResult() AuditResult {
	return AuditResult{
		RawValue:    RawValueNotRun,
		DebugString: f.DebugString,
		Upstream:    f.Fields,
	}
}

// ListenerArtifact is the PageLevelEventListeners artifact. Exactly one of
// its states holds; the zero value is ArtifactNotRun.
type ListenerArtifact struct {
	state     ArtifactState
	failure   GathererFailure
	listeners []ListenerRecord
}

// NotRunListeners returns an artifact in the NotRun state.
func NotRunListeners() ListenerArtifact {
	return ListenerArtifact{state: ArtifactNotRun}
}

// FailedListeners returns an artifact carrying a gatherer failure.
func FailedListeners(failure GathererFailure) ListenerArtifact {
	return ListenerArtifact{state: ArtifactFailed, failure: failure}
}

// ReadyListeners returns an artifact holding the given records.
// A nil slice is stored as an empty one.
func ReadyListeners(records []ListenerRecord) ListenerArtifact {
	if records == nil {
		records = []ListenerRecord{}
	}
	return ListenerArtifact{state: ArtifactReady, listeners: records}
}

// State returns the artifact state.
func (a ListenerArtifact) State() ArtifactState {
	return a.state
}

// Failure returns the gatherer failure and true when the state is
// ArtifactFailed.
func (a ListenerArtifact) Failure() (GathererFailure, bool) {
	return a.failure, a.state == ArtifactFailed
}

// Listeners returns the records and true when the state is ArtifactReady.
func (a ListenerArtifact) Listeners() ([]ListenerRecord, bool) {
	return a.listeners, a.state == ArtifactReady
}

// UnmarshalJSON decodes the gatherer's shapes: null or -1 (not run), an
// object whose rawValue is -1 (failed), or an array of listener records.
// Any other shape returns ErrMalformedArtifact.
func (a *ListenerArtifact) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty value", ErrMalformedArtifact)
	}

	switch trimmed[0] {
	case 'n':
		if string(trimmed) != "null" {
			return fmt.Errorf("%w: unexpected literal %s", ErrMalformedArtifact, trimmed)
		}
		*a = NotRunListeners()
		return nil
	case '[':
		var records []ListenerRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
		}
		*a = ReadyListeners(records)
		return nil
	case '{':
		failure, err := decodeGathererFailure(trimmed)
		if err != nil {
			return err
		}
		*a = FailedListeners(failure)
		return nil
	default:
		if isNotRunSentinel(trimmed) {
			*a = NotRunListeners()
			return nil
		}
		return fmt.Errorf("%w: unexpected value %s", ErrMalformedArtifact, trimmed)
	}
}

// MarshalJSON encodes the artifact back into the gatherer's shapes.
func (a ListenerArtifact) MarshalJSON() ([]byte, error) {
	switch a.state {
	case ArtifactReady:
		return json.Marshal(a.listeners)
	case ArtifactFailed:
		return json.Marshal(a.failure.AuditResult())
	default:
		return []byte(notRunSentinel), nil
	}
}

// decodeGathererFailure decodes an object that must carry rawValue -1.
func decodeGathererFailure(data []byte) (GathererFailure, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return GathererFailure{}, fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
	}

	raw, ok := fields["rawValue"]
	if !ok || !isNotRunSentinel(raw) {
		return GathererFailure{}, fmt.Errorf("%w: object artifact without rawValue -1", ErrMalformedArtifact)
	}
	delete(fields, "rawValue")

	var failure GathererFailure
	if debug, ok := fields["debugString"]; ok {
		if err := json.Unmarshal(debug, &failure.DebugString); err != nil {
			return GathererFailure{}, fmt.Errorf("%w: debugString: %w", ErrMalformedArtifact, err)
		}
		delete(fields, "debugString")
	}
	if len(fields) > 0 {
		failure.Fields = fields
	}

	return failure, nil
}

// isNotRunSentinel reports whether a JSON number equals -1.
func isNotRunSentinel(data []byte) bool {
	var n json.Number
	if err := json.Unmarshal(bytes.TrimSpace(data), &n); err != nil {
		return false
	}
	f, err := n.Float64()
	return err == nil && f == -1
}

// URLArtifact holds the page URLs recorded by the URL gatherer.
type URLArtifact struct {
	// InitialURL is the URL that was requested, if recorded.
	InitialURL string `json:"initialUrl,omitempty"` //nolint:tagliatelle // gatherer field name

	// FinalURL is the fully resolved page URL after redirects.
	FinalURL string `json:"finalUrl"` //nolint:tagliatelle // gatherer field name
}

// Artifacts is a captured page snapshot. Only the artifacts used by the
// registered audits are decoded; other members of a snapshot are ignored.
type Artifacts struct {
	// URL is nil when the snapshot has no URL artifact.
	URL *URLArtifact `json:"URL,omitempty"` //nolint:tagliatelle // artifact name

	// PageLevelEventListeners is NotRun when absent from the snapshot.
	PageLevelEventListeners ListenerArtifact `json:"PageLevelEventListeners"` //nolint:tagliatelle // artifact name
}

// Has reports whether the named artifact is present in the snapshot.
// A listener artifact counts as present unless it is NotRun.
func (a *Artifacts) Has(name string) bool {
	if a == nil {
		return false
	}
	switch name {
	case ArtifactURL:
		return a.URL != nil
	case ArtifactPageLevelEventListeners:
		return a.PageLevelEventListeners.State() != ArtifactNotRun
	default:
		return false
	}
}

// FinalURL returns the resolved page URL, or "" without a URL artifact.
func (a *Artifacts) FinalURL() string {
	if a == nil || a.URL == nil {
		return ""
	}
	return a.URL.FinalURL
}
