package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/passivescan/internal/model"
)

// baseRecord is the listener from the reference scenarios: a non-passive
// first-party touchstart listener on window.
func baseRecord() model.ListenerRecord {
	return model.ListenerRecord{
		Type:     "touchstart",
		URL:      "http://example.com/a.js",
		Line:     10,
		Col:      5,
		ObjectID: "window",
		Handler:  model.Handler{Description: "function(e){}"},
		Passive:  false,
	}
}

// snapshot builds artifacts for example.com with the given records.
func snapshot(records ...model.ListenerRecord) *model.Artifacts {
	return &model.Artifacts{
		URL:                     &model.URLArtifact{FinalURL: "http://example.com/"},
		PageLevelEventListeners: model.ReadyListeners(records),
	}
}

// runPassive runs the audit and fails the test on error.
func runPassive(t *testing.T, artifacts *model.Artifacts) model.AuditResult {
	t.Helper()

	result, err := NewPassiveEventsAudit().Run(context.Background(), artifacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// TestPassiveEventsAudit_Scenarios tests the reference scenarios.
func TestPassiveEventsAudit_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		mutate         func(r *model.ListenerRecord)
		wantRawValue   model.RawValue
		wantViolations int
	}{
		{
			name:           "A: non-passive first-party touchstart is a violation",
			mutate:         func(*model.ListenerRecord) {},
			wantRawValue:   model.RawValueFail,
			wantViolations: 1,
		},
		{
			name:         "B: passive listener complies",
			mutate:       func(r *model.ListenerRecord) { r.Passive = true },
			wantRawValue: model.RawValuePass,
		},
		{
			name: "C: handler calling preventDefault is exempt",
			mutate: func(r *model.ListenerRecord) {
				r.Handler.Description = "function(e){e.preventDefault()}"
			},
			wantRawValue: model.RawValuePass,
		},
		{
			name:         "D: cross-origin script is excluded",
			mutate:       func(r *model.ListenerRecord) { r.URL = "http://other.com/a.js" },
			wantRawValue: model.RawValuePass,
		},
		{
			name:         "E: non scroll-blocking event is excluded",
			mutate:       func(r *model.ListenerRecord) { r.Type = "click" },
			wantRawValue: model.RawValuePass,
		},
		{
			name:         "subdomain does not match page host",
			mutate:       func(r *model.ListenerRecord) { r.URL = "http://cdn.example.com/a.js" },
			wantRawValue: model.RawValuePass,
		},
		{
			name:         "different port does not match page host",
			mutate:       func(r *model.ListenerRecord) { r.URL = "http://example.com:8080/a.js" },
			wantRawValue: model.RawValuePass,
		},
		{
			name:           "scheme does not matter for host match",
			mutate:         func(r *model.ListenerRecord) { r.URL = "https://example.com/a.js" },
			wantRawValue:   model.RawValueFail,
			wantViolations: 1,
		},
		{
			name:           "host comparison ignores case",
			mutate:         func(r *model.ListenerRecord) { r.URL = "http://EXAMPLE.com/a.js" },
			wantRawValue:   model.RawValueFail,
			wantViolations: 1,
		},
		{
			name:           "stray percent in first-party script path is still same host",
			mutate:         func(r *model.ListenerRecord) { r.URL = "http://example.com/100%.js" },
			wantRawValue:   model.RawValueFail,
			wantViolations: 1,
		},
		{
			name:         "empty script URL is not same host",
			mutate:       func(r *model.ListenerRecord) { r.URL = "" },
			wantRawValue: model.RawValuePass,
		},
		{
			name:         "relative script URL is not same host",
			mutate:       func(r *model.ListenerRecord) { r.URL = "/a.js" },
			wantRawValue: model.RawValuePass,
		},
		{
			name: "preventDefault with whitespace inside parentheses is exempt",
			mutate: func(r *model.ListenerRecord) {
				r.Handler.Description = "function(e){ e.preventDefault(  ) }"
			},
			wantRawValue: model.RawValuePass,
		},
		{
			name: "preventDefault without call is still a violation",
			mutate: func(r *model.ListenerRecord) {
				r.Handler.Description = "function(e){ var pd = e.preventDefault; pd(); }"
			},
			wantRawValue:   model.RawValueFail,
			wantViolations: 1,
		},
		{
			name: "preventDefault in a comment is treated as a call",
			mutate: func(r *model.ListenerRecord) {
				r.Handler.Description = "function(e){ /* e.preventDefault() */ }"
			},
			wantRawValue: model.RawValuePass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := baseRecord()
			tt.mutate(&record)

			result := runPassive(t, snapshot(record))

			if result.RawValue != tt.wantRawValue {
				t.Errorf("expected rawValue %s, got %s", tt.wantRawValue, result.RawValue)
			}
			if result.ExtendedInfo == nil {
				t.Fatal("expected extended info")
			}
			if result.ExtendedInfo.Formatter != model.FormatterURLList {
				t.Errorf("expected formatter %q, got %q", model.FormatterURLList, result.ExtendedInfo.Formatter)
			}
			if result.ExtendedInfo.Value == nil {
				t.Error("expected non-nil violation list")
			}
			if len(result.ExtendedInfo.Value) != tt.wantViolations {
				t.Errorf("expected %d violations, got %d", tt.wantViolations, len(result.ExtendedInfo.Value))
			}
		})
	}
}

// TestPassiveEventsAudit_ScenarioACode tests the reconstructed call site.
func TestPassiveEventsAudit_ScenarioACode(t *testing.T) {
	t.Parallel()

	result := runPassive(t, snapshot(baseRecord()))

	violations := result.Violations()
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}

	want := model.ViolationEntry{
		ListenerRecord: baseRecord(),
		Label:          "line: 10, col: 5",
		Code:           "window.addEventListener('touchstart', function(e){})",
	}
	if diff := cmp.Diff(want, violations[0]); diff != "" {
		t.Errorf("violation mismatch (-want +got):\n%s", diff)
	}
}

// TestPassiveEventsAudit_OrderAndCount tests that every matching record is
// reported in input order.
func TestPassiveEventsAudit_OrderAndCount(t *testing.T) {
	t.Parallel()

	wheel := baseRecord()
	wheel.Type = "wheel"
	wheel.ObjectID = "document"
	wheel.Line = 1

	passive := baseRecord()
	passive.Passive = true

	thirdParty := baseRecord()
	thirdParty.URL = "https://ads.example.net/tag.js"

	move := baseRecord()
	move.Type = "touchmove"
	move.ObjectID = "document.body"
	move.Line = 30

	mouse := baseRecord()
	mouse.Type = "mousewheel"
	mouse.Line = 40

	result := runPassive(t, snapshot(wheel, passive, thirdParty, move, mouse))

	if result.RawValue != model.RawValueFail {
		t.Errorf("expected FAIL, got %s", result.RawValue)
	}

	var gotLines []int
	for _, v := range result.Violations() {
		gotLines = append(gotLines, v.Line)
	}
	if diff := cmp.Diff([]int{1, 30, 40}, gotLines); diff != "" {
		t.Errorf("violation order mismatch (-want +got):\n%s", diff)
	}
}

// TestPassiveEventsAudit_EmptyListeners tests that a page without listeners
// passes with an empty list.
func TestPassiveEventsAudit_EmptyListeners(t *testing.T) {
	t.Parallel()

	result := runPassive(t, snapshot())

	if result.RawValue != model.RawValuePass {
		t.Errorf("expected PASS, got %s", result.RawValue)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"extendedInfo":{"formatter":"urllist","value":[]},"rawValue":true}`
	if string(data) != want {
		t.Errorf("got %s, expected %s", data, want)
	}
}

// TestPassiveEventsAudit_NotRun tests the missing instrumentation states.
func TestPassiveEventsAudit_NotRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		artifacts *model.Artifacts
	}{
		{
			name:      "listener artifact absent",
			artifacts: &model.Artifacts{URL: &model.URLArtifact{FinalURL: "http://example.com/"}},
		},
		{
			name: "listener artifact sentinel",
			artifacts: &model.Artifacts{
				URL:                     &model.URLArtifact{FinalURL: "http://example.com/"},
				PageLevelEventListeners: model.NotRunListeners(),
			},
		},
		{
			name:      "nil artifacts",
			artifacts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := runPassive(t, tt.artifacts)

			if result.RawValue != model.RawValueNotRun {
				t.Errorf("expected NOT RUN, got %s", result.RawValue)
			}
			if result.DebugString == "" {
				t.Error("expected non-empty debug string")
			}
			if result.ExtendedInfo != nil {
				t.Error("did not expect extended info")
			}
		})
	}
}

// TestPassiveEventsAudit_NotRunFromJSON tests the -1 sentinel end to end.
func TestPassiveEventsAudit_NotRunFromJSON(t *testing.T) {
	t.Parallel()

	var artifacts model.Artifacts
	input := `{"URL": {"finalUrl": "http://example.com/"}, "PageLevelEventListeners": -1}`
	if err := json.Unmarshal([]byte(input), &artifacts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := runPassive(t, &artifacts)
	if result.RawValue != model.RawValueNotRun {
		t.Errorf("expected NOT RUN, got %s", result.RawValue)
	}
	if result.DebugString != listenersNotRunMessage {
		t.Errorf("unexpected debug string %q", result.DebugString)
	}
}

// TestPassiveEventsAudit_GathererFailurePassThrough tests that a failed
// gatherer's result is returned unchanged.
func TestPassiveEventsAudit_GathererFailurePassThrough(t *testing.T) {
	t.Parallel()

	failure := model.GathererFailure{
		DebugString: "Protocol error (Runtime.evaluate): Target closed",
		Fields: map[string]json.RawMessage{
			"errorCode": json.RawMessage(`"PROTOCOL_ERROR"`),
		},
	}
	artifacts := &model.Artifacts{
		URL:                     &model.URLArtifact{FinalURL: "http://example.com/"},
		PageLevelEventListeners: model.FailedListeners(failure),
	}

	result := runPassive(t, artifacts)

	if diff := cmp.Diff(failure.AuditResult(), result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

// TestPassiveEventsAudit_Idempotent tests that evaluating the same input twice
// yields the same result and leaves the input untouched.
func TestPassiveEventsAudit_Idempotent(t *testing.T) {
	t.Parallel()

	passive := baseRecord()
	passive.Passive = true
	artifacts := snapshot(baseRecord(), passive)

	first := runPassive(t, artifacts)
	second := runPassive(t, artifacts)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results differ between runs (-first +second):\n%s", diff)
	}

	records, _ := artifacts.PageLevelEventListeners.Listeners()
	if diff := cmp.Diff([]model.ListenerRecord{baseRecord(), passive}, records); diff != "" {
		t.Errorf("input records were modified (-want +got):\n%s", diff)
	}
}

// TestPassiveEventsAudit_Meta tests the static descriptor.
func TestPassiveEventsAudit_Meta(t *testing.T) {
	t.Parallel()

	meta := NewPassiveEventsAudit().Meta()

	if meta.Name != "uses-passive-event-listeners" {
		t.Errorf("unexpected name %q", meta.Name)
	}
	if meta.Category != "JavaScript" {
		t.Errorf("unexpected category %q", meta.Category)
	}
	if meta.Description == "" {
		t.Error("expected description")
	}
	if diff := cmp.Diff([]string{"URL", "PageLevelEventListeners"}, meta.RequiredArtifacts); diff != "" {
		t.Errorf("required artifacts mismatch (-want +got):\n%s", diff)
	}
	if want := "<code>wheel,mousewheel,touchstart,touchmove</code>"; !strings.Contains(meta.HelpText, want) {
		t.Errorf("expected help text to list %s, got %q", want, meta.HelpText)
	}
}

// TestCallsPreventDefault tests the textual heuristic directly.
func TestCallsPreventDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		want   bool
	}{
		{"function(e){e.preventDefault()}", true},
		{"(e) => e.preventDefault( )", true},
		{"function(e){\n  event.preventDefault(\n)\n}", true},
		{"function(e){}", false},
		{"function(e){ preventDefault() }", false},
		{"function(e){ e.preventDefault(true) }", false},
		{"function(e){ e.preventDefault }", false},
	}

	for _, tt := range tests {
		if got := CallsPreventDefault(tt.source); got != tt.want {
			t.Errorf("CallsPreventDefault(%q) = %v, expected %v", tt.source, got, tt.want)
		}
	}
}

// TestHostOf tests host extraction.
func TestHostOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"https://example.com/path?q=1", "example.com", true},
		{"http://example.com:8080/", "example.com:8080", true},
		{"HTTP://Example.COM/", "example.com", true},
		{"http://example.com/100%.js", "example.com", true},
		{"http://example.com/%zz?a=1", "example.com", true},
		{"http://example.com?q=%zz", "example.com", true},
		{"", "", false},
		{"/a.js", "", false},
		{"about:blank", "", false},
		{"http://[::1", "", false},
		{"%zz://example.com/", "", false},
	}

	for _, tt := range tests {
		got, ok := HostOf(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("HostOf(%q) = (%q, %v), expected (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

// TestPassiveEventsAudit_PageWithoutHost tests that listeners are never
// matched against a page whose URL yields no host.
func TestPassiveEventsAudit_PageWithoutHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		artifacts func(records []model.ListenerRecord) *model.Artifacts
	}{
		{
			name: "unparseable final URL",
			artifacts: func(records []model.ListenerRecord) *model.Artifacts {
				return &model.Artifacts{
					URL:                     &model.URLArtifact{FinalURL: "http://[::1"},
					PageLevelEventListeners: model.ReadyListeners(records),
				}
			},
		},
		{
			name: "missing URL artifact",
			artifacts: func(records []model.ListenerRecord) *model.Artifacts {
				return &model.Artifacts{PageLevelEventListeners: model.ReadyListeners(records)}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			empty := baseRecord()
			empty.URL = ""
			broken := baseRecord()
			broken.URL = "http://[::2"

			result := runPassive(t, tt.artifacts([]model.ListenerRecord{empty, broken}))
			if result.RawValue != model.RawValuePass {
				t.Errorf("expected rawValue %s, got %s", model.RawValuePass, result.RawValue)
			}
			if n := len(result.ExtendedInfo.Value); n != 0 {
				t.Errorf("expected no violations, got %d", n)
			}
		})
	}
}

// TestPassiveEventsAudit_PageHostRecoveredFromAuthority tests that a final URL
// with a malformed path still yields the page host.
func TestPassiveEventsAudit_PageHostRecoveredFromAuthority(t *testing.T) {
	t.Parallel()

	artifacts := &model.Artifacts{
		URL:                     &model.URLArtifact{FinalURL: "http://example.com/%zz"},
		PageLevelEventListeners: model.ReadyListeners([]model.ListenerRecord{baseRecord()}),
	}

	result := runPassive(t, artifacts)
	if result.RawValue != model.RawValueFail {
		t.Errorf("expected rawValue %s, got %s", model.RawValueFail, result.RawValue)
	}
	if n := len(result.ExtendedInfo.Value); n != 1 {
		t.Errorf("expected 1 violation, got %d", n)
	}
}
