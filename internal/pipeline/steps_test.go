package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/passivescan/internal/audit"
	"github.com/nao1215/passivescan/internal/guid"
	"github.com/nao1215/passivescan/internal/model"
)

// snapshot builds artifacts for pageURL with the given listeners.
func snapshot(pageURL string, records ...model.ListenerRecord) *model.Artifacts {
	return &model.Artifacts{
		URL:                     &model.URLArtifact{FinalURL: pageURL},
		PageLevelEventListeners: model.ReadyListeners(records),
	}
}

// staticLoader returns a Loader that serves artifacts by source name.
func staticLoader(snapshots map[string]*model.Artifacts) Loader {
	return func(source string) (*model.Artifacts, error) {
		a, ok := snapshots[source]
		if !ok {
			return nil, errors.New("no such snapshot: " + source)
		}
		return a, nil
	}
}

// memoryStore records saved reports.
type memoryStore struct {
	saved []*model.Report
	err   error
}

func (m *memoryStore) SaveReport(_ context.Context, report *model.Report) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.saved = append(m.saved, report)
	return int64(len(m.saved)), nil
}

var blockingWheel = model.ListenerRecord{
	Type:     "wheel",
	URL:      "https://example.com/app.js",
	Line:     10,
	Col:      4,
	ObjectID: "window",
	Handler:  model.Handler{Description: "function(e){ scrollTo(e) }"},
}

// TestLoadStep tests loading artifacts into a report.
func TestLoadStep(t *testing.T) {
	t.Parallel()

	t.Run("fills page URL and run ID", func(t *testing.T) {
		t.Parallel()

		artifacts := snapshot("https://example.com/")
		step := NewLoadStep(staticLoader(map[string]*model.Artifacts{"page.json": artifacts}), guid.NewAllocator())

		report := model.NewReport("page.json")
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Artifacts != artifacts {
			t.Error("expected artifacts to be attached")
		}
		if report.PageURL != "https://example.com/" {
			t.Errorf("unexpected page URL %q", report.PageURL)
		}
		if report.RunID == "" {
			t.Error("expected run ID to be allocated")
		}
		if step.Name() != StepLoad {
			t.Errorf("unexpected step name %q", step.Name())
		}
	})

	t.Run("keeps existing run ID", func(t *testing.T) {
		t.Parallel()

		step := NewLoadStep(staticLoader(map[string]*model.Artifacts{"page.json": snapshot("https://example.com/")}), nil)

		report := model.NewReport("page.json")
		report.RunID = "fixed"
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.RunID != "fixed" {
			t.Errorf("expected run ID to be kept, got %q", report.RunID)
		}
	})

	t.Run("returns loader error", func(t *testing.T) {
		t.Parallel()

		step := NewLoadStep(staticLoader(nil), nil)
		if err := step.Do(context.Background(), model.NewReport("missing.json")); err == nil {
			t.Error("expected error for unknown source")
		}
	})
}

// TestBreakdownOrigins tests first and third party counting.
func TestBreakdownOrigins(t *testing.T) {
	t.Parallel()

	records := []model.ListenerRecord{
		{Type: "wheel", URL: "https://example.com/app.js"},
		{Type: "scroll", URL: "https://Example.com/lib.js"},
		{Type: "touchstart", URL: "https://cdn.example.com/vendor.js"},
		{Type: "click", URL: "https://ads.tracker.co.uk/t.js"},
		{Type: "click", URL: "https://pixel.tracker.co.uk/p.js"},
		{Type: "load", URL: ""},
	}

	got := BreakdownOrigins("https://example.com/", records)
	want := &model.OriginBreakdown{
		PageHost:   "example.com",
		FirstParty: 2,
		ThirdParty: 4,
		Sites: []model.SiteCount{
			{Site: "example.com", Listeners: 3},
			{Site: "tracker.co.uk", Listeners: 2},
			{Site: unknownSite, Listeners: 1},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
}

// TestBreakdownOrigins_PageWithoutHost tests that no listener is first party
// when the page URL has no host.
func TestBreakdownOrigins_PageWithoutHost(t *testing.T) {
	t.Parallel()

	records := []model.ListenerRecord{
		{Type: "wheel", URL: ""},
		{Type: "wheel", URL: "/relative.js"},
		{Type: "wheel", URL: "https://example.com/app.js"},
	}

	got := BreakdownOrigins("", records)
	if got.PageHost != "" || got.FirstParty != 0 || got.ThirdParty != 3 {
		t.Errorf("unexpected breakdown %+v", got)
	}
}

// TestSiteOf tests registrable domain extraction.
func TestSiteOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "subdomain", in: "https://static.cdn.example.com/a.js", want: "example.com"},
		{name: "multi-label suffix", in: "https://www.bbc.co.uk/app.js", want: "bbc.co.uk"},
		{name: "port is ignored", in: "http://Example.com:8080/a.js", want: "example.com"},
		{name: "IPv4", in: "http://127.0.0.1:3000/a.js", want: "127.0.0.1"},
		{name: "IPv6", in: "http://[::1]:3000/a.js", want: "::1"},
		{name: "empty URL", in: "", want: unknownSite},
		{name: "unparseable", in: "http://[::1", want: unknownSite},
		{name: "stray percent in path", in: "https://cdn.example.com/100%.js", want: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SiteOf(tt.in); got != tt.want {
				t.Errorf("SiteOf(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestOriginStep tests the origin step.
func TestOriginStep(t *testing.T) {
	t.Parallel()

	t.Run("records breakdown for ready listeners", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport("page.json")
		report.Artifacts = snapshot("https://example.com/", blockingWheel)

		if err := NewOriginStep(nil).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Origins == nil || report.Origins.FirstParty != 1 {
			t.Errorf("expected one first-party listener, got %+v", report.Origins)
		}
	})

	t.Run("skips when listeners are not ready", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport("page.json")
		report.Artifacts = &model.Artifacts{
			URL:                     &model.URLArtifact{FinalURL: "https://example.com/"},
			PageLevelEventListeners: model.NotRunListeners(),
		}

		if err := NewOriginStep(nil).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Origins != nil {
			t.Errorf("expected no breakdown, got %+v", report.Origins)
		}
	})

	t.Run("skips without artifacts", func(t *testing.T) {
		t.Parallel()

		report := model.NewReport("page.json")
		if err := NewOriginStep(nil).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

// TestAuditStep tests running the registry as a step.
func TestAuditStep(t *testing.T) {
	t.Parallel()

	report := model.NewReport("page.json")
	report.Artifacts = snapshot("https://example.com/", blockingWheel)

	step := NewAuditStep(audit.NewRegistry(audit.WithAllocator(guid.NewAllocator())))
	if err := step.Do(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, ok := report.Outcome(audit.PassiveEventsAuditName)
	if !ok {
		t.Fatal("expected passive events outcome")
	}
	if outcome.Result.RawValue != model.RawValueFail {
		t.Errorf("expected fail, got %s", outcome.Result.RawValue)
	}
	want := &model.Summary{Failed: 1, Violations: 1}
	if diff := cmp.Diff(want, report.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

// TestStoreStep tests saving reports.
func TestStoreStep(t *testing.T) {
	t.Parallel()

	t.Run("saves report", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		report := model.NewReport("page.json")
		if err := NewStoreStep(store, nil).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.saved) != 1 || store.saved[0] != report {
			t.Errorf("expected report to be saved, got %v", store.saved)
		}
	})

	t.Run("wraps store error", func(t *testing.T) {
		t.Parallel()

		errDisk := errors.New("disk full")
		err := NewStoreStep(&memoryStore{err: errDisk}, nil).Do(context.Background(), model.NewReport("page.json"))
		if !errors.Is(err, errDisk) {
			t.Errorf("expected wrapped store error, got %v", err)
		}
	})
}

// TestDefaultPipeline tests the standard step sequence.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("without store", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(audit.NewRegistry(), nil)
		want := []string{StepLoad, StepOrigin, StepAudit}
		if diff := cmp.Diff(want, p.StepNames()); diff != "" {
			t.Errorf("step names mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("end to end with store", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		loader := staticLoader(map[string]*model.Artifacts{
			"page.json": snapshot("https://example.com/", blockingWheel),
		})
		p := DefaultPipeline(
			audit.NewRegistry(),
			nil,
			WithPipelineLoader(loader),
			WithPipelineAllocator(guid.NewAllocator()),
			WithPipelineStore(store),
		)

		report := model.NewReport("page.json")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{StepLoad, StepOrigin, StepAudit, StepStore}
		if diff := cmp.Diff(want, report.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
		if !report.Failed() {
			t.Error("expected report to fail")
		}
		if len(store.saved) != 1 {
			t.Errorf("expected one stored report, got %d", len(store.saved))
		}
	})

	t.Run("missing URL artifact is not run", func(t *testing.T) {
		t.Parallel()

		loader := staticLoader(map[string]*model.Artifacts{
			"page.json": {PageLevelEventListeners: model.ReadyListeners(nil)},
		})
		p := DefaultPipeline(audit.NewRegistry(), nil, WithPipelineLoader(loader))

		report := model.NewReport("page.json")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Summary == nil || report.Summary.NotRun != 1 {
			t.Errorf("expected one not-run audit, got %+v", report.Summary)
		}
	})
}
