package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sort"

	"github.com/nao1215/passivescan/internal/artifact"
	"github.com/nao1215/passivescan/internal/audit"
	"github.com/nao1215/passivescan/internal/guid"
	"github.com/nao1215/passivescan/internal/model"
	"golang.org/x/net/publicsuffix"
)

// Step names.
const (
	StepLoad   = "load"
	StepOrigin = "origin"
	StepAudit  = "audit"
	StepStore  = "store"
)

// unknownSite groups listeners whose script URL has no host.
const unknownSite = "(unknown)"

// Loader reads the artifacts of a snapshot source.
type Loader func(source string) (*model.Artifacts, error)

// LoadStep reads the snapshot named by report.Source and fills in the
// artifacts, page URL and run ID.
type LoadStep struct {
	// load reads a snapshot source.
	load Loader

	// ids supplies run IDs.
	ids *guid.Allocator
}

// NewLoadStep creates a LoadStep. A nil loader reads files with
// artifact.LoadFile and a nil allocator uses the process-wide one.
func NewLoadStep(load Loader, ids *guid.Allocator) *LoadStep {
	if load == nil {
		load = artifact.LoadFile
	}
	if ids == nil {
		ids = guid.Default()
	}
	return &LoadStep{load: load, ids: ids}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return StepLoad
}

// Do executes the load step.
func (s *LoadStep) Do(_ context.Context, report *model.Report) error {
	artifacts, err := s.load(report.Source)
	if err != nil {
		return err
	}

	report.Artifacts = artifacts
	report.PageURL = artifacts.FinalURL()
	if report.RunID == "" {
		report.RunID = s.ids.AllocateUUID4()
	}
	return nil
}

// OriginStep counts the page's listeners by the site that registered them.
// The breakdown is informational; audits compare exact hosts.
type OriginStep struct {
	logger *slog.Logger
}

// NewOriginStep creates an OriginStep. A nil logger uses slog.Default().
func NewOriginStep(logger *slog.Logger) *OriginStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &OriginStep{logger: logger}
}

// Name returns the step name.
func (s *OriginStep) Name() string {
	return StepOrigin
}

// Do executes the origin step. It does nothing when the listener artifact
// is not ready.
func (s *OriginStep) Do(_ context.Context, report *model.Report) error {
	if report.Artifacts == nil {
		return nil
	}
	records, ok := report.Artifacts.PageLevelEventListeners.Listeners()
	if !ok {
		s.logger.Debug("skipping origin breakdown",
			"source", report.Source,
			"state", report.Artifacts.PageLevelEventListeners.State().String(),
		)
		return nil
	}

	report.Origins = BreakdownOrigins(report.Artifacts.FinalURL(), records)
	return nil
}

// BreakdownOrigins counts records as first or third party relative to
// pageURL and groups them by registrable domain, largest group first.
func BreakdownOrigins(pageURL string, records []model.ListenerRecord) *model.OriginBreakdown {
	pageHost, _ := audit.HostOf(pageURL)
	breakdown := &model.OriginBreakdown{PageHost: pageHost}

	counts := make(map[string]int)
	for _, r := range records {
		if audit.SameHost(r.URL, pageHost) {
			breakdown.FirstParty++
		} else {
			breakdown.ThirdParty++
		}
		counts[SiteOf(r.URL)]++
	}

	for site, n := range counts {
		breakdown.Sites = append(breakdown.Sites, model.SiteCount{Site: site, Listeners: n})
	}
	sort.Slice(breakdown.Sites, func(i, j int) bool {
		a, b := breakdown.Sites[i], breakdown.Sites[j]
		if a.Listeners != b.Listeners {
			return a.Listeners > b.Listeners
		}
		return a.Site < b.Site
	})
	return breakdown
}

// SiteOf returns the registrable domain (eTLD+1) of rawURL's host.
// IP addresses and hosts without a public suffix are returned as is.
func SiteOf(rawURL string) string {
	authority, ok := audit.HostOf(rawURL)
	if !ok {
		return unknownSite
	}
	host := (&url.URL{Host: authority}).Hostname()
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// AuditStep runs the registered audits and records their outcomes.
type AuditStep struct {
	registry *audit.Registry
}

// NewAuditStep creates an AuditStep for registry.
func NewAuditStep(registry *audit.Registry) *AuditStep {
	return &AuditStep{registry: registry}
}

// Name returns the step name.
func (s *AuditStep) Name() string {
	return StepAudit
}

// Do executes the audit step. Outcomes collected before an error are kept.
func (s *AuditStep) Do(ctx context.Context, report *model.Report) error {
	outcomes, err := s.registry.Run(ctx, report.Artifacts)
	for _, o := range outcomes {
		report.AddOutcome(o)
	}
	if report.Summary == nil {
		report.Summary = model.NewSummary(report)
	}
	return err
}

// ReportStore persists reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.Report) (int64, error)
}

// StoreStep saves the report for later comparison.
type StoreStep struct {
	store  ReportStore
	logger *slog.Logger
}

// NewStoreStep creates a StoreStep. A nil logger uses slog.Default().
func NewStoreStep(store ReportStore, logger *slog.Logger) *StoreStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return StepStore
}

// Do executes the store step.
func (s *StoreStep) Do(ctx context.Context, report *model.Report) error {
	id, err := s.store.SaveReport(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	s.logger.Debug("report stored", "id", id, "run_id", report.RunID)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Loader reads snapshot sources. Nil reads files.
	Loader Loader

	// Allocator supplies run IDs. Nil uses the process-wide allocator.
	Allocator *guid.Allocator

	// Store receives finished reports. Nil disables storage.
	Store ReportStore
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineLoader sets the snapshot loader.
func WithPipelineLoader(load Loader) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Loader = load
	}
}

// WithPipelineAllocator sets the run ID allocator.
func WithPipelineAllocator(ids *guid.Allocator) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Allocator = ids
	}
}

// WithPipelineStore enables storing reports.
func WithPipelineStore(store ReportStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// DefaultPipeline creates the standard pipeline: load, origin, audit and,
// when a store is configured, store.
func DefaultPipeline(registry *audit.Registry, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewLoadStep(cfg.Loader, cfg.Allocator),
		NewOriginStep(p.logger),
		NewAuditStep(registry),
	)
	if cfg.Store != nil {
		p.AddStep(NewStoreStep(cfg.Store, p.logger))
	}

	return p
}
