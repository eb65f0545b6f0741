package audit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nao1215/passivescan/internal/guid"
	"github.com/nao1215/passivescan/internal/model"
)

// Category constants.
const (
	// CategoryJavaScript is used by audits about script behavior.
	CategoryJavaScript = "JavaScript"
)

// Audit is a single best-practice check.
type Audit interface {
	// Meta returns the audit's static descriptor.
	Meta() model.AuditMeta

	// Run evaluates the artifacts and returns the audit result.
	Run(ctx context.Context, artifacts *model.Artifacts) (model.AuditResult, error)
}

// Registry runs a list of audits against a snapshot.
type Registry struct {
	// audits is the list of registered audits in run order.
	audits []Audit

	// ids tags each outcome with a sequence number.
	ids *guid.Allocator

	// logger is used for per-audit logging.
	logger *slog.Logger
}

// RegistryOptions configures NewRegistry.
type RegistryOptions struct {
	// Disabled names built-in audits that should not be registered.
	Disabled []string

	// Allocator tags outcomes. Defaults to the process-wide allocator.
	Allocator *guid.Allocator

	// Logger receives debug logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// WithDisabled skips the named built-in audits.
func WithDisabled(names ...string) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.Disabled = append(o.Disabled, names...)
	}
}

// WithAllocator sets the allocator used to tag outcomes.
func WithAllocator(a *guid.Allocator) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.Allocator = a
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.Logger = logger
	}
}

// NewRegistry creates a Registry with all built-in audits registered,
// except those disabled by options.
func NewRegistry(opts ...func(*RegistryOptions)) *Registry {
	options := RegistryOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	r := NewEmptyRegistry(options.Allocator, options.Logger)
	for _, a := range BuiltinAudits() {
		if slices.Contains(options.Disabled, a.Meta().Name) {
			continue
		}
		r.Register(a)
	}
	return r
}

// NewEmptyRegistry creates a Registry with no audits.
// Nil arguments fall back to the process-wide allocator and default logger.
func NewEmptyRegistry(ids *guid.Allocator, logger *slog.Logger) *Registry {
	if ids == nil {
		ids = guid.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		audits: make([]Audit, 0),
		ids:    ids,
		logger: logger,
	}
}

// BuiltinAudits returns a fresh instance of every built-in audit.
func BuiltinAudits() []Audit {
	return []Audit{
		NewPassiveEventsAudit(),
	}
}

// Register adds an audit to the end of the run order.
func (r *Registry) Register(a Audit) {
	r.audits = append(r.audits, a)
}

// Metas returns the descriptors of all registered audits in run order.
func (r *Registry) Metas() []model.AuditMeta {
	metas := make([]model.AuditMeta, len(r.audits))
	for i, a := range r.audits {
		metas[i] = a.Meta()
	}
	return metas
}

// Len returns the number of registered audits.
func (r *Registry) Len() int {
	return len(r.audits)
}

// Run evaluates every registered audit against the artifacts.
// It stops between audits when ctx is cancelled and returns the outcomes
// collected so far. An audit error aborts the run.
func (r *Registry) Run(ctx context.Context, artifacts *model.Artifacts) ([]model.AuditOutcome, error) {
	outcomes := make([]model.AuditOutcome, 0, len(r.audits))

	for _, a := range r.audits {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}

		meta := a.Meta()
		result, err := r.runOne(ctx, a, meta, artifacts)
		if err != nil {
			return outcomes, fmt.Errorf("audit %s: %w", meta.Name, err)
		}

		r.logger.Debug("audit finished",
			"audit", meta.Name,
			"status", result.RawValue.String(),
			"violations", len(result.Violations()),
		)

		outcomes = append(outcomes, model.AuditOutcome{
			Seq:    r.ids.AllocateSimple(),
			Meta:   meta,
			Result: result,
		})
	}

	return outcomes, nil
}

// runOne runs a single audit after checking its orchestrator-level
// requirements. The listener artifact is left to the audit's own validator.
func (r *Registry) runOne(ctx context.Context, a Audit, meta model.AuditMeta, artifacts *model.Artifacts) (model.AuditResult, error) {
	for _, name := range meta.RequiredArtifacts {
		if name == model.ArtifactPageLevelEventListeners {
			continue
		}
		if !artifacts.Has(name) {
			return model.AuditResult{
				RawValue:    model.RawValueNotRun,
				DebugString: "missing required artifact: " + name,
			}, nil
		}
	}
	return a.Run(ctx, artifacts)
}
