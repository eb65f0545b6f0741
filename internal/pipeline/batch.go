package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/passivescan/internal/config"
	"github.com/nao1215/passivescan/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor audits multiple snapshots concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each snapshot.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent audits.
	concurrency int

	// timeout bounds each snapshot's pipeline. Zero means no limit.
	timeout time.Duration

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports in input order.
	results []*model.Report
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent audits.
// Default is config.DefaultBatchSize if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithTimeout bounds how long each snapshot may take.
func WithTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory is called once per snapshot so no state leaks between runs.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     config.DefaultBatchSize,
		results:         make([]*model.Report, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// run executes a fresh pipeline for source.
func (bp *BatchProcessor) run(ctx context.Context, source string) (*model.Report, error) {
	report := model.NewReport(source)

	if bp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bp.timeout)
		defer cancel()
	}

	err := bp.pipelineFactory().Execute(ctx, report)
	return report, err
}

// cancelled returns a report for a source that never started.
func cancelled(source string, err error) *model.Report {
	report := model.NewReport(source)
	report.TimedOut = true
	report.SetError(err)
	return report
}

// ProcessBatch audits every source concurrently and returns one report per
// source in input order. Reports are returned even for sources that failed;
// the error is non-nil only if the batch itself was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sources []string) ([]*model.Report, error) {
	bp.logger.Info("starting batch processing",
		"total_snapshots", len(sources),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.Report, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				bp.store(i, cancelled(source, gctx.Err()))
				return gctx.Err()
			default:
			}

			bp.logger.Info("auditing snapshot",
				"file", source,
				"index", i+1,
				"total", len(sources),
			)

			report, err := bp.run(gctx, source)
			bp.store(i, report)

			if err != nil {
				bp.logger.Warn("audit failed",
					"file", source,
					"error", err,
				)
				// Recorded in the report; other snapshots keep going.
				return nil
			}

			bp.logger.Info("audit completed",
				"file", source,
				"page_url", report.PageURL,
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_snapshots", len(sources),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

func (bp *BatchProcessor) store(i int, report *model.Report) {
	bp.mu.Lock()
	bp.results[i] = report
	bp.mu.Unlock()
}

// ProcessBatchWithCallback audits every source and calls callback with each
// finished report and its index in sources. The callback runs on the worker
// goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sources []string,
	callback func(report *model.Report, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_snapshots", len(sources),
		"concurrency", bp.concurrency,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			report, _ := bp.run(gctx, source) //nolint:errcheck // Error is stored in report
			callback(report, i)
			return nil
		})
	}

	return g.Wait()
}
