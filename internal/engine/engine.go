// =============================================================================
// BBOX Fuel Dispense Analyzer - Engine
// =============================================================================
//
// This module orchestrates the pipeline for many sources, from raw records to
// the cumulative model.
//
// PROCESSING PIPELINE (per source):
//   1. Read the source's records
//   2. Extract typed LogEvents and a partial catalog
//   3. Reconstruct DispensingEvents from the events
//   4. Merge the catalog delta and the events into the Store
//
// CONCURRENCY:
//   Steps 1-3 are pure per source and run in a bounded worker pool. Step 4 is
//   the only shared mutation; it is serialized by the engine and atomic per
//   source. A failed source merges nothing. Cancellation is checked between
//   sources only; a source that has started runs to completion.
//
// =============================================================================

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/catalog"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/extract"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/logging"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/metrics"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/reconstruct"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/series"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

// DefaultWorkers is the pool size used when Options.Workers is not positive.
const DefaultWorkers = 4

// =============================================================================
// SOURCES AND OUTCOMES
// =============================================================================

// Source is one log file or stream. Records must return rows in file order.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]types.Record, error)
}

// SourceOutcome is the self-contained result of processing one source.
type SourceOutcome struct {
	Source       string
	Events       []types.DispensingEvent
	CatalogDelta *catalog.Partial

	Extract      extract.Stats
	Transactions reconstruct.Stats
}

// ProcessSource extracts and reconstructs one source. It touches no shared
// state and is safe to call concurrently.
func ProcessSource(name string, records []types.Record) (*SourceOutcome, error) {
	ex, err := extract.Extract(records)
	if err != nil {
		return nil, &SourceError{Source: name, Err: err}
	}
	rc, err := reconstruct.Reconstruct(ex.Events, ex.Catalog)
	if err != nil {
		return nil, &SourceError{Source: name, Err: err}
	}
	return &SourceOutcome{
		Source:       name,
		Events:       rc.Events,
		CatalogDelta: ex.Catalog,
		Extract:      ex.Stats,
		Transactions: rc.Stats,
	}, nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Options configures an Engine. Zero values are usable.
type Options struct {
	Workers  int
	Logger   *slog.Logger
	Metrics  *metrics.AnalyzerMetrics
	Reporter Reporter
}

// Engine owns the Store and serializes every merge into it.
type Engine struct {
	mu    sync.RWMutex
	store *Store

	reportMu sync.Mutex
	reporter Reporter

	workers int
	logger  *slog.Logger
	metrics *metrics.AnalyzerMetrics
}

// New creates an Engine with an empty Store.
func New(opts Options) *Engine {
	e := &Engine{
		store:    NewStore(),
		reporter: opts.Reporter,
		workers:  opts.Workers,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.reporter == nil {
		e.reporter = nopReporter{}
	}
	return e
}

// Merge commits o into the Store. Merges are serialized; calling Merge
// twice with the same outcome double-counts its events.
func (e *Engine) Merge(o *SourceOutcome) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.MergeStarted()
	defer e.metrics.MergeDone()
	return e.store.Commit(o)
}

// =============================================================================
// RUN
// =============================================================================

// Summary describes one Run.
type Summary struct {
	RunID     string
	Total     int
	Processed int
	Skipped   int
	Events    int
	Failures  []*SourceError
	Duration  time.Duration
}

// Failed returns the number of failed sources.
func (s *Summary) Failed() int { return len(s.Failures) }

func (s *Summary) String() string {
	return fmt.Sprintf("run %s: %d/%d sources processed, %d failed, %d skipped, %d events in %s",
		s.RunID, s.Processed, s.Total, s.Failed(), s.Skipped, s.Events, s.Duration.Round(time.Millisecond))
}

// Run processes sources in a pool of Options.Workers goroutines and merges
// each successful outcome. A failing source is reported and skipped; it
// never stops the run. When ctx is cancelled no further source is started,
// the summary covers what finished, and ctx's error is returned.
func (e *Engine) Run(ctx context.Context, sources []Source) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.NewString(), Total: len(sources)}
	var sumMu sync.Mutex

	logger := e.logger.With("run_id", sum.RunID)
	logger.Info("run started", "sources", len(sources), "workers", e.workers)

	var g errgroup.Group
	g.SetLimit(e.workers)

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			n, err := e.runSource(ctx, src, logger)

			sumMu.Lock()
			if err != nil {
				sum.Failures = append(sum.Failures, err)
			} else {
				sum.Processed++
				sum.Events += n
			}
			sumMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sum.Skipped = sum.Total - sum.Processed - sum.Failed()
	sum.Duration = time.Since(start)

	logger.Info("run finished",
		"processed", sum.Processed,
		"failed", sum.Failed(),
		"skipped", sum.Skipped,
		"events", sum.Events,
		"duration", sum.Duration)
	e.report(func(r Reporter) { r.Finished(sum.String()) })

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// runSource reads, processes and merges one source. It returns the number
// of merged events.
func (e *Engine) runSource(ctx context.Context, src Source, logger *slog.Logger) (int, *SourceError) {
	name := src.Name()
	started := time.Now()

	outcome, err := e.processOne(ctx, src)
	if err == nil {
		if mergeErr := e.Merge(outcome); mergeErr != nil {
			err = &SourceError{Source: name, Err: mergeErr}
		}
	}

	elapsed := time.Since(started)
	if err != nil {
		e.metrics.ObserveSource(metrics.StatusFailed, elapsed)
		logger.Error("source failed", "source", name, "error", err.Err)
		e.report(func(r Reporter) { r.SourceDone(name, "failed: "+err.Err.Error()) })
		return 0, err
	}

	e.metrics.ObserveSource(metrics.StatusOK, elapsed)
	e.metrics.AddRecords(outcome.Extract.Routed, outcome.Extract.CatalogOnly, outcome.Extract.Dropped)
	e.metrics.AddTransactions(outcome.Transactions.Emitted, outcome.Transactions.Aborted, outcome.Transactions.Unstarted)
	logger.Debug("source processed",
		"source", name,
		"records", outcome.Extract.Records,
		"events", len(outcome.Events),
		"aborted", outcome.Transactions.Aborted,
		"elapsed", elapsed)
	e.report(func(r Reporter) { r.SourceDone(name, fmt.Sprintf("ok (%d events)", len(outcome.Events))) })
	return len(outcome.Events), nil
}

func (e *Engine) processOne(ctx context.Context, src Source) (*SourceOutcome, *SourceError) {
	records, err := src.Records(ctx)
	if err != nil {
		return nil, &SourceError{Source: src.Name(), Err: err}
	}
	outcome, err := ProcessSource(src.Name(), records)
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &SourceError{Source: src.Name(), Err: err}
	}
	return outcome, nil
}

func (e *Engine) report(fn func(Reporter)) {
	e.reportMu.Lock()
	defer e.reportMu.Unlock()
	fn(e.reporter)
}

// =============================================================================
// QUERIES
// =============================================================================

// QueryRateSeries returns the rate points of a column and fuel within r.
func (e *Engine) QueryRateSeries(column int, fuel string, r types.DateRange) []series.RatePoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Series().Query(column, fuel, r)
}

// MeanRate returns the mean rate of a column and fuel within r.
func (e *Engine) MeanRate(column int, fuel string, r types.DateRange) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Series().MeanRate(column, fuel, r)
}

// ObservedDateRange returns the earliest and latest dates with events.
func (e *Engine) ObservedDateRange() (first, last types.Date, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Series().ObservedRange()
}

// Rows returns every event in report order.
func (e *Engine) Rows() []series.Row {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Series().Rows()
}

// Catalog returns a snapshot of the global catalogs.
func (e *Engine) Catalog() *catalog.Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Catalog().Clone()
}

// Merged returns the number of sources committed so far.
func (e *Engine) Merged() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Merged()
}
