// Package pipeline orchestrates anonymization runs: it resolves the
// effective strategy per column, owns the run-scoped pseudonym registry,
// and applies the transform library over the dataset in batched,
// worker-parallel row ranges.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/logger"
	"github.com/dataveil/dataveil/internal/strategy"
	"github.com/dataveil/dataveil/internal/transform"
)

// ErrNothingToDo is returned when neither the caller plan nor the
// suggestions name any applicable column. The caller decides how to
// surface it; the pipeline never silently emits an unmodified copy.
var ErrNothingToDo = errors.New("no columns to anonymize")

// ColumnCounts tracks per-column transformation outcomes for the report.
type ColumnCounts struct {
	Transformed int `json:"transformed"`
	Unchanged   int `json:"unchanged"`
}

// RunResult is the outcome of one anonymization run.
type RunResult struct {
	RunID    string                   `json:"run_id"`
	Output   *dataset.Dataset         `json:"-"`
	Resolved map[string]strategy.Spec `json:"-"`
	Counts   map[string]ColumnCounts  `json:"counts"`
	Rows     int                      `json:"rows"`
	Sampled  bool                     `json:"sampled"`
	Duration time.Duration            `json:"duration"`
}

// Observer receives run progress callbacks, e.g. for dashboard streaming.
type Observer interface {
	RunProgress(runID string, processed, total int)
}

// Options control a single run.
type Options struct {
	// SampleRows > 0 limits the run to the first N rows (preview mode).
	// Preview and full runs share identical transform semantics.
	SampleRows int
}

// Pipeline applies anonymization plans to datasets.
type Pipeline struct {
	config      config.AnonymizeConfig
	transformer *transform.Transformer
	logger      *logger.Logger
	observer    Observer
}

// New creates a pipeline. observer may be nil.
func New(cfg config.AnonymizeConfig, log *logger.Logger, observer Observer) *Pipeline {
	return &Pipeline{
		config:      cfg,
		transformer: transform.New(cfg.Salt),
		logger:      log,
		observer:    observer,
	}
}

// Run anonymizes a dataset. The input dataset is never mutated; a new one
// is produced. Plan columns absent from the dataset are ignored. When the
// resolved plan is empty, ErrNothingToDo is returned.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, plan map[string]string, suggestions map[string]strategy.Spec, opts Options) (*RunResult, error) {
	effective := strategy.Resolve(plan, suggestions)
	for column, spec := range effective {
		if !ds.HasColumn(column) {
			delete(effective, column)
			continue
		}
		// Configured default granularity for geo specs that don't pin one
		if spec.Name == strategy.NameGeneralizeGeo && p.config.GeoLevels > 0 && spec.IntOr("levels", 0) == 0 {
			spec.Params = append(spec.Params, strategy.Param{
				Key: "levels", Kind: strategy.ParamNumber, Num: float64(p.config.GeoLevels),
			})
			effective[column] = spec
		}
	}
	if len(effective) == 0 {
		return nil, ErrNothingToDo
	}

	registry, err := transform.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create pseudonym registry: %w", err)
	}

	rows := ds.Rows
	sampled := false
	if opts.SampleRows > 0 && opts.SampleRows < len(rows) {
		rows = rows[:opts.SampleRows]
		sampled = true
	}

	runID := uuid.NewString()
	log := p.logger.WithRunID(runID)
	log.Info("Anonymization run started",
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(effective)),
		zap.Bool("sampled", sampled),
		zap.Int("workers", p.config.Workers),
	)

	start := time.Now()

	result := &RunResult{
		RunID:    runID,
		Output:   dataset.New(ds.Columns),
		Resolved: effective,
		Counts:   make(map[string]ColumnCounts, len(effective)),
		Rows:     len(rows),
		Sampled:  sampled,
	}
	result.Output.Rows = make([]dataset.Row, len(rows))

	// Pre-resolve registry partitions so workers never touch the outer map
	partitions := make(map[string]*transform.ColumnRegistry)
	for column, spec := range effective {
		if spec.Name == strategy.NamePseudonym {
			partitions[column] = registry.Column(column)
		}
	}

	batchSize := p.config.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	for offset := 0; offset < len(rows); offset += batchSize {
		select {
		case <-ctx.Done():
			// Run-scoped abort: registry and partial output are discarded
			return nil, ctx.Err()
		default:
		}

		end := offset + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		p.processBatch(rows[offset:end], offset, ds.Columns, effective, partitions, result)

		if p.observer != nil {
			p.observer.RunProgress(runID, end, len(rows))
		}
	}

	result.Duration = time.Since(start)

	log.Info("Anonymization run completed",
		zap.Int("rows", result.Rows),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// processBatch fans a batch of rows out over the worker pool. Stateless
// transforms need no coordination; pseudonym lookups serialize on their
// column partition only.
func (p *Pipeline) processBatch(batch []dataset.Row, offset int, columns []string, effective map[string]strategy.Spec, partitions map[string]*transform.ColumnRegistry, result *RunResult) {
	workers := p.config.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	chunk := (len(batch) + workers - 1) / workers

	var wg sync.WaitGroup
	var mu sync.Mutex

	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(batch) {
			break
		}
		hi := lo + chunk
		if hi > len(batch) {
			hi = len(batch)
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()

			local := make(map[string]ColumnCounts, len(effective))
			for i := lo; i < hi; i++ {
				out := make(dataset.Row, len(columns))
				for _, column := range columns {
					value := batch[i][column]
					spec, ok := effective[column]
					if !ok {
						out[column] = value
						continue
					}

					transformed := p.transformer.Apply(spec, value, partitions[column])
					out[column] = transformed

					counts := local[column]
					if p.transformer.Changed(spec, value, transformed) {
						counts.Transformed++
					} else {
						counts.Unchanged++
					}
					local[column] = counts
				}
				result.Output.Rows[offset+i] = out
			}

			mu.Lock()
			for column, counts := range local {
				merged := result.Counts[column]
				merged.Transformed += counts.Transformed
				merged.Unchanged += counts.Unchanged
				result.Counts[column] = merged
			}
			mu.Unlock()
		}(lo, hi)
	}

	wg.Wait()
}
