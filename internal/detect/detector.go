// Package detect classifies dataset columns into PII categories using a
// name-based keyword pass and a content-based recognizer pass over a
// bounded row sample.
package detect

import (
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/logger"
	"github.com/dataveil/dataveil/internal/strategy"
)

// Detector runs PII detection over datasets.
type Detector struct {
	config config.DetectionConfig
	logger *logger.Logger
}

// New creates a detector.
func New(cfg config.DetectionConfig, log *logger.Logger) *Detector {
	return &Detector{config: cfg, logger: log}
}

// DetectColumns produces a detection result per column. Both passes run
// independently; per category the higher confidence wins.
func (d *Detector) DetectColumns(ds *dataset.Dataset) map[string]Result {
	results := make(map[string]Result, len(ds.Columns))

	for _, column := range ds.Columns {
		result := d.detectColumn(ds, column)
		results[column] = result

		if result.Detected() {
			best, _ := result.Best()
			d.logger.Debug("PII column detected",
				zap.String("column", column),
				zap.String("category", string(best.Category)),
				zap.Float64("confidence", best.Confidence),
				zap.Int("findings", len(result.Findings)),
			)
		}
	}

	return results
}

func (d *Detector) detectColumn(ds *dataset.Dataset, column string) Result {
	byCategory := make(map[Category]float64)

	for _, f := range matchByName(column) {
		if f.Confidence > byCategory[f.Category] {
			byCategory[f.Category] = f.Confidence
		}
	}

	sample := ds.Sample(column, d.config.SampleRows)
	if len(sample) > 0 {
		for category, matches := range contentRecognizers {
			hits := 0
			for _, v := range sample {
				if matches(v) {
					hits++
				}
			}
			confidence := float64(hits) / float64(len(sample))
			if confidence < d.config.MinConfidence {
				continue
			}
			if confidence > byCategory[category] {
				byCategory[category] = confidence
			}
		}
	}

	result := Result{Column: column}
	for _, category := range priorityOrder {
		if confidence, ok := byCategory[category]; ok {
			result.Findings = append(result.Findings, Finding{Category: category, Confidence: confidence})
		}
	}

	if best, ok := result.Best(); ok {
		result.Suggested = DefaultSuggestion(best.Category)
		result.SuggestedRaw = result.Suggested.String()
	}

	return result
}

// DefaultSuggestion maps a category to its baseline strategy. Risk
// evaluation may override it with a tuned spec.
func DefaultSuggestion(category Category) strategy.Spec {
	switch category {
	case CategoryNationalID:
		return strategy.Parse("hash:length=16")
	case CategoryEmail, CategoryPhone:
		return strategy.Parse("mask")
	case CategoryDate:
		return strategy.Parse("generalize_date:granularity=year_month")
	case CategoryGeo:
		return strategy.Parse("generalize_geo:levels=2")
	case CategoryAge:
		return strategy.Parse("bucket_age")
	case CategoryNumeric:
		return strategy.Parse("bucket_numeric:size=10")
	case CategoryName:
		return strategy.Parse("pseudonym")
	case CategoryFreeText:
		return strategy.Parse("redact_text")
	default:
		return strategy.Spec{}
	}
}
