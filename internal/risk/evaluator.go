// Package risk turns detection results and column statistics into a
// per-column risk profile and the strategy suggestion it implies.
package risk

import (
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/detect"
	"github.com/dataveil/dataveil/internal/logger"
	"github.com/dataveil/dataveil/internal/strategy"
)

// Level is a column risk level.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Profile is the evaluated risk for one column.
type Profile struct {
	Column   string          `json:"column"`
	Level    Level           `json:"level"`
	Score    int             `json:"score"` // 0-100
	Category detect.Category `json:"category,omitempty"`
	// Suggested is the risk-tuned strategy for this column; a no-op spec
	// means the column needs no transformation.
	Suggested strategy.Spec `json:"-"`
}

// Evaluator applies the risk policy.
type Evaluator struct {
	config config.RiskConfig
	logger *logger.Logger
}

// New creates an evaluator.
func New(cfg config.RiskConfig, log *logger.Logger) *Evaluator {
	return &Evaluator{config: cfg, logger: log}
}

// Evaluate computes the risk profile for a single column.
//
// Policy: category drives the base level; a uniqueness ratio above the
// threshold escalates one level (near-unique columns are quasi-identifiers);
// a null ratio near 1 caps the level at low.
func (e *Evaluator) Evaluate(result detect.Result, stats dataset.ColumnStats) Profile {
	profile := Profile{Column: result.Column, Level: LevelLow}

	best, detected := result.Best()
	if detected {
		profile.Category = best.Category
		profile.Level = baseLevel(best.Category)
	}

	if stats.UniquenessRatio > e.config.UniquenessThreshold && stats.DistinctCount > 1 {
		profile.Level = escalate(profile.Level)
	}

	if stats.NullRatio > e.config.NullRatioThreshold {
		profile.Level = LevelLow
	}

	profile.Score = levelScore(profile.Level)
	profile.Suggested = e.suggest(profile.Category, profile.Level)

	e.logger.Debug("Column risk evaluated",
		zap.String("column", result.Column),
		zap.String("level", string(profile.Level)),
		zap.Float64("uniqueness_ratio", stats.UniquenessRatio),
		zap.Float64("null_ratio", stats.NullRatio),
	)

	return profile
}

// EvaluateAll evaluates every column of a dataset.
func (e *Evaluator) EvaluateAll(ds *dataset.Dataset, results map[string]detect.Result) map[string]Profile {
	profiles := make(map[string]Profile, len(ds.Columns))
	for _, column := range ds.Columns {
		profiles[column] = e.Evaluate(results[column], ds.Stats(column))
	}
	return profiles
}

// GlobalScore averages per-column scores into a dataset-level indicator.
func GlobalScore(profiles map[string]Profile) int {
	if len(profiles) == 0 {
		return 0
	}
	total := 0
	for _, p := range profiles {
		total += p.Score
	}
	return total / len(profiles)
}

func baseLevel(category detect.Category) Level {
	switch category {
	case detect.CategoryNationalID, detect.CategoryEmail, detect.CategoryPhone:
		return LevelHigh
	case detect.CategoryDate, detect.CategoryGeo, detect.CategoryAge:
		return LevelMedium
	default:
		return LevelLow
	}
}

func escalate(level Level) Level {
	switch level {
	case LevelLow:
		return LevelMedium
	case LevelMedium:
		return LevelHigh
	default:
		return LevelHigh
	}
}

func levelScore(level Level) int {
	switch level {
	case LevelHigh:
		return 85
	case LevelMedium:
		return 60
	default:
		return 20
	}
}

// suggest picks the strategy a column should get for its category at the
// evaluated risk level.
func (e *Evaluator) suggest(category detect.Category, level Level) strategy.Spec {
	if level == LevelLow {
		return strategy.Spec{}
	}

	switch category {
	case detect.CategoryNationalID:
		return strategy.Parse("hash:length=16")
	case detect.CategoryEmail, detect.CategoryPhone:
		return strategy.Parse("mask")
	case detect.CategoryName:
		return strategy.Parse("pseudonym")
	case detect.CategoryDate:
		granularity := "year_month"
		if level == LevelHigh {
			granularity = "year"
		}
		return strategy.Parse("generalize_date:granularity=" + granularity)
	case detect.CategoryGeo:
		return strategy.Parse("generalize_geo:levels=2")
	case detect.CategoryAge:
		return strategy.Parse("bucket_age")
	case detect.CategoryNumeric:
		return strategy.Parse("bucket_numeric:size=10")
	case detect.CategoryFreeText:
		return strategy.Parse("redact_text")
	default:
		// Escalated but uncategorized: near-unique free column, hash it
		if level == LevelHigh {
			return strategy.Parse("hash:length=16")
		}
		return strategy.Spec{}
	}
}
