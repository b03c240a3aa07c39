package risk

import (
	"testing"

	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/detect"
	"github.com/dataveil/dataveil/internal/logger"
)

func testEvaluator() *Evaluator {
	cfg := config.RiskConfig{UniquenessThreshold: 0.9, NullRatioThreshold: 0.97}
	return New(cfg, &logger.Logger{Logger: zap.NewNop()})
}

func result(column string, category detect.Category) detect.Result {
	return detect.Result{
		Column:   column,
		Findings: []detect.Finding{{Category: category, Confidence: 1.0}},
	}
}

// TestEvaluate tests the risk policy
func TestEvaluate(t *testing.T) {
	e := testEvaluator()

	t.Run("DirectIdentifiersAreHigh", func(t *testing.T) {
		for _, category := range []detect.Category{detect.CategoryNationalID, detect.CategoryEmail, detect.CategoryPhone} {
			profile := e.Evaluate(result("c", category), dataset.ColumnStats{RowCount: 10, DistinctCount: 3, UniquenessRatio: 0.3})
			if profile.Level != LevelHigh {
				t.Errorf("%s should be high risk, got %s", category, profile.Level)
			}
			if profile.Score != 85 {
				t.Errorf("%s should score 85, got %d", category, profile.Score)
			}
		}
	})

	t.Run("QuasiIdentifiersAreMedium", func(t *testing.T) {
		profile := e.Evaluate(result("c", detect.CategoryDate), dataset.ColumnStats{RowCount: 10, DistinctCount: 3, UniquenessRatio: 0.3})
		if profile.Level != LevelMedium {
			t.Errorf("Date should be medium risk, got %s", profile.Level)
		}
		if profile.Score != 60 {
			t.Errorf("Medium should score 60, got %d", profile.Score)
		}
	})

	t.Run("UniquenessEscalates", func(t *testing.T) {
		stats := dataset.ColumnStats{RowCount: 100, DistinctCount: 98, UniquenessRatio: 0.98}
		profile := e.Evaluate(result("c", detect.CategoryDate), stats)
		if profile.Level != LevelHigh {
			t.Errorf("Near-unique date should escalate to high, got %s", profile.Level)
		}
	})

	t.Run("SingleValueColumnDoesNotEscalate", func(t *testing.T) {
		// One distinct value has ratio 1.0 but identifies nobody
		stats := dataset.ColumnStats{RowCount: 100, DistinctCount: 1, UniquenessRatio: 1.0}
		profile := e.Evaluate(result("c", detect.CategoryDate), stats)
		if profile.Level != LevelMedium {
			t.Errorf("Constant column should not escalate, got %s", profile.Level)
		}
	})

	t.Run("NullRatioCapsAtLow", func(t *testing.T) {
		stats := dataset.ColumnStats{RowCount: 100, DistinctCount: 2, NullCount: 98, NullRatio: 0.98}
		profile := e.Evaluate(result("c", detect.CategoryEmail), stats)
		if profile.Level != LevelLow {
			t.Errorf("Nearly-empty column should cap at low, got %s", profile.Level)
		}
	})

	t.Run("UndetectedIsLow", func(t *testing.T) {
		profile := e.Evaluate(detect.Result{Column: "c"}, dataset.ColumnStats{RowCount: 10, DistinctCount: 3, UniquenessRatio: 0.3})
		if profile.Level != LevelLow {
			t.Errorf("Undetected column should be low risk, got %s", profile.Level)
		}
		if !profile.Suggested.IsNoop() {
			t.Errorf("Low risk should suggest nothing, got %q", profile.Suggested.String())
		}
	})

	t.Run("HighRiskDateTightensGranularity", func(t *testing.T) {
		stats := dataset.ColumnStats{RowCount: 100, DistinctCount: 98, UniquenessRatio: 0.98}
		profile := e.Evaluate(result("c", detect.CategoryDate), stats)
		if got := profile.Suggested.StringOr("granularity", ""); got != "year" {
			t.Errorf("High risk date should suggest year granularity, got %q", got)
		}
	})

	t.Run("EscalatedNumericGetsBuckets", func(t *testing.T) {
		stats := dataset.ColumnStats{RowCount: 100, DistinctCount: 98, UniquenessRatio: 0.98}
		profile := e.Evaluate(result("c", detect.CategoryNumeric), stats)
		if profile.Level != LevelMedium {
			t.Fatalf("Expected escalation to medium, got %s", profile.Level)
		}
		if profile.Suggested.Name != "bucket_numeric" {
			t.Errorf("Expected bucket_numeric suggestion, got %q", profile.Suggested.Name)
		}
	})

	t.Run("UncategorizedNearUniqueEscalates", func(t *testing.T) {
		// No category at all: base low, near-unique escalates to medium
		stats := dataset.ColumnStats{RowCount: 100, DistinctCount: 98, UniquenessRatio: 0.98}
		profile := e.Evaluate(detect.Result{Column: "c"}, stats)
		if profile.Level != LevelMedium {
			t.Fatalf("Expected escalation to medium, got %s", profile.Level)
		}
	})
}

// TestGlobalScore tests dataset-level scoring
func TestGlobalScore(t *testing.T) {
	t.Run("Average", func(t *testing.T) {
		profiles := map[string]Profile{
			"a": {Score: 85},
			"b": {Score: 60},
			"c": {Score: 20},
		}
		if got := GlobalScore(profiles); got != 55 {
			t.Errorf("Expected 55, got %d", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := GlobalScore(nil); got != 0 {
			t.Errorf("Expected 0 for no profiles, got %d", got)
		}
	})
}
