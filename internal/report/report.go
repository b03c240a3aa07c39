// Package report builds and persists anonymization run summaries. A report
// carries strategies and counters, never raw cell values.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dataveil/dataveil/internal/detect"
	"github.com/dataveil/dataveil/internal/pipeline"
	"github.com/dataveil/dataveil/internal/risk"
)

// ColumnReport summarizes one column of a run.
type ColumnReport struct {
	Column      string `json:"column"`
	Category    string `json:"category,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	RiskLevel   string `json:"risk_level"`
	RiskScore   int    `json:"risk_score"`
	Transformed int    `json:"transformed"`
	Unchanged   int    `json:"unchanged"`
}

// Report is the immutable summary of one anonymization run.
type Report struct {
	RunID              string            `json:"run_id"`
	OriginalFilename   string            `json:"original_filename"`
	OutputFilename     string            `json:"output_filename"`
	DetectedPIIColumns []string          `json:"detected_pii_columns"`
	Columns            []ColumnReport    `json:"columns"`
	GlobalScore        int               `json:"global_score"`
	Rows               int               `json:"rows"`
	Sampled            bool              `json:"sampled"`
	Plan               map[string]string `json:"plan"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// Generate assembles the report for a completed run.
func Generate(run *pipeline.RunResult, detections map[string]detect.Result, profiles map[string]risk.Profile, originalName, outputName string) *Report {
	r := &Report{
		RunID:            run.RunID,
		OriginalFilename: originalName,
		OutputFilename:   outputName,
		GlobalScore:      risk.GlobalScore(profiles),
		Rows:             run.Rows,
		Sampled:          run.Sampled,
		Plan:             make(map[string]string, len(run.Resolved)),
		GeneratedAt:      time.Now().UTC(),
	}

	for column, spec := range run.Resolved {
		r.Plan[column] = spec.String()
	}

	for _, column := range run.Output.Columns {
		cr := ColumnReport{Column: column, RiskLevel: string(risk.LevelLow)}

		if detection, ok := detections[column]; ok && detection.Detected() {
			best, _ := detection.Best()
			cr.Category = string(best.Category)
			r.DetectedPIIColumns = append(r.DetectedPIIColumns, column)
		}
		if profile, ok := profiles[column]; ok {
			cr.RiskLevel = string(profile.Level)
			cr.RiskScore = profile.Score
		}
		if spec, ok := run.Resolved[column]; ok {
			cr.Strategy = spec.String()
		}
		if counts, ok := run.Counts[column]; ok {
			cr.Transformed = counts.Transformed
			cr.Unchanged = counts.Unchanged
		}

		r.Columns = append(r.Columns, cr)
	}

	sort.Strings(r.DetectedPIIColumns)
	return r
}

// WriteJSON persists the report beside the anonymized output.
func WriteJSON(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// ReadJSON loads a previously written report.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	return &r, nil
}
