package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/logger"
	"github.com/dataveil/dataveil/internal/strategy"
	"github.com/dataveil/dataveil/internal/transform"
)

func testPipeline(observer Observer) *Pipeline {
	cfg := config.AnonymizeConfig{Salt: "pepper", BatchSize: 2, Workers: 2, GeoLevels: 2}
	return New(cfg, &logger.Logger{Logger: zap.NewNop()}, observer)
}

func testDataset(rows int) *dataset.Dataset {
	ds := dataset.New([]string{"nombre", "email", "edad"})
	for i := 0; i < rows; i++ {
		ds.Rows = append(ds.Rows, dataset.Row{
			"nombre": fmt.Sprintf("Cliente %d", i%3),
			"email":  fmt.Sprintf("user%d@example.com", i),
			"edad":   "34",
		})
	}
	return ds
}

// TestRun tests end-to-end anonymization runs
func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("PlanApplied", func(t *testing.T) {
		p := testPipeline(nil)
		ds := dataset.New([]string{"email"})
		ds.Rows = []dataset.Row{{"email": "a@b.com"}}

		result, err := p.Run(ctx, ds, map[string]string{"email": "mask"}, nil, Options{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if got := result.Output.Rows[0]["email"]; got != "a***@b.com" {
			t.Errorf("Expected a***@b.com, got %q", got)
		}
		if result.Counts["email"].Transformed != 1 {
			t.Errorf("Expected 1 transformed, got %d", result.Counts["email"].Transformed)
		}
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		p := testPipeline(nil)
		ds := dataset.New([]string{"email"})
		ds.Rows = []dataset.Row{{"email": "a@b.com"}}

		if _, err := p.Run(ctx, ds, map[string]string{"email": "mask"}, nil, Options{}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if ds.Rows[0]["email"] != "a@b.com" {
			t.Error("Input dataset was mutated")
		}
	})

	t.Run("SuggestionsApply", func(t *testing.T) {
		p := testPipeline(nil)
		ds := testDataset(4)
		suggestions := map[string]strategy.Spec{"email": strategy.Parse("mask")}

		result, err := p.Run(ctx, ds, nil, suggestions, Options{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		for i, row := range result.Output.Rows {
			if strings.Contains(row["email"], "user") {
				t.Errorf("Row %d email not masked: %q", i, row["email"])
			}
			if row["edad"] != "34" {
				t.Errorf("Row %d untargeted column changed: %q", i, row["edad"])
			}
		}
	})

	t.Run("AbsentPlanColumnsIgnored", func(t *testing.T) {
		p := testPipeline(nil)
		ds := testDataset(2)
		plan := map[string]string{"email": "mask", "ghost": "drop"}

		result, err := p.Run(ctx, ds, plan, nil, Options{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if _, ok := result.Resolved["ghost"]; ok {
			t.Error("Absent column should be dropped from the resolved plan")
		}
	})

	t.Run("NothingToDo", func(t *testing.T) {
		p := testPipeline(nil)
		_, err := p.Run(ctx, testDataset(2), nil, nil, Options{})
		if !errors.Is(err, ErrNothingToDo) {
			t.Errorf("Expected ErrNothingToDo, got %v", err)
		}

		_, err = p.Run(ctx, testDataset(2), map[string]string{"ghost": "drop"}, nil, Options{})
		if !errors.Is(err, ErrNothingToDo) {
			t.Errorf("Plan of only absent columns should be nothing to do, got %v", err)
		}
	})

	t.Run("PseudonymConsistentAcrossBatches", func(t *testing.T) {
		// BatchSize 2 forces multiple batches; repeated names must keep
		// one code per value for the whole run
		p := testPipeline(nil)
		ds := testDataset(10)

		result, err := p.Run(ctx, ds, map[string]string{"nombre": "pseudonym"}, nil, Options{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		codes := make(map[string]string)
		for i, row := range result.Output.Rows {
			original := ds.Rows[i]["nombre"]
			if prev, ok := codes[original]; ok && prev != row["nombre"] {
				t.Fatalf("Value %q got two pseudonyms: %q and %q", original, prev, row["nombre"])
			}
			codes[original] = row["nombre"]
		}
		if len(codes) != 3 {
			t.Errorf("Expected 3 distinct pseudonyms, got %d", len(codes))
		}
	})

	t.Run("PseudonymsDifferAcrossRuns", func(t *testing.T) {
		p := testPipeline(nil)
		ds := testDataset(2)
		plan := map[string]string{"nombre": "pseudonym"}

		first, err := p.Run(ctx, ds, plan, nil, Options{})
		if err != nil {
			t.Fatalf("First run failed: %v", err)
		}
		second, err := p.Run(ctx, ds, plan, nil, Options{})
		if err != nil {
			t.Fatalf("Second run failed: %v", err)
		}
		if first.Output.Rows[0]["nombre"] == second.Output.Rows[0]["nombre"] {
			t.Error("Pseudonyms must not repeat across runs")
		}
	})

	t.Run("SampleMode", func(t *testing.T) {
		p := testPipeline(nil)
		ds := testDataset(10)

		result, err := p.Run(ctx, ds, map[string]string{"email": "mask"}, nil, Options{SampleRows: 3})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.Rows != 3 || len(result.Output.Rows) != 3 {
			t.Errorf("Expected 3 output rows, got %d", len(result.Output.Rows))
		}
		if !result.Sampled {
			t.Error("Sampled flag not set")
		}
	})

	t.Run("SampleLargerThanDataset", func(t *testing.T) {
		p := testPipeline(nil)
		ds := testDataset(2)

		result, err := p.Run(ctx, ds, map[string]string{"email": "mask"}, nil, Options{SampleRows: 100})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.Sampled {
			t.Error("Full pass must not report sampling")
		}
		if result.Rows != 2 {
			t.Errorf("Expected 2 rows, got %d", result.Rows)
		}
	})

	t.Run("DropColumn", func(t *testing.T) {
		p := testPipeline(nil)
		ds := testDataset(3)

		result, err := p.Run(ctx, ds, map[string]string{"nombre": "drop"}, nil, Options{})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		for _, row := range result.Output.Rows {
			if row["nombre"] != transform.DropSentinel {
				t.Errorf("Expected %q, got %q", transform.DropSentinel, row["nombre"])
			}
		}
		if result.Counts["nombre"].Transformed != 3 {
			t.Errorf("Drop should count every row, got %d", result.Counts["nombre"].Transformed)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		p := testPipeline(nil)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Run(cancelled, testDataset(10), map[string]string{"email": "mask"}, nil, Options{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

type recordingObserver struct {
	mu    sync.Mutex
	calls [][2]int
}

func (o *recordingObserver) RunProgress(runID string, processed, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, [2]int{processed, total})
}

// TestObserver tests progress reporting
func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	p := testPipeline(obs)
	ds := testDataset(5)

	if _, err := p.Run(context.Background(), ds, map[string]string{"email": "mask"}, nil, Options{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// BatchSize 2, 5 rows: progress after 2, 4, 5
	if len(obs.calls) != 3 {
		t.Fatalf("Expected 3 progress calls, got %d", len(obs.calls))
	}
	last := obs.calls[len(obs.calls)-1]
	if last[0] != 5 || last[1] != 5 {
		t.Errorf("Final progress should be 5/5, got %d/%d", last[0], last[1])
	}
}
