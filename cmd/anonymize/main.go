package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/detect"
	"github.com/dataveil/dataveil/internal/logger"
	"github.com/dataveil/dataveil/internal/pipeline"
	"github.com/dataveil/dataveil/internal/report"
	"github.com/dataveil/dataveil/internal/risk"
	"github.com/dataveil/dataveil/internal/strategy"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path")
		inputFile   = flag.String("input", "", "Input dataset file (CSV, TSV, JSON, or Parquet)")
		outputFile  = flag.String("output", "", "Output file path (default: <input>_anon.<ext>)")
		planFile    = flag.String("plan", "", "JSON file mapping column names to strategy expressions")
		sampleRows  = flag.Int("sample-rows", 0, "Anonymize only the first N rows (preview mode)")
		analyzeOnly = flag.Bool("analyze-only", false, "Detect PII and print suggestions, don't transform")
		dryRun      = flag.Bool("dry-run", false, "Run the pipeline but don't write output files")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input clients.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input clients.csv --plan plan.json --output safe.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input clients.parquet --analyze-only\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling run...")
		cancel()
	}()

	if err := run(ctx, cfg, log, *inputFile, *outputFile, *planFile, *sampleRows, *analyzeOnly, *dryRun); err != nil {
		log.Fatal("Run failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, inputFile, outputFile, planFile string, sampleRows int, analyzeOnly, dryRun bool) error {
	ds, err := dataset.Load(inputFile, 0)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	log.Info("Dataset loaded",
		zap.String("input", inputFile),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)),
	)

	detector := detect.New(cfg.Detection, log.WithComponent("detect"))
	evaluator := risk.New(cfg.Risk, log.WithComponent("risk"))

	results := detector.DetectColumns(ds)
	profiles := evaluator.EvaluateAll(ds, results)

	if analyzeOnly {
		printAnalysis(results, profiles)
		return nil
	}

	plan, err := loadPlan(planFile)
	if err != nil {
		return err
	}

	suggestions := make(map[string]strategy.Spec, len(profiles))
	for column, profile := range profiles {
		if !profile.Suggested.IsNoop() {
			suggestions[column] = profile.Suggested
		}
	}

	pipe := pipeline.New(cfg.Anonymize, log.WithComponent("pipeline"), nil)
	result, err := pipe.Run(ctx, ds, plan, suggestions, pipeline.Options{SampleRows: sampleRows})
	if err != nil {
		return err
	}

	if outputFile == "" {
		ext := filepath.Ext(inputFile)
		outputFile = strings.TrimSuffix(inputFile, ext) + "_anon" + ext
	}
	outputFile = dataset.SavePath(outputFile)

	rep := report.Generate(result, results, profiles, filepath.Base(inputFile), filepath.Base(outputFile))

	if dryRun {
		log.Info("Dry run, skipping output",
			zap.String("run_id", result.RunID),
			zap.Int("rows", result.Rows),
			zap.Int("global_score", rep.GlobalScore),
		)
		return nil
	}

	if err := dataset.Save(result.Output, outputFile); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := report.WriteJSON(rep, outputFile+".report.json"); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	log.Info("Anonymization complete",
		zap.String("run_id", result.RunID),
		zap.String("output", outputFile),
		zap.Int("rows", result.Rows),
		zap.Bool("sampled", result.Sampled),
		zap.Duration("duration", result.Duration),
	)
	return nil
}

// loadPlan reads a column-to-strategy JSON map, e.g.
// {"email": "mask", "salary": "bucket_numeric:size=500"}.
func loadPlan(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	plan := make(map[string]string)
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	return plan, nil
}

func printAnalysis(results map[string]detect.Result, profiles map[string]risk.Profile) {
	columns := make([]string, 0, len(results))
	for column, result := range results {
		if result.Detected() {
			columns = append(columns, column)
		}
	}
	sort.Strings(columns)

	fmt.Printf("Detected %d PII column(s), global risk score %d\n\n", len(columns), risk.GlobalScore(profiles))
	for _, column := range columns {
		profile := profiles[column]
		suggested := profile.Suggested.String()
		if profile.Suggested.IsNoop() {
			suggested = "(none)"
		}
		fmt.Printf("  %-24s %-12s risk=%-6s suggested=%s\n",
			column, profile.Category, profile.Level, suggested)
	}
}
