package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/cache"
	"github.com/dataveil/dataveil/internal/dataset"
	"github.com/dataveil/dataveil/internal/pipeline"
	"github.com/dataveil/dataveil/internal/report"
	"github.com/dataveil/dataveil/internal/risk"
	"github.com/dataveil/dataveil/internal/strategy"
	"github.com/dataveil/dataveil/internal/websocket"
)

const previewRows = 5

type uploadResponse struct {
	Filename string        `json:"filename"`
	Size     int64         `json:"size"`
	Columns  []string      `json:"columns"`
	Head     []dataset.Row `json:"head"`
}

type analyzeRequest struct {
	Filename string `json:"filename"`
}

type analyzeResponse struct {
	Filename           string            `json:"filename"`
	Columns            []string          `json:"columns"`
	Rows               int               `json:"rows"`
	DetectedPIIColumns []string          `json:"detected_pii_columns"`
	Suggestions        map[string]string `json:"suggestions"`
	RiskLevels         map[string]string `json:"risk_levels"`
	GlobalScore        int               `json:"global_score"`
	Cached             bool              `json:"cached"`
}

type anonymizeRequest struct {
	// Strategies maps column name to a strategy expression, e.g.
	// "bucket_numeric:size=50". Columns not listed fall back to
	// suggestions.
	Strategies map[string]string `json:"strategies"`
	// SelectedColumns, when non-empty, restricts suggestion-driven
	// transformation to the listed columns. Strategy entries always apply.
	SelectedColumns []string `json:"selected_columns"`
	// SampleRows > 0 runs a bounded preview instead of the full dataset.
	SampleRows int `json:"sample_rows"`
}

type anonymizeResponse struct {
	RunID          string        `json:"run_id"`
	OutputFilename string        `json:"output_filename"`
	ReportURL      string        `json:"report_url"`
	DownloadURL    string        `json:"download_url"`
	Rows           int           `json:"rows"`
	GlobalScore    int           `json:"global_score"`
	Preview        []dataset.Row `json:"preview"`
}

// handleUpload receives a dataset file and stores it for analysis.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Limits.MaxFileMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	filename := dataset.SafeFilename(header.Filename)
	if filename == "" || filename == "." {
		s.writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if _, err := dataset.DetectFormat(filename); err != nil {
		s.writeError(w, http.StatusUnsupportedMediaType, "unsupported file format")
		return
	}

	path := filepath.Join(s.config.Storage.DataDir, filename)
	out, err := os.Create(path)
	if err != nil {
		s.logger.Error("Failed to create upload file", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	size, err := io.Copy(out, file)
	out.Close()
	if err != nil {
		os.Remove(path)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.logger.Error("Failed to store upload", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	if s.cache != nil {
		s.cache.Invalidate(r.Context(), filename, size)
	}

	ds, err := dataset.Load(path, previewRows)
	if err != nil {
		os.Remove(path)
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse file: %v", err))
		return
	}

	s.logger.WithRequestID(getRequestID(r.Context())).Info("Dataset uploaded",
		zap.String("filename", filename),
		zap.Int64("size", size),
		zap.Int("columns", len(ds.Columns)),
	)

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Filename: filename,
		Size:     size,
		Columns:  ds.Columns,
		Head:     ds.Head(previewRows),
	})
}

// handleAnalyze detects PII columns in an uploaded dataset and returns
// risk-tuned strategy suggestions.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			name = req.Filename
		}
	}
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "missing filename")
		return
	}

	filename := dataset.SafeFilename(name)
	path := filepath.Join(s.config.Storage.DataDir, filename)
	info, err := os.Stat(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "file not found, upload it first")
		return
	}

	if s.cache != nil {
		if entry, err := s.cache.Get(r.Context(), filename, info.Size()); err == nil && entry != nil {
			s.writeJSON(w, http.StatusOK, cachedAnalyzeResponse(entry))
			return
		}
	}

	ds, err := dataset.Load(path, 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse file: %v", err))
		return
	}

	results := s.detector.DetectColumns(ds)
	profiles := s.evaluator.EvaluateAll(ds, results)

	detected := make([]string, 0, len(results))
	suggestions := make(map[string]string)
	riskLevels := make(map[string]string)
	for column, result := range results {
		if !result.Detected() {
			continue
		}
		detected = append(detected, column)
		profile := profiles[column]
		riskLevels[column] = string(profile.Level)
		if !profile.Suggested.IsNoop() {
			suggestions[column] = profile.Suggested.String()
		}
	}
	sort.Strings(detected)

	resp := analyzeResponse{
		Filename:           filename,
		Columns:            ds.Columns,
		Rows:               ds.RowCount(),
		DetectedPIIColumns: detected,
		Suggestions:        suggestions,
		RiskLevels:         riskLevels,
		GlobalScore:        risk.GlobalScore(profiles),
	}

	if s.cache != nil {
		entry := &cache.AnalysisEntry{
			Filename:           filename,
			Columns:            ds.Columns,
			Rows:               resp.Rows,
			DetectedPIIColumns: detected,
			Suggestions:        suggestions,
			RiskLevels:         riskLevels,
			GlobalScore:        resp.GlobalScore,
			CachedAt:           time.Now(),
		}
		if err := s.cache.Set(r.Context(), entry, info.Size()); err != nil {
			s.logger.Warn("Failed to cache analysis", zap.Error(err))
		}
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDetection,
		Timestamp: time.Now(),
		Data: websocket.DetectionEvent{
			Filename:        filename,
			DetectedColumns: detected,
			Suggestions:     suggestions,
			Columns:         len(ds.Columns),
		},
	})

	s.logger.WithRequestID(getRequestID(r.Context())).Info("Analysis completed",
		zap.String("filename", filename),
		zap.Int("detected_columns", len(detected)),
		zap.Int("global_score", resp.GlobalScore),
	)

	s.writeJSON(w, http.StatusOK, resp)
}

// handleAnonymize runs the full anonymization pipeline over an uploaded
// dataset and persists the output and its report.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	filename := dataset.SafeFilename(mux.Vars(r)["filename"])
	path := filepath.Join(s.config.Storage.DataDir, filename)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "file not found, upload it first")
		return
	}

	var req anonymizeRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ds, err := dataset.Load(path, 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse file: %v", err))
		return
	}

	results := s.detector.DetectColumns(ds)
	profiles := s.evaluator.EvaluateAll(ds, results)
	suggestions := suggestionSpecs(profiles, req.SelectedColumns)

	run, err := s.pipeline.Run(r.Context(), ds, req.Strategies, suggestions, pipeline.Options{SampleRows: req.SampleRows})
	if errors.Is(err, pipeline.ErrNothingToDo) {
		s.writeError(w, http.StatusUnprocessableEntity, "no PII detected and no plan provided")
		return
	}
	if err != nil {
		s.logger.Error("Anonymization run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "anonymization failed")
		return
	}

	// Parquet inputs are written back as CSV, so derive the advertised
	// name from the path Save actually produces.
	outputPath := dataset.SavePath(filepath.Join(s.config.Storage.OutputsDir, outputFilename(filename)))
	outputName := filepath.Base(outputPath)
	if err := dataset.Save(run.Output, outputPath); err != nil {
		s.logger.Error("Failed to write output", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to write output")
		return
	}

	rep := report.Generate(run, results, profiles, filename, outputName)
	if err := report.WriteJSON(rep, outputPath+".report.json"); err != nil {
		s.logger.Error("Failed to write report", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to write report")
		return
	}
	if s.store != nil {
		if err := s.store.Save(r.Context(), rep); err != nil {
			s.logger.Warn("Failed to persist report", zap.Error(err))
		}
	}

	s.logger.WithRunID(run.RunID).Info("Anonymization completed",
		zap.String("filename", filename),
		zap.String("output", outputName),
		zap.Int("rows", run.Rows),
		zap.Duration("duration", run.Duration),
	)

	s.writeJSON(w, http.StatusOK, anonymizeResponse{
		RunID:          run.RunID,
		OutputFilename: outputName,
		ReportURL:      "/report/" + outputName,
		DownloadURL:    "/download/" + outputName,
		Rows:           run.Rows,
		GlobalScore:    rep.GlobalScore,
		Preview:        run.Output.Head(previewRows),
	})
}

// handleReport serves the JSON report for a produced output file.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := dataset.SafeFilename(mux.Vars(r)["name"])
	path := filepath.Join(s.config.Storage.OutputsDir, name+".report.json")

	rep, err := report.ReadJSON(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

// handleDownload serves a produced output file.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := dataset.SafeFilename(mux.Vars(r)["name"])
	path := filepath.Join(s.config.Storage.OutputsDir, name)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// handleRuns lists recent run reports from the history store.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "run history store is disabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	reports, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": reports})
}

// handleRunByID serves one stored run report.
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "run history store is disabled")
		return
	}

	rep, err := s.store.GetByRunID(r.Context(), mux.Vars(r)["run_id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

// cachedAnalyzeResponse rebuilds the full analyze payload from a cache
// entry so hits and misses answer identically.
func cachedAnalyzeResponse(entry *cache.AnalysisEntry) analyzeResponse {
	return analyzeResponse{
		Filename:           entry.Filename,
		Columns:            entry.Columns,
		Rows:               entry.Rows,
		DetectedPIIColumns: entry.DetectedPIIColumns,
		Suggestions:        entry.Suggestions,
		RiskLevels:         entry.RiskLevels,
		GlobalScore:        entry.GlobalScore,
		Cached:             true,
	}
}

// suggestionSpecs converts risk profiles into the suggestion map the
// pipeline consumes, optionally restricted to the selected columns.
func suggestionSpecs(profiles map[string]risk.Profile, selected []string) map[string]strategy.Spec {
	var allowed map[string]bool
	if len(selected) > 0 {
		allowed = make(map[string]bool, len(selected))
		for _, c := range selected {
			allowed[c] = true
		}
	}

	specs := make(map[string]strategy.Spec, len(profiles))
	for column, profile := range profiles {
		if profile.Suggested.IsNoop() {
			continue
		}
		if allowed != nil && !allowed[column] {
			continue
		}
		specs[column] = profile.Suggested
	}
	return specs
}

// outputFilename derives the output name: dataset.csv -> dataset_anon.csv.
func outputFilename(original string) string {
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(original, ext)
	return stem + "_anon" + ext
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
