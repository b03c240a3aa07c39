// Package server exposes the anonymization engine over HTTP: upload,
// analyze, anonymize, report and download endpoints plus the dashboard
// event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/cache"
	"github.com/dataveil/dataveil/internal/config"
	"github.com/dataveil/dataveil/internal/detect"
	"github.com/dataveil/dataveil/internal/logger"
	"github.com/dataveil/dataveil/internal/pipeline"
	"github.com/dataveil/dataveil/internal/report"
	"github.com/dataveil/dataveil/internal/risk"
	"github.com/dataveil/dataveil/internal/web"
	"github.com/dataveil/dataveil/internal/websocket"
)

// Server is the HTTP front of the anonymization service.
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	detector  *detect.Detector
	evaluator *risk.Evaluator
	pipeline  *pipeline.Pipeline
	cache     *cache.AnalysisCache
	store     *report.Store
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
	limiter   *clientLimiter
}

// New creates a server and wires the engine components together.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outputs dir: %w", err)
	}

	wsHub := websocket.NewHub(cfg.WebSocket, log.WithComponent("websocket").Logger)

	var observer pipeline.Observer
	if cfg.WebSocket.Enabled {
		observer = wsHub
	}

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		detector:  detect.New(cfg.Detection, log.WithComponent("detect")),
		evaluator: risk.New(cfg.Risk, log.WithComponent("risk")),
		pipeline:  pipeline.New(cfg.Anonymize, log.WithComponent("pipeline"), observer),
		router:    mux.NewRouter(),
		wsHub:     wsHub,
		limiter:   newClientLimiter(cfg.Limits.RateLimit),
	}

	if cfg.Cache.Enabled {
		analysisCache, err := cache.NewAnalysisCache(cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create analysis cache: %w", err)
		}
		s.cache = analysisCache
	}

	if cfg.Storage.Reports.Enabled {
		store, err := report.NewStore(cfg.Storage.Reports, log.WithComponent("reports").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create report store: %w", err)
		}
		s.store = store
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.NewRoute().Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/api/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/anonymize/{filename}", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/report/{name}", s.handleReport).Methods("GET")
	api.HandleFunc("/download/{name}", s.handleDownload).Methods("GET")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")
	api.HandleFunc("/runs/{run_id}", s.handleRunByID).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting anonymization server",
		zap.Int("port", s.config.Server.Port),
		zap.String("data_dir", s.config.Storage.DataDir),
		zap.String("outputs_dir", s.config.Storage.OutputsDir),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("report_store_enabled", s.store != nil),
	)

	if s.config.WebSocket.Enabled {
		go s.wsHub.Run()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping anonymization server")

	if s.cache != nil {
		defer s.cache.Close()
	}
	if s.store != nil {
		defer s.store.Close()
	}

	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"dataveil",
		"version":"%s",
		"detection_sample_rows":%d,
		"cache_enabled":%t,
		"report_store_enabled":%t,
		"dashboard_clients":%d
	}`, Version, s.config.Detection.SampleRows, s.cache != nil, s.store != nil,
		s.wsHub.GetStats().ActiveConnections)
}

// handleWebSocket handles dashboard WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// Version is stamped by the build; handlers report it.
var Version = "0.1.0"
