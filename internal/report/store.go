package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dataveil/dataveil/internal/config"
)

// Store persists run history in PostgreSQL. Optional: the service runs
// without it, keeping only the JSON report files.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// storedRun is the database row shape.
type storedRun struct {
	ID               int64     `db:"id"`
	RunID            string    `db:"run_id"`
	OriginalFilename string    `db:"original_filename"`
	OutputFilename   string    `db:"output_filename"`
	GlobalScore      int       `db:"global_score"`
	Rows             int       `db:"rows"`
	Report           []byte    `db:"report"`
	CreatedAt        time.Time `db:"created_at"`
}

// NewStore connects to the run-history database and ensures the schema.
func NewStore(cfg config.ReportStoreConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db, logger: logger}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}

	logger.Info("Report store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS anonymization_runs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			original_filename TEXT NOT NULL,
			output_filename TEXT NOT NULL,
			global_score INT NOT NULL,
			rows INT NOT NULL,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	return nil
}

// Save inserts one run report.
func (s *Store) Save(ctx context.Context, r *Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO anonymization_runs
			(run_id, original_filename, output_filename, global_score, rows, report)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query,
		r.RunID, r.OriginalFilename, r.OutputFilename, r.GlobalScore, r.Rows, payload); err != nil {
		return fmt.Errorf("failed to insert run report: %w", err)
	}

	s.logger.Debug("Run report persisted", zap.String("run_id", r.RunID))
	return nil
}

// GetByRunID loads one run report by its ID.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Report, error) {
	var row storedRun
	query := `SELECT * FROM anonymization_runs WHERE run_id = $1`
	if err := s.db.GetContext(ctx, &row, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load run report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(row.Report, &r); err != nil {
		return nil, fmt.Errorf("failed to parse stored report: %w", err)
	}
	return &r, nil
}

// ListRecent returns the latest run reports, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []storedRun
	query := `SELECT * FROM anonymization_runs ORDER BY created_at DESC LIMIT $1`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list run reports: %w", err)
	}

	reports := make([]*Report, 0, len(rows))
	for _, row := range rows {
		var r Report
		if err := json.Unmarshal(row.Report, &r); err != nil {
			continue
		}
		reports = append(reports, &r)
	}
	return reports, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials for logging.
func maskDatabaseURL(url string) string {
	if at := strings.LastIndex(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
