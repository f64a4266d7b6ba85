// Package history keeps a queryable log of completed analyses for the
// lifetime of the process. The database is an in-memory DuckDB instance, so
// nothing is written to disk and everything is gone after exit.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/thermal-analyzer/backend/internal/models"
	"go.uber.org/zap"
)

// DefaultRecentLimit is used when Recent gets a non-positive limit.
const DefaultRecentLimit = 20

// Run is one completed analysis.
type Run struct {
	ID          string                  `json:"id"`
	SessionID   string                  `json:"sessionId"`
	FileName    string                  `json:"fileName"`
	FileType    string                  `json:"fileType"`
	FileSize    int64                   `json:"fileSize"`
	CompletedAt time.Time               `json:"completedAt"`
	Emissions   []models.EmissionRecord `json:"emissions"`
}

// SubstanceStat aggregates every recorded emission of one substance.
type SubstanceStat struct {
	Type              string  `json:"type"`
	Detections        int     `json:"detections"`
	AveragePercentage float64 `json:"averagePercentage"`
	MaxPercentage     float64 `json:"maxPercentage"`
	AverageConfidence float64 `json:"averageConfidence"`
	HighLevelCount    int     `json:"highLevelCount"`
}

// Store records runs in DuckDB.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// Limits concurrent queries.
	querySem chan struct{}
}

// NewStore opens an in-memory database and creates its tables.
func NewStore(logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("history")

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				logger.Warn("pragma failed", zap.String("pragma", pragma), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	schema := []string{
		`CREATE TABLE runs (
			id           VARCHAR PRIMARY KEY,
			session_id   VARCHAR NOT NULL,
			file_name    VARCHAR NOT NULL,
			file_type    VARCHAR,
			file_size    BIGINT,
			completed_at BIGINT NOT NULL
		)`,
		`CREATE TABLE emissions (
			run_id      VARCHAR NOT NULL,
			position    INTEGER NOT NULL,
			substance   VARCHAR NOT NULL,
			level       VARCHAR NOT NULL,
			percentage  DOUBLE NOT NULL,
			confidence  DOUBLE NOT NULL,
			description VARCHAR
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	logger.Debug("history database ready")
	return &Store{
		db:       db,
		logger:   logger,
		querySem: make(chan struct{}, 3),
	}, nil
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	select {
	case s.querySem <- struct{}{}:
		return func() { <-s.querySem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Record stores one completed analysis.
func (s *Store) Record(ctx context.Context, sessionID string, file *models.UploadedFile, completedAt time.Time, emissions []models.EmissionRecord) error {
	if file == nil {
		return errors.New("record run: nil file")
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, file_name, file_type, file_size, completed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, sessionID, file.Name, file.Type, file.Size, completedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(emissions) > 0 {
		placeholders := make([]string, 0, len(emissions))
		args := make([]interface{}, 0, len(emissions)*7)
		for i, e := range emissions {
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, runID, i, e.Type, string(e.Level), e.Percentage, e.Confidence, e.Description)
		}
		query := "INSERT INTO emissions (run_id, position, substance, level, percentage, confidence, description) VALUES " +
			strings.Join(placeholders, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert emissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("run recorded", zap.String("run", runID), zap.Int("emissions", len(emissions)))
	return nil
}

// Recent returns the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, file_name, file_type, file_size, completed_at
		 FROM runs ORDER BY completed_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			r        Run
			fileType sql.NullString
			fileSize sql.NullInt64
			ms       int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.FileName, &fileType, &fileSize, &ms); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.FileType = fileType.String
		r.FileSize = fileSize.Int64
		r.CompletedAt = time.UnixMilli(ms).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		emissions, err := s.emissionsFor(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Emissions = emissions
	}
	return runs, nil
}

func (s *Store) emissionsFor(ctx context.Context, runID string) ([]models.EmissionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT substance, level, percentage, confidence, description
		 FROM emissions WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query emissions: %w", err)
	}
	defer rows.Close()

	out := make([]models.EmissionRecord, 0, 4)
	for rows.Next() {
		var (
			e     models.EmissionRecord
			level string
			desc  sql.NullString
		)
		if err := rows.Scan(&e.Type, &level, &e.Percentage, &e.Confidence, &desc); err != nil {
			return nil, fmt.Errorf("scan emission: %w", err)
		}
		e.Level = models.EmissionLevel(level)
		e.Description = desc.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// SubstanceStats aggregates emissions by substance, sorted by name.
func (s *Store) SubstanceStats(ctx context.Context) ([]SubstanceStat, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT substance,
		       COUNT(*)::BIGINT,
		       AVG(percentage),
		       MAX(percentage),
		       AVG(confidence),
		       COUNT(*) FILTER (WHERE level = 'high')::BIGINT
		FROM emissions
		GROUP BY substance
		ORDER BY substance`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make([]SubstanceStat, 0)
	for rows.Next() {
		var (
			st         SubstanceStat
			detections int64
			high       int64
		)
		if err := rows.Scan(&st.Type, &detections, &st.AveragePercentage, &st.MaxPercentage, &st.AverageConfidence, &high); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Detections = int(detections)
		st.HighLevelCount = int(high)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)::BIGINT FROM runs").Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
