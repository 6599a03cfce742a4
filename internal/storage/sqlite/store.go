package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"coolguard/internal/models"
	"coolguard/internal/storage"
)

// Store implements storage.Store using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps readers from blocking the single writer
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// AppendReading persists a reading and returns its assigned ID
func (s *Store) AppendReading(ctx context.Context, r *models.Reading) (int64, error) {
	query := `
		INSERT INTO readings (timestamp, tds_ppm, temperature_c, safe, reason)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		r.Timestamp.UTC(),
		r.TDSPPM,
		r.TemperatureC,
		r.Safe,
		r.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append reading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get reading id: %w", err)
	}

	r.ID = id
	return id, nil
}

// AppendAnalysis persists an analysis linked to a reading
func (s *Store) AppendAnalysis(ctx context.Context, a *models.Analysis) (int64, error) {
	actionsJSON, err := json.Marshal(a.Actions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal actions: %w", err)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO analyses (reading_id, impact, root_cause, actions_json, response_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		a.ReadingID,
		a.Impact,
		a.RootCause,
		string(actionsJSON),
		a.ResponseMS,
		createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append analysis: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get analysis id: %w", err)
	}

	a.ID = id
	a.CreatedAt = createdAt
	return id, nil
}

// LatestReadings returns the most recent n readings, newest first
func (s *Store) LatestReadings(ctx context.Context, n int) ([]models.Reading, error) {
	if n <= 0 {
		n = 1
	}

	query := `
		SELECT id, timestamp, tds_ppm, temperature_c, safe, reason
		FROM readings
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// ReadingsBetween returns readings within [from, to], oldest first
func (s *Store) ReadingsBetween(ctx context.Context, from, to time.Time) ([]models.Reading, error) {
	query := `
		SELECT id, timestamp, tds_ppm, temperature_c, safe, reason
		FROM readings
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

// RecentAnalyses returns the most recent n analyses, newest first
func (s *Store) RecentAnalyses(ctx context.Context, n int) ([]models.Analysis, error) {
	if n <= 0 {
		n = 10
	}

	query := `
		SELECT id, reading_id, impact, root_cause, actions_json, response_ms, created_at
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return analyses, nil
}

// AnalysisForReading returns the analysis for a reading, or nil if none
func (s *Store) AnalysisForReading(ctx context.Context, readingID int64) (*models.Analysis, error) {
	query := `
		SELECT id, reading_id, impact, root_cause, actions_json, response_ms, created_at
		FROM analyses
		WHERE reading_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, readingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanAnalysis(rows)
}

// Stats aggregates over readings with timestamp >= since
func (s *Store) Stats(ctx context.Context, since time.Time) (*storage.Stats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN safe = 0 THEN 1 ELSE 0 END), 0),
		       MIN(tds_ppm), MAX(tds_ppm), AVG(tds_ppm),
		       MIN(temperature_c), MAX(temperature_c), AVG(temperature_c)
		FROM readings
		WHERE timestamp >= ?
	`

	stats := &storage.Stats{Since: since.UTC()}
	var minTDS, maxTDS, avgTDS, minTemp, maxTemp, avgTemp sql.NullFloat64

	err := s.db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&stats.TotalReadings,
		&stats.UnsafeReadings,
		&minTDS, &maxTDS, &avgTDS,
		&minTemp, &maxTemp, &avgTemp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute reading stats: %w", err)
	}

	if stats.TotalReadings > 0 {
		stats.UnsafeRate = float64(stats.UnsafeReadings) / float64(stats.TotalReadings)
		stats.TDS = storage.MetricStats{Min: minTDS.Float64, Max: maxTDS.Float64, Mean: avgTDS.Float64}
		stats.Temperature = storage.MetricStats{Min: minTemp.Float64, Max: maxTemp.Float64, Mean: avgTemp.Float64}
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM analyses WHERE created_at >= ?", since.UTC(),
	).Scan(&stats.Analyses)
	if err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}

	if stats.TotalReadings > 0 {
		stats.OracleSavingsPct = float64(stats.TotalReadings-stats.Analyses) / float64(stats.TotalReadings) * 100
	}

	return stats, nil
}

// ClearAll wipes both tables inside one transaction
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM analyses"); err != nil {
		return fmt.Errorf("failed to clear analyses: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM readings"); err != nil {
		return fmt.Errorf("failed to clear readings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	return nil
}

// Ping verifies the store is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.TDSPPM, &r.TemperatureC, &r.Safe, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return readings, nil
}

func scanAnalysis(rows *sql.Rows) (*models.Analysis, error) {
	var a models.Analysis
	var actionsJSON string

	err := rows.Scan(&a.ID, &a.ReadingID, &a.Impact, &a.RootCause, &actionsJSON, &a.ResponseMS, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}

	if err := json.Unmarshal([]byte(actionsJSON), &a.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
