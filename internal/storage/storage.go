package storage

import (
	"context"
	"time"

	"coolguard/internal/models"
)

// Store is the durable append-only log of readings and analyses. Individual
// records are never updated or deleted; ClearAll is the one destructive
// maintenance operation and wipes both tables.
type Store interface {
	// AppendReading persists a reading and returns its assigned ID
	AppendReading(ctx context.Context, r *models.Reading) (int64, error)

	// AppendAnalysis persists an analysis linked to a reading
	AppendAnalysis(ctx context.Context, a *models.Analysis) (int64, error)

	// LatestReadings returns the most recent n readings, newest first
	LatestReadings(ctx context.Context, n int) ([]models.Reading, error)

	// ReadingsBetween returns readings within [from, to], oldest first
	ReadingsBetween(ctx context.Context, from, to time.Time) ([]models.Reading, error)

	// RecentAnalyses returns the most recent n analyses, newest first
	RecentAnalyses(ctx context.Context, n int) ([]models.Analysis, error)

	// AnalysisForReading returns the analysis for a reading, or nil if none
	AnalysisForReading(ctx context.Context, readingID int64) (*models.Analysis, error)

	// Stats aggregates over readings with timestamp >= since. Read-only
	// and repeatable: two calls with no intervening writes return
	// identical results.
	Stats(ctx context.Context, since time.Time) (*Stats, error)

	// ClearAll wipes both tables. Destructive and irreversible.
	ClearAll(ctx context.Context) error

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection
	Close() error
}

// MetricStats holds min/max/mean for one measured quantity.
type MetricStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats is an aggregate over stored readings for a window.
type Stats struct {
	Since          time.Time   `json:"since"`
	TotalReadings  int64       `json:"total_readings"`
	UnsafeReadings int64       `json:"unsafe_readings"`
	UnsafeRate     float64     `json:"unsafe_rate"`
	TDS            MetricStats `json:"tds_ppm"`
	Temperature    MetricStats `json:"temperature_c"`
	Analyses       int64       `json:"analyses"`

	// Share of readings that did not require an oracle call, as a
	// percentage. Tracks how much the diagnostic threshold saves over
	// calling the oracle for every reading.
	OracleSavingsPct float64 `json:"oracle_savings_pct"`
}
