package sqlite

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"coolguard/internal/models"
)

func setupTestDB(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpfile.Close()

	store, err := NewStore(tmpfile.Name())
	if err != nil {
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(tmpfile.Name())
	}

	return store, cleanup
}

func appendTestReading(t *testing.T, store *Store, ts time.Time, tds, temp float64, safe bool) int64 {
	t.Helper()

	reason := "none"
	if !safe {
		reason = "tds_exceeded"
	}

	id, err := store.AppendReading(context.Background(), &models.Reading{
		Timestamp:    ts,
		TDSPPM:       tds,
		TemperatureC: temp,
		Safe:         safe,
		Reason:       reason,
	})
	if err != nil {
		t.Fatalf("failed to append reading: %v", err)
	}
	return id
}

func TestStore_AppendAndLatest(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	appendTestReading(t, store, now.Add(-2*time.Minute), 400, 22, true)
	appendTestReading(t, store, now.Add(-time.Minute), 450, 23, true)
	lastID := appendTestReading(t, store, now, 1200, 24, false)

	latest, err := store.LatestReadings(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to query latest: %v", err)
	}

	if len(latest) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(latest))
	}

	r := latest[0]
	if r.ID != lastID {
		t.Errorf("expected id %d, got %d", lastID, r.ID)
	}
	if r.TDSPPM != 1200 || r.TemperatureC != 24 {
		t.Errorf("round-trip mismatch: %+v", r)
	}
	if r.Safe {
		t.Error("expected safe=false")
	}
	if !r.Timestamp.Equal(now) {
		t.Errorf("timestamp mismatch: want %v, got %v", now, r.Timestamp)
	}
}

func TestStore_ReadingsBetween(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	appendTestReading(t, store, now.Add(-3*time.Hour), 400, 22, true)
	appendTestReading(t, store, now.Add(-30*time.Minute), 450, 23, true)
	appendTestReading(t, store, now, 460, 24, true)

	readings, err := store.ReadingsBetween(context.Background(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("failed to query range: %v", err)
	}

	if len(readings) != 2 {
		t.Fatalf("expected 2 readings in range, got %d", len(readings))
	}

	// Oldest first within the range
	if !readings[0].Timestamp.Before(readings[1].Timestamp) {
		t.Errorf("expected ascending order, got %v then %v", readings[0].Timestamp, readings[1].Timestamp)
	}
}

func TestStore_AppendAnalysisRoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	readingID := appendTestReading(t, store, time.Now().UTC(), 1600, 24, false)

	actions := []string{
		"Flush and replace cooling loop water",
		"Inspect water treatment system",
		"Increase monitoring frequency",
	}

	analysis := &models.Analysis{
		ReadingID:  readingID,
		Impact:     "Scale buildup reduces heat transfer efficiency",
		RootCause:  "Evaporative concentration of dissolved solids",
		Actions:    actions,
		ResponseMS: 820,
	}

	if _, err := store.AppendAnalysis(context.Background(), analysis); err != nil {
		t.Fatalf("failed to append analysis: %v", err)
	}

	got, err := store.AnalysisForReading(context.Background(), readingID)
	if err != nil {
		t.Fatalf("failed to fetch analysis: %v", err)
	}
	if got == nil {
		t.Fatal("expected analysis, got nil")
	}

	if got.ReadingID != readingID {
		t.Errorf("reading_id mismatch: %d", got.ReadingID)
	}
	if !reflect.DeepEqual(got.Actions, actions) {
		t.Errorf("actions mismatch: %v", got.Actions)
	}
	if got.ResponseMS != 820 {
		t.Errorf("response_ms mismatch: %d", got.ResponseMS)
	}
}

func TestStore_AtMostOneAnalysisPerReading(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	readingID := appendTestReading(t, store, time.Now().UTC(), 1600, 24, false)

	a := &models.Analysis{
		ReadingID: readingID,
		Impact:    "impact",
		RootCause: "cause",
		Actions:   []string{"act"},
	}
	if _, err := store.AppendAnalysis(context.Background(), a); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	dup := &models.Analysis{
		ReadingID: readingID,
		Impact:    "impact",
		RootCause: "cause",
		Actions:   []string{"act"},
	}
	if _, err := store.AppendAnalysis(context.Background(), dup); err == nil {
		t.Error("expected unique constraint violation for duplicate analysis")
	}
}

func TestStore_AnalysisForReading_None(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	readingID := appendTestReading(t, store, time.Now().UTC(), 400, 22, true)

	got, err := store.AnalysisForReading(context.Background(), readingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil analysis, got %+v", got)
	}
}

func TestStore_Stats(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	appendTestReading(t, store, now.Add(-3*time.Minute), 400, 20, true)
	appendTestReading(t, store, now.Add(-2*time.Minute), 600, 25, false)
	id := appendTestReading(t, store, now.Add(-time.Minute), 1400, 30, false)

	if _, err := store.AppendAnalysis(context.Background(), &models.Analysis{
		ReadingID: id,
		Impact:    "impact",
		RootCause: "cause",
		Actions:   []string{"act"},
	}); err != nil {
		t.Fatalf("failed to append analysis: %v", err)
	}

	stats, err := store.Stats(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to compute stats: %v", err)
	}

	if stats.TotalReadings != 3 {
		t.Errorf("expected 3 readings, got %d", stats.TotalReadings)
	}
	if stats.UnsafeReadings != 2 {
		t.Errorf("expected 2 unsafe, got %d", stats.UnsafeReadings)
	}
	if stats.TDS.Min != 400 || stats.TDS.Max != 1400 || stats.TDS.Mean != 800 {
		t.Errorf("tds stats mismatch: %+v", stats.TDS)
	}
	if stats.Temperature.Min != 20 || stats.Temperature.Max != 30 || stats.Temperature.Mean != 25 {
		t.Errorf("temperature stats mismatch: %+v", stats.Temperature)
	}
	if stats.Analyses != 1 {
		t.Errorf("expected 1 analysis, got %d", stats.Analyses)
	}
}

func TestStore_StatsIdempotent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	appendTestReading(t, store, now.Add(-time.Minute), 400, 20, true)
	appendTestReading(t, store, now, 1400, 30, false)

	since := now.Add(-time.Hour)
	first, err := store.Stats(context.Background(), since)
	if err != nil {
		t.Fatalf("first stats call failed: %v", err)
	}

	second, err := store.Stats(context.Background(), since)
	if err != nil {
		t.Fatalf("second stats call failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("stats not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestStore_StatsEmpty(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	stats, err := store.Stats(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to compute stats: %v", err)
	}

	if stats.TotalReadings != 0 || stats.UnsafeRate != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestStore_ClearAll(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	id := appendTestReading(t, store, time.Now().UTC(), 1400, 30, false)
	if _, err := store.AppendAnalysis(context.Background(), &models.Analysis{
		ReadingID: id,
		Impact:    "impact",
		RootCause: "cause",
		Actions:   []string{"act"},
	}); err != nil {
		t.Fatalf("failed to append analysis: %v", err)
	}

	if err := store.ClearAll(context.Background()); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	readings, err := store.LatestReadings(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to query after clear: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("expected no readings after clear, got %d", len(readings))
	}

	analyses, err := store.RecentAnalyses(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to query analyses after clear: %v", err)
	}
	if len(analyses) != 0 {
		t.Errorf("expected no analyses after clear, got %d", len(analyses))
	}
}
