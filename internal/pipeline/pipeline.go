// Package pipeline orchestrates ingestion of a single reading: validation,
// classification, persistence, then the notification and diagnosis branches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"coolguard/internal/classify"
	"coolguard/internal/logger"
	"coolguard/internal/metrics"
	"coolguard/internal/models"
	"coolguard/internal/notify"
	"coolguard/internal/oracle"
	"coolguard/internal/storage"
)

// Submission errors. These are the only two failure classes a caller of
// Submit can see; diagnosis and notification failures never surface here.
var (
	ErrValidation  = errors.New("invalid reading")
	ErrPersistence = errors.New("failed to persist reading")
)

// Config wires the pipeline's collaborators.
type Config struct {
	Store            storage.Store
	Thresholds       classify.Thresholds
	DiagnosticTDSPPM float64

	// Diagnoser may be nil when no oracle is configured
	Diagnoser oracle.Diagnoser

	// Dispatcher may be nil when no alert channels are configured
	Dispatcher *notify.Dispatcher

	// ExportChan may be nil when export is disabled
	ExportChan chan<- *models.Envelope

	// Number of recent readings passed to the oracle as context
	HistorySize int

	Node string
}

// Pipeline runs one reading through the ingestion state machine. Safe for
// concurrent use; the store is the only shared mutable resource.
type Pipeline struct {
	store            storage.Store
	thresholds       classify.Thresholds
	diagnosticTDSPPM float64
	diagnoser        oracle.Diagnoser
	dispatcher       *notify.Dispatcher
	exportChan       chan<- *models.Envelope
	historySize      int
	node             string

	diagWG sync.WaitGroup

	// Counters
	accepted           atomic.Uint64
	rejected           atomic.Uint64
	persistFailed      atomic.Uint64
	notified           atomic.Uint64
	diagnosesStarted   atomic.Uint64
	diagnosesCompleted atomic.Uint64
	diagnosesFailed    atomic.Uint64
}

// New constructs a Pipeline with the given config.
func New(cfg Config) *Pipeline {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 10
	}
	if cfg.Node == "" {
		cfg.Node = "coolguard"
	}

	return &Pipeline{
		store:            cfg.Store,
		thresholds:       cfg.Thresholds,
		diagnosticTDSPPM: cfg.DiagnosticTDSPPM,
		diagnoser:        cfg.Diagnoser,
		dispatcher:       cfg.Dispatcher,
		exportChan:       cfg.ExportChan,
		historySize:      cfg.HistorySize,
		node:             cfg.Node,
	}
}

// Result is the outcome of one accepted submission.
type Result struct {
	Reading       *models.Reading
	Verdict       classify.Verdict
	Notifications []models.NotificationEvent

	// True when an asynchronous diagnosis was dispatched for this reading
	DiagnosisTriggered bool
}

// Submit runs a sample through the pipeline. On return the reading is
// durably persisted and, if unsafe, every notification channel has been
// attempted. A triggered diagnosis completes asynchronously and its
// analysis appears in the store later.
func (p *Pipeline) Submit(ctx context.Context, sample models.Sample) (*Result, error) {
	log := logger.WithComponent("pipeline")

	// Received -> Validated, or Rejected with no side effects
	if err := sample.Validate(); err != nil {
		p.rejected.Add(1)
		metrics.ReadingsTotal.WithLabelValues("rejected").Inc()
		metrics.ValidationErrors.WithLabelValues(err.Error()).Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	// Validated -> Classified
	verdict := classify.Classify(sample.TDSPPM, sample.TemperatureC, p.thresholds)
	metrics.ClassificationsTotal.WithLabelValues(string(verdict.Reason)).Inc()

	reading := &models.Reading{
		Timestamp:    sample.Timestamp.UTC(),
		TDSPPM:       sample.TDSPPM,
		TemperatureC: sample.TemperatureC,
		Safe:         verdict.Safe,
		Reason:       string(verdict.Reason),
	}

	// Classified -> Persisted. Safe and unsafe readings are both retained,
	// and nothing branches until the reading is durable.
	start := time.Now()
	if _, err := p.store.AppendReading(ctx, reading); err != nil {
		p.persistFailed.Add(1)
		metrics.ReadingsTotal.WithLabelValues("persist_failed").Inc()
		metrics.StoreWriteFailures.WithLabelValues("readings").Inc()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.StoreWriteDuration.WithLabelValues("readings").Observe(time.Since(start).Seconds())

	p.accepted.Add(1)
	metrics.ReadingsTotal.WithLabelValues("accepted").Inc()

	log.Info().
		Int64("reading_id", reading.ID).
		Float64("tds_ppm", reading.TDSPPM).
		Float64("temperature_c", reading.TemperatureC).
		Bool("safe", reading.Safe).
		Str("reason", reading.Reason).
		Msg("reading persisted")

	p.export(reading)

	result := &Result{Reading: reading, Verdict: verdict}
	if verdict.Safe {
		return result, nil
	}

	// Classified -> Notified: fires on the classification signal alone,
	// never waits on diagnosis
	if p.dispatcher != nil {
		result.Notifications = p.dispatcher.Dispatch(ctx, reading, verdict)
		p.notified.Add(1)
	}

	// Classified -> Diagnosed: only past the dedicated diagnostic
	// threshold, and decoupled from the submit response
	if p.diagnoser != nil && sample.TDSPPM > p.diagnosticTDSPPM {
		result.DiagnosisTriggered = true
		p.diagnosesStarted.Add(1)
		p.diagWG.Add(1)
		go p.diagnose(*reading, verdict.Issues)
	}

	return result, nil
}

// diagnose runs one oracle call and records the analysis. Readings have no
// cancellation concept once validated, so this runs on its own context; the
// oracle client bounds the call with its own timeout.
func (p *Pipeline) diagnose(reading models.Reading, issues []string) {
	defer p.diagWG.Done()

	log := logger.WithReading(reading.ID)
	ctx := context.Background()

	history, err := p.store.LatestReadings(ctx, p.historySize)
	if err != nil {
		// Diagnosis proceeds without context rather than failing
		log.Warn().Err(err).Msg("could not load history for diagnosis")
		history = nil
	}

	result, err := p.diagnoser.Diagnose(ctx, oracle.Request{
		Reading: reading,
		History: history,
		Issues:  issues,
	})
	if err != nil {
		// DiagnosticUnavailable: the reading stays unsafe with no
		// analysis, visible through the query surface
		p.diagnosesFailed.Add(1)
		log.Warn().Err(err).Msg("diagnosis unavailable, proceeding without analysis")
		return
	}

	analysis := &models.Analysis{
		ReadingID:  reading.ID,
		Impact:     result.Impact,
		RootCause:  result.RootCause,
		Actions:    result.Actions,
		ResponseMS: result.ResponseMS,
		CreatedAt:  time.Now().UTC(),
	}

	start := time.Now()
	if _, err := p.store.AppendAnalysis(ctx, analysis); err != nil {
		p.diagnosesFailed.Add(1)
		metrics.StoreWriteFailures.WithLabelValues("analyses").Inc()
		log.Error().Err(err).Msg("failed to persist analysis")
		return
	}
	metrics.StoreWriteDuration.WithLabelValues("analyses").Observe(time.Since(start).Seconds())

	p.diagnosesCompleted.Add(1)
	log.Info().Int64("analysis_id", analysis.ID).Msg("analysis persisted")
}

// export hands the persisted reading to the export queue without blocking
func (p *Pipeline) export(reading *models.Reading) {
	if p.exportChan == nil {
		return
	}

	envelope := models.NewEnvelope(reading, p.node)
	select {
	case p.exportChan <- envelope:
	default:
		// Queue full: export is best-effort, ingestion never waits on it
		log := logger.WithComponent("pipeline")
		log.Warn().
			Int64("reading_id", reading.ID).
			Msg("export queue full, dropping envelope")
	}
}

// Drain blocks until in-flight diagnoses finish or the context expires.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.diagWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Accepted:           p.accepted.Load(),
		Rejected:           p.rejected.Load(),
		PersistFailed:      p.persistFailed.Load(),
		Notified:           p.notified.Load(),
		DiagnosesStarted:   p.diagnosesStarted.Load(),
		DiagnosesCompleted: p.diagnosesCompleted.Load(),
		DiagnosesFailed:    p.diagnosesFailed.Load(),
	}
}

// Stats holds pipeline counters.
type Stats struct {
	Accepted           uint64 `json:"accepted"`
	Rejected           uint64 `json:"rejected"`
	PersistFailed      uint64 `json:"persist_failed"`
	Notified           uint64 `json:"notified"`
	DiagnosesStarted   uint64 `json:"diagnoses_started"`
	DiagnosesCompleted uint64 `json:"diagnoses_completed"`
	DiagnosesFailed    uint64 `json:"diagnoses_failed"`
}
