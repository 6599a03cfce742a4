package export

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"coolguard/internal/logger"
	"coolguard/internal/metrics"
	"coolguard/internal/models"
)

// Publisher defines the interface for publishing reading envelopes
type Publisher interface {
	Publish(ctx context.Context, envelope *models.Envelope) error
	PublishBatch(ctx context.Context, envelopes []*models.Envelope) error
}

// Pool manages workers that drain the export queue and publish envelopes
// downstream. Export latency never gates ingestion: the pipeline hands an
// envelope to the queue and moves on.
type Pool struct {
	publisher    Publisher
	envelopeChan chan *models.Envelope
	workers      int
	batchSize    int
	batchTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Publisher    Publisher
	EnvelopeChan chan *models.Envelope
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration
}

// NewPool creates a new export worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		publisher:    cfg.Publisher,
		envelopeChan: cfg.EnvelopeChan,
		workers:      cfg.Workers,
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins draining the export queue
func (p *Pool) Start() {
	log := logger.WithComponent("export_pool")
	log.Info().
		Int("workers", p.workers).
		Int("batch_size", p.batchSize).
		Dur("batch_timeout", p.batchTimeout).
		Msg("starting export pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops all workers
func (p *Pool) Stop() {
	log := logger.WithComponent("export_pool")
	log.Info().Msg("stopping export pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("export pool stopped")
}

// worker drains envelopes from the queue into batches
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("export_worker").With().Int("worker_id", id).Logger()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("export worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("export_worker").Inc()
		}
	}()

	batch := make([]*models.Envelope, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			// Flush remaining batch before exiting
			if len(batch) > 0 {
				p.publishBatch(batch)
			}
			return

		case envelope, ok := <-p.envelopeChan:
			if !ok {
				// Channel closed, flush and exit
				if len(batch) > 0 {
					p.publishBatch(batch)
				}
				return
			}

			batch = append(batch, envelope)

			if len(batch) >= p.batchSize {
				p.publishBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.publishBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

// publishBatch publishes a batch of envelopes
func (p *Pool) publishBatch(batch []*models.Envelope) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("export_worker")

	ctx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()

	err := p.publisher.PublishBatch(ctx, batch)
	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(batch)).
			Msg("failed to publish export batch")

		p.failed.Add(uint64(len(batch)))
		metrics.ExportFailedTotal.Add(float64(len(batch)))

		// Fallback: try publishing individually
		p.publishIndividually(batch)
		return
	}

	p.processed.Add(uint64(len(batch)))
	metrics.ExportPublishedTotal.Add(float64(len(batch)))

	log.Debug().
		Int("batch_size", len(batch)).
		Msg("export batch published")
}

// publishIndividually tries each envelope separately after a batch failure
func (p *Pool) publishIndividually(batch []*models.Envelope) {
	log := logger.WithComponent("export_worker")

	for _, envelope := range batch {
		ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
		err := p.publisher.Publish(ctx, envelope)
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Int64("reading_id", envelope.Reading.ID).
				Msg("failed to publish envelope individually")
			continue
		}

		// Don't count twice - move from failed to processed
		p.failed.Add(^uint64(0))
		p.processed.Add(1)
		metrics.ExportPublishedTotal.Inc()
	}
}

// Stats returns export pool counters
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds export pool counters
type Stats struct {
	Processed uint64
	Failed    uint64
}
