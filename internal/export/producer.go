package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"coolguard/internal/logger"
	"coolguard/internal/metrics"
	"coolguard/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize envelope")
)

// ProducerConfig holds Kafka producer settings for the export stream.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
	MaxRetries   int
}

// DefaultProducerConfig returns settings suitable for a single monitor node.
func DefaultProducerConfig(brokers []string, topic string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		Topic:        topic,
		BatchSize:    50,
		BatchTimeout: 250 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: 1,
		MaxRetries:   2,
	}
}

// Producer publishes reading envelopes to the export topic. Export is off
// the ingestion critical path, so publish retries are acceptable here.
type Producer struct {
	cfg    ProducerConfig
	writer *kafka.Writer
	closed atomic.Bool

	// Metrics
	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
	bytesWritten   atomic.Uint64
}

// NewProducer creates a Kafka producer for the export stream.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}

	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // Partition by key
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  cfg.MaxRetries + 1,
		Async:        false, // Sync for reliability
	}

	return &Producer{cfg: cfg, writer: writer}, nil
}

// Publish sends a single envelope to the export topic.
func (p *Producer) Publish(ctx context.Context, envelope *models.Envelope) error {
	return p.PublishBatch(ctx, []*models.Envelope{envelope})
}

// PublishBatch sends a batch of envelopes to the export topic.
func (p *Producer) PublishBatch(ctx context.Context, envelopes []*models.Envelope) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	if len(envelopes) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(envelopes))
	var total int
	for _, envelope := range envelopes {
		data, err := json.Marshal(envelope)
		if err != nil {
			p.messagesFailed.Add(1)
			return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(envelope.PartitionKey),
			Value: data,
			Headers: []kafka.Header{
				{Key: "reading_id", Value: []byte(strconv.FormatInt(envelope.Reading.ID, 10))},
				{Key: "ingest_node", Value: []byte(envelope.IngestNode)},
			},
			Time: envelope.ReceivedAt,
		})
		total += len(data)
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	metrics.ExportBatchPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.messagesFailed.Add(uint64(len(msgs)))
		return fmt.Errorf("failed to write export batch: %w", err)
	}

	p.messagesSent.Add(uint64(len(msgs)))
	p.bytesWritten.Add(uint64(total))
	return nil
}

// HealthCheck verifies a broker is reachable.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	return conn.Close()
}

// Close shuts down the producer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	log := logger.WithComponent("export_producer")
	log.Info().
		Uint64("sent", p.messagesSent.Load()).
		Uint64("failed", p.messagesFailed.Load()).
		Msg("closing export producer")

	return p.writer.Close()
}

// Stats returns producer counters.
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
		BytesWritten:   p.bytesWritten.Load(),
	}
}

// ProducerStats holds producer counters.
type ProducerStats struct {
	MessagesSent   uint64
	MessagesFailed uint64
	BytesWritten   uint64
}
