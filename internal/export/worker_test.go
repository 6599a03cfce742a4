package export

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"coolguard/internal/models"
)

// mockPublisher is a mock implementation of Publisher for testing
type mockPublisher struct {
	published  atomic.Uint64
	shouldFail bool
}

func (m *mockPublisher) Publish(ctx context.Context, envelope *models.Envelope) error {
	if m.shouldFail {
		return context.DeadlineExceeded
	}
	m.published.Add(1)
	return nil
}

func (m *mockPublisher) PublishBatch(ctx context.Context, envelopes []*models.Envelope) error {
	if m.shouldFail {
		return context.DeadlineExceeded
	}
	m.published.Add(uint64(len(envelopes)))
	return nil
}

func testEnvelope(id int64) *models.Envelope {
	return models.NewEnvelope(&models.Reading{
		ID:           id,
		Timestamp:    time.Now().UTC(),
		TDSPPM:       420,
		TemperatureC: 22,
		Safe:         true,
		Reason:       "none",
	}, "test-node")
}

func TestPool_PublishesEnvelopes(t *testing.T) {
	ch := make(chan *models.Envelope, 100)
	mock := &mockPublisher{}

	pool := NewPool(Config{
		Publisher:    mock,
		EnvelopeChan: ch,
		Workers:      2,
		BatchSize:    10,
		BatchTimeout: 50 * time.Millisecond,
	})

	pool.Start()
	defer pool.Stop()

	numEnvelopes := 25
	for i := 0; i < numEnvelopes; i++ {
		ch <- testEnvelope(int64(i))
	}

	// Wait for processing
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pool.Stats().Processed == uint64(numEnvelopes) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stats := pool.Stats()
	if stats.Processed != uint64(numEnvelopes) {
		t.Errorf("expected %d processed, got %d", numEnvelopes, stats.Processed)
	}
	if mock.published.Load() != uint64(numEnvelopes) {
		t.Errorf("expected %d published, got %d", numEnvelopes, mock.published.Load())
	}
}

func TestPool_FlushesOnStop(t *testing.T) {
	ch := make(chan *models.Envelope, 100)
	mock := &mockPublisher{}

	pool := NewPool(Config{
		Publisher:    mock,
		EnvelopeChan: ch,
		Workers:      1,
		BatchSize:    100,
		BatchTimeout: time.Hour, // Never fires, flush must come from Stop
	})

	pool.Start()

	for i := 0; i < 5; i++ {
		ch <- testEnvelope(int64(i))
	}

	// Give the worker a moment to pull from the channel
	time.Sleep(100 * time.Millisecond)
	pool.Stop()

	if got := mock.published.Load(); got != 5 {
		t.Errorf("expected 5 published after stop, got %d", got)
	}
}

func TestPool_CountsFailures(t *testing.T) {
	ch := make(chan *models.Envelope, 10)
	mock := &mockPublisher{shouldFail: true}

	pool := NewPool(Config{
		Publisher:    mock,
		EnvelopeChan: ch,
		Workers:      1,
		BatchSize:    2,
		BatchTimeout: 20 * time.Millisecond,
	})

	pool.Start()
	defer pool.Stop()

	ch <- testEnvelope(1)
	ch <- testEnvelope(2)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pool.Stats().Failed >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if failed := pool.Stats().Failed; failed != 2 {
		t.Errorf("expected 2 failed, got %d", failed)
	}
}
