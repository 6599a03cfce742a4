package notify

import (
	"sync"

	"coolguard/internal/models"
)

const defaultLogCapacity = 200

// EventLog keeps a bounded in-memory ring of recent notification events
// for audit and debugging. Events are not durable.
type EventLog struct {
	mu       sync.RWMutex
	buffer   []models.NotificationEvent
	capacity int
}

// NewEventLog creates a log holding at most capacity events
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &EventLog{
		buffer:   make([]models.NotificationEvent, 0, capacity),
		capacity: capacity,
	}
}

// Add appends an event, evicting the oldest when full
func (l *EventLog) Add(ev models.NotificationEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buffer) >= l.capacity {
		l.buffer = l.buffer[1:]
	}
	l.buffer = append(l.buffer, ev)
}

// Recent returns up to count events, newest first
func (l *EventLog) Recent(count int) []models.NotificationEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if count <= 0 || count > len(l.buffer) {
		count = len(l.buffer)
	}

	result := make([]models.NotificationEvent, count)
	for i := 0; i < count; i++ {
		result[i] = l.buffer[len(l.buffer)-1-i]
	}
	return result
}

// Len returns the number of retained events
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buffer)
}
