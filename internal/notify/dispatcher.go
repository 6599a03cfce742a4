package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coolguard/internal/classify"
	"coolguard/internal/logger"
	"coolguard/internal/metrics"
	"coolguard/internal/models"
)

// Dispatcher fans an unsafe-reading alert out to the configured channels.
// Channels are attempted concurrently; a failure on one never blocks the
// others, and no failure escapes to the caller. Each unsafe reading gets
// exactly one attempt per channel.
type Dispatcher struct {
	sender   Sender
	channels []models.Channel
	log      *EventLog
}

// NewDispatcher creates a dispatcher over the given channels. An empty
// channel list produces a dispatcher that records nothing.
func NewDispatcher(sender Sender, channels []models.Channel, log *EventLog) *Dispatcher {
	if log == nil {
		log = NewEventLog(0)
	}
	return &Dispatcher{
		sender:   sender,
		channels: channels,
		log:      log,
	}
}

// Events returns the audit log of recent notification events.
func (d *Dispatcher) Events() *EventLog {
	return d.log
}

// Dispatch attempts delivery on every configured channel and returns one
// event per channel. It blocks until every attempt has completed or
// definitively failed.
func (d *Dispatcher) Dispatch(ctx context.Context, reading *models.Reading, verdict classify.Verdict) []models.NotificationEvent {
	if len(d.channels) == 0 {
		return nil
	}

	log := logger.WithComponent("notify")
	subject, body := formatAlert(reading, verdict)

	events := make([]models.NotificationEvent, len(d.channels))
	var wg sync.WaitGroup

	for i, channel := range d.channels {
		events[i] = models.NotificationEvent{
			ID:          uuid.New().String(),
			ReadingID:   reading.ID,
			Channel:     channel,
			Status:      models.DeliveryPending,
			AttemptedAt: time.Now().UTC(),
		}

		wg.Add(1)
		go func(ev *models.NotificationEvent) {
			defer wg.Done()

			err := d.send(ctx, ev.Channel, subject, body)
			if err != nil {
				ev.Status = models.DeliveryFailed
				ev.Error = err.Error()
				metrics.NotificationsTotal.WithLabelValues(string(ev.Channel), "failed").Inc()
				log.Warn().
					Err(err).
					Int64("reading_id", ev.ReadingID).
					Str("channel", string(ev.Channel)).
					Msg("notification delivery failed")
				return
			}

			ev.Status = models.DeliverySent
			metrics.NotificationsTotal.WithLabelValues(string(ev.Channel), "sent").Inc()
			log.Info().
				Int64("reading_id", ev.ReadingID).
				Str("channel", string(ev.Channel)).
				Msg("notification sent")
		}(&events[i])
	}

	wg.Wait()

	for _, ev := range events {
		d.log.Add(ev)
	}

	return events
}

// send shields the dispatcher from a panicking sender implementation
func (d *Dispatcher) send(ctx context.Context, channel models.Channel, subject, body string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("notify").Inc()
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	return d.sender.Send(ctx, channel, subject, body)
}

// formatAlert builds the alert subject and body for an unsafe reading
func formatAlert(reading *models.Reading, verdict classify.Verdict) (subject, body string) {
	subject = "Water Quality Alert: cooling loop unsafe reading"

	var b strings.Builder
	fmt.Fprintf(&b, "Unsafe reading detected at %s\n\n", reading.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "TDS: %g ppm\n", reading.TDSPPM)
	fmt.Fprintf(&b, "Temperature: %g C\n\n", reading.TemperatureC)

	for _, issue := range verdict.Issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}

	b.WriteString("\nPlease check the cooling system immediately.")
	return subject, b.String()
}
