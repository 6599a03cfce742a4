package models

import "time"

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// DeliveryStatus is the outcome of a notification attempt.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// NotificationEvent records one alert attempt on one channel. Events are
// kept for audit and debugging; they are not durable.
type NotificationEvent struct {
	ID          string         `json:"id"`
	ReadingID   int64          `json:"reading_id"`
	Channel     Channel        `json:"channel"`
	Status      DeliveryStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	AttemptedAt time.Time      `json:"attempted_at"`
}
