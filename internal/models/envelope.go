package models

import (
	"time"
)

// Envelope wraps a persisted Reading with internal metadata for export to
// downstream consumers.
type Envelope struct {
	// Persisted reading
	Reading *Reading `json:"reading"`

	// Internal processing metadata
	ReceivedAt   time.Time `json:"received_at"`
	IngestNode   string    `json:"ingest_node"`
	PartitionKey string    `json:"partition_key"`
}

// NewEnvelope creates a new envelope wrapping a persisted reading
func NewEnvelope(reading *Reading, ingestNode string) *Envelope {
	return &Envelope{
		Reading:      reading,
		ReceivedAt:   time.Now().UTC(),
		IngestNode:   ingestNode,
		PartitionKey: ingestNode, // one loop per node, keeps per-loop ordering
	}
}
