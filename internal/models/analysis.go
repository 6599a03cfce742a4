package models

import "time"

// Analysis is a root-cause analysis produced by the diagnostic oracle for a
// single unsafe reading. Immutable once created.
type Analysis struct {
	// Store-assigned identifier
	ID int64 `json:"id"`

	// The reading that triggered this analysis
	ReadingID int64 `json:"reading_id"`

	// One-sentence operational impact assessment
	Impact string `json:"impact"`

	// One-sentence root cause
	RootCause string `json:"root_cause"`

	// Ordered recommended actions; always non-empty
	Actions []string `json:"actions"`

	// Oracle round-trip time in milliseconds
	ResponseMS int64 `json:"response_ms"`

	// When the analysis was created
	CreatedAt time.Time `json:"created_at"`
}
