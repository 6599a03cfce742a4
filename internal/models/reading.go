package models

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Reading is a single persisted water-quality sample from the cooling loop.
// Readings are immutable facts: once appended they are never updated.
type Reading struct {
	// Store-assigned identifier
	ID int64 `json:"id"`

	// Wall-clock time the sample was taken
	Timestamp time.Time `json:"timestamp"`

	// Total dissolved solids in parts per million
	TDSPPM float64 `json:"tds_ppm"`

	// Water temperature in degrees Celsius
	TemperatureC float64 `json:"temperature_c"`

	// Verdict computed at ingestion time against the thresholds active
	// then; never recomputed for historical readings
	Safe bool `json:"safe"`

	// Which threshold(s) were exceeded, empty reason string maps to "none"
	Reason string `json:"reason"`
}

// Sample is a validated sensor sample awaiting classification.
type Sample struct {
	TDSPPM       float64
	TemperatureC float64
	Timestamp    time.Time
}

// Validation errors
var (
	ErrMissingTDS         = errors.New("tds_ppm is required")
	ErrMissingTemperature = errors.New("temperature_c is required")
	ErrNonNumericTDS      = errors.New("tds_ppm must be a finite number")
	ErrNonNumericTemp     = errors.New("temperature_c must be a finite number")
	ErrNegativeTDS        = errors.New("tds_ppm cannot be negative")
	ErrInvalidTimestamp   = errors.New("invalid timestamp format")
	ErrFutureTimestamp    = errors.New("timestamp cannot be in the future")
)

// Validate checks the sample for structural problems. A sample that fails
// validation is rejected with no further side effects.
func (s *Sample) Validate() error {
	if math.IsNaN(s.TDSPPM) || math.IsInf(s.TDSPPM, 0) {
		return ErrNonNumericTDS
	}

	if math.IsNaN(s.TemperatureC) || math.IsInf(s.TemperatureC, 0) {
		return ErrNonNumericTemp
	}

	if s.TDSPPM < 0 {
		return ErrNegativeTDS
	}

	if s.Timestamp.After(time.Now().Add(time.Minute)) {
		return ErrFutureTimestamp
	}

	return nil
}

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
