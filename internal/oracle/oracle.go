// Package oracle wraps the external root-cause-analysis service consulted
// for unsafe readings.
package oracle

import (
	"context"
	"errors"

	"coolguard/internal/models"
)

// ErrUnavailable signals the oracle could not produce an analysis (timeout,
// network failure, malformed response). Ingestion proceeds without one.
var ErrUnavailable = errors.New("diagnostic oracle unavailable")

// Request carries the triggering reading plus read-only context for the
// oracle. History is a snapshot of recent readings, newest first.
type Request struct {
	Reading models.Reading   `json:"reading"`
	History []models.Reading `json:"recent_history,omitempty"`
	Issues  []string         `json:"issues,omitempty"`
}

// Result is a structured analysis returned by the oracle. Actions is always
// non-empty.
type Result struct {
	Impact     string   `json:"impact"`
	RootCause  string   `json:"root_cause"`
	Actions    []string `json:"actions"`
	ResponseMS int64    `json:"-"`
}

// Diagnoser is the capability interface for diagnostic providers, so a
// concrete provider can be swapped without touching the pipeline.
type Diagnoser interface {
	Diagnose(ctx context.Context, req Request) (*Result, error)
}

// DefaultActions is substituted when a provider returns an analysis with no
// actionable recommendations.
var DefaultActions = []string{
	"Schedule immediate water treatment system inspection",
	"Increase monitoring frequency to every 5 minutes",
	"Contact cooling system maintenance team",
}
