package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"coolguard/internal/models"
	"coolguard/internal/pipeline"
)

// IngestHandler handles reading submission via HTTP
type IngestHandler struct {
	pipeline *pipeline.Pipeline

	// Max body size (default 64KB, sensor payloads are tiny)
	maxBodySize int64
}

// IngestConfig holds configuration for the ingest handler
type IngestConfig struct {
	Pipeline    *pipeline.Pipeline
	MaxBodySize int64
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg IngestConfig) *IngestHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 64 * 1024
	}

	return &IngestHandler{
		pipeline:    cfg.Pipeline,
		maxBodySize: maxBodySize,
	}
}

// ReadingInput is the input format for a sensor sample. Pointers
// distinguish missing fields from zero values; the timestamp is a string
// for flexible parsing and defaults to the server clock.
type ReadingInput struct {
	TDSPPM       *float64 `json:"tds_ppm"`
	TemperatureC *float64 `json:"temperature_c"`
	Timestamp    string   `json:"timestamp,omitempty"`
}

// SubmitResponse is returned for an accepted reading
type SubmitResponse struct {
	Accepted           bool                       `json:"accepted"`
	ID                 int64                      `json:"id"`
	Timestamp          time.Time                  `json:"timestamp"`
	TDSPPM             float64                    `json:"tds_ppm"`
	TemperatureC       float64                    `json:"temperature_c"`
	Safe               bool                       `json:"safe"`
	Reason             string                     `json:"reason"`
	Issues             []string                   `json:"issues,omitempty"`
	DiagnosisTriggered bool                       `json:"diagnosis_triggered"`
	Notifications      []models.NotificationEvent `json:"notifications,omitempty"`
}

// ServeHTTP handles the submit-reading HTTP request
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "" {
		respondError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	sample, err := parseInput(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.Submit(r.Context(), sample)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrValidation):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, pipeline.ErrPersistence):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, SubmitResponse{
		Accepted:           true,
		ID:                 result.Reading.ID,
		Timestamp:          result.Reading.Timestamp,
		TDSPPM:             result.Reading.TDSPPM,
		TemperatureC:       result.Reading.TemperatureC,
		Safe:               result.Reading.Safe,
		Reason:             result.Reading.Reason,
		Issues:             result.Verdict.Issues,
		DiagnosisTriggered: result.DiagnosisTriggered,
		Notifications:      result.Notifications,
	})
}

// parseInput converts the JSON body to a Sample, rejecting structural
// problems before the pipeline sees the sample
func parseInput(body []byte) (models.Sample, error) {
	var input ReadingInput
	if err := json.Unmarshal(body, &input); err != nil {
		return models.Sample{}, errors.New("invalid JSON: expected {tds_ppm, temperature_c, timestamp?}")
	}

	if input.TDSPPM == nil {
		return models.Sample{}, models.ErrMissingTDS
	}

	if input.TemperatureC == nil {
		return models.Sample{}, models.ErrMissingTemperature
	}

	sample := models.Sample{
		TDSPPM:       *input.TDSPPM,
		TemperatureC: *input.TemperatureC,
	}

	if input.Timestamp != "" {
		ts, err := models.ParseTimestamp(input.Timestamp)
		if err != nil {
			return models.Sample{}, err
		}
		sample.Timestamp = ts
	}

	return sample, nil
}
