package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"coolguard/internal/logger"
	"coolguard/internal/metrics"
)

// Config holds oracle client configuration
type Config struct {
	URL            string
	APIKey         string
	Timeout        time.Duration
	MaxConcurrency int64
}

// DefaultConfig returns default configuration
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		Timeout:        15 * time.Second,
		MaxConcurrency: 4,
	}
}

// Client calls an HTTP diagnostic provider. The call is bounded by a
// timeout and is never retried within the ingestion path; a failed call
// surfaces as ErrUnavailable and retries are an out-of-band concern.
type Client struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewClient creates a new oracle client
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

// Diagnose implements the Diagnoser interface
func (c *Client) Diagnose(ctx context.Context, req Request) (*Result, error) {
	log := logger.WithComponent("oracle")

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		metrics.OracleCallsTotal.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: semaphore acquire: %v", ErrUnavailable, err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	result, err := c.call(ctx, req)
	duration := time.Since(start)

	metrics.OracleCallDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.OracleCallsTotal.WithLabelValues("unavailable").Inc()
		log.Warn().
			Err(err).
			Int64("reading_id", req.Reading.ID).
			Dur("duration", duration).
			Msg("diagnosis unavailable")
		return nil, err
	}

	result.ResponseMS = duration.Milliseconds()
	metrics.OracleCallsTotal.WithLabelValues("success").Inc()

	log.Info().
		Int64("reading_id", req.Reading.ID).
		Int64("response_ms", result.ResponseMS).
		Int("actions", len(result.Actions)).
		Msg("diagnosis completed")

	return result, nil
}

// call performs a single request against the provider
func (c *Client) call(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}

	result, err := decodeResult(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return result, nil
}

// decodeResult accepts either a JSON {impact, root_cause, actions} body or
// the provider's IMPACT:/ROOT CAUSE:/ACTIONS: plain-text format.
func decodeResult(body []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(body, &result); err == nil &&
		(result.Impact != "" || result.RootCause != "" || len(result.Actions) > 0) {
		return finalize(&result), nil
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, fmt.Errorf("empty response body")
	}

	impact, rootCause, actions := parsePlainText(text)
	if impact == "" && rootCause == "" && len(actions) == 0 {
		return nil, fmt.Errorf("unrecognized response format")
	}

	return finalize(&Result{Impact: impact, RootCause: rootCause, Actions: actions}), nil
}

// finalize guarantees a non-empty ordered action list
func finalize(r *Result) *Result {
	if len(r.Actions) == 0 {
		r.Actions = append([]string(nil), DefaultActions...)
	}
	return r
}
