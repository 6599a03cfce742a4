package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the monitor.
type Config struct {
	// HTTP listen address
	ListenAddr string

	// Log level (debug, info, warn, error)
	LogLevel string

	// Path to the SQLite database file
	DatabasePath string

	// Safety thresholds (ASHRAE cooling water guidelines)
	TDSMaxPPM float64
	TempMaxC  float64

	// Diagnostic threshold: the oracle is only consulted when tds_ppm
	// exceeds this value. Deliberately higher than TDSMaxPPM so that
	// diagnosis is rarer than alerting.
	DiagnosticTDSPPM float64

	// Diagnostic oracle endpoint; empty disables diagnosis
	OracleURL     string
	OracleAPIKey  string
	OracleTimeout time.Duration

	// Number of recent readings passed to the oracle as context
	OracleHistorySize int

	// SMTP settings for the notification channels; empty host disables
	// delivery
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPPassword string

	// Alert recipients. SMSTo is an email-to-SMS gateway address
	// (e.g. 5551234567@vtext.com).
	EmailTo string
	SMSTo   string

	// Kafka export of persisted readings; empty brokers disables export
	KafkaBrokers []string
	KafkaTopic   string

	// Export worker settings
	ExportWorkers      int
	ExportBatchSize    int
	ExportBatchTimeout time.Duration
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		ListenAddr:         ":8080",
		LogLevel:           "info",
		DatabasePath:       "cooling_system.db",
		TDSMaxPPM:          500,
		TempMaxC:           27,
		DiagnosticTDSPPM:   1000,
		OracleTimeout:      15 * time.Second,
		OracleHistorySize:  10,
		SMTPPort:           587,
		KafkaTopic:         "coolguard.readings",
		ExportWorkers:      2,
		ExportBatchSize:    50,
		ExportBatchTimeout: 250 * time.Millisecond,
	}
}

// FromEnv returns the default config overridden by environment variables.
func FromEnv() *Config {
	cfg := Default()

	setString(&cfg.ListenAddr, "COOLGUARD_LISTEN_ADDR")
	setString(&cfg.LogLevel, "COOLGUARD_LOG_LEVEL")
	setString(&cfg.DatabasePath, "COOLGUARD_DB_PATH")
	setFloat(&cfg.TDSMaxPPM, "COOLGUARD_TDS_MAX_PPM")
	setFloat(&cfg.TempMaxC, "COOLGUARD_TEMP_MAX_C")
	setFloat(&cfg.DiagnosticTDSPPM, "COOLGUARD_DIAGNOSTIC_TDS_PPM")
	setString(&cfg.OracleURL, "COOLGUARD_ORACLE_URL")
	setString(&cfg.OracleAPIKey, "COOLGUARD_ORACLE_API_KEY")
	setDuration(&cfg.OracleTimeout, "COOLGUARD_ORACLE_TIMEOUT")
	setInt(&cfg.OracleHistorySize, "COOLGUARD_ORACLE_HISTORY_SIZE")
	setString(&cfg.SMTPHost, "COOLGUARD_SMTP_HOST")
	setInt(&cfg.SMTPPort, "COOLGUARD_SMTP_PORT")
	setString(&cfg.SMTPFrom, "COOLGUARD_SMTP_FROM")
	setString(&cfg.SMTPPassword, "COOLGUARD_SMTP_PASSWORD")
	setString(&cfg.EmailTo, "COOLGUARD_ALERT_EMAIL")
	setString(&cfg.SMSTo, "COOLGUARD_ALERT_SMS")
	setString(&cfg.KafkaTopic, "COOLGUARD_KAFKA_TOPIC")
	setInt(&cfg.ExportWorkers, "COOLGUARD_EXPORT_WORKERS")
	setInt(&cfg.ExportBatchSize, "COOLGUARD_EXPORT_BATCH_SIZE")
	setDuration(&cfg.ExportBatchTimeout, "COOLGUARD_EXPORT_BATCH_TIMEOUT")

	if v := os.Getenv("COOLGUARD_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}

	return cfg
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.TDSMaxPPM <= 0 {
		return fmt.Errorf("invalid tds_max_ppm: %v", c.TDSMaxPPM)
	}

	if c.DiagnosticTDSPPM < c.TDSMaxPPM {
		return fmt.Errorf("diagnostic threshold %v below safety threshold %v", c.DiagnosticTDSPPM, c.TDSMaxPPM)
	}

	if c.OracleTimeout <= 0 {
		return fmt.Errorf("invalid oracle timeout: %v", c.OracleTimeout)
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("kafka topic required when brokers are configured")
	}

	return nil
}

// NotifyChannels returns the configured alert channels.
func (c *Config) NotifyChannels() []string {
	var channels []string
	if c.EmailTo != "" {
		channels = append(channels, "email")
	}
	if c.SMSTo != "" {
		channels = append(channels, "sms")
	}
	return channels
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
