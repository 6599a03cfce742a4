// Package server wires the monitor together: storage, pipeline, oracle,
// notification channels, optional Kafka export, and the HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coolguard/internal/classify"
	"coolguard/internal/config"
	"coolguard/internal/export"
	"coolguard/internal/handlers"
	"coolguard/internal/logger"
	"coolguard/internal/metrics"
	"coolguard/internal/middleware"
	"coolguard/internal/models"
	"coolguard/internal/notify"
	"coolguard/internal/oracle"
	"coolguard/internal/pipeline"
	"coolguard/internal/storage"
	"coolguard/internal/storage/sqlite"
)

// Server is the high-level coordinator for ingesting, storing, and alerting.
type Server struct {
	cfg *config.Config

	store        storage.Store
	pipe         *pipeline.Pipeline
	dispatcher   *notify.Dispatcher
	producer     *export.Producer
	exportPool   *export.Pool
	envelopeChan chan *models.Envelope
	httpServer   *http.Server

	wg sync.WaitGroup
}

// New constructs a Server with given config.
func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts background goroutines and blocks until context cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Msg("server starting")

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := s.initStore(); err != nil {
		log.Error().Err(err).Msg("failed to open store")
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.store.Close()

	s.initExport()
	if s.exportPool != nil {
		s.exportPool.Start()
	}

	s.initPipeline()
	s.initHTTPServer()

	// Start HTTP server in background
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Stats reporting goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// initStore opens the SQLite store
func (s *Server) initStore() error {
	store, err := sqlite.NewStore(s.cfg.DatabasePath)
	if err != nil {
		return err
	}
	s.store = store

	log := logger.WithComponent("server")
	log.Info().
		Str("path", s.cfg.DatabasePath).
		Msg("store opened")
	return nil
}

// initExport sets up the optional Kafka export path
func (s *Server) initExport() {
	log := logger.WithComponent("server")

	if len(s.cfg.KafkaBrokers) == 0 {
		log.Info().Msg("kafka export disabled")
		return
	}

	producerCfg := export.DefaultProducerConfig(s.cfg.KafkaBrokers, s.cfg.KafkaTopic)
	producerCfg.BatchSize = s.cfg.ExportBatchSize
	producerCfg.BatchTimeout = s.cfg.ExportBatchTimeout

	producer, err := export.NewProducer(producerCfg)
	if err != nil {
		// Export is best-effort: a misconfigured exporter must not
		// keep the monitor from ingesting
		log.Error().Err(err).Msg("failed to initialize export producer, export disabled")
		return
	}

	s.producer = producer
	s.envelopeChan = make(chan *models.Envelope, 1000)
	s.exportPool = export.NewPool(export.Config{
		Publisher:    producer,
		EnvelopeChan: s.envelopeChan,
		Workers:      s.cfg.ExportWorkers,
		BatchSize:    s.cfg.ExportBatchSize,
		BatchTimeout: s.cfg.ExportBatchTimeout,
	})

	metrics.ExportQueueCapacity.Set(float64(cap(s.envelopeChan)))

	log.Info().
		Strs("brokers", s.cfg.KafkaBrokers).
		Str("topic", s.cfg.KafkaTopic).
		Msg("kafka export initialized")
}

// initPipeline wires the ingestion pipeline and its collaborators
func (s *Server) initPipeline() {
	log := logger.WithComponent("server")

	thresholds := classify.Thresholds{
		TDSMaxPPM: s.cfg.TDSMaxPPM,
		TempMaxC:  s.cfg.TempMaxC,
	}

	var diagnoser oracle.Diagnoser
	if s.cfg.OracleURL != "" {
		oracleCfg := oracle.DefaultConfig(s.cfg.OracleURL)
		oracleCfg.APIKey = s.cfg.OracleAPIKey
		oracleCfg.Timeout = s.cfg.OracleTimeout
		diagnoser = oracle.NewClient(oracleCfg)
		log.Info().Str("url", s.cfg.OracleURL).Msg("diagnostic oracle configured")
	} else {
		log.Info().Msg("diagnostic oracle not configured, diagnosis disabled")
	}

	var channels []models.Channel
	for _, c := range s.cfg.NotifyChannels() {
		channels = append(channels, models.Channel(c))
	}

	if len(channels) > 0 && s.cfg.SMTPHost != "" {
		sender := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     s.cfg.SMTPHost,
			Port:     s.cfg.SMTPPort,
			From:     s.cfg.SMTPFrom,
			Password: s.cfg.SMTPPassword,
			EmailTo:  s.cfg.EmailTo,
			SMSTo:    s.cfg.SMSTo,
		})
		s.dispatcher = notify.NewDispatcher(sender, channels, notify.NewEventLog(0))
		log.Info().Int("channels", len(channels)).Msg("notification dispatcher configured")
	} else {
		log.Info().Msg("no notification channels configured")
	}

	node, _ := os.Hostname()

	var exportChan chan<- *models.Envelope
	if s.envelopeChan != nil {
		exportChan = s.envelopeChan
	}

	s.pipe = pipeline.New(pipeline.Config{
		Store:            s.store,
		Thresholds:       thresholds,
		DiagnosticTDSPPM: s.cfg.DiagnosticTDSPPM,
		Diagnoser:        diagnoser,
		Dispatcher:       s.dispatcher,
		ExportChan:       exportChan,
		HistorySize:      s.cfg.OracleHistorySize,
		Node:             node,
	})
}

// initHTTPServer builds the HTTP surface
func (s *Server) initHTTPServer() {
	mux := http.NewServeMux()

	ingest := handlers.NewIngestHandler(handlers.IngestConfig{Pipeline: s.pipe})

	var events *notify.EventLog
	if s.dispatcher != nil {
		events = s.dispatcher.Events()
	}

	thresholds := classify.Thresholds{
		TDSMaxPPM: s.cfg.TDSMaxPPM,
		TempMaxC:  s.cfg.TempMaxC,
	}
	query := handlers.NewQueryHandler(s.store, events, thresholds, s.cfg.DiagnosticTDSPPM)
	admin := handlers.NewAdminHandler(s.store)

	mux.Handle("/readings", ingest)
	mux.HandleFunc("/readings/latest", query.Latest)
	mux.HandleFunc("/readings/history", query.History)
	mux.HandleFunc("/analyses/recent", query.RecentAnalyses)
	mux.HandleFunc("/stats", query.Stats)
	mux.HandleFunc("/thresholds", query.Thresholds)
	mux.HandleFunc("/notifications/recent", query.Notifications)
	mux.HandleFunc("/admin/data", admin.ClearData)

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/pipeline/stats", s.statsHandler)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr: s.cfg.ListenAddr,
		Handler: middleware.Chain(
			mux,
			middleware.Recovery,
			middleware.Logging,
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (s *Server) shutdown() error {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Let in-flight diagnoses land in the store
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelDrain()
	if err := s.pipe.Drain(drainCtx); err != nil {
		log.Warn().Err(err).Msg("diagnosis drain timeout")
	}

	// 3. Flush the export path
	if s.exportPool != nil {
		log.Info().Msg("closing export queue")
		close(s.envelopeChan)

		done := make(chan struct{})
		go func() {
			s.exportPool.Stop()
			close(done)
		}()

		select {
		case <-done:
			log.Info().Msg("export pool stopped gracefully")
		case <-time.After(15 * time.Second):
			log.Warn().Msg("export pool shutdown timeout - forcing exit")
		}

		if err := s.producer.Close(); err != nil {
			log.Error().Err(err).Msg("producer close error")
		}
	}

	// 4. Wait for all goroutines
	s.wg.Wait()

	log.Info().Msg("server stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pipeStats := s.pipe.Stats()

			ev := log.Info().
				Uint64("accepted", pipeStats.Accepted).
				Uint64("rejected", pipeStats.Rejected).
				Uint64("persist_failed", pipeStats.PersistFailed).
				Uint64("diagnoses_started", pipeStats.DiagnosesStarted).
				Uint64("diagnoses_failed", pipeStats.DiagnosesFailed)

			if s.exportPool != nil {
				exportStats := s.exportPool.Stats()
				metrics.ExportQueueSize.Set(float64(len(s.envelopeChan)))
				ev = ev.
					Uint64("export_processed", exportStats.Processed).
					Uint64("export_failed", exportStats.Failed).
					Int("export_queue", len(s.envelopeChan))
			}

			ev.Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	oracleState := "not configured"
	if s.cfg.OracleURL != "" {
		oracleState = "configured"
	}

	exportState := "disabled"
	if s.exportPool != nil {
		exportState = "enabled"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"database":  "connected",
		"oracle":    oracleState,
		"export":    exportState,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// statsHandler returns pipeline and export counters
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	type exportStats struct {
		Processed uint64 `json:"processed"`
		Failed    uint64 `json:"failed"`
		Queued    int    `json:"queued"`
		Capacity  int    `json:"capacity"`
	}

	payload := struct {
		Pipeline pipeline.Stats `json:"pipeline"`
		Export   *exportStats   `json:"export,omitempty"`
	}{
		Pipeline: s.pipe.Stats(),
	}

	if s.exportPool != nil {
		es := s.exportPool.Stats()
		payload.Export = &exportStats{
			Processed: es.Processed,
			Failed:    es.Failed,
			Queued:    len(s.envelopeChan),
			Capacity:  cap(s.envelopeChan),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(payload)
}
