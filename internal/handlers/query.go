package handlers

import (
	"net/http"
	"strconv"
	"time"

	"coolguard/internal/classify"
	"coolguard/internal/models"
	"coolguard/internal/notify"
	"coolguard/internal/storage"
)

// QueryHandler exposes the read-only query surface over the store. It never
// mutates state and reflects all successfully persisted records at call
// time.
type QueryHandler struct {
	store      storage.Store
	events     *notify.EventLog
	thresholds classify.Thresholds

	// Diagnostic threshold, reported alongside the safety thresholds
	diagnosticTDSPPM float64
}

// NewQueryHandler creates the query surface
func NewQueryHandler(store storage.Store, events *notify.EventLog, thresholds classify.Thresholds, diagnosticTDSPPM float64) *QueryHandler {
	return &QueryHandler{
		store:            store,
		events:           events,
		thresholds:       thresholds,
		diagnosticTDSPPM: diagnosticTDSPPM,
	}
}

// ReadingWithAnalysis pairs a reading with its analysis, if one exists
type ReadingWithAnalysis struct {
	models.Reading
	Analysis *models.Analysis `json:"analysis,omitempty"`
}

// LatestResponse is returned by the latest-readings endpoint
type LatestResponse struct {
	Count    int                   `json:"count"`
	Readings []ReadingWithAnalysis `json:"readings"`
}

// Latest handles GET /readings/latest?n=
func (h *QueryHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n := queryInt(r, "n", 1)

	readings, err := h.store.LatestReadings(r.Context(), n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]ReadingWithAnalysis, 0, len(readings))
	for _, reading := range readings {
		entry := ReadingWithAnalysis{Reading: reading}

		// Unsafe readings may carry an analysis; an unsafe reading
		// without one means diagnosis was skipped or unavailable
		if !reading.Safe {
			analysis, err := h.store.AnalysisForReading(r.Context(), reading.ID)
			if err == nil {
				entry.Analysis = analysis
			}
		}

		out = append(out, entry)
	}

	respondJSON(w, http.StatusOK, LatestResponse{Count: len(out), Readings: out})
}

// HistoryResponse is returned by the history endpoint
type HistoryResponse struct {
	Count    int              `json:"count"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Readings []models.Reading `json:"readings"`
}

// History handles GET /readings/history?hours= or ?from=&to=
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			respondError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		from = to.Add(-time.Duration(hours) * time.Hour)
	}

	if v := r.URL.Query().Get("from"); v != "" {
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = ts
	}

	if v := r.URL.Query().Get("to"); v != "" {
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = ts
	}

	readings, err := h.store.ReadingsBetween(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if readings == nil {
		readings = []models.Reading{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{
		Count:    len(readings),
		From:     from,
		To:       to,
		Readings: readings,
	})
}

// AnalysesResponse is returned by the recent-analyses endpoint
type AnalysesResponse struct {
	Count    int               `json:"count"`
	Analyses []models.Analysis `json:"analyses"`
}

// RecentAnalyses handles GET /analyses/recent?n=
func (h *QueryHandler) RecentAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n := queryInt(r, "n", 10)

	analyses, err := h.store.RecentAnalyses(r.Context(), n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if analyses == nil {
		analyses = []models.Analysis{}
	}

	respondJSON(w, http.StatusOK, AnalysesResponse{Count: len(analyses), Analyses: analyses})
}

// Stats handles GET /stats?hours=
func (h *QueryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hours := queryInt(r, "hours", 24)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	stats, err := h.store.Stats(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// ThresholdsResponse reports the active threshold configuration
type ThresholdsResponse struct {
	TDSMaxPPM        float64 `json:"tds_max_ppm"`
	TempMaxC         float64 `json:"temp_max_c"`
	DiagnosticTDSPPM float64 `json:"diagnostic_tds_ppm"`
}

// Thresholds handles GET /thresholds
func (h *QueryHandler) Thresholds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	respondJSON(w, http.StatusOK, ThresholdsResponse{
		TDSMaxPPM:        h.thresholds.TDSMaxPPM,
		TempMaxC:         h.thresholds.TempMaxC,
		DiagnosticTDSPPM: h.diagnosticTDSPPM,
	})
}

// NotificationsResponse is returned by the notifications audit endpoint
type NotificationsResponse struct {
	Count  int                        `json:"count"`
	Events []models.NotificationEvent `json:"events"`
}

// Notifications handles GET /notifications/recent?n=
func (h *QueryHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n := queryInt(r, "n", 20)

	var events []models.NotificationEvent
	if h.events != nil {
		events = h.events.Recent(n)
	}
	if events == nil {
		events = []models.NotificationEvent{}
	}

	respondJSON(w, http.StatusOK, NotificationsResponse{Count: len(events), Events: events})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
