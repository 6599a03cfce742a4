package handlers

import (
	"net/http"

	"coolguard/internal/logger"
	"coolguard/internal/storage"
)

// confirmHeader must be set to "true" for the wipe to proceed, so the
// destructive operation cannot be triggered by a stray DELETE.
const confirmHeader = "X-Confirm-Wipe"

// AdminHandler exposes destructive maintenance operations, kept apart from
// the ingestion and query surfaces.
type AdminHandler struct {
	store storage.Store
}

// NewAdminHandler creates the admin handler
func NewAdminHandler(store storage.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

// ClearData handles DELETE /admin/data. Irreversibly wipes both the
// readings and analyses tables.
func (h *AdminHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Header.Get(confirmHeader) != "true" {
		respondError(w, http.StatusBadRequest, "destructive operation requires header "+confirmHeader+": true")
		return
	}

	if err := h.store.ClearAll(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log := logger.WithComponent("admin")
	log.Warn().
		Str("request_id", r.Header.Get("X-Request-ID")).
		Msg("all readings and analyses cleared")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "all data cleared",
	})
}
