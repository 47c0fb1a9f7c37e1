package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nahid2887/today/internal/application/services"
)

// CatalogSyncer runs catalog syncs and reports on them.
type CatalogSyncer interface {
	TrySync(ctx context.Context, since *time.Time) (services.SyncReport, error)
	Status(ctx context.Context) (services.CatalogStatus, error)
}

// CatalogHandler exposes the catalog sync to operators
type CatalogHandler struct {
	syncer CatalogSyncer
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(syncer CatalogSyncer) *CatalogHandler {
	return &CatalogHandler{syncer: syncer}
}

// TriggerSync handles POST /api/catalog/sync?since=RFC3339. Without since
// the run is a full sync. A run already in progress yields 409.
func (h *CatalogHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		since = &t
	}

	report, err := h.syncer.TrySync(r.Context(), since)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// GetStatus handles GET /api/catalog/status
func (h *CatalogHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.syncer.Status(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}
