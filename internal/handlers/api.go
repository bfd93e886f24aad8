package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/seawatch/seawatch/internal/api"
	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/jobs"
	"github.com/seawatch/seawatch/internal/middleware"
)

// APIHandler serves the authenticated dashboard API
type APIHandler struct {
	db    *gorm.DB
	store *database.RecordStore
	job   *jobs.DedupJob
	hub   *RunEventHub
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(db *gorm.DB, job *jobs.DedupJob, hub *RunEventHub) *APIHandler {
	return &APIHandler{
		db:    db,
		store: database.NewRecordStore(db),
		job:   job,
		hub:   hub,
	}
}

// SetupRoutes configures the API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/dedup/run", h.handleTriggerRun)
	mux.HandleFunc("/api/dedup/runs", h.handleListRuns)
	mux.HandleFunc("/api/dedup/settings", h.handleSettings)
	mux.HandleFunc("/api/dedup/events", h.hub.HandleWS)
	mux.HandleFunc("/api/records", h.handleListRecords)
	mux.HandleFunc("/api/records/", h.handleRecordDetail)
	mux.HandleFunc("/api/merges", h.handleListMerges)
	mux.HandleFunc("/api/sources", h.handleSources)
}

// handleTriggerRun handles POST /api/dedup/run and executes one batch pass
func (h *APIHandler) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	if user == "" {
		user = "unknown"
	}
	log.Printf("APIHandler: manual dedup run triggered by %s", user)

	summary, err := h.job.Run()
	if err != nil {
		log.Printf("APIHandler: manual dedup run failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Deduplication run failed")
		return
	}

	api.RespondJSON(w, http.StatusOK, summary)
}

// handleListRuns handles GET /api/dedup/runs
func (h *APIHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runs, err := h.store.ListRuns(parseLimit(r, 50))
	if err != nil {
		log.Printf("APIHandler: failed to list runs: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	api.RespondJSON(w, http.StatusOK, runs)
}

// handleSettings handles GET and PUT /api/dedup/settings
func (h *APIHandler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := database.GetOrCreateDedupSettings(h.db)
		if err != nil {
			log.Printf("APIHandler: failed to load settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		api.RespondJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		current, err := database.GetOrCreateDedupSettings(h.db)
		if err != nil {
			log.Printf("APIHandler: failed to load settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}

		var updated database.DedupSettings
		if err := api.DecodeJSON(r, &updated); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if updated.MatchThreshold <= 0 || updated.MatchThreshold > 1 {
			api.RespondError(w, http.StatusBadRequest, "match_threshold must be in (0, 1]")
			return
		}
		if updated.MaxTimeWindowHours <= 0 || updated.MaxDistanceKm <= 0 {
			api.RespondError(w, http.StatusBadRequest, "time and distance windows must be positive")
			return
		}
		if updated.RunIntervalMinutes < 1 {
			api.RespondError(w, http.StatusBadRequest, "run_interval_minutes must be at least 1")
			return
		}

		updated.ID = current.ID
		updated.CreatedAt = current.CreatedAt
		if err := database.UpdateDedupSettings(h.db, &updated); err != nil {
			log.Printf("APIHandler: failed to update settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}

		log.Printf("APIHandler: dedup settings updated (threshold %.2f, interval %dm)",
			updated.MatchThreshold, updated.RunIntervalMinutes)
		api.RespondJSON(w, http.StatusOK, &updated)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleListRecords handles GET /api/records with optional source and
// merge_status filters
func (h *APIHandler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := h.db.Order("created_at DESC").Limit(parseLimit(r, 100))
	if source := r.URL.Query().Get("source"); source != "" {
		q = q.Where("source = ?", source)
	}
	if status := r.URL.Query().Get("merge_status"); status != "" {
		q = q.Where("merge_status = ?", status)
	}

	var records []database.RawRecord
	if err := q.Find(&records).Error; err != nil {
		log.Printf("APIHandler: failed to list records: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	api.RespondJSON(w, http.StatusOK, records)
}

// handleRecordDetail handles GET /api/records/{uuid}
func (h *APIHandler) handleRecordDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recordUUID := strings.TrimPrefix(r.URL.Path, "/api/records/")
	if recordUUID == "" || strings.Contains(recordUUID, "/") {
		api.RespondError(w, http.StatusNotFound, "Record not found")
		return
	}

	record, err := h.store.GetRecordByUUID(recordUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.RespondError(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		log.Printf("APIHandler: failed to load record %s: %v", recordUUID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load record")
		return
	}

	api.RespondJSON(w, http.StatusOK, record)
}

// handleListMerges handles GET /api/merges
func (h *APIHandler) handleListMerges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	merges, err := h.store.ListMerges(parseLimit(r, 100))
	if err != nil {
		log.Printf("APIHandler: failed to list merges: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list merges")
		return
	}

	api.RespondJSON(w, http.StatusOK, merges)
}

// createSourceRequest is the payload for registering a report source instance
type createSourceRequest struct {
	Name          string                 `json:"name"`
	SourceName    string                 `json:"source_name"`
	Description   string                 `json:"description"`
	WebhookSecret string                 `json:"webhook_secret"`
	FieldMappings map[string]interface{} `json:"field_mappings"`
}

// handleSources handles GET and POST /api/sources
func (h *APIHandler) handleSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var instances []database.ReportSourceInstance
		if err := h.db.Order("created_at ASC").Find(&instances).Error; err != nil {
			log.Printf("APIHandler: failed to list sources: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list sources")
			return
		}
		api.RespondJSON(w, http.StatusOK, instances)

	case http.MethodPost:
		var req createSourceRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Name == "" || req.SourceName == "" {
			api.RespondError(w, http.StatusBadRequest, "name and source_name are required")
			return
		}

		instance := database.ReportSourceInstance{
			Name:          req.Name,
			SourceName:    req.SourceName,
			Description:   req.Description,
			WebhookSecret: req.WebhookSecret,
			FieldMappings: database.JSONB(req.FieldMappings),
			Enabled:       true,
		}
		if err := h.db.Create(&instance).Error; err != nil {
			log.Printf("APIHandler: failed to create source: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to create source")
			return
		}

		log.Printf("APIHandler: registered report source %s (%s)", instance.Name, instance.UUID)
		api.RespondJSON(w, http.StatusCreated, instance)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// parseLimit reads a limit query parameter with a default and a hard cap
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 1000 {
		return 1000
	}
	return n
}
