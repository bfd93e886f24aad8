package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/seawatch/seawatch/internal/api"
	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/dedup"
	"github.com/seawatch/seawatch/internal/reports"
)

// ReportHandler ingests incident reports from configured webhook feeds and
// runs ingest-time candidate matching on each new record.
type ReportHandler struct {
	db     *gorm.DB
	store  *database.RecordStore
	finder *dedup.CandidateFinder
	tuning *dedup.Tuning
}

// NewReportHandler creates a new report webhook handler
func NewReportHandler(db *gorm.DB, finder *dedup.CandidateFinder, tuning *dedup.Tuning) *ReportHandler {
	if tuning == nil {
		tuning = dedup.DefaultTuning()
	}
	return &ReportHandler{
		db:     db,
		store:  database.NewRecordStore(db),
		finder: finder,
		tuning: tuning,
	}
}

// ingestResult summarizes what happened to one webhook delivery
type ingestResult struct {
	Ingested   int `json:"ingested"`
	Matched    int `json:"matched"`
	Duplicates int `json:"duplicates"` // Same source+reference already stored
	Errors     int `json:"errors"`
}

// HandleWebhook handles POST /webhook/report/{instance_uuid}
func (h *ReportHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	instanceUUID := strings.TrimPrefix(r.URL.Path, "/webhook/report/")
	if instanceUUID == "" || strings.Contains(instanceUUID, "/") {
		api.RespondError(w, http.StatusNotFound, "Unknown report source")
		return
	}

	var instance database.ReportSourceInstance
	err := h.db.Where("uuid = ?", instanceUUID).First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.RespondError(w, http.StatusNotFound, "Unknown report source")
		return
	}
	if err != nil {
		log.Printf("ReportHandler: instance lookup failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if !instance.Enabled {
		api.RespondError(w, http.StatusForbidden, "Report source is disabled")
		return
	}

	if err := reports.ValidateWebhookSecret(r, &instance); err != nil {
		log.Printf("ReportHandler: secret validation failed for instance %s from %s", instance.Name, r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.MaxBodySize))
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	normalized, err := reports.ParsePayload(body, &instance)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := ingestResult{}
	for i := range normalized {
		h.ingestOne(&normalized[i], &result)
	}

	api.RespondJSON(w, http.StatusOK, result)
}

// ingestOne stores one normalized report and runs candidate matching.
// A failed match attempt leaves the record stored; matching is retried by
// the batch job anyway.
func (h *ReportHandler) ingestOne(report *reports.NormalizedReport, result *ingestResult) {
	existing, err := h.store.FindBySourceReference(report.Source, report.ReferenceID)
	if err != nil {
		log.Printf("ReportHandler: lookup failed for %s/%s: %v", report.Source, report.ReferenceID, err)
		result.Errors++
		return
	}
	if existing != nil {
		result.Duplicates++
		return
	}

	record := report.ToRecord()
	if err := h.store.CreateRecord(record); err != nil {
		log.Printf("ReportHandler: failed to store record %s/%s: %v", report.Source, report.ReferenceID, err)
		result.Errors++
		return
	}
	result.Ingested++

	match, err := h.finder.FindMatch(record)
	if err != nil {
		log.Printf("ReportHandler: candidate search failed for record %s: %v", record.UUID, err)
		result.Errors++
		return
	}

	if !match.Matched {
		// First report of this event: materialize a canonical incident when
		// the record carries enough facts to stand alone.
		if record.HasOccurredAt() && record.HasValidCoordinates() {
			if _, err := h.store.EnsureCanonicalIncident(record); err != nil {
				log.Printf("ReportHandler: failed to create canonical incident for record %s: %v", record.UUID, err)
			}
		}
		h.markProcessed(record.ID)
		return
	}

	matched, err := h.store.GetRecordByID(match.RecordID)
	if err != nil {
		log.Printf("ReportHandler: failed to load matched record %d: %v", match.RecordID, err)
		result.Errors++
		return
	}

	reason := "ingest-time candidate match"
	if match.OverrideRule != "" {
		reason += " via rule " + match.OverrideRule
	}
	if _, err := dedup.ExecuteMerge(h.store, record, matched, match.Confidence, reason, "ingest", h.tuning.Priorities()); err != nil {
		if errors.Is(err, database.ErrMergeConflict) {
			log.Printf("ReportHandler: merge conflict for record %s, batch job will retry: %v", record.UUID, err)
		} else {
			log.Printf("ReportHandler: merge failed for record %s: %v", record.UUID, err)
			result.Errors++
		}
		return
	}

	result.Matched++
	h.markProcessed(record.ID)
}

func (h *ReportHandler) markProcessed(recordID uint) {
	err := h.store.UpdateFields(recordID, map[string]interface{}{
		"processing_status": database.ProcessingStatusReady,
	})
	if err != nil {
		log.Printf("ReportHandler: failed to update processing status for record %d: %v", recordID, err)
	}
}
