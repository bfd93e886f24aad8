package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// HTTPHandler handles the unauthenticated HTTP endpoints
type HTTPHandler struct {
	reportHandler *ReportHandler
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(reportHandler *ReportHandler) *HTTPHandler {
	return &HTTPHandler{
		reportHandler: reportHandler,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	// Report webhooks: /webhook/report/{instance_uuid}
	if h.reportHandler != nil {
		mux.HandleFunc("/webhook/report/", h.reportHandler.HandleWebhook)
	}
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]string{
		"status":  "ok",
		"version": "1.0.0",
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
