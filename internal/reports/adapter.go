package reports

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seawatch/seawatch/internal/database"
)

// NormalizedReport is the common report format produced at the ingest
// boundary. Source fetchers and scrapers live outside this service; they
// deliver payloads to the webhook, and field mappings translate them here.
type NormalizedReport struct {
	Source      string
	ReferenceID string

	Title            string
	Description      string
	Region           string
	LocationName     string
	IncidentTypeName string

	OccurredAt *time.Time
	Latitude   *float64
	Longitude  *float64

	VesselName   string
	VesselType   string
	VesselFlag   string
	VesselIMO    string
	VesselStatus string

	UpdatesText string
	RawPayload  map[string]interface{}
}

// ToRecord converts a normalized report into a raw record ready for the store
func (r *NormalizedReport) ToRecord() *database.RawRecord {
	return &database.RawRecord{
		Source:           r.Source,
		ReferenceID:      r.ReferenceID,
		Title:            r.Title,
		Description:      r.Description,
		Region:           r.Region,
		LocationName:     r.LocationName,
		IncidentTypeName: r.IncidentTypeName,
		OccurredAt:       r.OccurredAt,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		VesselName:       r.VesselName,
		VesselType:       r.VesselType,
		VesselFlag:       r.VesselFlag,
		VesselIMO:        r.VesselIMO,
		VesselStatus:     r.VesselStatus,
		UpdatesText:      r.UpdatesText,
		RawPayload:       database.JSONB(r.RawPayload),
		MergeStatus:      database.MergeStatusNone,
		ProcessingStatus: database.ProcessingStatusNew,
	}
}

// ValidateWebhookSecret checks the shared-secret header against the instance
// configuration. Instances without a secret accept all requests.
func ValidateWebhookSecret(r *http.Request, instance *database.ReportSourceInstance) error {
	if instance.WebhookSecret == "" {
		return nil
	}
	provided := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(instance.WebhookSecret)) != 1 {
		return errors.New("invalid webhook secret")
	}
	return nil
}

// DefaultFieldMappings maps RawRecord fields to dot-notation paths in an
// incoming payload. Instances override individual paths to match their
// feed's shape.
func DefaultFieldMappings() database.JSONB {
	return database.JSONB{
		"reference_id":       "id",
		"title":              "title",
		"description":        "description",
		"region":             "region",
		"location_name":      "location",
		"incident_type_name": "incident_type",
		"occurred_at":        "occurred_at",
		"latitude":           "latitude",
		"longitude":          "longitude",
		"vessel_name":        "vessel.name",
		"vessel_type":        "vessel.type",
		"vessel_flag":        "vessel.flag",
		"vessel_imo":         "vessel.imo",
		"vessel_status":      "vessel.status",
		"updates_text":       "updates",
	}
}

// MergeMappings merges instance-specific mappings over defaults
func MergeMappings(defaults, overrides database.JSONB) database.JSONB {
	result := make(database.JSONB)
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range overrides {
		result[k] = v
	}
	return result
}

// ParsePayload parses a webhook body into normalized reports using the
// instance's field mappings. Bodies may contain a single report object or a
// {"reports": [...]} batch.
func ParsePayload(body []byte, instance *database.ReportSourceInstance) ([]NormalizedReport, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	mappings := MergeMappings(DefaultFieldMappings(), instance.FieldMappings)

	var items []map[string]interface{}
	if batch, ok := envelope["reports"].([]interface{}); ok {
		for _, item := range batch {
			if m, ok := item.(map[string]interface{}); ok {
				items = append(items, m)
			}
		}
	} else {
		items = append(items, envelope)
	}

	reports := make([]NormalizedReport, 0, len(items))
	for _, item := range items {
		report := mapReport(item, mappings, instance.SourceName)
		if report.ReferenceID == "" {
			return nil, errors.New("payload is missing the mapped reference id field")
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func mapReport(data map[string]interface{}, mappings database.JSONB, sourceName string) NormalizedReport {
	report := NormalizedReport{
		Source:           sourceName,
		ReferenceID:      extractString(data, mappingPath(mappings, "reference_id")),
		Title:            extractString(data, mappingPath(mappings, "title")),
		Description:      extractString(data, mappingPath(mappings, "description")),
		Region:           extractString(data, mappingPath(mappings, "region")),
		LocationName:     extractString(data, mappingPath(mappings, "location_name")),
		IncidentTypeName: extractString(data, mappingPath(mappings, "incident_type_name")),
		VesselName:       extractString(data, mappingPath(mappings, "vessel_name")),
		VesselType:       extractString(data, mappingPath(mappings, "vessel_type")),
		VesselFlag:       extractString(data, mappingPath(mappings, "vessel_flag")),
		VesselIMO:        extractString(data, mappingPath(mappings, "vessel_imo")),
		VesselStatus:     extractString(data, mappingPath(mappings, "vessel_status")),
		UpdatesText:      extractString(data, mappingPath(mappings, "updates_text")),
		RawPayload:       data,
	}
	report.OccurredAt = extractTime(data, mappingPath(mappings, "occurred_at"))
	report.Latitude = extractFloat(data, mappingPath(mappings, "latitude"))
	report.Longitude = extractFloat(data, mappingPath(mappings, "longitude"))
	return report
}

func mappingPath(mappings database.JSONB, field string) string {
	if path, ok := mappings[field].(string); ok {
		return path
	}
	return ""
}

// extractNestedValue extracts a value using dot notation (e.g. "vessel.imo")
func extractNestedValue(data map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}

	parts := strings.Split(path, ".")
	current := interface{}(data)

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[part]
		if current == nil {
			return nil
		}
	}

	return current
}

// extractString extracts a string value using dot notation. Numeric values
// are stringified, so numeric identifiers such as IMO numbers compare
// type-insensitively downstream.
func extractString(data map[string]interface{}, path string) string {
	val := extractNestedValue(data, path)
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// extractFloat extracts a numeric value using dot notation, accepting both
// JSON numbers and numeric strings
func extractFloat(data map[string]interface{}, path string) *float64 {
	val := extractNestedValue(data, path)
	switch v := val.(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

// timeFormats are the timestamp layouts feeds are known to use
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// extractTime extracts a timestamp using dot notation. Unparsable values
// yield nil; scoring treats a missing date as a hard-fail condition rather
// than an error.
func extractTime(data map[string]interface{}, path string) *time.Time {
	raw := extractNestedValue(data, path)
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}
