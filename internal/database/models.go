package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seawatch/seawatch/internal/geo"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, isString := value.(string); isString {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// MergeStatus represents the linkage state of a raw record
type MergeStatus string

const (
	// MergeStatusNone means the record has not participated in a merge
	MergeStatusNone MergeStatus = "none"
	// MergeStatusMerged means the record is a primary that absorbed at least one other record
	MergeStatusMerged MergeStatus = "merged"
	// MergeStatusMergedInto means the record was absorbed by a primary (terminal)
	MergeStatusMergedInto MergeStatus = "merged_into"
)

// ProcessingStatus represents the ingest pipeline state of a raw record
type ProcessingStatus string

const (
	ProcessingStatusNew        ProcessingStatus = "new"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusReady      ProcessingStatus = "ready"
	ProcessingStatusComplete   ProcessingStatus = "complete"
	ProcessingStatusError      ProcessingStatus = "error"
)

// RawRecord is one maritime incident report as ingested from a single source.
// Records are never physically deleted; merged-away records remain as an
// audit trail with MergeStatus = merged_into.
type RawRecord struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UUID        string `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Source      string `gorm:"size:64;not null;index;uniqueIndex:idx_source_reference" json:"source"`
	ReferenceID string `gorm:"size:128;uniqueIndex:idx_source_reference" json:"reference_id"` // Source-native ID, unique per source

	// Event facts. Coordinates and timestamp are nullable because feeds
	// frequently omit or garble them; scoring treats missing values as
	// hard-fail conditions rather than errors.
	OccurredAt       *time.Time `gorm:"index" json:"occurred_at,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	Title            string     `gorm:"type:varchar(512)" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	Region           string     `gorm:"size:128" json:"region"`
	LocationName     string     `gorm:"size:256" json:"location_name"`
	IncidentTypeName string     `gorm:"size:128" json:"incident_type_name"`

	// Vessel identity
	VesselName   string `gorm:"size:128" json:"vessel_name"`
	VesselType   string `gorm:"size:64" json:"vessel_type"`
	VesselFlag   string `gorm:"size:64" json:"vessel_flag"`
	VesselIMO    string `gorm:"size:16" json:"vessel_imo"`
	VesselStatus string `gorm:"size:64" json:"vessel_status"`

	// Free-text updates appended by the source over time (cumulative)
	UpdatesText string `gorm:"type:text" json:"updates_text"`

	RawPayload JSONB `gorm:"type:jsonb" json:"raw_payload,omitempty"`

	// Linkage state
	MergeStatus         MergeStatus      `gorm:"type:varchar(20);not null;default:'none';index" json:"merge_status"`
	MergedIntoID        *uint            `gorm:"index" json:"merged_into_id,omitempty"`
	CanonicalIncidentID *uint            `gorm:"index" json:"canonical_incident_id,omitempty"`
	ProcessingStatus    ProcessingStatus `gorm:"type:varchar(20);not null;default:'new'" json:"processing_status"`

	// Merge metadata, maintained by the merge planner. MergedSources maps
	// source name -> true for every source already folded into this primary,
	// which is what makes a retried merge a no-op.
	MergedSources JSONB      `gorm:"type:jsonb" json:"merged_sources,omitempty"`
	MergedAt      *time.Time `json:"merged_at,omitempty"`
	AuditLog      string     `gorm:"type:text" json:"audit_log"` // Append-only human-readable merge notes

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (r *RawRecord) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	if r.MergeStatus == "" {
		r.MergeStatus = MergeStatusNone
	}
	if r.ProcessingStatus == "" {
		r.ProcessingStatus = ProcessingStatusNew
	}
	return nil
}

// HasValidCoordinates reports whether the record carries a usable position
func (r *RawRecord) HasValidCoordinates() bool {
	if r.Latitude == nil || r.Longitude == nil {
		return false
	}
	return geo.IsValidCoordinate(*r.Latitude, *r.Longitude)
}

// HasOccurredAt reports whether the record carries a usable event timestamp
func (r *RawRecord) HasOccurredAt() bool {
	return r.OccurredAt != nil && !r.OccurredAt.IsZero()
}

// MergedSourceNames returns the set of source names already folded into this
// record as a primary
func (r *RawRecord) MergedSourceNames() map[string]bool {
	names := make(map[string]bool)
	for name, v := range r.MergedSources {
		if folded, ok := v.(bool); ok && folded {
			names[name] = true
		}
	}
	return names
}

func (RawRecord) TableName() string {
	return "raw_records"
}

// CanonicalIncident is the deduplicated representation of a real-world event,
// built from one or more raw records. Mutated only through merge operations
// or enrichment; never deleted.
type CanonicalIncident struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UUID             string     `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Title            string     `gorm:"type:varchar(512)" json:"title"`
	Region           string     `gorm:"size:128" json:"region"`
	IncidentTypeName string     `gorm:"size:128" json:"incident_type_name"`
	OccurredAt       *time.Time `gorm:"index" json:"occurred_at,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	PrimaryRecordID  *uint      `gorm:"index" json:"primary_record_id,omitempty"`
	RecordCount      int        `gorm:"default:1" json:"record_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (c *CanonicalIncident) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}

func (CanonicalIncident) TableName() string {
	return "canonical_incidents"
}

// ReportSourceInstance represents a configured inbound report feed.
// The webhook URL embeds the instance UUID; field mappings translate the
// source's native payload shape into RawRecord fields.
type ReportSourceInstance struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name          string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	SourceName    string    `gorm:"size:64;not null;index" json:"source_name"` // Tag stamped on ingested records
	Description   string    `gorm:"type:text" json:"description"`
	WebhookSecret string    `gorm:"type:text" json:"webhook_secret"`
	FieldMappings JSONB     `gorm:"type:jsonb" json:"field_mappings"`
	Enabled       bool      `gorm:"default:true" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (s *ReportSourceInstance) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	return nil
}

// GetWebhookURL returns the webhook URL for this instance
func (s *ReportSourceInstance) GetWebhookURL(baseURL string) string {
	return baseURL + "/webhook/report/" + s.UUID
}

func (ReportSourceInstance) TableName() string {
	return "report_source_instances"
}

// SlackSettings stores Slack notification configuration
type SlackSettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BotToken  string    `gorm:"type:text" json:"bot_token"`
	Channel   string    `gorm:"type:varchar(255)" json:"channel"`
	Enabled   bool      `gorm:"default:false" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if Slack notifications are enabled and configured
func (s *SlackSettings) IsActive() bool {
	return s.Enabled && s.BotToken != "" && s.Channel != ""
}

func (SlackSettings) TableName() string {
	return "slack_settings"
}

// GetSlackSettings returns the Slack settings row, creating a disabled
// default if none exists
func GetSlackSettings(db *gorm.DB) (*SlackSettings, error) {
	var settings SlackSettings
	err := db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = SlackSettings{Enabled: false}
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
