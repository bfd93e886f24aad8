package database

import "time"

// IncidentMerge tracks when raw records are merged together.
// This provides an audit trail for merge operations, whether performed by
// the batch deduplication job or by ingest-time candidate matching.
type IncidentMerge struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SecondaryRecordID uint      `gorm:"not null;index" json:"secondary_record_id"` // The record that was merged away
	PrimaryRecordID   uint      `gorm:"not null;index" json:"primary_record_id"`   // The record that absorbed the secondary
	MergeConfidence   float64   `gorm:"type:decimal(3,2)" json:"merge_confidence"` // Composite score that justified the merge
	MergeReason       string    `gorm:"type:text" json:"merge_reason"`             // Explanation of why the merge was performed
	MergedBy          string    `gorm:"type:varchar(50);not null" json:"merged_by"` // "system" for the batch job, "ingest" for candidate matching
	CreatedAt         time.Time `json:"created_at"`
}

func (IncidentMerge) TableName() string {
	return "incident_merges"
}
