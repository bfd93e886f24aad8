package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DedupRunStatus represents the outcome of a batch deduplication run
type DedupRunStatus string

const (
	DedupRunStatusCompleted DedupRunStatus = "completed"
	DedupRunStatusFailed    DedupRunStatus = "failed"
	DedupRunStatusSkipped   DedupRunStatus = "skipped"
)

// DedupRun persists the summary of one batch deduplication pass.
// The counter fields are the stable contract consumed by the dashboard.
type DedupRun struct {
	ID                      uint           `gorm:"primaryKey" json:"id"`
	UUID                    string         `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Status                  DedupRunStatus `gorm:"type:varchar(20);not null" json:"status"`
	RecordsAnalyzed         int            `json:"records_analyzed"`
	PotentialMatchesChecked int            `json:"potential_matches_checked"`
	HighConfidenceMatches   int            `json:"high_confidence_matches"`
	MediumConfidenceMatches int            `json:"medium_confidence_matches"`
	MergesAttempted         int            `json:"merges_attempted"`
	MergesSucceeded         int            `json:"merges_succeeded"`
	MergeErrors             int            `json:"merge_errors"`
	Error                   string         `gorm:"type:text" json:"error,omitempty"`
	StartedAt               time.Time      `json:"started_at"`
	FinishedAt              time.Time      `json:"finished_at"`
	CreatedAt               time.Time      `json:"created_at"`
}

// BeforeCreate assigns a UUID when none was provided
func (r *DedupRun) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	return nil
}

func (DedupRun) TableName() string {
	return "dedup_runs"
}
