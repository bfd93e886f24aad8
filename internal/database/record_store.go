package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrMergeConflict is returned when a conditional merge-state write loses a
// race: the record's merge status was no longer the expected prior value.
var ErrMergeConflict = errors.New("merge state conflict: record already consumed by another merge")

// TimeWindow bounds a candidate query by event time
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// BoundingBox bounds a candidate query by position
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// RecordStore provides the incident-store operations the dedup engine
// consumes. All queries exclude records already merged into a primary, so a
// merged-away record can never be selected as a merge participant again.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore creates a new record store
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// DB exposes the underlying gorm handle for transactional callers
func (s *RecordStore) DB() *gorm.DB {
	return s.db
}

// QueryRecent returns records modified since the given time that are not
// merged into another record, ordered by event time descending.
func (s *RecordStore) QueryRecent(since time.Time, limit int) ([]RawRecord, error) {
	var records []RawRecord
	q := s.db.Where("updated_at >= ? AND merge_status <> ?", since, MergeStatusMergedInto).
		Order("occurred_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// QueryCandidates returns non-merged records inside a spatio-temporal window.
// Records without coordinates or an event time never match the window.
func (s *RecordStore) QueryCandidates(window TimeWindow, box BoundingBox) ([]RawRecord, error) {
	var records []RawRecord
	err := s.db.Where("merge_status <> ?", MergeStatusMergedInto).
		Where("occurred_at BETWEEN ? AND ?", window.From, window.To).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Order("occurred_at DESC").
		Find(&records).Error
	return records, err
}

// UpdateMergeState performs a conditional (optimistic) merge-state write.
// The update only succeeds if the record's current merge status still equals
// expectedPrior; a lost race returns ErrMergeConflict so concurrent runs
// cannot both consume the same record.
func (s *RecordStore) UpdateMergeState(recordID uint, status MergeStatus, mergedIntoID *uint, expectedPrior MergeStatus) error {
	if mergedIntoID != nil && *mergedIntoID == recordID {
		return fmt.Errorf("record %d cannot be merged into itself", recordID)
	}

	result := s.db.Model(&RawRecord{}).
		Where("id = ? AND merge_status = ?", recordID, expectedPrior).
		Updates(map[string]interface{}{
			"merge_status":   status,
			"merged_into_id": mergedIntoID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMergeConflict
	}
	return nil
}

// UpdateFields applies a partial field update to a record
func (s *RecordStore) UpdateFields(recordID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&RawRecord{}).Where("id = ?", recordID).Updates(updates).Error
}

// GetRecordByID returns a record by its store-assigned ID
func (s *RecordStore) GetRecordByID(id uint) (*RawRecord, error) {
	var record RawRecord
	if err := s.db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GetRecordByUUID returns a record by UUID
func (s *RecordStore) GetRecordByUUID(uuid string) (*RawRecord, error) {
	var record RawRecord
	if err := s.db.Where("uuid = ?", uuid).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBySourceReference returns the record with the given source-native ID,
// or nil if none exists
func (s *RecordStore) FindBySourceReference(source, referenceID string) (*RawRecord, error) {
	var record RawRecord
	err := s.db.Where("source = ? AND reference_id = ?", source, referenceID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateRecord persists a new raw record
func (s *RecordStore) CreateRecord(record *RawRecord) error {
	return s.db.Create(record).Error
}

// RecordMerge writes an audit row for a performed merge
func (s *RecordStore) RecordMerge(secondaryID, primaryID uint, confidence float64, reason, mergedBy string) error {
	merge := &IncidentMerge{
		SecondaryRecordID: secondaryID,
		PrimaryRecordID:   primaryID,
		MergeConfidence:   confidence,
		MergeReason:       reason,
		MergedBy:          mergedBy,
	}
	return s.db.Create(merge).Error
}

// EnsureCanonicalIncident links a record to a canonical incident, creating
// one from the record's facts when it has none. Returns the incident ID.
func (s *RecordStore) EnsureCanonicalIncident(record *RawRecord) (uint, error) {
	if record.CanonicalIncidentID != nil {
		return *record.CanonicalIncidentID, nil
	}

	incident := &CanonicalIncident{
		Title:            record.Title,
		Region:           record.Region,
		IncidentTypeName: record.IncidentTypeName,
		OccurredAt:       record.OccurredAt,
		Latitude:         record.Latitude,
		Longitude:        record.Longitude,
		PrimaryRecordID:  &record.ID,
		RecordCount:      1,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(incident).Error; err != nil {
			return err
		}
		return tx.Model(&RawRecord{}).Where("id = ?", record.ID).
			Update("canonical_incident_id", incident.ID).Error
	})
	if err != nil {
		return 0, err
	}

	record.CanonicalIncidentID = &incident.ID
	return incident.ID, nil
}

// IncrementIncidentRecordCount bumps the record counter on a canonical
// incident after a merge folded another source into it
func (s *RecordStore) IncrementIncidentRecordCount(incidentID uint) error {
	return s.db.Model(&CanonicalIncident{}).Where("id = ?", incidentID).
		Update("record_count", gorm.Expr("record_count + 1")).Error
}

// ListMerges returns the most recent merge audit rows
func (s *RecordStore) ListMerges(limit int) ([]IncidentMerge, error) {
	var merges []IncidentMerge
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&merges).Error
	return merges, err
}

// CreateRun persists a batch run summary
func (s *RecordStore) CreateRun(run *DedupRun) error {
	return s.db.Create(run).Error
}

// ListRuns returns the most recent batch run summaries
func (s *RecordStore) ListRuns(limit int) ([]DedupRun, error) {
	var runs []DedupRun
	q := s.db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}
