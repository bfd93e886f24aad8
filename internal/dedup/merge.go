package dedup

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/seawatch/seawatch/internal/database"
)

// ErrMergeIntegrity is returned when a merge participant violates the
// one-level-deep merge invariant. The violation is flagged for manual
// review, never repaired automatically.
var ErrMergeIntegrity = errors.New("merge integrity violation")

// MergeOutcome reports what a merge execution actually wrote
type MergeOutcome struct {
	Primary       *database.RawRecord
	Secondary     *database.RawRecord
	Plan          *MergePlan
	StateWritten  bool
	FieldsWritten bool
}

// ExecuteMerge performs primary selection, merge planning, and the two store
// writes for a matched pair. The secondary's merge-state write is
// conditional on its status still being "none", so two racing runs cannot
// both consume the same record; the loser gets database.ErrMergeConflict.
// The primary field update is independent of the state write, so a partial
// failure of one never corrupts the other.
func ExecuteMerge(store *database.RecordStore, r1, r2 *database.RawRecord, confidence float64, reason, mergedBy string, priorities map[string]int) (*MergeOutcome, error) {
	if r1.MergeStatus == database.MergeStatusMergedInto || r2.MergeStatus == database.MergeStatusMergedInto {
		return nil, fmt.Errorf("%w: record %d or %d is already merged into another record",
			ErrMergeIntegrity, r1.ID, r2.ID)
	}
	if r1.ID == r2.ID {
		return nil, fmt.Errorf("%w: record %d cannot merge with itself", ErrMergeIntegrity, r1.ID)
	}

	primary, secondary := DeterminePrimaryWith(r1, r2, priorities)
	plan := PlanMerge(primary, secondary, time.Now())

	for _, conflict := range plan.Conflicts {
		log.Printf("Merge: data-integrity conflict: %s", conflict)
	}

	outcome := &MergeOutcome{Primary: primary, Secondary: secondary, Plan: plan}

	// (a) Mark the secondary as absorbed. Always into the current primary,
	// never into an already-secondary record, which keeps merges one level
	// deep.
	err := store.UpdateMergeState(secondary.ID, database.MergeStatusMergedInto, &primary.ID, database.MergeStatusNone)
	if err != nil {
		return outcome, err
	}
	outcome.StateWritten = true

	// (b) Absorb the secondary's useful data into the primary.
	if !plan.AlreadyMerged {
		if err := store.UpdateFields(primary.ID, plan.Updates); err != nil {
			return outcome, fmt.Errorf("merge state written but field update failed for record %d: %w", primary.ID, err)
		}
		outcome.FieldsWritten = true
	}

	if err := store.RecordMerge(secondary.ID, primary.ID, confidence, reason, mergedBy); err != nil {
		log.Printf("Merge: failed to write audit row for %d -> %d: %v", secondary.ID, primary.ID, err)
	}

	if primary.CanonicalIncidentID != nil {
		if err := store.IncrementIncidentRecordCount(*primary.CanonicalIncidentID); err != nil {
			log.Printf("Merge: failed to bump record count on canonical incident %d: %v", *primary.CanonicalIncidentID, err)
		}
	}

	return outcome, nil
}
