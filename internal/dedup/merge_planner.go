package dedup

import (
	"fmt"
	"strings"
	"time"

	"github.com/seawatch/seawatch/internal/database"
)

// MergePlan is the exact set of field-level updates needed on a primary
// record to absorb useful data from a secondary. The secondary itself only
// receives linkage-state changes, which are not part of the plan.
type MergePlan struct {
	// Updates maps record columns to their new values, suitable for a
	// partial store update on the primary.
	Updates map[string]interface{}
	// Conflicts lists data-integrity problems found while planning (e.g.
	// both records linked to different canonical incidents). Conflicts are
	// surfaced, never silently resolved.
	Conflicts []string
	// AlreadyMerged is true when the secondary's source was previously
	// folded into this primary; the plan is then empty so a retried merge
	// never re-appends content.
	AlreadyMerged bool
}

// PlanMerge computes the update set for absorbing secondary into primary.
// Primary data is never overwritten once populated: descriptions are
// appended under a delimited section, scalars are adopted only into empty
// fields, and coordinates are adopted only as a valid pair.
func PlanMerge(primary, secondary *database.RawRecord, now time.Time) *MergePlan {
	plan := &MergePlan{Updates: make(map[string]interface{})}

	if primary.MergedSourceNames()[secondary.Source] {
		plan.AlreadyMerged = true
		return plan
	}

	planDescription(plan, primary, secondary)
	planUpdatesText(plan, primary, secondary)
	planScalars(plan, primary, secondary)
	planCoordinates(plan, primary, secondary)
	planCanonicalLink(plan, primary, secondary)
	planMetadata(plan, primary, secondary, now)

	return plan
}

// planDescription appends the secondary's narrative under a delimited
// section instead of overwriting, unless the primary has no description or
// already contains the secondary's text
func planDescription(plan *MergePlan, primary, secondary *database.RawRecord) {
	sec := strings.TrimSpace(secondary.Description)
	if sec == "" || sec == strings.TrimSpace(primary.Description) {
		return
	}
	if primary.Description == "" {
		plan.Updates["description"] = sec
		return
	}
	if strings.Contains(primary.Description, sec) {
		return
	}
	plan.Updates["description"] = primary.Description +
		"\n\n--- additional info from " + secondary.Source + " ---\n" + sec
}

// planUpdatesText appends the secondary's free-text updates. Updates are
// cumulative by nature, so they are always appended, not merged-if-different.
func planUpdatesText(plan *MergePlan, primary, secondary *database.RawRecord) {
	sec := strings.TrimSpace(secondary.UpdatesText)
	if sec == "" {
		return
	}
	section := "--- update from " + secondary.Source + " ---\n" + sec
	if primary.UpdatesText == "" {
		plan.Updates["updates_text"] = section
		return
	}
	plan.Updates["updates_text"] = primary.UpdatesText + "\n\n" + section
}

// planScalars adopts the secondary's value only into empty primary fields
func planScalars(plan *MergePlan, primary, secondary *database.RawRecord) {
	scalars := []struct {
		column    string
		primary   string
		secondary string
	}{
		{"title", primary.Title, secondary.Title},
		{"location_name", primary.LocationName, secondary.LocationName},
		{"region", primary.Region, secondary.Region},
		{"incident_type_name", primary.IncidentTypeName, secondary.IncidentTypeName},
		{"vessel_name", primary.VesselName, secondary.VesselName},
		{"vessel_type", primary.VesselType, secondary.VesselType},
		{"vessel_flag", primary.VesselFlag, secondary.VesselFlag},
		{"vessel_imo", primary.VesselIMO, secondary.VesselIMO},
		{"vessel_status", primary.VesselStatus, secondary.VesselStatus},
	}

	for _, s := range scalars {
		if s.primary == "" && s.secondary != "" {
			plan.Updates[s.column] = s.secondary
		}
	}
}

// planCoordinates adopts the secondary's position only as a full pair, only
// when the primary's position is missing or invalid and the secondary's is
// valid. One axis is never overwritten alone.
func planCoordinates(plan *MergePlan, primary, secondary *database.RawRecord) {
	if primary.HasValidCoordinates() || !secondary.HasValidCoordinates() {
		return
	}
	plan.Updates["latitude"] = *secondary.Latitude
	plan.Updates["longitude"] = *secondary.Longitude
}

// planCanonicalLink adopts the secondary's canonical-incident link when the
// primary has none. Divergent links indicate an upstream linkage error and
// are recorded as a conflict; the primary's link is kept unchanged.
func planCanonicalLink(plan *MergePlan, primary, secondary *database.RawRecord) {
	if secondary.CanonicalIncidentID == nil {
		return
	}
	if primary.CanonicalIncidentID == nil {
		plan.Updates["canonical_incident_id"] = *secondary.CanonicalIncidentID
		return
	}
	if *primary.CanonicalIncidentID != *secondary.CanonicalIncidentID {
		plan.Conflicts = append(plan.Conflicts, fmt.Sprintf(
			"primary record %d linked to canonical incident %d but secondary record %d linked to %d; keeping primary's link",
			primary.ID, *primary.CanonicalIncidentID, secondary.ID, *secondary.CanonicalIncidentID))
	}
}

// planMetadata stamps merge bookkeeping on the primary: timestamp, the set
// of folded-in sources, and an append-only audit note
func planMetadata(plan *MergePlan, primary, secondary *database.RawRecord, now time.Time) {
	sources := database.JSONB{}
	for name, v := range primary.MergedSources {
		sources[name] = v
	}
	sources[secondary.Source] = true

	note := fmt.Sprintf("[%s] merged record %s (source %s)",
		now.UTC().Format(time.RFC3339), secondary.UUID, secondary.Source)
	auditLog := note
	if primary.AuditLog != "" {
		auditLog = primary.AuditLog + "\n" + note
	}

	plan.Updates["merged_sources"] = sources
	plan.Updates["merged_at"] = now
	plan.Updates["merge_status"] = database.MergeStatusMerged
	plan.Updates["audit_log"] = auditLog
}
