package dedup

import (
	"strings"

	"github.com/seawatch/seawatch/internal/database"
)

// DefaultSourcePriorities ranks feed reliability. Higher values mean more
// rigorous verification workflows behind the feed. Unknown sources get
// defaultSourcePriority. The table is hand-curated, lookups are
// case-insensitive.
var DefaultSourcePriorities = map[string]int{
	"ukmto":      5,
	"imb_prc":    5,
	"recaap":     4,
	"mdat_gog":   4,
	"mschoa":     3,
	"ambrey":     3,
	"gard":       2,
	"news_media": 1,
}

const defaultSourcePriority = 1

// SourcePriority returns the reliability priority for a source name using
// the default table
func SourcePriority(sourceName string) int {
	return SourcePriorityWith(sourceName, DefaultSourcePriorities)
}

// SourcePriorityWith returns the reliability priority from a custom table
func SourcePriorityWith(sourceName string, priorities map[string]int) int {
	if p, ok := priorities[strings.ToLower(strings.TrimSpace(sourceName))]; ok {
		return p
	}
	return defaultSourcePriority
}

// Completeness computes an additive point score over weighted field
// presence. It is a heuristic ranking signal for primary selection, not a
// business metric; weights are monotonic in information content.
func Completeness(r *database.RawRecord) int {
	score := 0

	if r.Title != "" {
		score++
	}
	if len(r.Description) > 100 {
		score += 3
	} else if r.Description != "" {
		score++
	}
	if r.HasValidCoordinates() {
		score += 2
	}
	if r.HasOccurredAt() {
		score++
	}
	if r.Region != "" {
		score++
	}
	if r.LocationName != "" {
		score++
	}
	if r.VesselName != "" {
		score++
	}
	if r.VesselType != "" {
		score++
	}
	if r.VesselFlag != "" {
		score++
	}
	if r.VesselIMO != "" {
		score += 2
	}
	if r.IncidentTypeName != "" {
		score++
	}
	if r.ReferenceID != "" {
		score++
	}
	if r.UpdatesText != "" {
		score += 2
	}
	if len(r.RawPayload) > 0 {
		score++
	}

	return score
}

// qualityScore combines completeness and source priority for primary
// selection
func qualityScore(r *database.RawRecord, priorities map[string]int) float64 {
	return 0.7*float64(Completeness(r)) + 0.3*float64(SourcePriorityWith(r.Source, priorities))
}

// DeterminePrimary decides which record of a matched pair survives as the
// primary. Ties resolve to r1, so the assignment is deterministic for a
// given argument order.
func DeterminePrimary(r1, r2 *database.RawRecord) (primary, secondary *database.RawRecord) {
	return DeterminePrimaryWith(r1, r2, DefaultSourcePriorities)
}

// DeterminePrimaryWith decides primary/secondary using a custom priority table
func DeterminePrimaryWith(r1, r2 *database.RawRecord, priorities map[string]int) (primary, secondary *database.RawRecord) {
	if qualityScore(r2, priorities) > qualityScore(r1, priorities) {
		return r2, r1
	}
	return r1, r2
}
