package dedup

import (
	"fmt"
	"strings"

	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/similarity"
)

// OverrideDecision is the outcome of one heuristic override rule
type OverrideDecision int

const (
	// NoOverride means the rule did not fire; the numeric score decides
	NoOverride OverrideDecision = iota
	// ForcedMatch forces a match even below the numeric threshold
	ForcedMatch
	// ForcedNonMatch vetoes a match even above the numeric threshold
	ForcedNonMatch
)

// OverrideResult is the aggregate outcome of evaluating the rule list
type OverrideResult struct {
	Decision OverrideDecision
	Rule     string
	Reason   string
}

// OverrideRule is one hand-authored matching heuristic. Rules are pure: they
// inspect the pair and its component scores and return a decision.
type OverrideRule struct {
	Name     string
	Evaluate func(r1, r2 *database.RawRecord, score similarity.Score) (OverrideDecision, string)
}

// OverrideThresholds holds the hand-tuned constants behind the override
// rules. The values match observed analyst judgment; they are configuration,
// not derived quantities.
type OverrideThresholds struct {
	NearPerfectTime       float64 `yaml:"near_perfect_time"`
	NearPerfectSpatial    float64 `yaml:"near_perfect_spatial"`
	StrongVessel          float64 `yaml:"strong_vessel"`
	StrongVesselMinTime   float64 `yaml:"strong_vessel_min_time"`
	StrongVesselMinSpace  float64 `yaml:"strong_vessel_min_space"`
	TypeCategoryMinTime   float64 `yaml:"type_category_min_time"`
	TypeCategoryMinSpace  float64 `yaml:"type_category_min_space"`
	KeywordMinTime        float64 `yaml:"keyword_min_time"`
	KeywordMinSpace       float64 `yaml:"keyword_min_space"`
	VetoMaxTime           float64 `yaml:"veto_max_time"`
	VetoMaxSpace          float64 `yaml:"veto_max_space"`
}

// DefaultOverrideThresholds returns the tuned constants
func DefaultOverrideThresholds() OverrideThresholds {
	return OverrideThresholds{
		NearPerfectTime:      0.9,
		NearPerfectSpatial:   0.9,
		StrongVessel:         0.85,
		StrongVesselMinTime:  0.5,
		StrongVesselMinSpace: 0.5,
		TypeCategoryMinTime:  0.75,
		TypeCategoryMinSpace: 0.75,
		KeywordMinTime:       0.6,
		KeywordMinSpace:      0.6,
		VetoMaxTime:          0.2,
		VetoMaxSpace:         0.2,
	}
}

// DefaultKeywordSignatures groups free-text terms that identify the same
// kind of incident detail (e.g. what was stolen). A group matches a pair
// when both descriptions mention a term from the group.
var DefaultKeywordSignatures = [][]string{
	{"ENGINE SPARES", "ENGINE SPARE PARTS", "SPARE PARTS"},
	{"SHIP'S STORES", "SHIP STORES", "STORES STOLEN"},
	{"MOORING ROPE", "MOORING LINES"},
	{"OUTBOARD MOTOR", "OUTBOARD ENGINE"},
	{"CREW KIDNAPPED", "CREW TAKEN", "CREW ABDUCTED"},
	{"SKIFF", "SKIFFS"},
	{"LADDER SIGHTED", "HOOKED LADDER", "LADDER"},
}

// DefaultOverrideRules builds the ordered rule list. Order matters: the
// safeguard veto is last and wins over any earlier forced match (and over
// the numeric threshold), because it guards against distinct incidents
// involving vessels with similar or reused names.
func DefaultOverrideRules() []OverrideRule {
	return BuildOverrideRules(DefaultOverrideThresholds(), DefaultKeywordSignatures)
}

// BuildOverrideRules builds the ordered rule list from tuned constants
func BuildOverrideRules(t OverrideThresholds, keywordSignatures [][]string) []OverrideRule {
	return []OverrideRule{
		{
			Name: "near_perfect_time_space",
			Evaluate: func(r1, r2 *database.RawRecord, s similarity.Score) (OverrideDecision, string) {
				if s.Time >= t.NearPerfectTime && s.Spatial >= t.NearPerfectSpatial {
					return ForcedMatch, fmt.Sprintf("near-perfect time (%.2f) and space (%.2f)", s.Time, s.Spatial)
				}
				return NoOverride, ""
			},
		},
		{
			Name: "strong_vessel_moderate_time_space",
			Evaluate: func(r1, r2 *database.RawRecord, s similarity.Score) (OverrideDecision, string) {
				if s.Vessel >= t.StrongVessel && r1.VesselName != "" && r2.VesselName != "" &&
					s.Time >= t.StrongVesselMinTime && s.Spatial >= t.StrongVesselMinSpace {
					return ForcedMatch, fmt.Sprintf("strong vessel match (%.2f) with moderate time/space", s.Vessel)
				}
				return NoOverride, ""
			},
		},
		{
			Name: "type_category_good_time_space",
			Evaluate: func(r1, r2 *database.RawRecord, s similarity.Score) (OverrideDecision, string) {
				if similarity.SameTypeCategory(r1.IncidentTypeName, r2.IncidentTypeName) &&
					s.Time >= t.TypeCategoryMinTime && s.Spatial >= t.TypeCategoryMinSpace {
					return ForcedMatch, "matching incident-type category with good time/space"
				}
				return NoOverride, ""
			},
		},
		{
			Name: "shared_keyword_signature",
			Evaluate: func(r1, r2 *database.RawRecord, s similarity.Score) (OverrideDecision, string) {
				if s.Time >= t.KeywordMinTime && s.Spatial >= t.KeywordMinSpace {
					if sig := sharedKeywordSignature(r1.Description, r2.Description, keywordSignatures); sig != "" {
						return ForcedMatch, "both descriptions mention " + strings.ToLower(sig)
					}
				}
				return NoOverride, ""
			},
		},
		{
			// Safeguard: a strong vessel-name match with very poor time and
			// space is two distinct incidents, not one. Must stay last.
			Name: "vessel_reuse_safeguard",
			Evaluate: func(r1, r2 *database.RawRecord, s similarity.Score) (OverrideDecision, string) {
				if s.Vessel >= t.StrongVessel && s.Time < t.VetoMaxTime && s.Spatial < t.VetoMaxSpace {
					return ForcedNonMatch, fmt.Sprintf("vessel similarity %.2f but time %.2f and space %.2f are both very poor", s.Vessel, s.Time, s.Spatial)
				}
				return NoOverride, ""
			},
		},
	}
}

// EvaluateOverrides runs the ordered rule list over a scored pair. Any
// ForcedNonMatch from a later rule vetoes ForcedMatch results from earlier
// rules; among forced matches the first firing rule wins.
func EvaluateOverrides(rules []OverrideRule, r1, r2 *database.RawRecord, score similarity.Score) OverrideResult {
	result := OverrideResult{Decision: NoOverride}
	for _, rule := range rules {
		decision, reason := rule.Evaluate(r1, r2, score)
		switch decision {
		case ForcedMatch:
			if result.Decision == NoOverride {
				result = OverrideResult{Decision: ForcedMatch, Rule: rule.Name, Reason: reason}
			}
		case ForcedNonMatch:
			// Later safeguards always win.
			result = OverrideResult{Decision: ForcedNonMatch, Rule: rule.Name, Reason: reason}
		}
	}
	return result
}

// sharedKeywordSignature returns the first keyword group with a term present
// in both descriptions, or "" when none matches
func sharedKeywordSignature(desc1, desc2 string, signatures [][]string) string {
	if desc1 == "" || desc2 == "" {
		return ""
	}
	d1 := strings.ToUpper(desc1)
	d2 := strings.ToUpper(desc2)
	for _, group := range signatures {
		in1, in2 := false, false
		for _, term := range group {
			t := strings.ToUpper(term)
			if !in1 && strings.Contains(d1, t) {
				in1 = true
			}
			if !in2 && strings.Contains(d2, t) {
				in2 = true
			}
			if in1 && in2 {
				return group[0]
			}
		}
	}
	return ""
}
