package similarity

import "strings"

// DefaultSynonymGroups are curated incident-type categories. Types in the
// same group score 0.8 without being textually equal. Membership is a
// hand-tuned table matching analyst judgment, not derived.
var DefaultSynonymGroups = [][]string{
	{"ROBBERY", "ROBBERY/THEFT", "THEFT", "ARMED ROBBERY", "PETTY THEFT"},
	{"BOARDING", "ATTEMPTED BOARDING", "BOARDED", "ILLEGAL BOARDING"},
	{"PIRACY", "HIJACK", "HIJACKING", "KIDNAPPING", "PIRATE ATTACK"},
	{"ATTACK", "ARMED ATTACK", "MISSILE ATTACK", "DRONE ATTACK", "EXPLOSION"},
	{"DETENTION", "SEIZURE", "ARREST", "VESSEL SEIZURE"},
	{"SUSPICIOUS APPROACH", "SUSPICIOUS ACTIVITY", "APPROACH", "SUSPICIOUS VESSEL"},
	{"THREAT", "WARNING", "SECURITY THREAT", "MILITARY ACTIVITY", "ADVISORY"},
}

// buildGroupIndex maps each normalized type name to its group index
func buildGroupIndex(groups [][]string) map[string]int {
	index := make(map[string]int)
	for i, group := range groups {
		for _, name := range group {
			index[normalizeTypeName(name)] = i
		}
	}
	return index
}

var defaultGroupIndex = buildGroupIndex(DefaultSynonymGroups)

func normalizeTypeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// IncidentTypeSimilarity scores two incident-type names in [0,1] using the
// default synonym groups
func IncidentTypeSimilarity(type1, type2 string) float64 {
	return IncidentTypeSimilarityWith(type1, type2, defaultGroupIndex)
}

// IncidentTypeSimilarityWith scores two incident-type names against a custom
// synonym group index: 1 for equal normalized names, 0.8 for the same
// curated group, else the fraction of shared tokens over the larger token
// count. Missing types score 0.
func IncidentTypeSimilarityWith(type1, type2 string, groupIndex map[string]int) float64 {
	t1 := normalizeTypeName(type1)
	t2 := normalizeTypeName(type2)
	if t1 == "" || t2 == "" {
		return 0
	}
	if t1 == t2 {
		return 1
	}

	g1, ok1 := groupIndex[t1]
	g2, ok2 := groupIndex[t2]
	if ok1 && ok2 && g1 == g2 {
		return 0.8
	}

	return tokenOverlap(t1, t2)
}

// SameTypeCategory reports whether two incident-type names are equal or fall
// in the same curated synonym group
func SameTypeCategory(type1, type2 string) bool {
	return IncidentTypeSimilarity(type1, type2) >= 0.8
}

// tokenOverlap returns shared whitespace-delimited tokens over the larger
// token count
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = true
	}

	seen := make(map[string]bool)
	shared := 0
	for _, tok := range tokensB {
		if setA[tok] && !seen[tok] {
			shared++
			seen[tok] = true
		}
	}

	larger := len(tokensA)
	if len(tokensB) > larger {
		larger = len(tokensB)
	}
	return float64(shared) / float64(larger)
}
