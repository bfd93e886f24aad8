package similarity

import (
	"regexp"
	"strings"
)

// vesselPrefixPattern strips vessel-class designators wherever they appear as
// whole words. Longer alternatives come first so "MOTOR VESSEL" wins over
// "VESSEL".
var vesselPrefixPattern = regexp.MustCompile(`(?i)\b(MOTOR VESSEL|MOTOR TANKER|M/V|M\.V\.|M/T|M\.T\.|MV|MT|VESSEL|TANKER)\b`)

// nonAlphanumericPattern matches everything stripped after prefix removal
var nonAlphanumericPattern = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizeVesselName uppercases a vessel name, removes class prefixes such
// as "M/V" or "MOTOR TANKER", and strips non-alphanumeric characters.
func NormalizeVesselName(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = vesselPrefixPattern.ReplaceAllString(n, " ")
	n = nonAlphanumericPattern.ReplaceAllString(n, "")
	return n
}

// Levenshtein computes the standard edit distance between two strings using
// the full dynamic-programming table, over runes.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost

			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// VesselNameSimilarity scores two vessel names in [0,1].
// Missing names score 0. Identical normalized forms score 1. Otherwise the
// score is 1 - editDistance/maxLen, floored at 0.
func VesselNameSimilarity(name1, name2 string) float64 {
	if strings.TrimSpace(name1) == "" || strings.TrimSpace(name2) == "" {
		return 0
	}

	n1 := NormalizeVesselName(name1)
	n2 := NormalizeVesselName(name2)

	if n1 == n2 {
		if n1 == "" {
			// Both names reduced to nothing but class designators; that is
			// not evidence of identity.
			return 0
		}
		return 1
	}

	maxLen := len(n1)
	if len(n2) > maxLen {
		maxLen = len(n2)
	}
	if maxLen == 0 {
		return 0
	}

	sim := 1 - float64(Levenshtein(n1, n2))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// IMOSimilarity returns 1 iff both IMO numbers are present and equal after
// trimming, else 0. Callers stringify numeric IMOs before comparison.
func IMOSimilarity(imo1, imo2 string) float64 {
	i1 := strings.TrimSpace(imo1)
	i2 := strings.TrimSpace(imo2)
	if i1 == "" || i2 == "" {
		return 0
	}
	if i1 == i2 {
		return 1
	}
	return 0
}
