package similarity

import (
	"math"
	"testing"
)

func TestNormalizeVesselName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "Ocean Star", "OCEANSTAR"},
		{"mv prefix", "MV OCEAN STAR", "OCEANSTAR"},
		{"slash prefix", "M/V Ocean Star", "OCEANSTAR"},
		{"dotted prefix", "M.V. Ocean Star", "OCEANSTAR"},
		{"motor vessel prefix", "Motor Vessel Alpha", "ALPHA"},
		{"motor tanker prefix", "MOTOR TANKER Beta", "BETA"},
		{"tanker prefix", "Tanker Gamma", "GAMMA"},
		{"punctuation stripped", "Sea-Wolf 2", "SEAWOLF2"},
		{"whitespace trimmed", "  delta  ", "DELTA"},
		{"prefix only", "M/V", ""},
		{"embedded word not stripped", "MVP STAR", "MVPSTAR"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVesselName(tt.input); got != tt.want {
				t.Errorf("NormalizeVesselName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"OCEANSTAR", "OCEANSTARR", 1},
		{"flaw", "lawn", 2},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVesselNameSimilarity(t *testing.T) {
	// Prefix variants of the same name are an exact match.
	if got := VesselNameSimilarity("MV OCEAN STAR", "OCEAN STAR"); got != 1 {
		t.Errorf("prefix variant = %v, want 1", got)
	}
	if got := VesselNameSimilarity("M/V Ocean Star", "motor vessel ocean star"); got != 1 {
		t.Errorf("mixed prefix variant = %v, want 1", got)
	}

	// One character off: OCEANSTAR vs OCEANSTARR is 1 - 1/10.
	got := VesselNameSimilarity("OCEAN STAR", "OCEAN STARR")
	if math.Abs(got-0.9) > 1e-9 {
		t.Errorf("near miss = %v, want 0.9", got)
	}

	// Unrelated names score low but not necessarily zero.
	got = VesselNameSimilarity("OCEAN STAR", "ZEPHYR")
	if got >= 0.5 {
		t.Errorf("unrelated names = %v, want < 0.5", got)
	}

	// Missing names carry no evidence.
	if got := VesselNameSimilarity("", "OCEAN STAR"); got != 0 {
		t.Errorf("empty name = %v, want 0", got)
	}
	if got := VesselNameSimilarity("  ", "OCEAN STAR"); got != 0 {
		t.Errorf("blank name = %v, want 0", got)
	}

	// Names that are nothing but class designators are not identity evidence.
	if got := VesselNameSimilarity("M/V", "MV"); got != 0 {
		t.Errorf("designator-only names = %v, want 0", got)
	}
}

func TestIMOSimilarity(t *testing.T) {
	tests := []struct {
		name string
		imo1 string
		imo2 string
		want float64
	}{
		{"exact match", "9395044", "9395044", 1},
		{"trimmed match", " 9395044 ", "9395044", 1},
		{"different", "9395044", "9395045", 0},
		{"one empty", "", "9395044", 0},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IMOSimilarity(tt.imo1, tt.imo2); got != tt.want {
				t.Errorf("IMOSimilarity(%q, %q) = %v, want %v", tt.imo1, tt.imo2, got, tt.want)
			}
		})
	}
}
