package vocabulary

import (
	"sort"
	"testing"
)

func TestContains(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"irreversible_pulpitis", true},
		{"deep_caries", true},
		{"apical-periodontitis", true},
		{"cracked-tooth", true},
		{"", false},
		{"not_a_condition", false},
		// Membership is exact: separator styles do not alias.
		{"apical_periodontitis", false},
		{"irreversible-pulpitis", false},
		{"Irreversible_Pulpitis", false},
	}

	for _, tt := range tests {
		if got := Contains(tt.code); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestAllSortedAndStable(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("vocabulary is empty")
	}
	if !sort.StringsAreSorted(all) {
		t.Error("All() is not sorted")
	}
	for _, code := range all {
		if !Contains(code) {
			t.Errorf("All() returned %q which Contains rejects", code)
		}
	}
}

// Legacy hyphenated codes must never be removed; persisted catalogs
// reference them and removal is disallowed without a migration.
func TestLegacyCodesRetained(t *testing.T) {
	legacy := []string{
		"cracked-tooth",
		"fractured-cusp",
		"crown-fracture",
		"root-fracture",
		"apical-periodontitis",
		"periapical-abscess",
		"ectopic-eruption",
		"supernumerary-tooth",
		"midline-diastema",
		"failed-crown",
		"dry-socket",
	}
	for _, code := range legacy {
		if !Contains(code) {
			t.Errorf("legacy code %q missing from vocabulary", code)
		}
	}
}

func TestMissing(t *testing.T) {
	got := Missing([]string{"caries", "bogus_one", "gingivitis", "bogus_two", "bogus_one"})
	want := []string{"bogus_one", "bogus_two"}
	if len(got) != len(want) {
		t.Fatalf("Missing returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Missing[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := Missing(nil); got != nil {
		t.Errorf("Missing(nil) = %v, want nil", got)
	}
	if got := Missing([]string{"caries"}); got != nil {
		t.Errorf("Missing(all valid) = %v, want nil", got)
	}
}
