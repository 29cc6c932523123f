package inference

import (
	"reflect"
	"testing"

	"github.com/dentara/go-catalog/internal/dental/tooth"
	"github.com/dentara/go-catalog/internal/domain/catalog"
)

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Treatments: []catalog.Treatment{
			{
				Code:        "endo_rct_prep_1",
				DisplayName: "Root Canal Preparation (1 canal)",
				Category:    catalog.CategoryEndodontics,
				ToothNumberRules: &catalog.ToothNumberRules{
					AnteriorFDI: []int{11, 12, 13, 21, 22, 23},
				},
			},
			{
				Code:        "crown_porcelain",
				DisplayName: "Porcelain Crown",
				Category:    catalog.CategoryRestorative,
				ToothNumberRules: &catalog.ToothNumberRules{
					MolarFDI: []int{16, 17, 26, 27, 36, 37, 46, 47},
					SpecificFDI: map[int]catalog.ToothOverride{
						16: {OverrideCode: "crown_gold"},
						48: {},
					},
				},
			},
			{
				Code:        "resto_comp_1s",
				DisplayName: "Composite Restoration (1 surface)",
				Category:    catalog.CategoryRestorative,
			},
		},
		Mappings: []catalog.ConditionMapping{
			{
				Condition: "irreversible_pulpitis",
				Treatments: []catalog.TreatmentPriority{
					{Treatment: "endo_rct_prep_1", Priority: 1},
					{Treatment: "crown_porcelain", Priority: 2},
				},
			},
			{
				Condition: "caries",
				Treatments: []catalog.TreatmentPriority{
					{Treatment: "resto_comp_1s", Priority: 1},
					{Treatment: "ghost_treatment", Priority: 2},
				},
			},
		},
	}
}

func TestResolvePriorityOrdering(t *testing.T) {
	// Declaration order [A,B,C] with priorities [3,1,2] must resolve [B,C,A].
	engine := NewEngine(catalog.Snapshot{
		Mappings: []catalog.ConditionMapping{
			{
				Condition: "gingivitis",
				Treatments: []catalog.TreatmentPriority{
					{Treatment: "A", Priority: 3},
					{Treatment: "B", Priority: 1},
					{Treatment: "C", Priority: 2},
				},
			},
		},
	})

	got := engine.Resolve("gingivitis")
	want := []string{"B", "C", "A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolveStableOnPriorityTies(t *testing.T) {
	engine := NewEngine(catalog.Snapshot{
		Mappings: []catalog.ConditionMapping{
			{
				Condition: "calculus",
				Treatments: []catalog.TreatmentPriority{
					{Treatment: "first", Priority: 1},
					{Treatment: "second", Priority: 1},
					{Treatment: "third", Priority: 1},
				},
			},
		},
	})

	want := []string{"first", "second", "third"}
	for i := 0; i < 5; i++ {
		if got := engine.Resolve("calculus"); !reflect.DeepEqual(got, want) {
			t.Fatalf("tie order not stable on run %d: %v", i, got)
		}
	}
}

func TestResolveUnmappedCondition(t *testing.T) {
	engine := NewEngine(testSnapshot())
	if got := engine.Resolve("bruxism"); got != nil {
		t.Errorf("unmapped condition should yield no suggestion, got %v", got)
	}
	if got := engine.ResolveForTooth("bruxism", 16); got != nil {
		t.Errorf("unmapped condition with tooth should yield no suggestion, got %v", got)
	}
}

func TestResolveForToothExclusion(t *testing.T) {
	engine := NewEngine(testSnapshot())

	// Tooth 11 is in the anterior rule set.
	got := engine.ResolveForTooth("irreversible_pulpitis", 11)
	want := []string{"endo_rct_prep_1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveForTooth(11) = %v, want %v", got, want)
	}

	// Tooth 36 is a molar, outside the anterior-only endo rule but inside
	// the crown molar set.
	got = engine.ResolveForTooth("irreversible_pulpitis", 36)
	want = []string{"crown_porcelain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveForTooth(36) = %v, want %v", got, want)
	}

	// Tooth 31 matches neither treatment's rules.
	if got := engine.ResolveForTooth("irreversible_pulpitis", 31); len(got) != 0 {
		t.Errorf("ResolveForTooth(31) = %v, want empty", got)
	}
}

func TestResolveForToothOverridePrecedence(t *testing.T) {
	engine := NewEngine(testSnapshot())

	// Tooth 16 is inside crown_porcelain's molar set AND has a specific-FDI
	// override; the override code must win at the original priority.
	got := engine.ResolveForTooth("irreversible_pulpitis", 16)
	want := []string{"crown_gold"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveForTooth(16) = %v, want %v", got, want)
	}
}

func TestResolveForToothSpecificFDIWithoutOverride(t *testing.T) {
	engine := NewEngine(testSnapshot())

	// Tooth 48 appears in specificFDI with no override code: included as-is
	// even though it is outside the molar set.
	got := engine.ResolveForTooth("irreversible_pulpitis", 48)
	want := []string{"crown_porcelain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveForTooth(48) = %v, want %v", got, want)
	}
}

func TestResolveForToothSkipsUnknownTreatments(t *testing.T) {
	engine := NewEngine(testSnapshot())

	// ghost_treatment is referenced by the mapping but absent from the
	// catalog; it is silently skipped, not an error.
	got := engine.ResolveForTooth("caries", 36)
	want := []string{"resto_comp_1s"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveForTooth(caries, 36) = %v, want %v", got, want)
	}
}

func TestResolveDeterminism(t *testing.T) {
	engine := NewEngine(testSnapshot())
	first := engine.ResolveForTooth("irreversible_pulpitis", 11)
	for i := 0; i < 10; i++ {
		if got := engine.ResolveForTooth("irreversible_pulpitis", 11); !reflect.DeepEqual(got, first) {
			t.Fatalf("resolve not deterministic: %v vs %v", got, first)
		}
	}
}

func TestPrimaryTreatment(t *testing.T) {
	engine := NewEngine(testSnapshot())

	code, ok := engine.PrimaryTreatment("irreversible_pulpitis", 11)
	if !ok || code != "endo_rct_prep_1" {
		t.Errorf("PrimaryTreatment = %q,%v", code, ok)
	}

	if _, ok := engine.PrimaryTreatment("bruxism", 11); ok {
		t.Error("PrimaryTreatment for unmapped condition should report no suggestion")
	}

	// fdi 0 resolves without tooth refinement.
	code, ok = engine.PrimaryTreatment("caries", 0)
	if !ok || code != "resto_comp_1s" {
		t.Errorf("PrimaryTreatment without tooth = %q,%v", code, ok)
	}
}

func TestIsApplicableToTooth(t *testing.T) {
	engine := NewEngine(testSnapshot())

	tests := []struct {
		code string
		fdi  int
		want bool
	}{
		{"endo_rct_prep_1", 11, true},
		{"endo_rct_prep_1", 16, false},
		{"crown_porcelain", 16, true},
		{"crown_porcelain", 48, true},
		{"crown_porcelain", 11, false},
		{"resto_comp_1s", 11, true}, // no rules: applies everywhere
		{"resto_comp_1s", 48, true},
		{"missing_code", 11, false},
	}
	for _, tt := range tests {
		if got := engine.IsApplicableToTooth(tt.code, tt.fdi); got != tt.want {
			t.Errorf("IsApplicableToTooth(%s, %d) = %v, want %v", tt.code, tt.fdi, got, tt.want)
		}
	}
}

func TestEngineToothGroup(t *testing.T) {
	engine := NewEngine(catalog.Snapshot{})
	if got := engine.ToothGroup(48); got != tooth.GroupThirdMolar {
		t.Errorf("ToothGroup(48) = %s", got)
	}
	if got := engine.ToothGroup(11); got != tooth.GroupAnterior {
		t.Errorf("ToothGroup(11) = %s", got)
	}
}
