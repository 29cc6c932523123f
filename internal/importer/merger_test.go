package importer

import (
	"reflect"
	"testing"

	"github.com/dentara/go-catalog/internal/domain/catalog"
)

func endoBatch() BatchImport {
	return BatchImport{
		Batch: 7,
		Treatments: []TreatmentRecord{{
			Code:                "endo_rct_prep_1",
			DisplayName:         "Root Canal Preparation (1 canal)",
			FriendlyPatientName: "Root canal treatment",
			Category:            catalog.CategoryEndodontics,
			Description:         "Preparation of a single canal for root canal therapy",
			DefaultDuration:     60,
			DefaultPriceAUD:     floatPtr(420),
			InsuranceCodes:      map[string]*string{"AU": strPtr("415")},
			ToothNumberRules: &catalog.ToothNumberRules{
				AnteriorFDI: []int{11, 12, 13, 21, 22, 23, 31, 32, 33, 41, 42, 43},
			},
		}},
		Conditions: []catalog.Condition{{
			Value:   "irreversible_pulpitis",
			Label:   "Irreversible Pulpitis",
			Urgency: catalog.UrgencyHigh,
		}},
		Mappings: []catalog.ConditionMapping{{
			Condition: "irreversible_pulpitis",
			Treatments: []catalog.TreatmentPriority{
				{Treatment: "endo_rct_prep_1", Priority: 1},
			},
		}},
	}
}

func TestApplyIntoEmptySnapshot(t *testing.T) {
	snap, result := Apply(catalog.Snapshot{}, endoBatch())

	if result.HasErrors() {
		t.Fatalf("unexpected errors: %v %v", result.Errors, result.GeneralErrors)
	}
	if result.TreatmentsAdded != 1 || result.ConditionsAdded != 1 || result.MappingsAdded != 1 {
		t.Errorf("added counts = %d/%d/%d, want 1/1/1",
			result.TreatmentsAdded, result.ConditionsAdded, result.MappingsAdded)
	}
	if result.TreatmentsUpdated+result.ConditionsUpdated+result.MappingsUpdated != 0 {
		t.Errorf("fresh import reported updates: %+v", result)
	}
	if len(result.OrphanedMappings) != 0 {
		t.Errorf("unexpected orphans: %v", result.OrphanedMappings)
	}
	if _, ok := snap.TreatmentByCode("endo_rct_prep_1"); !ok {
		t.Error("merged treatment not found in snapshot")
	}
	if result.VocabularyVersion == "" {
		t.Error("report missing vocabulary version")
	}
	if result.Batch != 7 {
		t.Errorf("report batch = %d, want 7", result.Batch)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	batch := endoBatch()
	first, r1 := Apply(catalog.Snapshot{}, batch)
	if r1.HasErrors() {
		t.Fatalf("first apply failed: %v", r1.Errors)
	}

	second, r2 := Apply(first, batch)
	if r2.HasErrors() {
		t.Fatalf("second apply failed: %v", r2.Errors)
	}
	if r2.TreatmentsAdded != 0 || r2.ConditionsAdded != 0 || r2.MappingsAdded != 0 {
		t.Errorf("second apply added records: %+v", r2)
	}
	if r2.TreatmentsUpdated != 1 || r2.ConditionsUpdated != 1 || r2.MappingsUpdated != 1 {
		t.Errorf("second apply updated counts = %d/%d/%d, want 1/1/1",
			r2.TreatmentsUpdated, r2.ConditionsUpdated, r2.MappingsUpdated)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-applying the batch changed the snapshot:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	base, _ := Apply(catalog.Snapshot{}, endoBatch())
	before := copySnapshot(base)

	update := endoBatch()
	update.Treatments[0].DefaultPriceAUD = floatPtr(480)
	if _, result := Apply(base, update); result.HasErrors() {
		t.Fatalf("update apply failed: %v", result.Errors)
	}

	if !reflect.DeepEqual(base, before) {
		t.Error("Apply mutated its input snapshot")
	}
}

func TestApplyShallowMergePreservesUnsetFields(t *testing.T) {
	base, _ := Apply(catalog.Snapshot{}, endoBatch())

	// Re-import the treatment with only a new price; everything else on the
	// record stays as previously persisted.
	update := endoBatch()
	update.Treatments[0].DefaultPriceAUD = floatPtr(480)
	update.Treatments[0].ToothNumberRules = nil
	merged, result := Apply(base, update)
	if result.HasErrors() {
		t.Fatalf("update failed: %v", result.Errors)
	}

	got, ok := merged.TreatmentByCode("endo_rct_prep_1")
	if !ok {
		t.Fatal("treatment missing after update")
	}
	if got.DefaultPriceAUD != 480 {
		t.Errorf("price = %v, want 480", got.DefaultPriceAUD)
	}
	if got.ToothNumberRules == nil || len(got.ToothNumberRules.AnteriorFDI) == 0 {
		t.Error("unset toothNumberRules wiped the existing rules")
	}
	if got.Description == "" {
		t.Error("unset description wiped the existing description")
	}
}

func TestApplyAllOrNothingPerEntityType(t *testing.T) {
	batch := endoBatch()
	// Second treatment is broken; the whole treatments array must be
	// skipped while conditions and mappings still merge.
	batch.Treatments = append(batch.Treatments, TreatmentRecord{Code: "half_baked"})

	snap, result := Apply(catalog.Snapshot{}, batch)

	if !result.HasErrors() {
		t.Fatal("broken treatment produced no errors")
	}
	if result.TreatmentsAdded != 0 || len(snap.Treatments) != 0 {
		t.Errorf("treatments merged despite schema errors: %+v", result)
	}
	if result.ConditionsAdded != 1 || result.MappingsAdded != 1 {
		t.Errorf("conditions/mappings blocked by treatment errors: %+v", result)
	}
	// With the treatments array skipped, the merged mapping now points at
	// a code absent from the catalog and must surface as an orphan.
	if len(result.OrphanedMappings) != 1 {
		t.Errorf("expected 1 orphaned mapping, got %v", result.OrphanedMappings)
	}
}

func TestApplyInBatchDuplicate(t *testing.T) {
	batch := endoBatch()
	dup := batch.Treatments[0]
	dup.DisplayName = "Root Canal Preparation (revised)"
	batch.Treatments = append(batch.Treatments, dup)

	snap, result := Apply(catalog.Snapshot{}, batch)

	if result.TreatmentsAdded != 1 {
		t.Errorf("treatmentsAdded = %d, want 1", result.TreatmentsAdded)
	}
	got, _ := snap.TreatmentByCode("endo_rct_prep_1")
	if got.DisplayName != "Root Canal Preparation (1 canal)" {
		t.Errorf("later duplicate overwrote first occurrence: %q", got.DisplayName)
	}
	found := false
	for _, e := range result.Errors {
		if e.Kind == KindDuplicate && e.Entity == "treatment" && e.Key == "endo_rct_prep_1" {
			found = true
		}
	}
	if !found {
		t.Errorf("duplicate not reported: %v", result.Errors)
	}
}

func TestApplyOrphanedMappingWarning(t *testing.T) {
	batch := endoBatch()
	batch.Mappings[0].Treatments = append(batch.Mappings[0].Treatments,
		catalog.TreatmentPriority{Treatment: "not_yet_imported", Priority: 2})

	snap, result := Apply(catalog.Snapshot{}, batch)

	if result.HasErrors() {
		t.Fatalf("orphan must not be fatal: %v", result.Errors)
	}
	if len(result.OrphanedMappings) != 1 {
		t.Fatalf("orphans = %v, want exactly one", result.OrphanedMappings)
	}
	want := "mapping irreversible_pulpitis -> not_yet_imported (unknown treatment)"
	if result.OrphanedMappings[0] != want {
		t.Errorf("orphan text = %q, want %q", result.OrphanedMappings[0], want)
	}
	// The mapping itself still persists with both entries.
	if m, ok := snap.MappingFor("irreversible_pulpitis"); !ok || len(m.Treatments) != 2 {
		t.Errorf("orphaned mapping was dropped or trimmed: %+v", m)
	}
}

func TestApplyUnknownConditionMergesWithWarning(t *testing.T) {
	batch := endoBatch()
	batch.Conditions = append(batch.Conditions, catalog.Condition{
		Value:   "experimental_condition",
		Label:   "Experimental",
		Urgency: catalog.UrgencyLow,
	})

	snap, result := Apply(catalog.Snapshot{}, batch)

	if result.HasErrors() {
		t.Fatalf("vocabulary miss must not be fatal: %v", result.Errors)
	}
	if result.ConditionsAdded != 2 {
		t.Errorf("conditionsAdded = %d, want 2", result.ConditionsAdded)
	}
	if len(result.OrphanedConditions) != 1 {
		t.Errorf("orphanedConditions = %v, want one entry", result.OrphanedConditions)
	}
	found := false
	for _, c := range snap.Conditions {
		if c.Value == "experimental_condition" {
			found = true
		}
	}
	if !found {
		t.Error("off-vocabulary condition was not persisted")
	}
}

func TestApplySortsSnapshot(t *testing.T) {
	batch := endoBatch()
	batch.Treatments = append(batch.Treatments, TreatmentRecord{
		Code:                "crown_porcelain",
		DisplayName:         "Ceramic Crown",
		FriendlyPatientName: "Crown",
		Category:            catalog.CategoryProsthodontics,
		Description:         "Full coverage porcelain crown",
		DefaultDuration:     90,
		DefaultPriceAUD:     floatPtr(1550),
		InsuranceCodes:      map[string]*string{"AU": strPtr("613")},
	})
	batch.Conditions = append(batch.Conditions, catalog.Condition{
		Value: "deep_caries", Label: "Deep Caries", Urgency: catalog.UrgencyHigh,
	})

	snap, result := Apply(catalog.Snapshot{}, batch)
	if result.HasErrors() {
		t.Fatalf("apply failed: %v", result.Errors)
	}

	// "Ceramic Crown" sorts before "Root Canal Preparation (1 canal)".
	if snap.Treatments[0].Code != "crown_porcelain" {
		t.Errorf("treatments not sorted by display name: %q first", snap.Treatments[0].Code)
	}
	if snap.Conditions[0].Value != "deep_caries" {
		t.Errorf("conditions not sorted by label: %q first", snap.Conditions[0].Value)
	}
}
