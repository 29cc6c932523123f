// Package integration exercises the import-then-infer pipeline end to end:
// a batch document goes through validation and merge, and the resulting
// snapshot drives suggestion resolution and rule matching.
package integration

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/dentara/go-catalog/internal/domain/catalog"
	"github.com/dentara/go-catalog/internal/importer"
	"github.com/dentara/go-catalog/internal/inference"
	"github.com/dentara/go-catalog/pkg/idempotency"
)

const endoBatchJSON = `{
	"batch": 3,
	"notes": "endodontics seed",
	"treatments": [
		{
			"code": "endo_rct_prep_1",
			"displayName": "Root Canal Preparation (1 canal)",
			"friendlyPatientName": "Root canal treatment",
			"category": "endodontics",
			"description": "Preparation of a single canal for root canal therapy",
			"defaultDuration": 60,
			"price": {"AU": 420, "NZ": 455},
			"insuranceCodes": {"AU": "415"},
			"autoMapConditions": ["irreversible_pulpitis"],
			"toothNumberRules": {
				"anteriorFDI": [11, 12, 13, 21, 22, 23, 31, 32, 33, 41, 42, 43]
			}
		}
	],
	"conditions": [
		{"value": "irreversible_pulpitis", "label": "Irreversible Pulpitis", "urgency": "high"}
	],
	"mappings": [
		{
			"condition": "irreversible_pulpitis",
			"treatments": [{"treatment": "endo_rct_prep_1", "priority": 1}]
		}
	],
	"done": true
}`

func decodeBatch(t *testing.T, doc string) importer.BatchImport {
	t.Helper()
	var batch importer.BatchImport
	if err := json.Unmarshal([]byte(doc), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	return batch
}

func TestImportThenResolve(t *testing.T) {
	batch := decodeBatch(t, endoBatchJSON)

	snap, result := importer.Apply(catalog.Snapshot{}, batch)

	if result.HasErrors() {
		t.Fatalf("import failed: %v %v", result.Errors, result.GeneralErrors)
	}
	if result.TreatmentsAdded != 1 || result.ConditionsAdded != 1 || result.MappingsAdded != 1 {
		t.Fatalf("added counts = %d/%d/%d, want 1/1/1",
			result.TreatmentsAdded, result.ConditionsAdded, result.MappingsAdded)
	}
	if len(result.OrphanedMappings) != 0 {
		t.Fatalf("unexpected orphans: %v", result.OrphanedMappings)
	}

	engine := inference.NewEngine(snap)

	// An upper central incisor is in the anterior set.
	got := engine.ResolveForTooth("irreversible_pulpitis", 11)
	want := []string{"endo_rct_prep_1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolve for tooth 11 = %v, want %v", got, want)
	}

	// A lower first molar is not, so the suggestion list is empty.
	if got := engine.ResolveForTooth("irreversible_pulpitis", 36); len(got) != 0 {
		t.Errorf("resolve for tooth 36 = %v, want empty", got)
	}

	// Without a tooth, the mapping comes back unfiltered.
	if got := engine.Resolve("irreversible_pulpitis"); !reflect.DeepEqual(got, want) {
		t.Errorf("resolve without tooth = %v, want %v", got, want)
	}
}

func TestRuleMatcherAgreesWithCanalVariants(t *testing.T) {
	matcher := inference.NewMatcher(inference.DefaultRules())

	// The endodontic rules append the canal count estimated from the tooth.
	cases := []struct {
		tooth int
		want  string
	}{
		{11, "endo_rct_prep_1"},
		{15, "endo_rct_prep_2"},
		{36, "endo_rct_prep_3"},
	}
	for _, tc := range cases {
		got, ok := matcher.Match(inference.Finding{
			Tooth:     tc.tooth,
			Condition: "irreversible_pulpitis",
		})
		if !ok || got != tc.want {
			t.Errorf("match tooth %d = %q (ok=%v), want %q", tc.tooth, got, ok, tc.want)
		}
	}
}

func TestReappliedBatchIsStable(t *testing.T) {
	batch := decodeBatch(t, endoBatchJSON)

	first, r1 := importer.Apply(catalog.Snapshot{}, batch)
	if r1.HasErrors() {
		t.Fatalf("first apply failed: %v", r1.Errors)
	}

	second, r2 := importer.Apply(first, batch)
	if r2.HasErrors() {
		t.Fatalf("second apply failed: %v", r2.Errors)
	}
	if r2.TreatmentsAdded != 0 || r2.ConditionsAdded != 0 || r2.MappingsAdded != 0 {
		t.Errorf("second apply added records: %+v", r2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("re-applied batch changed the snapshot")
	}

	// Suggestions stay identical across the re-apply.
	before := inference.NewEngine(first).ResolveForTooth("irreversible_pulpitis", 21)
	after := inference.NewEngine(second).ResolveForTooth("irreversible_pulpitis", 21)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("resolution drifted after re-apply: %v vs %v", before, after)
	}
}

func TestOverridesDoNotAffectInference(t *testing.T) {
	batch := decodeBatch(t, endoBatchJSON)
	snap, _ := importer.Apply(catalog.Snapshot{}, batch)

	treatment, ok := snap.TreatmentByCode("endo_rct_prep_1")
	if !ok {
		t.Fatal("treatment missing after import")
	}

	price := 390.0
	override := &catalog.Override{
		ClinicID:      "clinic-7",
		TreatmentCode: "endo_rct_prep_1",
		PriceAUD:      &price,
	}

	effective := catalog.Effective(treatment, override)
	if effective.PriceAUD != 390 {
		t.Errorf("effective price = %v, want 390", effective.PriceAUD)
	}
	if effective.Duration != treatment.DefaultDuration {
		t.Errorf("effective duration = %v, want canonical %v", effective.Duration, treatment.DefaultDuration)
	}

	// The override is a pricing concern only; suggestion resolution still
	// uses the canonical catalog.
	got := inference.NewEngine(snap).ResolveForTooth("irreversible_pulpitis", 11)
	if !reflect.DeepEqual(got, []string{"endo_rct_prep_1"}) {
		t.Errorf("resolution affected by override: %v", got)
	}
}

func TestBatchIdempotencyKeys(t *testing.T) {
	doc := []byte(endoBatchJSON)

	key1 := idempotency.GenerateKey(3, doc)
	key2 := idempotency.GenerateKey(3, doc)
	if key1 != key2 {
		t.Error("same batch content should produce the same key")
	}

	if key3 := idempotency.GenerateKey(4, doc); key3 == key1 {
		t.Error("different batch numbers should produce different keys")
	}

	corrected := []byte(endoBatchJSON + " ")
	if key4 := idempotency.GenerateKey(3, corrected); key4 == key1 {
		t.Error("changed content should produce a different key")
	}
}
