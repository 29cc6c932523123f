package importer

import (
	"fmt"

	"github.com/dentara/go-catalog/internal/domain/catalog"
	"github.com/dentara/go-catalog/internal/vocabulary"
)

// Apply validates a batch and merges it into a snapshot, returning the new
// snapshot and the structured import report. The input snapshot is never
// mutated; the caller owns the read-modify-write cycle around this call.
//
// Merging is per entity type and all-or-nothing within a type: any schema
// error for treatments skips the whole treatments array, while conditions
// and mappings proceed independently. Re-applying the same batch yields the
// same snapshot with every record counted as updated and no new errors.
func Apply(snap catalog.Snapshot, batch BatchImport) (catalog.Snapshot, ImportResult) {
	result := ImportResult{
		Batch:             batch.Batch,
		VocabularyVersion: vocabulary.Version,
	}

	treatmentErrs, treatmentVocab := ValidateTreatments(batch.Treatments)
	conditionErrs, conditionVocab := ValidateConditions(batch.Conditions)
	mappingErrs, mappingVocab := ValidateMappings(batch.Mappings)

	result.Errors = append(result.Errors, treatmentErrs...)
	result.Errors = append(result.Errors, conditionErrs...)
	result.Errors = append(result.Errors, mappingErrs...)
	result.OrphanedConditions = append(result.OrphanedConditions, treatmentVocab...)
	result.OrphanedConditions = append(result.OrphanedConditions, conditionVocab...)
	result.OrphanedConditions = append(result.OrphanedConditions, mappingVocab...)

	out := copySnapshot(snap)

	if len(treatmentErrs) == 0 {
		mergeTreatments(&out, batch.Treatments, &result)
	}
	if len(conditionErrs) == 0 {
		mergeConditions(&out, batch.Conditions, &result)
	}
	if len(mappingErrs) == 0 {
		mergeMappings(&out, batch.Mappings, &result)
	}

	// Orphan scan runs over the merged state: a mapping pointing at a
	// treatment code absent from the catalog is a warning, never fatal,
	// and the mapping remains persisted.
	treatmentCodes := make(map[string]struct{}, len(out.Treatments))
	for _, t := range out.Treatments {
		treatmentCodes[t.Code] = struct{}{}
	}
	for _, m := range out.Mappings {
		for _, tp := range m.Treatments {
			if _, ok := treatmentCodes[tp.Treatment]; !ok {
				result.OrphanedMappings = append(result.OrphanedMappings,
					fmt.Sprintf("mapping %s -> %s (unknown treatment)", m.Condition, tp.Treatment))
			}
		}
	}

	catalog.SortTreatments(out.Treatments)
	catalog.SortConditions(out.Conditions)
	catalog.SortMappings(out.Mappings)

	return out, result
}

func mergeTreatments(out *catalog.Snapshot, records []TreatmentRecord, result *ImportResult) {
	index := make(map[string]int, len(out.Treatments))
	for i, t := range out.Treatments {
		index[t.Code] = i
	}
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.Code]; dup {
			result.Errors = append(result.Errors, ValidationError{
				Kind: KindDuplicate, Entity: "treatment", Key: rec.Code,
				Message: "duplicate code within batch; record skipped",
			})
			continue
		}
		seen[rec.Code] = struct{}{}

		incoming := rec.Normalize()
		if i, exists := index[rec.Code]; exists {
			out.Treatments[i] = mergeTreatment(out.Treatments[i], incoming)
			result.TreatmentsUpdated++
		} else {
			out.Treatments = append(out.Treatments, incoming)
			index[rec.Code] = len(out.Treatments) - 1
			result.TreatmentsAdded++
		}
	}
}

func mergeConditions(out *catalog.Snapshot, conditions []catalog.Condition, result *ImportResult) {
	index := make(map[string]int, len(out.Conditions))
	for i, c := range out.Conditions {
		index[c.Value] = i
	}
	seen := make(map[string]struct{}, len(conditions))
	for _, incoming := range conditions {
		if _, dup := seen[incoming.Value]; dup {
			result.Errors = append(result.Errors, ValidationError{
				Kind: KindDuplicate, Entity: "condition", Key: incoming.Value,
				Message: "duplicate value within batch; record skipped",
			})
			continue
		}
		seen[incoming.Value] = struct{}{}

		if i, exists := index[incoming.Value]; exists {
			out.Conditions[i] = mergeCondition(out.Conditions[i], incoming)
			result.ConditionsUpdated++
		} else {
			out.Conditions = append(out.Conditions, incoming)
			index[incoming.Value] = len(out.Conditions) - 1
			result.ConditionsAdded++
		}
	}
}

func mergeMappings(out *catalog.Snapshot, mappings []catalog.ConditionMapping, result *ImportResult) {
	index := make(map[string]int, len(out.Mappings))
	for i, m := range out.Mappings {
		index[m.Condition] = i
	}
	seen := make(map[string]struct{}, len(mappings))
	for _, incoming := range mappings {
		if _, dup := seen[incoming.Condition]; dup {
			result.Errors = append(result.Errors, ValidationError{
				Kind: KindDuplicate, Entity: "mapping", Key: incoming.Condition,
				Message: "duplicate condition within batch; record skipped",
			})
			continue
		}
		seen[incoming.Condition] = struct{}{}

		if i, exists := index[incoming.Condition]; exists {
			out.Mappings[i] = mergeMapping(out.Mappings[i], incoming)
			result.MappingsUpdated++
		} else {
			out.Mappings = append(out.Mappings, incoming)
			index[incoming.Condition] = len(out.Mappings) - 1
			result.MappingsAdded++
		}
	}
}

// mergeTreatment shallow-merges incoming fields over an existing record.
// A set incoming field wins; unset optional fields keep the existing value.
// Code is the immutable key and never changes.
func mergeTreatment(existing, incoming catalog.Treatment) catalog.Treatment {
	merged := existing
	if incoming.DisplayName != "" {
		merged.DisplayName = incoming.DisplayName
	}
	if incoming.FriendlyPatientName != "" {
		merged.FriendlyPatientName = incoming.FriendlyPatientName
	}
	if incoming.Category != "" {
		merged.Category = incoming.Category
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.DefaultDuration > 0 {
		merged.DefaultDuration = incoming.DefaultDuration
	}
	if incoming.DefaultPriceAUD > 0 {
		merged.DefaultPriceAUD = incoming.DefaultPriceAUD
	}
	if incoming.InsuranceCodes != nil {
		merged.InsuranceCodes = incoming.InsuranceCodes
	}
	if incoming.AutoMapConditions != nil {
		merged.AutoMapConditions = incoming.AutoMapConditions
	}
	if incoming.ToothNumberRules != nil {
		merged.ToothNumberRules = incoming.ToothNumberRules
	}
	if incoming.ReplacementOptions != nil {
		merged.ReplacementOptions = incoming.ReplacementOptions
	}
	if incoming.Metadata != nil {
		merged.Metadata = incoming.Metadata
	}
	return merged
}

func mergeCondition(existing, incoming catalog.Condition) catalog.Condition {
	merged := existing
	if incoming.Label != "" {
		merged.Label = incoming.Label
	}
	if incoming.Urgency != "" {
		merged.Urgency = incoming.Urgency
	}
	if incoming.Category != "" {
		merged.Category = incoming.Category
	}
	return merged
}

func mergeMapping(existing, incoming catalog.ConditionMapping) catalog.ConditionMapping {
	merged := existing
	if len(incoming.Treatments) > 0 {
		merged.Treatments = incoming.Treatments
	}
	return merged
}

func copySnapshot(snap catalog.Snapshot) catalog.Snapshot {
	out := catalog.Snapshot{
		Treatments: make([]catalog.Treatment, len(snap.Treatments)),
		Conditions: make([]catalog.Condition, len(snap.Conditions)),
		Mappings:   make([]catalog.ConditionMapping, len(snap.Mappings)),
	}
	copy(out.Treatments, snap.Treatments)
	copy(out.Conditions, snap.Conditions)
	copy(out.Mappings, snap.Mappings)
	return out
}
