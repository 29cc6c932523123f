// Package importer validates externally produced catalog batches against the
// schema and canonical vocabulary, and merges them idempotently into catalog
// snapshots. Failures are returned as data inside the import report, never as
// panics, so a batch with partial errors still yields a useful result.
package importer

import "fmt"

// Error kinds carried on ValidationError.
const (
	KindSchema    = "schema"
	KindDuplicate = "duplicate"
)

// ValidationError describes one rejected field or record. Schema errors for
// an entity type block that type's merge; duplicate errors only skip the
// offending record.
type ValidationError struct {
	Kind    string `json:"kind"`
	Entity  string `json:"entity"`
	Key     string `json:"key"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q: %s: %s", e.Entity, e.Key, e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Entity, e.Key, e.Message)
}

// ImportResult is the structured report produced by applying one batch.
// Callers should treat any non-empty Errors list as "not fully applied"
// while still being able to see which entity types succeeded.
type ImportResult struct {
	Batch             int               `json:"batch"`
	VocabularyVersion string            `json:"vocabularyVersion"`
	TreatmentsAdded   int               `json:"treatmentsAdded"`
	TreatmentsUpdated int               `json:"treatmentsUpdated"`
	ConditionsAdded   int               `json:"conditionsAdded"`
	ConditionsUpdated int               `json:"conditionsUpdated"`
	MappingsAdded     int               `json:"mappingsAdded"`
	MappingsUpdated   int               `json:"mappingsUpdated"`
	Errors            []ValidationError `json:"errors"`
	OrphanedMappings  []string          `json:"orphanedMappings"`
	OrphanedConditions []string         `json:"orphanedConditions"`
	GeneralErrors     []string          `json:"generalErrors"`
}

// HasErrors reports whether any fatal (schema or duplicate) error was
// recorded. Orphan warnings do not count.
func (r ImportResult) HasErrors() bool {
	return len(r.Errors) > 0 || len(r.GeneralErrors) > 0
}
