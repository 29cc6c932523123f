// Package inference turns an observed condition on a tooth into ranked
// treatment suggestions. Two strategies live here: the base condition-to-
// treatment mapping engine, refined by per-treatment tooth rules, and the
// tiered rule matcher for anatomy- and severity-sensitive conditions.
package inference

import (
	"sort"

	"github.com/dentara/go-catalog/internal/dental/tooth"
	"github.com/dentara/go-catalog/internal/domain/catalog"
)

// Engine resolves treatment suggestions against one immutable catalog
// snapshot. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	treatments map[string]catalog.Treatment
	mappings   map[string]catalog.ConditionMapping
}

// NewEngine indexes a snapshot for resolution.
func NewEngine(snap catalog.Snapshot) *Engine {
	e := &Engine{
		treatments: make(map[string]catalog.Treatment, len(snap.Treatments)),
		mappings:   make(map[string]catalog.ConditionMapping, len(snap.Mappings)),
	}
	for _, t := range snap.Treatments {
		e.treatments[t.Code] = t
	}
	for _, m := range snap.Mappings {
		// One mapping per condition; the first declared wins.
		if _, exists := e.mappings[m.Condition]; !exists {
			e.mappings[m.Condition] = m
		}
	}
	return e
}

// candidate pairs a treatment code with the priority it inherited from the
// mapping entry that produced it.
type candidate struct {
	code     string
	priority int
}

// Resolve returns the mapping's treatment codes for a condition, ordered by
// ascending priority. Declaration order is preserved on priority ties. An
// unmapped condition yields an empty result, which is a valid "no
// suggestion" outcome rather than an error.
func (e *Engine) Resolve(condition string) []string {
	mapping, ok := e.mappings[condition]
	if !ok {
		return nil
	}
	cands := make([]candidate, 0, len(mapping.Treatments))
	for _, tp := range mapping.Treatments {
		cands = append(cands, candidate{code: tp.Treatment, priority: tp.Priority})
	}
	return rank(cands)
}

// ResolveForTooth refines Resolve with the treatment's tooth applicability
// rules for a specific FDI tooth number. A specific-FDI entry carrying an
// override code substitutes that code at the original priority and takes
// precedence over group-level sets. Treatments referenced by the mapping but
// absent from the catalog are skipped; that is an import-time concern, not a
// resolve-time error.
func (e *Engine) ResolveForTooth(condition string, fdi int) []string {
	mapping, ok := e.mappings[condition]
	if !ok {
		return nil
	}
	var cands []candidate
	for _, tp := range mapping.Treatments {
		t, ok := e.treatments[tp.Treatment]
		if !ok {
			continue
		}
		code, include := applicableCode(t, fdi)
		if include {
			cands = append(cands, candidate{code: code, priority: tp.Priority})
		}
	}
	return rank(cands)
}

// PrimaryTreatment returns the top-ranked suggestion for a condition and
// tooth, or false when there is no suggestion. Pass fdi 0 to resolve without
// tooth refinement.
func (e *Engine) PrimaryTreatment(condition string, fdi int) (string, bool) {
	var codes []string
	if fdi == 0 {
		codes = e.Resolve(condition)
	} else {
		codes = e.ResolveForTooth(condition, fdi)
	}
	if len(codes) == 0 {
		return "", false
	}
	return codes[0], true
}

// IsApplicableToTooth reports whether a treatment's tooth rules cover the
// given FDI number. A treatment without rules applies everywhere.
func (e *Engine) IsApplicableToTooth(treatmentCode string, fdi int) bool {
	t, ok := e.treatments[treatmentCode]
	if !ok {
		return false
	}
	_, include := applicableCode(t, fdi)
	return include
}

// ToothGroup classifies an FDI tooth number.
func (e *Engine) ToothGroup(fdi int) tooth.Group {
	return tooth.Classify(fdi, tooth.SystemFDI)
}

// applicableCode applies a treatment's tooth rules to one FDI number and
// returns the code to suggest. The specific-FDI map wins over group sets;
// an entry there with an override code substitutes the override.
func applicableCode(t catalog.Treatment, fdi int) (string, bool) {
	rules := t.ToothNumberRules
	if rules == nil {
		return t.Code, true
	}
	if entry, ok := rules.SpecificFDI[fdi]; ok {
		if entry.OverrideCode != "" {
			return entry.OverrideCode, true
		}
		return t.Code, true
	}
	if containsFDI(rules.AnteriorFDI, fdi) ||
		containsFDI(rules.PremolarFDI, fdi) ||
		containsFDI(rules.MolarFDI, fdi) {
		return t.Code, true
	}
	return "", false
}

func containsFDI(set []int, fdi int) bool {
	for _, n := range set {
		if n == fdi {
			return true
		}
	}
	return false
}

// rank orders candidates by ascending priority, stable on ties, and strips
// the priorities off.
func rank(cands []candidate) []string {
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].priority < cands[j].priority
	})
	codes := make([]string, len(cands))
	for i, c := range cands {
		codes[i] = c.code
	}
	return codes
}
