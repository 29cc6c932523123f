package importer

import (
	"fmt"

	"github.com/dentara/go-catalog/internal/dental/tooth"
	"github.com/dentara/go-catalog/internal/domain/catalog"
	"github.com/dentara/go-catalog/internal/vocabulary"
)

// ValidateTreatments checks every treatment record and accumulates all
// schema errors before returning; it never stops at the first failure.
// Vocabulary violations in autoMapConditions come back separately: they are
// reported but do not block the treatments merge.
func ValidateTreatments(records []TreatmentRecord) (errs []ValidationError, vocabViolations []string) {
	for _, r := range records {
		key := r.Code
		if key == "" {
			key = "(missing code)"
		}
		add := func(field, message string) {
			errs = append(errs, ValidationError{
				Kind: KindSchema, Entity: "treatment", Key: key, Field: field, Message: message,
			})
		}

		if r.Code == "" {
			add("code", "must not be empty")
		}
		if r.DisplayName == "" {
			add("displayName", "must not be empty")
		}
		if r.FriendlyPatientName == "" {
			add("friendlyPatientName", "must not be empty")
		}
		if r.Description == "" {
			add("description", "must not be empty")
		}
		if !catalog.ValidCategory(r.Category) {
			add("category", fmt.Sprintf("unknown category %q", r.Category))
		}
		if r.DefaultDuration <= 0 {
			add("defaultDuration", "must be greater than zero")
		}

		price, ok := r.resolvedPriceAUD()
		switch {
		case !ok && r.DefaultPriceAUD != nil && r.Price != nil:
			add("price", "both flat and per-country price shapes present; exactly one must resolve an AU amount")
		case !ok:
			add("price", "no usable AU price: set defaultPriceAUD or price.AU")
		case price <= 0:
			add("price", "AU price must be positive")
		}

		if _, hasAU := r.InsuranceCodes["AU"]; !hasAU {
			add("insuranceCodes", "AU entry is mandatory (value may be null)")
		}

		for _, fdi := range r.ToothNumberRules.AllFDI() {
			if !tooth.ValidFDI(fdi) {
				add("toothNumberRules", fmt.Sprintf("invalid FDI tooth number %d", fdi))
			}
		}

		for _, violation := range vocabulary.Missing(r.AutoMapConditions) {
			vocabViolations = append(vocabViolations,
				fmt.Sprintf("treatment %s: autoMapConditions references unknown condition %q", key, violation))
		}
	}
	return errs, vocabViolations
}

// ValidateConditions checks condition records. A value outside the canonical
// vocabulary is a vocabulary violation, not a schema error: the condition
// still merges but the reference is reported.
func ValidateConditions(conditions []catalog.Condition) (errs []ValidationError, vocabViolations []string) {
	for _, c := range conditions {
		key := c.Value
		if key == "" {
			key = "(missing value)"
		}
		add := func(field, message string) {
			errs = append(errs, ValidationError{
				Kind: KindSchema, Entity: "condition", Key: key, Field: field, Message: message,
			})
		}

		if c.Value == "" {
			add("value", "must not be empty")
		}
		if c.Label == "" {
			add("label", "must not be empty")
		}
		if !catalog.ValidUrgency(c.Urgency) {
			add("urgency", fmt.Sprintf("unknown urgency %q", c.Urgency))
		}

		if c.Value != "" && !vocabulary.Contains(c.Value) {
			vocabViolations = append(vocabViolations,
				fmt.Sprintf("condition %q is not in the canonical vocabulary", c.Value))
		}
	}
	return errs, vocabViolations
}

// ValidateMappings checks mapping records and reports conditions outside the
// canonical vocabulary.
func ValidateMappings(mappings []catalog.ConditionMapping) (errs []ValidationError, vocabViolations []string) {
	for _, m := range mappings {
		key := m.Condition
		if key == "" {
			key = "(missing condition)"
		}
		add := func(field, message string) {
			errs = append(errs, ValidationError{
				Kind: KindSchema, Entity: "mapping", Key: key, Field: field, Message: message,
			})
		}

		if m.Condition == "" {
			add("condition", "must not be empty")
		}
		if len(m.Treatments) == 0 {
			add("treatments", "must list at least one treatment")
		}
		for i, tp := range m.Treatments {
			if tp.Treatment == "" {
				add("treatments", fmt.Sprintf("entry %d has an empty treatment code", i))
			}
		}

		if m.Condition != "" && !vocabulary.Contains(m.Condition) {
			vocabViolations = append(vocabViolations,
				fmt.Sprintf("mapping condition %q is not in the canonical vocabulary", m.Condition))
		}
	}
	return errs, vocabViolations
}
