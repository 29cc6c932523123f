package inference

import (
	"testing"

	"github.com/dentara/go-catalog/internal/dental/tooth"
)

func TestMatchSpecificityOrder(t *testing.T) {
	m := NewMatcher(DefaultRules())

	// Bony-impacted third molar hits the most specific rule.
	code, ok := m.Match(Finding{
		Tooth:     48,
		Condition: "impacted_tooth",
		Modifiers: []string{"bony_impaction"},
	})
	if !ok || code != "surg_extraction_complex" {
		t.Errorf("bony impacted 48 = %q,%v", code, ok)
	}

	// Third molar without the modifier falls through to the group rule.
	code, ok = m.Match(Finding{Tooth: 48, Condition: "impacted_tooth"})
	if !ok || code != "surg_extraction_sectional" {
		t.Errorf("impacted 48 = %q,%v", code, ok)
	}

	// Impacted canine falls to the generic rule.
	code, ok = m.Match(Finding{Tooth: 13, Condition: "impacted_tooth"})
	if !ok || code != "surg_extraction_simple" {
		t.Errorf("impacted 13 = %q,%v", code, ok)
	}
}

func TestMatchSeverity(t *testing.T) {
	m := NewMatcher(DefaultRules())

	tests := []struct {
		tooth    int
		severity string
		want     string
	}{
		{36, "small", "resto_comp_1s"},
		{36, "medium", "resto_comp_2s"},
		{36, "large", "resto_onlay"},    // molar-specific rule outranks
		{12, "large", "crown_porcelain"}, // non-molar large lesion
	}
	for _, tt := range tests {
		code, ok := m.Match(Finding{Tooth: tt.tooth, Condition: "caries", Severity: tt.severity})
		if !ok || code != tt.want {
			t.Errorf("caries %s on %d = %q,%v, want %q", tt.severity, tt.tooth, code, ok, tt.want)
		}
	}

	// Severity-constrained rules must not match a finding without severity.
	if _, ok := m.Match(Finding{Tooth: 36, Condition: "caries"}); ok {
		t.Error("caries with no severity should have no rule match")
	}
}

func TestMatchCanalVariants(t *testing.T) {
	m := NewMatcher(DefaultRules())

	tests := []struct {
		tooth int
		want  string
	}{
		{11, "endo_rct_prep_1"}, // maxillary anterior: 1 canal
		{15, "endo_rct_prep_2"}, // maxillary premolar: 2 canals
		{36, "endo_rct_prep_3"}, // mandibular molar: 3 canals
		{44, "endo_rct_prep_1"}, // mandibular premolar: 1 canal
	}
	for _, tt := range tests {
		code, ok := m.Match(Finding{Tooth: tt.tooth, Condition: "irreversible_pulpitis"})
		if !ok || code != tt.want {
			t.Errorf("irreversible_pulpitis on %d = %q,%v, want %q", tt.tooth, code, ok, tt.want)
		}
	}
}

func TestMatchSeparatorNormalization(t *testing.T) {
	m := NewMatcher(DefaultRules())

	// Hyphenated and mixed-case input must match underscored rule
	// conditions; the normalization is matching-only.
	code, ok := m.Match(Finding{Tooth: 36, Condition: "Irreversible-Pulpitis"})
	if !ok || code != "endo_rct_prep_3" {
		t.Errorf("hyphenated condition = %q,%v", code, ok)
	}

	code, ok = m.Match(Finding{
		Tooth:     48,
		Condition: "IMPACTED-TOOTH",
		Modifiers: []string{"Bony-Impaction"},
	})
	if !ok || code != "surg_extraction_complex" {
		t.Errorf("normalized modifiers = %q,%v", code, ok)
	}
}

func TestMatchModifierSubset(t *testing.T) {
	m := NewMatcher(DefaultRules())

	// Extra finding modifiers are fine; required ones must all be present.
	code, ok := m.Match(Finding{
		Tooth:     48,
		Condition: "impacted_tooth",
		Modifiers: []string{"bony_impaction", "distoangular"},
	})
	if !ok || code != "surg_extraction_complex" {
		t.Errorf("superset modifiers = %q,%v", code, ok)
	}

	code, ok = m.Match(Finding{
		Tooth:     48,
		Condition: "impacted_tooth",
		Modifiers: []string{"distoangular"},
	})
	if !ok || code != "surg_extraction_sectional" {
		t.Errorf("missing required modifier should skip rule: %q,%v", code, ok)
	}
}

func TestMatchNoRule(t *testing.T) {
	m := NewMatcher(DefaultRules())
	if code, ok := m.Match(Finding{Tooth: 11, Condition: "bruxism"}); ok {
		t.Errorf("no rule should match bruxism, got %q", code)
	}
}

func TestMatchFirstWinsWithinTier(t *testing.T) {
	// Two non-ambiguous rules in the same tier keep authored order.
	m := NewMatcher([]Rule{
		{Condition: "caries", Severity: "small", Treatment: "first_authored", Specificity: 10},
		{Condition: "caries", Treatment: "second_authored", Specificity: 10},
	})
	code, ok := m.Match(Finding{Tooth: 11, Condition: "caries", Severity: "small"})
	if !ok || code != "first_authored" {
		t.Errorf("authored order not preserved in tier: %q,%v", code, ok)
	}
}

func TestValidateDefaultTable(t *testing.T) {
	if err := NewMatcher(DefaultRules()).Validate(); err != nil {
		t.Errorf("default rule table is ambiguous: %v", err)
	}
}

func TestValidateRejectsAmbiguity(t *testing.T) {
	m := NewMatcher([]Rule{
		{Condition: "caries", ToothGroup: tooth.GroupMolar, Severity: "large", Treatment: "a", Specificity: 20},
		{Condition: "caries", ToothGroup: tooth.GroupMolar, Severity: "large", Treatment: "b", Specificity: 10},
	})
	if err := m.Validate(); err == nil {
		t.Error("expected ambiguity error for duplicate constraint tuples")
	}

	// Same constraints spelled with different separators are still the
	// same tuple after normalization.
	m = NewMatcher([]Rule{
		{Condition: "deep_caries", Modifiers: []string{"pulp_exposure"}, Treatment: "a", Specificity: 20},
		{Condition: "deep-caries", Modifiers: []string{"pulp-exposure"}, Treatment: "b", Specificity: 10},
	})
	if err := m.Validate(); err == nil {
		t.Error("expected ambiguity error across separator styles")
	}
}
