package catalog

import "testing"

func strPtr(s string) *string { return &s }

func baseTreatment() Treatment {
	return Treatment{
		Code:            "resto_comp_1s",
		DisplayName:     "Composite Restoration (1 surface)",
		Category:        CategoryRestorative,
		DefaultDuration: 30,
		DefaultPriceAUD: 180,
		InsuranceCodes:  map[string]*string{"AU": strPtr("521")},
	}
}

func TestEffectiveNoOverride(t *testing.T) {
	eff := Effective(baseTreatment(), nil)
	if eff.PriceAUD != 180 || eff.Duration != 30 || eff.InsuranceCode != "521" {
		t.Errorf("Effective without override = %+v", eff)
	}
}

func TestEffectiveFieldFallback(t *testing.T) {
	price := 210.0
	eff := Effective(baseTreatment(), &Override{
		ClinicID:      "clinic-001",
		TreatmentCode: "resto_comp_1s",
		PriceAUD:      &price,
	})
	if eff.PriceAUD != 210 {
		t.Errorf("override price not applied: %+v", eff)
	}
	if eff.Duration != 30 || eff.InsuranceCode != "521" {
		t.Errorf("unset override fields must fall back to defaults: %+v", eff)
	}
}

func TestEffectiveFullOverride(t *testing.T) {
	price, duration, ada := 250.0, 45, "531"
	eff := Effective(baseTreatment(), &Override{
		PriceAUD: &price,
		Duration: &duration,
		ADACode:  &ada,
	})
	if eff.PriceAUD != 250 || eff.Duration != 45 || eff.InsuranceCode != "531" {
		t.Errorf("Effective full override = %+v", eff)
	}
}

func TestEffectiveDoesNotMutateTreatment(t *testing.T) {
	treatment := baseTreatment()
	price := 999.0
	Effective(treatment, &Override{PriceAUD: &price})
	if treatment.DefaultPriceAUD != 180 {
		t.Errorf("canonical treatment mutated: %+v", treatment)
	}
}

func TestEffectiveZeroOverrideValue(t *testing.T) {
	// An explicitly set zero price is an override, not an unset field.
	zero := 0.0
	eff := Effective(baseTreatment(), &Override{PriceAUD: &zero})
	if eff.PriceAUD != 0 {
		t.Errorf("explicit zero override ignored: %+v", eff)
	}
}

func TestInsuranceCodeAU(t *testing.T) {
	withNull := baseTreatment()
	withNull.InsuranceCodes = map[string]*string{"AU": nil}
	if got := withNull.InsuranceCodeAU(); got != "" {
		t.Errorf("null AU entry should resolve to empty, got %q", got)
	}

	missing := baseTreatment()
	missing.InsuranceCodes = nil
	if got := missing.InsuranceCodeAU(); got != "" {
		t.Errorf("missing AU entry should resolve to empty, got %q", got)
	}
}

func TestValidCategory(t *testing.T) {
	if !ValidCategory(CategoryEndodontics) {
		t.Error("endodontics should be valid")
	}
	if ValidCategory("surgery") {
		t.Error("unknown category should be invalid")
	}
	if len(Categories) != 9 {
		t.Errorf("category enum has %d values, want 9", len(Categories))
	}
}

func TestSortTreatmentsTieBreak(t *testing.T) {
	treatments := []Treatment{
		{Code: "b_code", DisplayName: "Scale and Clean"},
		{Code: "a_code", DisplayName: "Scale and Clean"},
		{Code: "z_code", DisplayName: "Bridge"},
	}
	SortTreatments(treatments)
	if treatments[0].Code != "z_code" {
		t.Errorf("expected Bridge first, got %s", treatments[0].Code)
	}
	if treatments[1].Code != "a_code" || treatments[2].Code != "b_code" {
		t.Errorf("label tie must break on code: %v", treatments)
	}
}
