package catalog

// Override is a clinic-local replacement for a treatment's canonical
// defaults. Overrides are created and updated only by clinic action; the
// batch import path never writes them.
type Override struct {
	ClinicID      string   `json:"clinicId"`
	TreatmentCode string   `json:"treatmentCode"`
	PriceAUD      *float64 `json:"priceAUD,omitempty"`
	Duration      *int     `json:"duration,omitempty"`
	ADACode       *string  `json:"adaCode,omitempty"`
}

// EffectiveTreatment is the clinic-facing view of a treatment after an
// override has been applied over the canonical defaults.
type EffectiveTreatment struct {
	Code          string  `json:"code"`
	PriceAUD      float64 `json:"priceAUD"`
	Duration      int     `json:"duration"`
	InsuranceCode string  `json:"insuranceCode"`
}

// Effective combines a treatment with an optional clinic override. A set
// override field wins; an unset field falls back to the canonical default.
// The treatment value is never mutated.
func Effective(t Treatment, o *Override) EffectiveTreatment {
	eff := EffectiveTreatment{
		Code:          t.Code,
		PriceAUD:      t.DefaultPriceAUD,
		Duration:      t.DefaultDuration,
		InsuranceCode: t.InsuranceCodeAU(),
	}
	if o == nil {
		return eff
	}
	if o.PriceAUD != nil {
		eff.PriceAUD = *o.PriceAUD
	}
	if o.Duration != nil {
		eff.Duration = *o.Duration
	}
	if o.ADACode != nil {
		eff.InsuranceCode = *o.ADACode
	}
	return eff
}
