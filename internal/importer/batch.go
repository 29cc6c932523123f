package importer

import (
	"github.com/dentara/go-catalog/internal/domain/catalog"
)

// BatchImport is the transient input document for one catalog import. It is
// consumed once; only its validated, merged effects persist. Unknown extra
// fields on records are ignored on decode, keeping the format
// backward-compatible.
type BatchImport struct {
	Batch      int                        `json:"batch"`
	Notes      string                     `json:"notes,omitempty"`
	Treatments []TreatmentRecord          `json:"treatments"`
	Conditions []catalog.Condition        `json:"conditions"`
	Mappings   []catalog.ConditionMapping `json:"mappings"`
	Done       bool                       `json:"done"`
}

// TreatmentRecord is an incoming treatment in either accepted price shape:
// a flat defaultPriceAUD number, or a nested per-country price object whose
// AU entry is used. Exactly one shape must resolve; the validator enforces
// that and Normalize collapses it to the canonical internal field so nothing
// downstream branches on shape.
type TreatmentRecord struct {
	Code                string                    `json:"code"`
	DisplayName         string                    `json:"displayName"`
	FriendlyPatientName string                    `json:"friendlyPatientName"`
	Category            catalog.Category          `json:"category"`
	Description         string                    `json:"description"`
	DefaultDuration     int                       `json:"defaultDuration"`
	DefaultPriceAUD     *float64                  `json:"defaultPriceAUD,omitempty"`
	Price               map[string]float64        `json:"price,omitempty"`
	InsuranceCodes      map[string]*string        `json:"insuranceCodes"`
	AutoMapConditions   []string                  `json:"autoMapConditions,omitempty"`
	ToothNumberRules    *catalog.ToothNumberRules `json:"toothNumberRules,omitempty"`
	ReplacementOptions  []string                  `json:"replacementOptions,omitempty"`
	Metadata            map[string]string         `json:"metadata,omitempty"`
}

// resolvedPriceAUD returns the AU price when exactly one shape supplies it.
func (r TreatmentRecord) resolvedPriceAUD() (float64, bool) {
	flat := r.DefaultPriceAUD != nil
	nested := false
	var nestedAmount float64
	if r.Price != nil {
		nestedAmount, nested = r.Price["AU"]
	}
	switch {
	case flat && !nested:
		return *r.DefaultPriceAUD, true
	case nested && !flat:
		return nestedAmount, true
	default:
		return 0, false
	}
}

// Normalize converts a validated record into the canonical catalog form.
func (r TreatmentRecord) Normalize() catalog.Treatment {
	price, _ := r.resolvedPriceAUD()
	return catalog.Treatment{
		Code:                r.Code,
		DisplayName:         r.DisplayName,
		FriendlyPatientName: r.FriendlyPatientName,
		Category:            r.Category,
		Description:         r.Description,
		DefaultDuration:     r.DefaultDuration,
		DefaultPriceAUD:     price,
		InsuranceCodes:      r.InsuranceCodes,
		AutoMapConditions:   r.AutoMapConditions,
		ToothNumberRules:    r.ToothNumberRules,
		ReplacementOptions:  r.ReplacementOptions,
		Metadata:            r.Metadata,
	}
}
