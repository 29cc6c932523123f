// Package catalog defines the persisted treatment catalog model: treatments,
// conditions, condition-to-treatment mappings and clinic overrides.
//
// Catalog values are plain data. Merge and inference code treats them as
// immutable snapshots; nothing in this package mutates shared state.
package catalog

import "sort"

// Category is the fixed treatment category enum.
type Category string

const (
	CategoryDiagnostics    Category = "diagnostics"
	CategoryPreventive     Category = "preventive"
	CategoryRestorative    Category = "restorative"
	CategoryEndodontics    Category = "endodontics"
	CategoryPeriodontics   Category = "periodontics"
	CategoryProsthodontics Category = "prosthodontics"
	CategoryOralSurgery    Category = "oral_surgery"
	CategoryOrthodontics   Category = "orthodontics"
	CategoryCosmetic       Category = "cosmetic"
)

// Categories lists every valid treatment category.
var Categories = []Category{
	CategoryDiagnostics,
	CategoryPreventive,
	CategoryRestorative,
	CategoryEndodontics,
	CategoryPeriodontics,
	CategoryProsthodontics,
	CategoryOralSurgery,
	CategoryOrthodontics,
	CategoryCosmetic,
}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Urgency grades how urgently a condition needs attention.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// ValidUrgency reports whether u is a known urgency level.
func ValidUrgency(u Urgency) bool {
	return u == UrgencyHigh || u == UrgencyMedium || u == UrgencyLow
}

// ToothOverride is the per-tooth entry in a treatment's specific-FDI map.
// An entry with an empty OverrideCode marks the tooth as applicable without
// substituting a different treatment.
type ToothOverride struct {
	OverrideCode string `json:"overrideCode,omitempty"`
}

// ToothNumberRules restricts a treatment to particular teeth. Group sets
// hold FDI numbers; SpecificFDI entries take precedence over group sets and
// may substitute an override treatment code for an exact tooth.
type ToothNumberRules struct {
	AnteriorFDI []int                 `json:"anteriorFDI,omitempty"`
	PremolarFDI []int                 `json:"premolarFDI,omitempty"`
	MolarFDI    []int                 `json:"molarFDI,omitempty"`
	SpecificFDI map[int]ToothOverride `json:"specificFDI,omitempty"`
}

// AllFDI returns every FDI number referenced anywhere in the rules.
func (r *ToothNumberRules) AllFDI() []int {
	if r == nil {
		return nil
	}
	var all []int
	all = append(all, r.AnteriorFDI...)
	all = append(all, r.PremolarFDI...)
	all = append(all, r.MolarFDI...)
	for fdi := range r.SpecificFDI {
		all = append(all, fdi)
	}
	return all
}

// Treatment is a canonical catalog entry. Code is the immutable primary key;
// every other field is replaceable on a catalog merge.
type Treatment struct {
	Code                string             `json:"code"`
	DisplayName         string             `json:"displayName"`
	FriendlyPatientName string             `json:"friendlyPatientName"`
	Category            Category           `json:"category"`
	Description         string             `json:"description"`
	DefaultDuration     int                `json:"defaultDuration"`
	DefaultPriceAUD     float64            `json:"defaultPriceAUD"`
	InsuranceCodes      map[string]*string `json:"insuranceCodes"`
	AutoMapConditions   []string           `json:"autoMapConditions,omitempty"`
	ToothNumberRules    *ToothNumberRules  `json:"toothNumberRules,omitempty"`
	ReplacementOptions  []string           `json:"replacementOptions,omitempty"`
	Metadata            map[string]string  `json:"metadata,omitempty"`
}

// InsuranceCodeAU returns the AU insurance (ADA item) code, or "" when the
// entry is explicitly null.
func (t Treatment) InsuranceCodeAU() string {
	if code, ok := t.InsuranceCodes["AU"]; ok && code != nil {
		return *code
	}
	return ""
}

// Condition is a catalog entry describing an observable clinical condition.
// Value must belong to the canonical vocabulary to be referenced by a
// mapping.
type Condition struct {
	Value    string  `json:"value"`
	Label    string  `json:"label"`
	Urgency  Urgency `json:"urgency"`
	Category string  `json:"category"`
}

// TreatmentPriority is one ranked treatment reference inside a mapping.
// A lower priority number means a stronger preference.
type TreatmentPriority struct {
	Treatment string `json:"treatment"`
	Priority  int    `json:"priority"`
}

// ConditionMapping links a condition to its candidate treatments. At most
// one mapping exists per condition.
type ConditionMapping struct {
	Condition  string              `json:"condition"`
	Treatments []TreatmentPriority `json:"treatments"`
}

// Snapshot is an immutable view of the three merged catalogs. The import
// pipeline owns it; clinic overrides live in a separate store and are never
// part of a snapshot.
type Snapshot struct {
	Treatments []Treatment        `json:"treatments"`
	Conditions []Condition        `json:"conditions"`
	Mappings   []ConditionMapping `json:"mappings"`
}

// TreatmentByCode returns the treatment with the given code.
func (s Snapshot) TreatmentByCode(code string) (Treatment, bool) {
	for _, t := range s.Treatments {
		if t.Code == code {
			return t, true
		}
	}
	return Treatment{}, false
}

// MappingFor returns the mapping for a condition code.
func (s Snapshot) MappingFor(condition string) (ConditionMapping, bool) {
	for _, m := range s.Mappings {
		if m.Condition == condition {
			return m, true
		}
	}
	return ConditionMapping{}, false
}

// SortTreatments orders treatments by (displayName, code) so enumeration is
// deterministic when display names collide.
func SortTreatments(treatments []Treatment) {
	sort.SliceStable(treatments, func(i, j int) bool {
		if treatments[i].DisplayName != treatments[j].DisplayName {
			return treatments[i].DisplayName < treatments[j].DisplayName
		}
		return treatments[i].Code < treatments[j].Code
	})
}

// SortConditions orders conditions by (label, value).
func SortConditions(conditions []Condition) {
	sort.SliceStable(conditions, func(i, j int) bool {
		if conditions[i].Label != conditions[j].Label {
			return conditions[i].Label < conditions[j].Label
		}
		return conditions[i].Value < conditions[j].Value
	})
}

// SortMappings orders mappings by condition key.
func SortMappings(mappings []ConditionMapping) {
	sort.SliceStable(mappings, func(i, j int) bool {
		return mappings[i].Condition < mappings[j].Condition
	})
}
