// Package vocabulary holds the canonical set of dental condition codes.
//
// The set is versioned data, not logic: codes are added across versions but
// never removed. The code list mixes two historical naming conventions,
// hyphenated legacy codes and underscored newer codes. Both are valid as-is;
// there is no aliasing between the styles, and membership is an exact string
// comparison.
package vocabulary

import "sort"

// Version is the vocabulary data version carried in import reports.
const Version = "2026.1"

// conditionCodes is the authoritative code set. Hyphenated entries are
// legacy and kept verbatim; underscored entries are the current convention.
var conditionCodes = map[string]struct{}{
	// Caries and hard-tissue loss
	"caries":           {},
	"deep_caries":      {},
	"secondary_caries": {},
	"root_caries":      {},
	"attrition":        {},
	"abrasion":         {},
	"erosion":          {},
	"abfraction":       {},
	"cracked-tooth":    {},
	"fractured-cusp":   {},
	"crown-fracture":   {},
	"root-fracture":    {},

	// Pulpal and periapical
	"reversible_pulpitis":   {},
	"irreversible_pulpitis": {},
	"pulp_necrosis":         {},
	"periapical_lesion":     {},
	"apical-periodontitis":  {},
	"periapical-abscess":    {},
	"failed_root_canal":     {},
	"root_canal_treated":    {},
	"internal_resorption":   {},
	"external_resorption":   {},

	// Periodontal
	"gingivitis":            {},
	"periodontitis":         {},
	"furcation_involvement": {},
	"gingival_recession":    {},
	"calculus":              {},
	"mobility_grade_1":      {},
	"mobility_grade_2":      {},
	"mobility_grade_3":      {},

	// Eruption and position
	"impacted_tooth":         {},
	"partially_erupted":      {},
	"pericoronitis":          {},
	"ectopic-eruption":       {},
	"missing_tooth":          {},
	"retained_root":          {},
	"supernumerary-tooth":    {},
	"crowding":               {},
	"spacing":                {},
	"midline-diastema":       {},

	// Restorations and prosthetics
	"defective_restoration": {},
	"open_margin":           {},
	"overhang":              {},
	"fractured_restoration": {},
	"failed-crown":          {},
	"worn_denture":          {},

	// Other
	"bruxism":            {},
	"dry-socket":         {},
	"peri_implantitis":   {},
	"tooth_discolouration": {},
}

// Contains reports whether code is in the canonical vocabulary. The
// comparison is exact; separator styles are not normalized here.
func Contains(code string) bool {
	_, ok := conditionCodes[code]
	return ok
}

// All returns every canonical condition code in sorted order.
func All() []string {
	codes := make([]string, 0, len(conditionCodes))
	for code := range conditionCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Missing returns the subset of codes that is not in the vocabulary,
// preserving input order. Duplicate unknown codes are reported once.
func Missing(codes []string) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, code := range codes {
		if Contains(code) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		missing = append(missing, code)
	}
	return missing
}
