package inference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dentara/go-catalog/internal/dental/tooth"
)

// Finding is one observed condition on a tooth, as delivered by an upstream
// detection collaborator.
type Finding struct {
	Tooth     int      `json:"tooth"`
	Condition string   `json:"condition"`
	Severity  string   `json:"severity,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// Rule is one row of the tiered matching table. Empty ToothGroup or Severity
// means "any"; Modifiers, when present, must all appear on the finding.
// Exactly one of Treatment and TreatmentPrefix is set: TreatmentPrefix rules
// produce a canal-count variant, prefix_<n>, where n comes from the canal
// estimate for the finding's tooth.
type Rule struct {
	Condition       string
	ToothGroup      tooth.Group
	Severity        string
	Modifiers       []string
	Treatment       string
	TreatmentPrefix string
	Specificity     int
}

// Matcher scans an ordered rule table, most specific first; the first rule
// whose constraints all hold wins. Rules with equal specificity keep their
// authored order, so reordering the table changes behavior.
type Matcher struct {
	rules []Rule
}

// NewMatcher builds a matcher over the given table. The table is stably
// sorted by descending specificity, preserving authored order within a tier.
func NewMatcher(rules []Rule) *Matcher {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Specificity > ordered[j].Specificity
	})
	return &Matcher{rules: ordered}
}

// Match returns the treatment code selected for a finding, or false when no
// rule matches. No match is a valid "no suggestion" result; callers may fall
// back to the base mapping engine.
func (m *Matcher) Match(f Finding) (string, bool) {
	cond := normalizeCondition(f.Condition)
	group := tooth.Classify(f.Tooth, tooth.SystemFDI)
	severity := strings.ToLower(strings.TrimSpace(f.Severity))
	modifiers := normalizeModifiers(f.Modifiers)

	for _, r := range m.rules {
		if normalizeCondition(r.Condition) != cond {
			continue
		}
		if !hasAllModifiers(modifiers, r.Modifiers) {
			continue
		}
		if r.ToothGroup != "" && r.ToothGroup != group {
			continue
		}
		if r.Severity != "" && strings.ToLower(r.Severity) != severity {
			continue
		}
		if r.TreatmentPrefix != "" {
			est := tooth.EstimateCanalsForTooth(f.Tooth)
			return fmt.Sprintf("%s_%d", r.TreatmentPrefix, est.Count), true
		}
		return r.Treatment, true
	}
	return "", false
}

// Validate rejects ambiguous tables: two rules sharing the same condition,
// tooth group, severity and modifier set would make the winner depend on
// authored order alone.
func (m *Matcher) Validate() error {
	seen := make(map[string]int)
	for i, r := range m.rules {
		mods := normalizeModifiers(r.Modifiers)
		sort.Strings(mods)
		key := strings.Join([]string{
			normalizeCondition(r.Condition),
			string(r.ToothGroup),
			strings.ToLower(r.Severity),
			strings.Join(mods, ","),
		}, "|")
		if first, dup := seen[key]; dup {
			return fmt.Errorf("ambiguous rules at positions %d and %d: condition %q, group %q, severity %q, modifiers %v",
				first, i, r.Condition, r.ToothGroup, r.Severity, r.Modifiers)
		}
		seen[key] = i
	}
	return nil
}

// Rules returns the ordered table, for inspection and admin listing.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// normalizeCondition lower-cases and treats hyphens and underscores as the
// same separator. This is a matching convenience only; vocabulary membership
// stays exact-string.
func normalizeCondition(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "-", "_")
}

func normalizeModifiers(modifiers []string) []string {
	if len(modifiers) == 0 {
		return nil
	}
	out := make([]string, 0, len(modifiers))
	for _, mod := range modifiers {
		out = append(out, normalizeCondition(mod))
	}
	return out
}

// hasAllModifiers reports whether every required modifier is present on the
// finding.
func hasAllModifiers(have, required []string) bool {
	for _, req := range required {
		want := normalizeCondition(req)
		found := false
		for _, h := range have {
			if h == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DefaultRules is the built-in tiered table for conditions that need sharper
// anatomy or severity sensitivity than the base mapping provides. Higher
// specificity is evaluated first.
func DefaultRules() []Rule {
	return []Rule{
		// Impacted teeth: surgical difficulty escalates with impaction type;
		// third molars default to sectional surgical removal.
		{Condition: "impacted_tooth", ToothGroup: tooth.GroupThirdMolar, Modifiers: []string{"bony_impaction"}, Treatment: "surg_extraction_complex", Specificity: 50},
		{Condition: "impacted_tooth", ToothGroup: tooth.GroupThirdMolar, Treatment: "surg_extraction_sectional", Specificity: 40},
		{Condition: "impacted_tooth", Modifiers: []string{"soft_tissue_impaction"}, Treatment: "surg_extraction_simple", Specificity: 30},
		{Condition: "impacted_tooth", Treatment: "surg_extraction_simple", Specificity: 10},

		// Caries by lesion size. Large molar lesions get an onlay rather
		// than a direct restoration.
		{Condition: "caries", Severity: "large", ToothGroup: tooth.GroupMolar, Treatment: "resto_onlay", Specificity: 35},
		{Condition: "caries", Severity: "large", Treatment: "crown_porcelain", Specificity: 30},
		{Condition: "caries", Severity: "medium", Treatment: "resto_comp_2s", Specificity: 30},
		{Condition: "caries", Severity: "small", Treatment: "resto_comp_1s", Specificity: 30},

		// Deep caries with pulp exposure goes straight to endodontics.
		{Condition: "deep_caries", Modifiers: []string{"pulp_exposure"}, TreatmentPrefix: "endo_rct_prep", Specificity: 45},
		{Condition: "deep_caries", Treatment: "resto_comp_3s", Specificity: 20},

		// Endodontic canal-count selection: the variant is picked from the
		// canal estimate for the affected tooth.
		{Condition: "irreversible_pulpitis", TreatmentPrefix: "endo_rct_prep", Specificity: 40},
		{Condition: "pulp_necrosis", TreatmentPrefix: "endo_rct_prep", Specificity: 40},
		{Condition: "periapical_lesion", TreatmentPrefix: "endo_rct_prep", Specificity: 35},
		{Condition: "failed_root_canal", Treatment: "endo_retreatment", Specificity: 40},

		// Furcation involvement on molars needs surgical access.
		{Condition: "furcation_involvement", ToothGroup: tooth.GroupMolar, Treatment: "perio_surgical_debridement", Specificity: 40},
		{Condition: "furcation_involvement", Treatment: "perio_scaling_root_planing", Specificity: 20},

		// Pericoronitis around erupting third molars.
		{Condition: "pericoronitis", ToothGroup: tooth.GroupThirdMolar, Treatment: "surg_operculectomy", Specificity: 40},
		{Condition: "pericoronitis", Treatment: "perio_scaling_root_planing", Specificity: 15},
	}
}
