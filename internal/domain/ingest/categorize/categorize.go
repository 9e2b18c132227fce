// Package categorize maps free-text charge descriptions onto the clinic's
// fixed service taxonomy. Classification is an ordered first-match cascade:
// categories overlap textually, so rule order is the precedence contract and
// must never be reordered casually.
package categorize

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Category is one bucket of the service taxonomy.
type Category string

const (
	CategoryBaseInfusion        Category = "base_infusion"
	CategoryInfusionAddon       Category = "infusion_addon"
	CategoryStandaloneInjection Category = "standalone_injection"
	CategoryMembership          Category = "membership"
	CategoryConsultation        Category = "consultation"
	CategoryWeightManagement    Category = "weight_management"
	CategoryOther               Category = "other"
)

// keywordSet is a case-insensitive contains-any matcher over a fixed keyword
// list, backed by Aho-Corasick so every rule stays a single pass over the
// description regardless of keyword count.
type keywordSet struct {
	matcher *ahocorasick.Matcher
}

func newKeywordSet(words ...string) *keywordSet {
	upper := make([]string, len(words))
	for i, w := range words {
		upper[i] = strings.ToUpper(w)
	}
	return &keywordSet{matcher: ahocorasick.NewStringMatcher(upper)}
}

func (k *keywordSet) matches(upperDesc string) bool {
	return len(k.matcher.Match([]byte(upperDesc))) > 0
}

var (
	membershipWords    = newKeywordSet("membership", "concierge", "member")
	membershipExcludes = newKeywordSet("consultation", "consult", "lab")

	consultationWords = newKeywordSet("consultation", "consult", "follow-up", "hormone", "initial visit")

	injectionWords = newKeywordSet("semaglutide", "tirzepatide")

	baseInfusionWords = newKeywordSet(
		"saline 1l", "hydration", "energy", "immunity",
		"myers", "recovery", "performance", "alleviate",
	)
	// A lab panel bundled into an infusion visit description must not be
	// double-counted as a visit.
	adminExcludes = newKeywordSet("lab", "cbc", "draw fee", "office visit")

	addonWords = newKeywordSet(
		"vitamin d3", "vitamin b12", "vitamin c", "glutathione", "nad+",
		"magnesium", "zinc", "b-complex", "biotin", "toradol",
	)

	programWords = newKeywordSet(
		"contrave", "weight management", "weight loss program",
		"glp-1 program", "glp1 program",
	)
)

// rule pairs a category with its predicate. Rules are evaluated in slice
// order; the first match wins.
type rule struct {
	category Category
	match    func(upperDesc string) bool
}

// Taxonomy is a named, ordered rule cascade. Two variants exist because two
// report sections bucket weight-loss program charges differently; they are
// deliberately not merged.
type Taxonomy struct {
	name  string
	rules []rule
}

// Name identifies the taxonomy variant.
func (t *Taxonomy) Name() string { return t.name }

// Result carries a classification and whether the description matched
// keyword sets from more than one category family. Ambiguous descriptions
// are resolved purely by rule order and surfaced for manual review, never
// re-scored.
type Result struct {
	Category  Category
	Ambiguous bool
}

// Categorize returns exactly one category for any description.
func (t *Taxonomy) Categorize(description string) Category {
	return t.CategorizeDetailed(description).Category
}

// CategorizeDetailed classifies and reports keyword-overlap ambiguity.
func (t *Taxonomy) CategorizeDetailed(description string) Result {
	upper := strings.ToUpper(strings.TrimSpace(description))
	// The "(Member)" / "(Non-Member)" suffix is a price-tier marker, not a
	// membership product; strip it before keyword matching.
	upper = stripTierMarker(upper)

	result := Result{Category: CategoryOther}
	matched := 0
	for _, r := range t.rules {
		if r.match(upper) {
			if result.Category == CategoryOther {
				result.Category = r.category
			}
			matched++
		}
	}
	result.Ambiguous = matched > 1
	return result
}

var tierMarkers = []string{
	"(NON-MEMBER)", "(NON MEMBER)", "(NONMEMBER)", "(MEMBER)",
}

func stripTierMarker(upper string) string {
	for _, marker := range tierMarkers {
		upper = strings.ReplaceAll(upper, marker, "")
	}
	return strings.TrimSpace(upper)
}

func matchMembership(upper string) bool {
	return membershipWords.matches(upper) && !membershipExcludes.matches(upper)
}

func matchConsultation(upper string) bool {
	return consultationWords.matches(upper)
}

// matchStandaloneInjection covers weight-loss injections plus the B12
// standalone shot. B12 appears both as an infusion additive ("Vitamin B12")
// and as a standalone injection; the word "vitamin" disambiguates.
func matchStandaloneInjection(upper string) bool {
	if injectionWords.matches(upper) {
		return true
	}
	return strings.Contains(upper, "B12") &&
		strings.Contains(upper, "INJECTION") &&
		!strings.Contains(upper, "VITAMIN")
}

func matchBaseInfusion(upper string) bool {
	if adminExcludes.matches(upper) {
		return false
	}
	return baseInfusionWords.matches(upper)
}

func matchInfusionAddon(upper string) bool {
	return addonWords.matches(upper)
}

func matchWeightProgram(upper string) bool {
	return programWords.matches(upper)
}

// StandardTaxonomy is the default cascade with no weight_management bucket;
// program charges fall through to standalone_injection or other.
func StandardTaxonomy() *Taxonomy {
	return &Taxonomy{
		name: "standard",
		rules: []rule{
			{CategoryMembership, matchMembership},
			{CategoryConsultation, matchConsultation},
			{CategoryStandaloneInjection, matchStandaloneInjection},
			{CategoryBaseInfusion, matchBaseInfusion},
			{CategoryInfusionAddon, matchInfusionAddon},
		},
	}
}

// ProgramTaxonomy adds a weight_management bucket for subscription-style
// weight-loss program charges (Contrave, GLP-1 bundles), evaluated before
// the standalone-injection rule so bundles do not land there.
func ProgramTaxonomy() *Taxonomy {
	return &Taxonomy{
		name: "program",
		rules: []rule{
			{CategoryMembership, matchMembership},
			{CategoryConsultation, matchConsultation},
			{CategoryWeightManagement, matchWeightProgram},
			{CategoryStandaloneInjection, matchStandaloneInjection},
			{CategoryBaseInfusion, matchBaseInfusion},
			{CategoryInfusionAddon, matchInfusionAddon},
		},
	}
}

// All lists every category either taxonomy can produce.
func All() []Category {
	return []Category{
		CategoryBaseInfusion,
		CategoryInfusionAddon,
		CategoryStandaloneInjection,
		CategoryMembership,
		CategoryConsultation,
		CategoryWeightManagement,
		CategoryOther,
	}
}
