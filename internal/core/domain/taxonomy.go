package domain

import (
	"sort"
	"strings"
)

// Taxonomy is the enumerated label set the analyzer and validator accept.
type Taxonomy struct {
	Categories  map[string][]string `yaml:"categories" json:"categories"`
	Priorities  []string            `yaml:"priorities" json:"priorities"`
	Tags        []string            `yaml:"tags" json:"tags"`
	Terminology map[string]string   `yaml:"terminology" json:"terminology"`
}

func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Categories: map[string][]string{
			"corporate-insurance": {
				"financial-statements", "retirement-benefits", "business-succession", "tax-planning",
				"cash-flow", "executive-compensation", "employee-benefits", "property-casualty", "general-contracts",
			},
			"doctor-market": {
				"medical-corporation", "private-practice", "ms-corporation", "malpractice",
				"medical-succession", "hospital-physicians", "practice-funding",
			},
			"inheritance": {
				"inheritance-tax", "asset-succession", "wills-trusts", "tax-funding",
				"company-shares", "real-estate", "secondary-inheritance",
			},
			"sales-mindset": {
				"professionalism", "motivation", "goal-setting", "self-investment",
				"time-management", "character", "philosophy",
			},
			"sales-skills": {
				"approach", "closing", "referrals", "talk-scripts",
				"hearing", "presentation", "objection-handling", "telephone",
			},
			"compliance": {
				"solicitation-rules", "privacy", "suitability", "comparison-disclosure",
				"intent-confirmation", "cooling-off", "insurance-business-act",
			},
		},
		Priorities: []string{"high", "medium", "low"},
		Tags: []string{
			"encouragement", "reprimand", "logical", "empathy", "small-talk", "passion",
			"assertive", "metaphor", "dialect", "harsh", "question", "humor",
		},
		Terminology: map[string]string{
			"P&L":           "P/L",
			"Doctor Market": "doctor market",
			"appt":          "appointment",
			"prezo":         "presentation",
		},
	}
}

func (t Taxonomy) HasCategory(category string) bool {
	_, ok := t.Categories[category]
	return ok
}

func (t Taxonomy) HasPriority(priority string) bool {
	for _, p := range t.Priorities {
		if p == priority {
			return true
		}
	}
	return false
}

// MatchSubCategory resolves value against the category's sub-categories,
// first exactly, then by containment in either direction.
func (t Taxonomy) MatchSubCategory(category, value string) (string, bool) {
	return fuzzyMatch(value, t.Categories[category])
}

// MatchCategory resolves a category label the same way MatchSubCategory does.
func (t Taxonomy) MatchCategory(value string) (string, bool) {
	names := make([]string, 0, len(t.Categories))
	for name := range t.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return fuzzyMatch(value, names)
}

// FilterTags drops tags outside the configured vocabulary. An empty
// vocabulary keeps everything.
func (t Taxonomy) FilterTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	if len(t.Tags) == 0 {
		for _, tag := range tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				out = append(out, tag)
			}
		}
		return out
	}
	allowed := make(map[string]struct{}, len(t.Tags))
	for _, tag := range t.Tags {
		allowed[tag] = struct{}{}
	}
	for _, tag := range tags {
		if _, ok := allowed[strings.TrimSpace(tag)]; ok {
			out = append(out, strings.TrimSpace(tag))
		}
	}
	return out
}

func fuzzyMatch(value string, candidates []string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, c := range candidates {
		if c == value {
			return c, true
		}
	}
	lower := strings.ToLower(value)
	best := ""
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if strings.Contains(lower, lc) || strings.Contains(lc, lower) {
			if best == "" || len(c) > len(best) {
				best = c
			}
		}
	}
	return best, best != ""
}
