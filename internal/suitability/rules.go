package suitability

import (
	"fmt"
	"math"
	"strings"
)

// Rule maps a set of category codes to one score.
type Rule struct {
	Codes []int `yaml:"codes" json:"codes"`
	Score Score `yaml:"score" json:"score"`
}

// Domain is the inclusive range of legal category codes for a factor.
type Domain struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// RuleTable is the declarative code → score mapping for one categorical factor.
type RuleTable struct {
	Factor Factor `yaml:"factor" json:"factor"`
	Domain Domain `yaml:"domain" json:"domain"`
	Rules  []Rule `yaml:"rules" json:"rules"`
}

// Validate checks that every rule score is a valid tier, that no code is
// mapped twice or falls outside the domain, and that every code in the domain
// is mapped.
func (t RuleTable) Validate() error {
	var errs []string

	if t.Factor == "" {
		errs = append(errs, "factor is required")
	}
	if t.Domain.Min > t.Domain.Max {
		errs = append(errs, fmt.Sprintf("domain min %d exceeds max %d", t.Domain.Min, t.Domain.Max))
	}

	seen := make(map[int]bool)
	for i, r := range t.Rules {
		if !r.Score.Valid() {
			errs = append(errs, fmt.Sprintf("rule %d has invalid score %d", i, int(r.Score)))
		}
		if len(r.Codes) == 0 {
			errs = append(errs, fmt.Sprintf("rule %d has no codes", i))
		}
		for _, code := range r.Codes {
			if code < t.Domain.Min || code > t.Domain.Max {
				errs = append(errs, fmt.Sprintf("code %d outside domain %d-%d", code, t.Domain.Min, t.Domain.Max))
			}
			if seen[code] {
				errs = append(errs, fmt.Sprintf("code %d mapped more than once", code))
			}
			seen[code] = true
		}
	}

	if t.Domain.Min <= t.Domain.Max {
		var missing []string
		for code := t.Domain.Min; code <= t.Domain.Max; code++ {
			if !seen[code] {
				missing = append(missing, fmt.Sprint(code))
			}
		}
		if len(missing) > 0 {
			errs = append(errs, "unmapped codes "+strings.Join(missing, ","))
		}
	}

	if len(errs) > 0 {
		return &RuleTableError{Factor: t.Factor, Reason: strings.Join(errs, "; ")}
	}
	return nil
}

// Lookup returns the score for a category code.
func (t RuleTable) Lookup(code int) (Score, bool) {
	for _, r := range t.Rules {
		for _, c := range r.Codes {
			if c == code {
				return r.Score, true
			}
		}
	}
	return 0, false
}

// index flattens the rules into a code → score map for per-cell lookup.
func (t RuleTable) index() map[int]Score {
	idx := make(map[int]Score)
	for _, r := range t.Rules {
		for _, c := range r.Codes {
			idx[c] = r.Score
		}
	}
	return idx
}

// categoryCode converts a cell value to an integer code. Non-integral and
// non-finite values are not codes.
func categoryCode(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// AvocadoTables returns the five categorical rule tables for avocado.
func AvocadoTables() []RuleTable {
	return []RuleTable{
		{
			Factor: LandCover,
			Domain: Domain{Min: 1, Max: 7},
			Rules: []Rule{
				{Codes: []int{4, 5}, Score: NotSuitable},
				{Codes: []int{2, 3, 6}, Score: ModeratelySuitable},
				{Codes: []int{1, 7}, Score: HighlySuitable},
			},
		},
		{
			Factor: Slope,
			Domain: Domain{Min: 1, Max: 4},
			Rules: []Rule{
				{Codes: []int{4}, Score: NotSuitable},
				{Codes: []int{2, 3}, Score: ModeratelySuitable},
				{Codes: []int{1}, Score: HighlySuitable},
			},
		},
		{
			Factor: Exposure,
			Domain: Domain{Min: 1, Max: 5},
			Rules: []Rule{
				{Codes: []int{3}, Score: NotSuitable},
				{Codes: []int{4}, Score: ModeratelySuitable},
				{Codes: []int{1, 2, 5}, Score: HighlySuitable},
			},
		},
		{
			Factor: Drainage,
			Domain: Domain{Min: 1, Max: 6},
			Rules: []Rule{
				{Codes: []int{1, 4, 6}, Score: NotSuitable},
				{Codes: []int{3, 5}, Score: ModeratelySuitable},
				{Codes: []int{2}, Score: HighlySuitable},
			},
		},
		{
			Factor: Texture,
			Domain: Domain{Min: 1, Max: 7},
			Rules: []Rule{
				{Codes: []int{1, 3, 5, 7}, Score: NotSuitable},
				{Codes: []int{6}, Score: ModeratelySuitable},
				{Codes: []int{2, 4}, Score: HighlySuitable},
			},
		},
	}
}
