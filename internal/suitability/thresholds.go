package suitability

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Band is one interval of a threshold table. A nil bound is unbounded. By
// default the interval is [Min, Max); LowerOpen and UpperClosed flip either
// edge.
type Band struct {
	Min         *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	LowerOpen   bool     `yaml:"lower_open,omitempty" json:"lower_open,omitempty"`
	UpperClosed bool     `yaml:"upper_closed,omitempty" json:"upper_closed,omitempty"`
	Score       Score    `yaml:"score" json:"score"`
}

func (b Band) lower() float64 {
	if b.Min == nil {
		return math.Inf(-1)
	}
	return *b.Min
}

func (b Band) upper() float64 {
	if b.Max == nil {
		return math.Inf(1)
	}
	return *b.Max
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	lo, hi := b.lower(), b.upper()
	aboveLower := v > lo || (v == lo && !b.LowerOpen)
	belowUpper := v < hi || (v == hi && b.UpperClosed)
	return aboveLower && belowUpper
}

func (b Band) String() string {
	left, right := "[", ")"
	if b.LowerOpen {
		left = "("
	}
	if b.UpperClosed {
		right = "]"
	}
	return fmt.Sprintf("%s%g, %g%s→%d", left, b.lower(), b.upper(), right, int(b.Score))
}

// ThresholdTable scores a continuous factor by non-overlapping value bands.
// Cells equal to NoData score NotSuitable.
type ThresholdTable struct {
	Factor Factor   `yaml:"factor" json:"factor"`
	NoData *float64 `yaml:"nodata,omitempty" json:"nodata,omitempty"`
	Bands  []Band   `yaml:"bands" json:"bands"`
}

// Validate checks band scores, band bounds and that no two bands overlap.
func (t ThresholdTable) Validate() error {
	var errs []string

	if t.Factor == "" {
		errs = append(errs, "factor is required")
	}
	if len(t.Bands) == 0 {
		errs = append(errs, "at least one band is required")
	}

	for i, b := range t.Bands {
		if !b.Score.Valid() {
			errs = append(errs, fmt.Sprintf("band %d has invalid score %d", i, int(b.Score)))
		}
		lo, hi := b.lower(), b.upper()
		if lo > hi || (lo == hi && (b.LowerOpen || !b.UpperClosed)) {
			errs = append(errs, fmt.Sprintf("band %d %s is empty", i, b))
		}
	}

	sorted := make([]Band, len(t.Bands))
	copy(sorted, t.Bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].lower() < sorted[j].lower() })
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		hi, lo := prev.upper(), next.lower()
		if hi > lo || (hi == lo && prev.UpperClosed && !next.LowerOpen) {
			errs = append(errs, fmt.Sprintf("bands %s and %s overlap", prev, next))
		}
	}

	if len(errs) > 0 {
		return &RuleTableError{Factor: t.Factor, Reason: strings.Join(errs, "; ")}
	}
	return nil
}

// Classify returns the score of the band containing v.
func (t ThresholdTable) Classify(v float64) (Score, bool) {
	if t.NoData != nil && v == *t.NoData {
		return NotSuitable, true
	}
	for _, b := range t.Bands {
		if b.Contains(v) {
			return b.Score, true
		}
	}
	return 0, false
}

func bound(v float64) *float64 {
	return &v
}

// AvocadoClimateThresholds returns the continuous-layer thresholds for
// avocado: annual precipitation (mm), maximum and minimum temperature (°C),
// slope (degrees), aspect (degrees from north) and soil pH. South and
// south-east exposures (112.5°–202.5°) are not suitable, as is flat terrain,
// which carries a negative aspect. pH cells equal to -999 are no-data.
func AvocadoClimateThresholds() []ThresholdTable {
	return []ThresholdTable{
		{
			Factor: Precipitation,
			Bands: []Band{
				{Max: bound(300), Score: NotSuitable},
				{Min: bound(300), Max: bound(500), Score: ModeratelySuitable},
				{Min: bound(500), Max: bound(2000), UpperClosed: true, Score: HighlySuitable},
				{Min: bound(2000), LowerOpen: true, Max: bound(2500), Score: ModeratelySuitable},
				{Min: bound(2500), Score: NotSuitable},
			},
		},
		{
			Factor: MaxTemperature,
			Bands: []Band{
				{Max: bound(40), Score: HighlySuitable},
				{Min: bound(40), Max: bound(45), Score: ModeratelySuitable},
				{Min: bound(45), Score: NotSuitable},
			},
		},
		{
			Factor: MinTemperature,
			Bands: []Band{
				{Max: bound(10), Score: NotSuitable},
				{Min: bound(10), Max: bound(14), Score: ModeratelySuitable},
				{Min: bound(14), Score: HighlySuitable},
			},
		},
		{
			Factor: SlopeDegrees,
			Bands: []Band{
				{Max: bound(2), UpperClosed: true, Score: HighlySuitable},
				{Min: bound(2), LowerOpen: true, Max: bound(15), Score: ModeratelySuitable},
				{Min: bound(15), Score: NotSuitable},
			},
		},
		{
			Factor: AspectDegrees,
			Bands: []Band{
				{Max: bound(0), Score: NotSuitable},
				{Min: bound(0), Max: bound(112.5), UpperClosed: true, Score: HighlySuitable},
				{Min: bound(112.5), LowerOpen: true, Max: bound(202.5), Score: NotSuitable},
				{Min: bound(202.5), Max: bound(360), UpperClosed: true, Score: HighlySuitable},
			},
		},
		{
			Factor: SoilPH,
			NoData: bound(-999),
			Bands: []Band{
				{Max: bound(4.5), Score: NotSuitable},
				{Min: bound(4.5), Max: bound(5), Score: ModeratelySuitable},
				{Min: bound(5), Max: bound(5.8), Score: HighlySuitable},
				{Min: bound(5.8), Max: bound(7), Score: ModeratelySuitable},
				{Min: bound(7), Score: NotSuitable},
			},
		},
	}
}
