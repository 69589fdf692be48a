// Package suitability reclassifies categorical and continuous raster layers
// into ordinal suitability scores and overlays them into one aggregate map.
//
// Every factor is scored on the same three-tier scale:
//
//	 0  not suitable
//	10  moderately suitable
//	20  highly suitable
//
// The overlay sums the factor scores per cell and forces the cell to 0 when
// any single factor scores 0.
package suitability

import "fmt"

// Score is an ordinal suitability tier for one factor at one cell.
type Score int

// Suitability tiers.
const (
	NotSuitable        Score = 0
	ModeratelySuitable Score = 10
	HighlySuitable     Score = 20
)

// NoDataValue marks not-suitable cells in the aggregate grid.
const NoDataValue = 0

// Valid reports whether s is one of the three tiers.
func (s Score) Valid() bool {
	switch s {
	case NotSuitable, ModeratelySuitable, HighlySuitable:
		return true
	default:
		return false
	}
}

func (s Score) String() string {
	switch s {
	case NotSuitable:
		return "not_suitable"
	case ModeratelySuitable:
		return "moderately_suitable"
	case HighlySuitable:
		return "highly_suitable"
	default:
		return fmt.Sprintf("score(%d)", int(s))
	}
}

// validScoreValue reports whether a grid cell holds a valid tier.
func validScoreValue(v float64) bool {
	return v == float64(NotSuitable) || v == float64(ModeratelySuitable) || v == float64(HighlySuitable)
}
