package suitability

import (
	"math"

	"github.com/rotisserie/eris"
)

// Summary condenses an overlay result into cell counts.
type Summary struct {
	Cells     int         `json:"cells"`
	Vetoed    int         `json:"vetoed"`
	Suitable  int         `json:"suitable"`
	Histogram map[int]int `json:"histogram"`
	MeanScore float64     `json:"mean_score"` // over non-vetoed cells
	MaxScore  float64     `json:"max_score"`
}

// SuitableShare returns the fraction of cells that were not vetoed.
func (s Summary) SuitableShare() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.Suitable) / float64(s.Cells)
}

// Summarize counts vetoed cells and builds a histogram of aggregate scores.
func Summarize(res *Result) Summary {
	s := Summary{Histogram: make(map[int]int)}
	if res == nil || res.Scores == nil {
		return s
	}

	var sum float64
	s.Cells = len(res.Scores.Data)
	for i, v := range res.Scores.Data {
		s.Histogram[int(math.Round(v))]++
		if res.Veto.Data[i] {
			s.Vetoed++
			continue
		}
		s.Suitable++
		sum += v
		if v > s.MaxScore {
			s.MaxScore = v
		}
	}
	if s.Suitable > 0 {
		s.MeanScore = sum / float64(s.Suitable)
	}
	return s
}

// VetoCounts returns, per factor, how many cells that factor scores
// NotSuitable. A cell can count against several factors.
func VetoCounts(reg *Registry) (map[Factor]int, error) {
	if reg == nil {
		return nil, eris.New("suitability: veto counts: nil registry")
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	counts := make(map[Factor]int, len(reg.factors))
	for _, f := range reg.factors {
		g := reg.layers[f]
		n := 0
		for _, v := range g.Data {
			if v == float64(NotSuitable) {
				n++
			}
		}
		counts[f] = n
	}
	return counts, nil
}
