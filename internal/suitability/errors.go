package suitability

import (
	"fmt"

	"github.com/sells-group/land-suitability/internal/raster"
)

// ShapeMismatchError reports a layer whose dimensions differ from the first
// registered layer.
type ShapeMismatchError struct {
	Layer Factor
	Want  raster.Shape
	Got   raster.Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("suitability: layer %s has shape %s, want %s", e.Layer, e.Got, e.Want)
}

// UnmappedCategoryError reports a category code with no entry in the factor's
// rule table.
type UnmappedCategoryError struct {
	Factor Factor
	Code   float64
	Row    int
	Col    int
}

func (e *UnmappedCategoryError) Error() string {
	return fmt.Sprintf("suitability: %s code %g at (%d,%d) is not in the rule table", e.Factor, e.Code, e.Row, e.Col)
}

// UnmappedValueError reports a continuous value outside every threshold band.
type UnmappedValueError struct {
	Factor Factor
	Value  float64
	Row    int
	Col    int
}

func (e *UnmappedValueError) Error() string {
	return fmt.Sprintf("suitability: %s value %g at (%d,%d) falls in no threshold band", e.Factor, e.Value, e.Row, e.Col)
}

// InvalidScoreError reports a reclassified cell outside {0, 10, 20}.
type InvalidScoreError struct {
	Factor Factor
	Value  float64
	Row    int
	Col    int
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("suitability: %s score %g at (%d,%d) is not a valid tier", e.Factor, e.Value, e.Row, e.Col)
}

// MissingLayerError reports a required factor that was never registered.
type MissingLayerError struct {
	Layer Factor
}

func (e *MissingLayerError) Error() string {
	return fmt.Sprintf("suitability: layer %s is missing", e.Layer)
}

// RuleTableError reports an inconsistent rule or threshold table.
type RuleTableError struct {
	Factor Factor
	Reason string
}

func (e *RuleTableError) Error() string {
	return fmt.Sprintf("suitability: %s table: %s", e.Factor, e.Reason)
}
