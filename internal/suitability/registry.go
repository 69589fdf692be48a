package suitability

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/land-suitability/internal/raster"
)

// Registry holds the named grids of one analysis run and checks that they
// share one shape. It never modifies or reorders the grids it holds.
type Registry struct {
	factors []Factor
	allowed map[Factor]bool
	layers  map[Factor]*raster.Grid
	order   []Factor
}

// NewRegistry creates a registry that requires exactly the given factors.
// With no factors it requires the five categorical factors.
func NewRegistry(factors ...Factor) *Registry {
	if len(factors) == 0 {
		factors = CategoricalFactors()
	}
	r := &Registry{
		factors: append([]Factor(nil), factors...),
		allowed: make(map[Factor]bool, len(factors)),
		layers:  make(map[Factor]*raster.Grid, len(factors)),
	}
	for _, f := range factors {
		r.allowed[f] = true
	}
	return r
}

// Add registers the grid for a factor.
func (r *Registry) Add(f Factor, g *raster.Grid) error {
	if !r.allowed[f] {
		return eris.Errorf("suitability: registry: unknown layer %s", f)
	}
	if g == nil {
		return eris.Errorf("suitability: registry: nil grid for layer %s", f)
	}
	if _, dup := r.layers[f]; dup {
		return eris.Errorf("suitability: registry: layer %s already registered", f)
	}
	r.layers[f] = g
	r.order = append(r.order, f)
	return nil
}

// Get returns the grid registered for a factor.
func (r *Registry) Get(f Factor) (*raster.Grid, bool) {
	g, ok := r.layers[f]
	return g, ok
}

// Factors returns the required factors in overlay order.
func (r *Registry) Factors() []Factor {
	return append([]Factor(nil), r.factors...)
}

// Len returns the number of registered layers.
func (r *Registry) Len() int {
	return len(r.layers)
}

// Shape returns the shape of the first registered grid.
func (r *Registry) Shape() raster.Shape {
	if len(r.order) == 0 {
		return raster.Shape{}
	}
	return r.layers[r.order[0]].Shape()
}

// Validate checks that every required factor is present, that every grid
// holds Rows*Cols values and that every grid has the same shape as the first
// one registered.
func (r *Registry) Validate() error {
	for _, f := range r.order {
		if err := r.layers[f].Check(); err != nil {
			return eris.Wrapf(err, "suitability: layer %s", f)
		}
	}
	if len(r.order) > 0 {
		want := r.Shape()
		for _, f := range r.order {
			if got := r.layers[f].Shape(); got != want {
				return &ShapeMismatchError{Layer: f, Want: want, Got: got}
			}
		}
	}
	for _, f := range r.factors {
		if _, ok := r.layers[f]; !ok {
			return &MissingLayerError{Layer: f}
		}
	}
	return nil
}

// grids returns the registered grids in overlay order.
func (r *Registry) grids() []*raster.Grid {
	out := make([]*raster.Grid, len(r.factors))
	for i, f := range r.factors {
		out[i] = r.layers[f]
	}
	return out
}
