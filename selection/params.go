package selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medscreen/diabrisk/core/model"
)

// Params is one hyperparameter assignment for a model candidate.
type Params map[string]float64

// Get returns the parameter value by name, or dflt when absent.
func (p Params) Get(name string, dflt float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return dflt
}

// Key renders the params canonically ("a=0.1,b=3"), suitable as a cache
// key. Keys are sorted so equal params always produce equal strings.
func (p Params) Key() string {
	if len(p) == 0 {
		return "default"
	}
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, p[name]))
	}
	return strings.Join(parts, ",")
}

// Grid maps a hyperparameter name to its candidate values.
type Grid map[string][]float64

// Candidates expands the grid into the cartesian product of its values, in
// deterministic order. An empty grid yields a single empty Params.
func (g Grid) Candidates() []Params {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	candidates := []Params{{}}
	for _, name := range names {
		values := g[name]
		next := make([]Params, 0, len(candidates)*len(values))
		for _, base := range candidates {
			for _, v := range values {
				p := make(Params, len(base)+1)
				for k, bv := range base {
					p[k] = bv
				}
				p[name] = v
				next = append(next, p)
			}
		}
		candidates = next
	}
	return candidates
}

// Builder constructs a classifier for one hyperparameter assignment.
type Builder func(p Params) (model.Classifier, error)

// ModelSpec declares one model family entering the comparison: how to build
// a candidate, which grid to search, and whether its recipe standardizes
// the numeric columns.
type ModelSpec struct {
	// Family is the model family identifier ("logistic", "rand_forest", ...).
	Family string

	// Name distinguishes multiple specs of one family in a run.
	Name string

	// Normalize selects the standardizing recipe.
	Normalize bool

	// Grid holds the hyperparameter search space; empty means a single fit
	// with defaults.
	Grid Grid

	// Build constructs the classifier for a candidate.
	Build Builder
}

// ID returns the unique spec identifier used in reports and the cache.
func (s ModelSpec) ID() string {
	return s.Family + "/" + s.Name
}
