package pipeline

import (
	"errors"
	"time"

	"github.com/chazu/brushcsg/pkg/graph"
)

// ModelReport summarizes the evaluation of one changed model.
type ModelReport struct {
	Model graph.NodeID
	Hash  uint64

	Brushes    int
	Hidden     int
	Routed     int
	Generated  int // brushes whose surfaces were regenerated
	Reused     int // brushes whose surfaces carried over unchanged
	Unresolved int // fragments excluded for unresolved routes

	MaxMeshes int
	Meshes    int
	Triangles int

	Published bool
	Duration  time.Duration
}

// Report is the outcome of one Update.
type Report struct {
	PassID   string
	Duration time.Duration
	Models   []ModelReport // changed models in scene order
	Removed  []graph.NodeID
	Errors   []*Error
}

// Published returns the models whose meshes were replaced in this pass.
func (r *Report) Published() []graph.NodeID {
	var out []graph.NodeID
	for _, m := range r.Models {
		if m.Published {
			out = append(out, m.Model)
		}
	}
	return out
}

// Model returns the report of model, if it was evaluated.
func (r *Report) Model(id graph.NodeID) (ModelReport, bool) {
	for _, m := range r.Models {
		if m.Model == id {
			return m, true
		}
	}
	return ModelReport{}, false
}

// Err joins every error of the pass.
func (r *Report) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
