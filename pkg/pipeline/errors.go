package pipeline

import (
	"errors"
	"fmt"

	"github.com/chazu/brushcsg/pkg/assembly"
	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/routing"
)

// ErrorKind classifies a model failure.
type ErrorKind uint8

const (
	// KindStructural covers hierarchy and registration mismatches. The model
	// is retried once its hash changes.
	KindStructural ErrorKind = iota
	// KindCapacity means the model needs more mesh buffers than it
	// declared. The previously published meshes stay in place.
	KindCapacity
	// KindConsistency means a routing table referenced a brush absent from
	// the tree. The brush is excluded and the model is retried next pass.
	KindConsistency
	// KindInternal covers everything else, including cancellation.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindCapacity:
		return "capacity"
	case KindConsistency:
		return "consistency"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is a failure scoped to one model, or to one brush of it.
type Error struct {
	Kind  ErrorKind
	Model graph.NodeID
	Brush graph.NodeID // zero when the whole model failed
	Err   error
}

func (e *Error) Error() string {
	if !e.Brush.IsZero() {
		return fmt.Sprintf("pipeline: %s error in model %s brush %s: %v", e.Kind, e.Model, e.Brush, e.Err)
	}
	return fmt.Sprintf("pipeline: %s error in model %s: %v", e.Kind, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps an error to its kind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, compact.ErrStructural):
		return KindStructural
	case errors.Is(err, assembly.ErrCapacity):
		return KindCapacity
	case errors.Is(err, routing.ErrConsistency):
		return KindConsistency
	default:
		return KindInternal
	}
}

func modelError(model graph.NodeID, err error) *Error {
	return &Error{Kind: classify(err), Model: model, Err: err}
}
