package graph

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the structural checks on the scene and returns every finding.
// An empty slice means the scene is valid. Validate never mutates the scene.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(s)...)
	errs = append(errs, validateReferences(s)...)
	errs = append(errs, validateKinds(s)...)
	errs = append(errs, validateMeshes(s)...)
	errs = append(errs, validateNames(s)...)
	errs = append(errs, validateReachability(s)...)
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateDAG(s *Scene) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(s.nodes)+1)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id),
				Severity: SeverityError,
			})
			return true
		}
		color[id] = gray
		for _, c := range s.Node(id).Children {
			if s.Node(c.Node) == nil {
				continue // reported by validateReferences
			}
			if visit(c.Node) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, n := range s.nodes {
		if color[n.ID] == white && visit(n.ID) {
			break // one cycle error is sufficient
		}
	}
	return errs
}

// validateReferences checks child edges and brush mesh references.
func validateReferences(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, n := range s.nodes {
		for i, c := range n.Children {
			if s.Node(c.Node) == nil {
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("child %d references %s, which does not exist", i, c.Node),
					Severity: SeverityError,
				})
			}
			if !c.Operation.Valid() {
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("child %d has invalid operation %d", i, c.Operation),
					Severity: SeverityError,
				})
			}
		}
		if d, ok := n.Data.(BrushData); ok && s.Mesh(d.Mesh) == nil {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("brush mesh %d is not registered", d.Mesh),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateKinds enforces the hierarchy rules: models are roots only and
// brushes are leaves.
func validateKinds(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, n := range s.nodes {
		if n.Kind == KindBrush && len(n.Children) > 0 {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("brush has %d children", len(n.Children)),
				Severity: SeverityError,
			})
		}
		for _, c := range n.Children {
			if cn := s.Node(c.Node); cn != nil && cn.Kind == KindModel {
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("model %s cannot be a child", c.Node),
					Severity: SeverityError,
				})
			}
		}
		if n.Kind.IsContainer() && len(VariantsOf(n)) == 0 {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  "container declares no surface variants",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateMeshes re-checks every registered mesh. Meshes built with
// NewBrushMesh are valid; this catches hand-edited vertex slices.
func validateMeshes(s *Scene) []ValidationError {
	ids := make([]BrushMeshID, 0, len(s.meshes))
	for id := range s.meshes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []ValidationError
	for _, id := range ids {
		m := s.meshes[id]
		if m == nil {
			continue
		}
		if err := m.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("mesh %d: %v", id, err),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateNames warns when two nodes share a name; Lookup then only finds
// the most recent.
func validateNames(s *Scene) []ValidationError {
	byName := make(map[string][]NodeID)
	for _, n := range s.nodes {
		if n.Name != "" {
			byName[n.Name] = append(byName[n.Name], n.ID)
		}
	}
	names := make([]string, 0, len(byName))
	for name, ids := range byName {
		if len(ids) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var errs []ValidationError
	for _, name := range names {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, len(byName[name])),
			Severity: SeverityWarning,
		})
	}
	return errs
}

// validateReachability warns about nodes not reachable from any model.
func validateReachability(s *Scene) []ValidationError {
	reachable := make([]bool, len(s.nodes)+1)
	queue := make([]NodeID, 0, len(s.models))
	for _, id := range s.models {
		reachable[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range s.Node(cur).Children {
			if s.Node(c.Node) != nil && !reachable[c.Node] {
				reachable[c.Node] = true
				queue = append(queue, c.Node)
			}
		}
	}

	var errs []ValidationError
	for _, n := range s.nodes {
		if reachable[n.ID] {
			continue
		}
		name := n.Name
		if name == "" {
			name = n.ID.String()
		}
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf("node %q is not reachable from any model (orphan)", name),
			Severity: SeverityWarning,
		})
	}
	return errs
}
