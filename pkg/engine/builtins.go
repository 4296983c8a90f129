package engine

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chazu/brushcsg/pkg/graph"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scene source before passing it to zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords never collide with user variables.
//
//  2. Kebab-case to underscore: sub-model -> sub_model. zygomys reads a
//     hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters; a minus operator
		// stands alone.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSurface wraps a graph.SurfaceDescription.
type sexpSurface struct {
	desc graph.SurfaceDescription
}

func (s *sexpSurface) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(surface :material %d :physics %d)", s.desc.RenderMaterial, s.desc.PhysicsMaterial)
}
func (s *sexpSurface) Type() *zygo.RegisteredType { return nil }

// sexpMesh references a mesh registered with the scene.
type sexpMesh struct {
	id   graph.BrushMeshID
	desc string
}

func (m *sexpMesh) SexpString(ps *zygo.PrintState) string { return m.desc }
func (m *sexpMesh) Type() *zygo.RegisteredType            { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpChild is a child edge waiting to be attached to a container.
type sexpChild struct {
	child graph.Child
}

func (c *sexpChild) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %s)", c.child.Operation, c.child.Node)
}
func (c *sexpChild) Type() *zygo.RegisteredType { return nil }

// sexpVariant wraps a graph.SurfaceVariant.
type sexpVariant struct {
	v graph.SurfaceVariant
}

func (v *sexpVariant) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %d)", v.v.Kind, v.v.Material)
}
func (v *sexpVariant) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a non-negative integer.
func toInt(s zygo.Sexp) (int, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
	}
	if v.Val < 0 {
		return 0, fmt.Errorf("expected non-negative integer, got %d", v.Val)
	}
	return int(v.Val), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toUsage converts :render, :collide, :both or :none.
func toUsage(s zygo.Sexp) (graph.LayerUsage, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected usage keyword: %w", err)
	}
	switch name {
	case "render":
		return graph.UsageRenderable, nil
	case "collide":
		return graph.UsageCollidable, nil
	case "both":
		return graph.UsageDefault, nil
	case "none":
		return graph.UsageNone, nil
	}
	return 0, fmt.Errorf("invalid usage %q, expected render, collide, both or none", name)
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toSurface extracts a SurfaceDescription from a sexpSurface.
func toSurface(s zygo.Sexp) (graph.SurfaceDescription, error) {
	if m, ok := s.(*sexpSurface); ok {
		return m.desc, nil
	}
	return graph.SurfaceDescription{}, fmt.Errorf("expected surface, got %T (%s)", s, s.SexpString(nil))
}

// toChild turns a node reference or a child edge into a child edge.
func toChild(s zygo.Sexp) (graph.Child, error) {
	switch v := s.(type) {
	case *sexpChild:
		return v.child, nil
	case *sexpNodeRef:
		return graph.Child{Node: v.id, Operation: graph.Additive}, nil
	}
	return graph.Child{}, fmt.Errorf("expected node reference or child, got %T (%s)", s, s.SexpString(nil))
}

// toVariants extracts a list of (render n) / (collider n) values.
func toVariants(s zygo.Sexp) ([]graph.SurfaceVariant, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]graph.SurfaceVariant, 0, len(items))
	for _, item := range items {
		v, ok := item.(*sexpVariant)
		if !ok {
			return nil, fmt.Errorf("expected variant, got %T (%s)", item, item.SexpString(nil))
		}
		out = append(out, v.v)
	}
	return out, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Naming
// ---------------------------------------------------------------------------

// nodeCounter provides unique suffixes for anonymous nodes.
var nodeCounter uint64

func nextNodeSuffix() string {
	n := atomic.AddUint64(&nodeCounter, 1)
	return fmt.Sprintf("_anon_%d", n)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type builtin = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the scene builtins into a zygomys environment.
// The builtins populate s during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, s *graph.Scene) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (surface :material 1 :physics 2 :usage :both :lightmap 2)
	// -----------------------------------------------------------------------
	env.AddFunction("surface", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		desc := graph.DefaultSurface()

		if v, ok := pa.kw["material"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("surface: material: %w", err)
			}
			desc.RenderMaterial = uint32(n)
		}
		if v, ok := pa.kw["physics"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("surface: physics: %w", err)
			}
			desc.PhysicsMaterial = uint32(n)
		}
		if v, ok := pa.kw["usage"]; ok {
			u, err := toUsage(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("surface: usage: %w", err)
			}
			desc.Usage = u
		}
		if v, ok := pa.kw["lightmap"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("surface: lightmap: %w", err)
			}
			desc.LightmapScale = f
		}
		return &sexpSurface{desc: desc}, nil
	})

	surfaceArg := func(fn string, pa kwArgs) (graph.SurfaceDescription, error) {
		v, ok := pa.kw["surface"]
		if !ok {
			return graph.DefaultSurface(), nil
		}
		desc, err := toSurface(v)
		if err != nil {
			return desc, fmt.Errorf("%s: surface: %w", fn, err)
		}
		return desc, nil
	}

	// -----------------------------------------------------------------------
	// (box :size (vec3 2 2 2) :surface s)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("box requires :size")
		}
		size, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		desc, err := surfaceArg("box", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		m, err := graph.NewBoxMesh(size, desc)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return &sexpMesh{id: s.AddMesh(m), desc: fmt.Sprintf("(box %g %g %g)", size.X, size.Y, size.Z)}, nil
	})

	// -----------------------------------------------------------------------
	// (prism :sides 6 :radius 1 :height 2 :surface s)
	// -----------------------------------------------------------------------
	env.AddFunction("prism", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sides, radius, height := 0, 0.0, 0.0
		for _, k := range []string{"sides", "radius", "height"} {
			if _, ok := pa.kw[k]; !ok {
				return zygo.SexpNull, fmt.Errorf("prism requires :%s", k)
			}
		}
		var err error
		if sides, err = toInt(pa.kw["sides"]); err != nil {
			return zygo.SexpNull, fmt.Errorf("prism: sides: %w", err)
		}
		if radius, err = toFloat64(pa.kw["radius"]); err != nil {
			return zygo.SexpNull, fmt.Errorf("prism: radius: %w", err)
		}
		if height, err = toFloat64(pa.kw["height"]); err != nil {
			return zygo.SexpNull, fmt.Errorf("prism: height: %w", err)
		}
		desc, err := surfaceArg("prism", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		m, err := graph.NewPrismMesh(sides, radius, height, desc)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("prism: %w", err)
		}
		return &sexpMesh{id: s.AddMesh(m), desc: fmt.Sprintf("(prism %d %g %g)", sides, radius, height)}, nil
	})

	// -----------------------------------------------------------------------
	// (brush "name" (box ...))
	// -----------------------------------------------------------------------
	env.AddFunction("brush", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("brush requires a name and a mesh expression")
		}
		brushName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("brush: name: %w", err)
		}
		m, ok := args[1].(*sexpMesh)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("brush: expected mesh expression, got %T", args[1])
		}
		if s.Lookup(brushName) != nil {
			return zygo.SexpNull, fmt.Errorf("brush: duplicate name %q", brushName)
		}
		return &sexpNodeRef{id: s.AddBrush(brushName, m.id), name: brushName}, nil
	})

	// -----------------------------------------------------------------------
	// (node "name")
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a name argument")
		}
		nodeName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: name: %w", err)
		}
		n := s.Lookup(nodeName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("node: no node named %q", nodeName)
		}
		return &sexpNodeRef{id: n.ID, name: nodeName}, nil
	})

	// -----------------------------------------------------------------------
	// (place ref :at (vec3 0 0 1) :rotate (vec3 0 0 90) :scale (vec3 1 1 1))
	// (add ref ...) (subtract ref ...) (intersect ref ...)
	// -----------------------------------------------------------------------
	edge := func(fn string, op *graph.Operation) builtin {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly one node reference", fn)
			}
			c, err := toChild(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			if op != nil {
				c.Operation = *op
			}

			at, rot, scale := v3.Vec{}, v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1}
			touched := false
			for kw, dst := range map[string]*v3.Vec{"at": &at, "rotate": &rot, "scale": &scale} {
				v, ok := pa.kw[kw]
				if !ok {
					continue
				}
				vec, err := toVec3(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %s: %w", fn, kw, err)
				}
				*dst = vec
				touched = true
			}
			if touched {
				local := graph.TRS(at, rot, scale)
				if c.Transform != nil {
					local = graph.NewTransformation(local.Matrix().Mul(c.Transform.Matrix()))
				}
				c.Transform = local
			}
			return &sexpChild{child: c}, nil
		}
	}
	env.AddFunction("place", edge("place", nil))
	for _, e := range []struct {
		name string
		op   graph.Operation
	}{
		{"add", graph.Additive},
		{"subtract", graph.Subtractive},
		{"intersect", graph.Intersecting},
	} {
		op := e.op
		env.AddFunction(e.name, edge(e.name, &op))
	}

	// -----------------------------------------------------------------------
	// (render 0) (collider 3)
	// -----------------------------------------------------------------------
	variant := func(kind graph.MeshKind) builtin {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires a material index", kind)
			}
			n, err := toInt(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			return &sexpVariant{v: graph.SurfaceVariant{Kind: kind, Material: uint32(n)}}, nil
		}
	}
	env.AddFunction("render", variant(graph.MeshRender))
	env.AddFunction("collider", variant(graph.MeshCollider))

	// children converts positional arguments after the name to child edges.
	children := func(fn string, items []zygo.Sexp) ([]graph.Child, error) {
		out := make([]graph.Child, 0, len(items))
		for i, item := range items {
			c, err := toChild(item)
			if err != nil {
				return nil, fmt.Errorf("%s: child %d: %w", fn, i+1, err)
			}
			out = append(out, c)
		}
		return out, nil
	}

	// container parses (kind "name" :variants (list ...) children...) and
	// creates the node through add.
	container := func(fn string, add func(name string, variants []graph.SurfaceVariant, pa kwArgs) (graph.NodeID, error)) builtin {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			nodeName := ""
			items := pa.positional
			if len(items) > 0 {
				if str, ok := items[0].(*zygo.SexpStr); ok {
					nodeName = str.S
					items = items[1:]
				}
			}
			if nodeName != "" && s.Lookup(nodeName) != nil {
				return zygo.SexpNull, fmt.Errorf("%s: duplicate name %q", fn, nodeName)
			}
			var variants []graph.SurfaceVariant
			if v, ok := pa.kw["variants"]; ok {
				vs, err := toVariants(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: variants: %w", fn, err)
				}
				variants = graph.UniqueVariants(vs)
			}
			kids, err := children(fn, items)
			if err != nil {
				return zygo.SexpNull, err
			}

			label := nodeName
			if label == "" {
				label = fn + "/" + nextNodeSuffix()
			}
			id, err := add(nodeName, variants, pa)
			if err != nil {
				return zygo.SexpNull, err
			}
			if err := s.SetChildren(id, kids); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			return &sexpNodeRef{id: id, name: label}, nil
		}
	}

	// -----------------------------------------------------------------------
	// (composite "name" child...)
	// -----------------------------------------------------------------------
	env.AddFunction("composite", container("composite", func(name string, _ []graph.SurfaceVariant, _ kwArgs) (graph.NodeID, error) {
		return s.AddComposite(name), nil
	}))

	// -----------------------------------------------------------------------
	// (submodel "name" :variants (list (render 1)) child...)
	// -----------------------------------------------------------------------
	env.AddFunction("submodel", container("submodel", func(name string, vs []graph.SurfaceVariant, _ kwArgs) (graph.NodeID, error) {
		return s.AddSubModel(name, graph.SubModelData{Variants: vs}), nil
	}))

	// -----------------------------------------------------------------------
	// (model "name" :variants (list (render 0) (collider 0)) :submodels 1 child...)
	//
	// Without :submodels the count is taken from the hierarchy.
	// -----------------------------------------------------------------------
	env.AddFunction("model", container("model", func(name string, vs []graph.SurfaceVariant, pa kwArgs) (graph.NodeID, error) {
		count := -1
		if v, ok := pa.kw["submodels"]; ok {
			n, err := toInt(v)
			if err != nil {
				return graph.ZeroID, fmt.Errorf("model: submodels: %w", err)
			}
			count = n
		}
		if count < 0 {
			kids, err := children("model", dropName(pa.positional))
			if err != nil {
				return graph.ZeroID, err
			}
			count = countSubModels(s, kids)
		}
		return s.AddModel(name, graph.ModelData{Variants: vs, SubModelCount: count}), nil
	}))
}

func dropName(items []zygo.Sexp) []zygo.Sexp {
	if len(items) > 0 {
		if _, ok := items[0].(*zygo.SexpStr); ok {
			return items[1:]
		}
	}
	return items
}

// countSubModels counts the sub-model instances below kids, one per path.
func countSubModels(s *graph.Scene, kids []graph.Child) int {
	n := 0
	for _, c := range kids {
		node := s.Node(c.Node)
		if node == nil {
			continue
		}
		if node.Kind == graph.KindSubModel {
			n++
		}
		n += countSubModels(s, node.Children)
	}
	return n
}
