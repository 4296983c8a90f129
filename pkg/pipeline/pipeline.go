// Package pipeline runs incremental evaluation passes over a scene: it
// detects changed models, then takes each through flattening, intersection,
// routing, surface generation and mesh assembly, and publishes the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/brushcsg/pkg/assembly"
	"github.com/chazu/brushcsg/pkg/change"
	"github.com/chazu/brushcsg/pkg/compact"
	"github.com/chazu/brushcsg/pkg/graph"
	"github.com/chazu/brushcsg/pkg/intersect"
	"github.com/chazu/brushcsg/pkg/kernel"
	"github.com/chazu/brushcsg/pkg/kernel/planar"
	"github.com/chazu/brushcsg/pkg/routing"
	"github.com/chazu/brushcsg/pkg/surface"
)

// Host is what a scene host reads after a pass.
type Host interface {
	// Changed reports whether the model was re-evaluated and published in
	// the last pass.
	Changed(model graph.NodeID) bool
	// Meshes returns the published meshes of the model, or nil.
	Meshes(model graph.NodeID) *assembly.ModelMeshes
	// MaxMeshCount returns the declared mesh capacity of the model as of
	// the last pass that reached it.
	MaxMeshCount(model graph.NodeID) (int, bool)
}

// Compile-time interface check.
var _ Host = (*Evaluator)(nil)

// Options configures an Evaluator.
type Options struct {
	Workers          int
	Index            intersect.Config
	RoutingCacheSize int
	SurfaceCache     surface.CacheSizes
	// Clipper defaults to the planar clipper.
	Clipper kernel.Clipper
	Logger  *slog.Logger
}

// DefaultOptions returns options sized for the current machine.
func DefaultOptions() Options {
	return Options{
		Workers:          runtime.GOMAXPROCS(0),
		Index:            intersect.DefaultConfig(),
		RoutingCacheSize: routing.DefaultCacheSize,
		SurfaceCache:     surface.DefaultCacheSizes(),
	}
}

// brushState is what a brush instance contributed to the last published
// meshes of its model.
type brushState struct {
	node     graph.NodeID
	key      uint64 // routing table, placement and mesh content
	surfaces []surface.Surface
	slots    []surface.Slot
}

type modelState struct {
	meshes  atomic.Pointer[assembly.ModelMeshes]
	changed atomic.Bool
	max     atomic.Int64 // -1 until a layout was computed

	// brushes by instance path; only the goroutine evaluating the model
	// touches it.
	brushes map[uint64]*brushState
}

// Evaluator owns the caches and registries that persist across passes.
// Update must not be called concurrently; the Host methods may be called at
// any time.
type Evaluator struct {
	opts      Options
	logger    *slog.Logger
	tracker   *change.Tracker
	index     *intersect.Index
	builder   *routing.Builder
	cache     *surface.Cache
	generator *surface.Generator
	registry  *surface.Registry
	coord     *assembly.Coordinator

	// intersect is index.Update unless replaced in tests.
	intersect func(*compact.Tree, intersect.MeshSource) (*intersect.Result, error)

	pass   sync.Mutex
	mu     sync.Mutex
	models map[graph.NodeID]*modelState
}

// New returns an evaluator.
func New(opts Options) (*Evaluator, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Clipper == nil {
		opts.Clipper = planar.New(opts.Index.Epsilon)
	}
	if opts.RoutingCacheSize <= 0 {
		opts.RoutingCacheSize = routing.DefaultCacheSize
	}
	if opts.SurfaceCache == (surface.CacheSizes{}) {
		opts.SurfaceCache = surface.DefaultCacheSizes()
	}

	builder, err := routing.NewBuilder(opts.RoutingCacheSize, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cache, err := surface.NewCache(opts.SurfaceCache)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	e := &Evaluator{
		opts:      opts,
		logger:    opts.Logger,
		tracker:   change.NewTracker(),
		index:     intersect.NewIndex(opts.Index, opts.Logger),
		builder:   builder,
		cache:     cache,
		generator: surface.NewGenerator(opts.Clipper, cache, opts.Logger),
		registry:  surface.NewRegistry(),
		coord:     assembly.NewCoordinator(opts.Logger),
		models:    make(map[graph.NodeID]*modelState),
	}
	e.intersect = e.index.Update
	return e, nil
}

// Registry returns the surface registry shared by all models.
func (e *Evaluator) Registry() *surface.Registry { return e.registry }

// Cache returns the surface derivation cache.
func (e *Evaluator) Cache() *surface.Cache { return e.cache }

// Builder returns the routing table builder.
func (e *Evaluator) Builder() *routing.Builder { return e.builder }

// Tracker returns the change tracker.
func (e *Evaluator) Tracker() *change.Tracker { return e.tracker }

// Changed implements Host.
func (e *Evaluator) Changed(model graph.NodeID) bool {
	if ms := e.lookup(model); ms != nil {
		return ms.changed.Load()
	}
	return false
}

// Meshes implements Host.
func (e *Evaluator) Meshes(model graph.NodeID) *assembly.ModelMeshes {
	if ms := e.lookup(model); ms != nil {
		return ms.meshes.Load()
	}
	return nil
}

// MaxMeshCount implements Host.
func (e *Evaluator) MaxMeshCount(model graph.NodeID) (int, bool) {
	if ms := e.lookup(model); ms != nil {
		if n := ms.max.Load(); n >= 0 {
			return int(n), true
		}
	}
	return 0, false
}

func (e *Evaluator) lookup(model graph.NodeID) *modelState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.models[model]
}

func (e *Evaluator) state(model graph.NodeID) *modelState {
	e.mu.Lock()
	defer e.mu.Unlock()
	ms, ok := e.models[model]
	if !ok {
		ms = &modelState{brushes: make(map[uint64]*brushState)}
		ms.max.Store(-1)
		e.models[model] = ms
	}
	return ms
}

// ---------------------------------------------------------------------------
// Pass
// ---------------------------------------------------------------------------

// Update runs one evaluation pass. Changed models are evaluated
// concurrently; a failing model never blocks or corrupts the others. The
// returned error joins every model error and is also listed in the report.
func (e *Evaluator) Update(ctx context.Context, scene *graph.Scene) (*Report, error) {
	e.pass.Lock()
	defer e.pass.Unlock()

	ctx, span := tracer.Start(ctx, "pipeline.Update",
		trace.WithAttributes(attribute.Int("scene.nodes", scene.NodeCount())))
	defer span.End()

	start := time.Now()
	report := &Report{PassID: uuid.NewString()}
	logger := e.logger.With(slog.String("pass_id", report.PassID))

	_, hashSpan := tracer.Start(ctx, "pipeline.hash")
	changes := e.tracker.Detect(scene)
	hashSpan.End()

	e.mu.Lock()
	for _, ms := range e.models {
		ms.changed.Store(false)
	}
	e.mu.Unlock()

	var todo []change.ModelChange
	for _, c := range changes {
		if c.Removed {
			e.remove(c.Model)
			report.Removed = append(report.Removed, c.Model)
			continue
		}
		todo = append(todo, c)
	}

	results := make([]ModelReport, len(todo))
	failures := make([][]*Error, len(todo))
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, c := range todo {
		g.Go(func() error {
			results[i], failures[i] = e.evaluate(ctx, scene, c, logger)
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range todo {
		report.Models = append(report.Models, results[i])
		modelsEvaluated.Inc()
		for _, pe := range failures[i] {
			modelFailures.WithLabelValues(pe.Kind.String()).Inc()
			report.Errors = append(report.Errors, pe)
			if pe.Kind == KindConsistency || pe.Kind == KindInternal {
				e.tracker.Forget(c.Model)
			}
			logger.Warn("pipeline: model failed",
				slog.String("model", c.Model.String()),
				slog.String("kind", pe.Kind.String()),
				slog.String("error", pe.Err.Error()))
		}
	}

	report.Duration = time.Since(start)
	passDuration.Observe(report.Duration.Seconds())
	span.SetAttributes(
		attribute.String("pass_id", report.PassID),
		attribute.Int("models.changed", len(todo)),
		attribute.Int("models.failed", len(report.Errors)))

	err := report.Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model failures")
	}
	logger.Info("pipeline: pass complete",
		slog.Int("changed", len(todo)),
		slog.Int("removed", len(report.Removed)),
		slog.Int("errors", len(report.Errors)),
		slog.Duration("duration", report.Duration))
	return report, err
}

// remove releases everything a removed model held.
func (e *Evaluator) remove(model graph.NodeID) {
	e.mu.Lock()
	ms, ok := e.models[model]
	delete(e.models, model)
	e.mu.Unlock()
	if !ok {
		return
	}
	for _, st := range ms.brushes {
		e.release(st.slots)
	}
}

func (e *Evaluator) release(slots []surface.Slot) {
	for _, s := range slots {
		if err := e.registry.Unregister(s); err != nil {
			e.logger.Error("pipeline: release slot", slog.Int("slot", int(s)), slog.String("error", err.Error()))
		}
	}
}

// ---------------------------------------------------------------------------
// Model evaluation
// ---------------------------------------------------------------------------

// evaluate takes one model through every phase. Model-level failures return
// a single error and publish nothing; brush-level consistency failures
// exclude the brush and still publish.
func (e *Evaluator) evaluate(ctx context.Context, scene *graph.Scene, c change.ModelChange, logger *slog.Logger) (ModelReport, []*Error) {
	ctx, span := tracer.Start(ctx, "pipeline.model",
		trace.WithAttributes(attribute.String("model", c.Model.String())))
	defer span.End()

	start := time.Now()
	rep := ModelReport{Model: c.Model, Hash: c.Hash}
	ms := e.state(c.Model)
	fail := func(err error) (ModelReport, []*Error) {
		pe := modelError(c.Model, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, pe.Kind.String())
		rep.Duration = time.Since(start)
		return rep, []*Error{pe}
	}

	layout, err := assembly.NewLayout(scene, c.Model)
	if err != nil {
		return fail(err)
	}
	ms.max.Store(int64(layout.Max()))
	rep.MaxMeshes = layout.Max()

	_, sp := tracer.Start(ctx, "pipeline.flatten")
	tree, err := compact.Flatten(scene, c.Model, c.Hash)
	sp.End()
	if err != nil {
		return fail(err)
	}
	rep.Brushes = len(tree.Brushes)

	_, sp = tracer.Start(ctx, "pipeline.intersect")
	res, err := e.intersect(tree, scene)
	sp.End()
	if err != nil {
		return fail(err)
	}

	routeCtx, sp := tracer.Start(ctx, "pipeline.route")
	tables, brushErrs, err := e.route(routeCtx, tree, res, &rep)
	sp.End()
	if err != nil {
		return fail(err)
	}

	genCtx, sp := tracer.Start(ctx, "pipeline.generate")
	next, fresh, err := e.generate(genCtx, tree, res, tables, ms.brushes, &rep)
	sp.End()
	if err != nil {
		e.release(fresh)
		return fail(err)
	}

	var placements []assembly.Placement
	for b, d := range tree.Brushes {
		st, ok := next[d.Path]
		if !ok {
			continue
		}
		for i, s := range st.surfaces {
			placements = append(placements, assembly.Placement{Key: s.Key, Slot: st.slots[i], Order: b})
		}
	}

	_, sp = tracer.Start(ctx, "pipeline.assemble")
	meshes, err := e.coord.Assemble(layout, placements, e.registry)
	sp.End()
	if err != nil {
		e.release(fresh)
		return fail(err)
	}

	// Publish, then release what the previous meshes held.
	old := ms.brushes
	ms.brushes = next
	ms.meshes.Store(meshes)
	ms.changed.Store(true)
	for path, st := range old {
		if next[path] != st {
			e.release(st.slots)
		}
	}

	rep.Published = true
	rep.Meshes = len(meshes.Buffers)
	rep.Triangles = meshes.TriangleCount()
	rep.Duration = time.Since(start)

	var errs []*Error
	for b, err := range brushErrs {
		if err != nil {
			errs = append(errs, &Error{Kind: KindConsistency, Model: c.Model, Brush: tree.Brushes[b].NodeID, Err: err})
		}
	}
	logger.Debug("pipeline: model published",
		slog.String("model", c.Model.String()),
		slog.Int("brushes", rep.Brushes),
		slog.Int("generated", rep.Generated),
		slog.Int("reused", rep.Reused),
		slog.Int("meshes", rep.Meshes),
		slog.Duration("duration", rep.Duration))
	return rep, errs
}

// route builds the tables of all visible brushes on the worker pool.
// Consistency errors are per brush; any other error fails the model.
func (e *Evaluator) route(ctx context.Context, tree *compact.Tree, res *intersect.Result, rep *ModelReport) ([]*routing.RoutingTable, []error, error) {
	tables := make([]*routing.RoutingTable, len(tree.Brushes))
	brushErrs := make([]error, len(tree.Brushes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for b := range tree.Brushes {
		if res.Hidden(b) {
			rep.Hidden++
			continue
		}
		rep.Routed++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := e.builder.Build(tree, res, b)
			switch {
			case errors.Is(err, routing.ErrConsistency):
				brushErrs[b] = err
			case err != nil:
				return fmt.Errorf("pipeline: route brush %s: %w", tree.Brushes[b].NodeID, err)
			default:
				tables[b] = t
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	brushesRouted.Add(float64(rep.Routed))
	return tables, brushErrs, nil
}

// generate produces the surfaces of every routed brush whose table,
// placement or mesh changed, and carries the others over. It returns the
// new per-path state and the slots registered in this call.
func (e *Evaluator) generate(ctx context.Context, tree *compact.Tree, res *intersect.Result,
	tables []*routing.RoutingTable, old map[uint64]*brushState, rep *ModelReport,
) (map[uint64]*brushState, []surface.Slot, error) {
	type job struct {
		brush int
		key   uint64
		out   *surface.Result
	}
	next := make(map[uint64]*brushState, len(tables))
	var jobs []*job
	for b, t := range tables {
		if t == nil {
			continue
		}
		d := tree.Brushes[b]
		w := &res.World[b]
		key := graph.Combine(t.Hash, w.Key, w.Mesh.Hash())
		if st, ok := old[d.Path]; ok && st.key == key {
			next[d.Path] = st
			rep.Reused++
			continue
		}
		jobs = append(jobs, &job{brush: b, key: key})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := e.generator.Generate(kernel.NewClipInput(res, tables[j.brush]))
			if err != nil {
				return err
			}
			j.out = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Register in brush order so slot assignment is deterministic.
	var fresh []surface.Slot
	for _, j := range jobs {
		d := tree.Brushes[j.brush]
		st := &brushState{node: d.NodeID, key: j.key, surfaces: j.out.Surfaces}
		for _, s := range j.out.Surfaces {
			slot := e.registry.Register(s.Content)
			st.slots = append(st.slots, slot)
			fresh = append(fresh, slot)
		}
		next[d.Path] = st
		rep.Generated++
		rep.Unresolved += j.out.Unresolved
	}
	surfacesGenerated.WithLabelValues("generated").Add(float64(rep.Generated))
	surfacesGenerated.WithLabelValues("reused").Add(float64(rep.Reused))
	unresolvedFragments.Add(float64(rep.Unresolved))
	return next, fresh, nil
}
