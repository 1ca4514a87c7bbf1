// Package pathfinder is the public facade: it builds a routed graph from a
// polyline network and answers shortest-path queries against it, grafting
// and removing phantom endpoints, composing user callbacks with the
// built-in obtuse-turn rule, and optionally dispatching eligible queries to
// a worker pool.
//
// It plays the role the teacher's pkg/routing/engine.go Engine/Router split
// plays: Finder holds the compacted graph and exposes FindPath/
// FindPathAsync the way Engine exposes Route, and Finder satisfies
// pkg/api's Router interface so pkg/api can depend on the interface
// rather than the concrete type, exactly as the teacher's pkg/api/handlers.go
// depends on routing.Router rather than *routing.Engine.
package pathfinder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/azybler/geopath/pkg/compact"
	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/phantom"
	"github.com/azybler/geopath/pkg/search"
	"github.com/azybler/geopath/pkg/topology"
	"github.com/azybler/geopath/pkg/workerpool"
)

// Network, Feature, Weight and the weight/payload function types are the
// library's ingestion contract, defined once in pkg/topology and re-used
// here under the names callers of this package actually see.
type (
	Network     = topology.Network
	Feature     = topology.Feature
	Weight      = topology.Weight
	WeightFunc  = topology.WeightFunc
	ReducerFunc = topology.ReducerFunc
	SeedFunc    = topology.SeedFunc
)

// ErrAmbiguousCoordinate is returned by FindPath/FindPathAsync when a query
// coordinate's rounded 2D position matches more than one vertex's source
// coordinate within tolerance (spec.md §4.6, §7).
var ErrAmbiguousCoordinate = errors.New("pathfinder: coordinate matches more than one vertex within tolerance")

// WorkerOptions configures the optional worker pool.
type WorkerOptions struct {
	Enabled  bool
	PoolSize int
}

// Options configures preprocessing and facade behavior.
type Options struct {
	Tolerance float64
	Key       geo.KeyFunc
	Weight    WeightFunc

	// DisableCompaction skips degree-two chain collapsing; searches then
	// run directly on the raw (uncompacted) graph. Named as a negative
	// flag, rather than spec.md's `compact: bool, default true`, so Go's
	// zero value (false) lines up with the spec's own default instead of
	// silently inverting it — see DESIGN.md.
	DisableCompaction bool

	EdgeDataReducer ReducerFunc
	EdgeDataSeed    SeedFunc
	Progress        func(phase string, done, total int)
	Worker          WorkerOptions

	// DisableObtuseFilter turns off the built-in obtuse-turn rule. It
	// defaults to enabled — see the resolved Open Question in SPEC_FULL.md
	// §4.6.
	DisableObtuseFilter bool
}

func (o Options) withTolerance() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-5
	}
	return o
}

// Algorithm selects the search strategy for a query.
type Algorithm string

const (
	AlgorithmDijkstra Algorithm = "dijkstra"
	AlgorithmAStar    Algorithm = "astar"
)

// SearchOptions configures a single FindPath/FindPathAsync call.
type SearchOptions struct {
	Algorithm       Algorithm
	DirectionBias   func(ctx search.Context) float64
	TransitionGuard func(ctx search.Context) (bool, error)
	OnNodeExpanded  func(key string, cost float64)
}

// hasCallbacks reports whether any per-request callback is set — such a
// request can never be dispatched to a worker (callbacks aren't
// serializable, spec.md §4.7).
func (s SearchOptions) hasCallbacks() bool {
	return s.DirectionBias != nil || s.TransitionGuard != nil || s.OnNodeExpanded != nil
}

// Path is a successful FindPath/FindPathAsync result.
type Path struct {
	Geometry  []geo.Coordinate
	Weight    float64
	EdgeDatas []any // nil unless a payload reducer was configured
}

// Preprocessed bundles everything a Finder needs to answer queries: the
// raw CSR graph (retained for on-demand phantom chain walks), its
// precomputed compactability classifier, and the live compacted graph.
type Preprocessed struct {
	Raw        *topology.Graph
	Classifier *compact.Classifier
	Graph      *compact.Graph
	HasPayload bool
}

// Clone deep-copies the mutable compacted graph so a worker can own an
// independent copy. Go has no process boundary here, so "independent
// copy" (spec.md §5, §4.7) is realized as a value copy of the graph's
// maps rather than IPC; Raw and Classifier are read-only after
// preprocessing and are shared, not copied.
func (p Preprocessed) Clone() Preprocessed {
	g := compact.NewGraph()
	for u, edges := range p.Graph.Adjacency {
		for v, e := range edges {
			coords := make([]geo.Coordinate, len(e.Coordinates))
			for i, c := range e.Coordinates {
				coords[i] = c.Clone()
			}
			e.Coordinates = coords
			g.AddEdge(u, v, e)
		}
	}
	for k, c := range p.Graph.Coordinates {
		g.Coordinates[k] = c.Clone()
	}
	return Preprocessed{Raw: p.Raw, Classifier: p.Classifier, Graph: g, HasPayload: p.HasPayload}
}

// Preprocess builds the raw graph and the compacted graph from net,
// without constructing a Finder — exposed so callers can hand the result
// to multiple Finders (e.g. one per worker) without re-ingesting net.
func Preprocess(net Network, opts Options) Preprocessed {
	opts = opts.withTolerance()
	raw := topology.Build(net, topology.Options{
		Tolerance:       opts.Tolerance,
		Key:             opts.Key,
		Weight:          opts.Weight,
		EdgeDataSeed:    opts.EdgeDataSeed,
		EdgeDataReducer: opts.EdgeDataReducer,
		Progress:        opts.Progress,
	})
	classifier := compact.NewClassifier(raw, opts.EdgeDataReducer)

	var g *compact.Graph
	if opts.DisableCompaction {
		g = compact.Identity(raw)
	} else {
		g = compact.Build(raw, opts.EdgeDataReducer, opts.Progress)
	}

	return Preprocessed{Raw: raw, Classifier: classifier, Graph: g, HasPayload: opts.EdgeDataReducer != nil}
}

// Finder resolves endpoints, orchestrates phantom injection, runs the
// selected search, and reconstructs path geometry and payload sequence
// against a single compacted graph.
type Finder struct {
	pre  Preprocessed
	opts Options
	pool *workerpool.Pool

	// mu serializes phantom injection: two concurrent FindPath calls on
	// the same Finder would corrupt the shared compacted graph (spec.md
	// §5's non-reentrancy rule). The worker pool sidesteps this by giving
	// every worker its own Finder over its own Preprocessed.Clone().
	mu sync.Mutex
}

// New builds a Finder from a source network.
func New(net Network, opts Options) *Finder {
	return NewPreprocessed(Preprocess(net, opts), opts)
}

// NewPreprocessed builds a Finder from an already-preprocessed graph —
// used directly by callers who preprocessed once and want several
// independent Finders (each worker rebuilds one this way), and internally
// by the pool.
func NewPreprocessed(pre Preprocessed, opts Options) *Finder {
	opts = opts.withTolerance()
	f := &Finder{pre: pre, opts: opts}
	if opts.Worker.Enabled {
		f.pool = workerpool.New(opts.Worker.PoolSize, func() any {
			workerOpts := opts
			workerOpts.Worker.Enabled = false // workers never spawn sub-pools
			return NewPreprocessed(pre.Clone(), workerOpts)
		})
	}
	return f
}

// Close releases the worker pool, if one was created. Idempotent. Must be
// called before process exit when Options.Worker.Enabled was set.
func (f *Finder) Close() error {
	if f.pool == nil {
		return nil
	}
	return f.pool.Close()
}

// FindPath runs a synchronous shortest-path query.
func (f *Finder) FindPath(start, end geo.Coordinate, searchOpts SearchOptions) (Path, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findPathLocked(start, end, searchOpts)
}

// FindPathAsync dispatches to the worker pool when the request is eligible
// (pool enabled, no payload reducer configured, no per-request callbacks);
// otherwise it falls back to a synchronous call in the caller's goroutine.
func (f *Finder) FindPathAsync(ctx context.Context, start, end geo.Coordinate, searchOpts SearchOptions) (Path, bool, error) {
	if f.pool == nil || f.pre.HasPayload || searchOpts.hasCallbacks() {
		return f.FindPath(start, end, searchOpts)
	}

	v, err := f.pool.Submit(ctx, func(state any) (any, error) {
		worker := state.(*Finder)
		path, ok, err := worker.FindPath(start, end, searchOpts)
		return asyncResult{path, ok, err}, nil
	})
	if err != nil {
		return Path{}, false, err
	}
	r := v.(asyncResult)
	return r.path, r.ok, r.err
}

type asyncResult struct {
	path Path
	ok   bool
	err  error
}

func (f *Finder) findPathLocked(startCoord, endCoord geo.Coordinate, searchOpts SearchOptions) (Path, bool, error) {
	startKey, ok, err := f.resolveEndpoint(startCoord)
	if err != nil {
		return Path{}, false, err
	}
	if !ok {
		return Path{}, false, nil
	}
	endKey, ok, err := f.resolveEndpoint(endCoord)
	if err != nil {
		return Path{}, false, err
	}
	if !ok {
		return Path{}, false, nil
	}

	inj := phantom.New(f.pre.Raw, f.pre.Classifier, f.pre.Graph)

	releaseStart, err := inj.Inject(startKey)
	if err != nil {
		return Path{}, false, err
	}
	defer releaseStart()
	releaseEnd, err := inj.Inject(endKey)
	if err != nil {
		return Path{}, false, err
	}
	defer releaseEnd()

	opts := f.buildSearchOptions(endKey, searchOpts)

	var res search.Result
	var found bool
	if searchOpts.Algorithm == AlgorithmAStar {
		res, found, err = search.AStar(f.pre.Graph, startKey, endKey, opts)
	} else {
		res, found, err = search.Dijkstra(f.pre.Graph, startKey, endKey, opts)
	}
	if err != nil {
		return Path{}, false, err
	}
	if !found {
		return Path{}, false, nil
	}

	return f.reconstruct(res), true, nil
}

// resolveEndpoint implements spec.md §4.6's endpoint resolution: exact
// rounded-key match if one exists; otherwise a scan of source coordinates
// for any whose rounded 2D position coincides, succeeding only if exactly
// one such vertex exists.
func (f *Finder) resolveEndpoint(c geo.Coordinate) (string, bool, error) {
	tol := f.opts.Tolerance
	keyFn := f.opts.Key
	if keyFn == nil {
		keyFn = geo.DefaultKey
	}
	rounded := geo.Round(c, tol)
	direct := keyFn(rounded)
	if _, ok := f.pre.Raw.KeyToIndex[direct]; ok {
		return direct, true, nil
	}

	var match string
	matches := 0
	for _, k := range f.pre.Raw.Keys {
		idx := f.pre.Raw.KeyToIndex[k]
		src := geo.Round(f.pre.Raw.Coordinates[idx], tol)
		if src[0] == rounded[0] && src[1] == rounded[1] {
			match = k
			matches++
			if matches > 1 {
				return "", false, fmt.Errorf("%w: %v", ErrAmbiguousCoordinate, c)
			}
		}
	}
	if matches == 1 {
		return match, true, nil
	}
	return "", false, nil
}

func (f *Finder) buildSearchOptions(goalKey string, searchOpts SearchOptions) search.Options {
	obtuseEnabled := !f.opts.DisableObtuseFilter
	hasUserGuard := searchOpts.TransitionGuard != nil

	opts := search.Options{
		Coordinates:    f.pre.Graph.Coordinates,
		OnNodeExpanded: searchOpts.OnNodeExpanded,
	}
	if searchOpts.DirectionBias != nil {
		opts.DirectionBias = searchOpts.DirectionBias
	}

	if hasUserGuard || obtuseEnabled {
		opts.TransitionGuard = func(ctx search.Context) (bool, error) {
			if obtuseEnabled && isTurnObtuse(f.pre.Graph, ctx) {
				return false, nil
			}
			if hasUserGuard {
				return searchOpts.TransitionGuard(ctx)
			}
			return true, nil
		}
	}

	if opts.DirectionBias != nil || opts.TransitionGuard != nil {
		opts.ContextBuilder = f.buildContext(goalKey)
	}
	return opts
}

// buildContext constructs spec.md §4.6's traversal context for a candidate
// transition (from -> to): coordinates for both ends (falling back to the
// last point of the compacted edge leading into a key when that key has no
// coordinate of its own), the three vectors, and, when the path has depth
// >= 2, the previous vertex and its vector into `from`.
func (f *Finder) buildContext(goalKey string) search.ContextBuilder {
	goalCoord, haveGoal := f.pre.Graph.Coordinates[goalKey]
	return func(cost float64, path []string, from, to string) search.Context {
		var prevKey string
		if len(path) >= 2 {
			prevKey = path[len(path)-2]
		}
		fromCoord := f.coordFor(from, prevKey)
		toCoord := f.coordFor(to, from)

		ctx := search.Context{
			Cost:      cost,
			Path:      path,
			From:      from,
			To:        to,
			FromCoord: fromCoord,
			ToCoord:   toCoord,
		}
		ctx.FromToVector = vector(fromCoord, toCoord)
		if haveGoal {
			ctx.FromGoalVector = vector(fromCoord, goalCoord)
			ctx.ToGoalVector = vector(toCoord, goalCoord)
		}
		if len(path) >= 2 {
			prev := path[len(path)-2]
			ctx.HasPrevious = true
			ctx.Previous = prev
			ctx.PreviousToFromVector = vector(f.coordFor(prev, ""), fromCoord)
		}
		return ctx
	}
}

// coordFor returns key's coordinate, or, when key has none, the last point
// of the compacted edge via -> key; (0,0) if neither exists.
func (f *Finder) coordFor(key, via string) geo.Coordinate {
	if c, ok := f.pre.Graph.Coordinates[key]; ok {
		return c
	}
	if edge, ok := f.pre.Graph.Neighbors(via)[key]; ok && len(edge.Coordinates) > 0 {
		return edge.Coordinates[len(edge.Coordinates)-1]
	}
	return geo.Coordinate{0, 0}
}

func vector(a, b geo.Coordinate) [2]float64 {
	return [2]float64{b.Lon() - a.Lon(), b.Lat() - a.Lat()}
}

// reconstruct builds the final Path from a search.Result: concatenating
// every compacted edge's coordinate list along the key sequence (spec.md
// §4.6's Path reconstruction), plus the reduced payload sequence if a
// reducer was configured.
func (f *Finder) reconstruct(res search.Result) Path {
	path := Path{Weight: res.Weight}
	if len(res.Path) == 0 {
		return path
	}

	start := res.Path[0]
	if c, ok := f.pre.Graph.Coordinates[start]; ok {
		path.Geometry = append(path.Geometry, c)
	}

	var edgeDatas []any
	for i := 1; i < len(res.Path); i++ {
		u, v := res.Path[i-1], res.Path[i]
		edge := f.pre.Graph.Neighbors(u)[v]
		path.Geometry = append(path.Geometry, edge.Coordinates...)
		if f.pre.HasPayload {
			edgeDatas = append(edgeDatas, edge.Payload)
		}
	}
	if f.pre.HasPayload {
		path.EdgeDatas = edgeDatas
	}
	return path
}
