// Package search implements Dijkstra and A* over a compacted graph, both
// sharing one relaxation step and a concrete-typed priority queue.
//
// The queue is a direct generalization of the teacher's MinHeap
// (pkg/routing/dijkstra.go): same array-backed binary heap with sift-up/
// sift-down, but ordered by float64 cost instead of uint32 distance, and
// carrying a full path of node keys per entry instead of a bare node id —
// the obtuse-turn rule and user callbacks need the last two path vertices'
// geometry at relaxation time, which a predecessor-only entry would need a
// second backward pass to recover (spec.md §9 permits either).
package search

import (
	"container/heap"
	"math"

	"github.com/azybler/geopath/pkg/compact"
	"github.com/azybler/geopath/pkg/geo"
)

// Context is the bundle of coordinates and precomputed vectors describing
// a candidate transition, handed to DirectionBias and TransitionGuard.
type Context struct {
	Cost float64
	Path []string
	From string
	To   string

	FromCoord geo.Coordinate
	ToCoord   geo.Coordinate

	FromToVector   [2]float64
	FromGoalVector [2]float64
	ToGoalVector   [2]float64

	HasPrevious          bool
	Previous             string
	PreviousToFromVector [2]float64
}

// ContextBuilder constructs the Context for a candidate transition
// (from -> to) given the accumulated cost and path leading to from. The
// caller (pkg/pathfinder) owns this because only it knows how to resolve
// coordinates for compacted-graph keys and the search goal.
type ContextBuilder func(cost float64, path []string, from, to string) Context

// DirectionBias returns an additive per-edge cost bias.
type DirectionBias func(ctx Context) float64

// TransitionGuard vetoes a transition by returning allow=false. A non-nil
// error aborts the whole search; it is returned unchanged to the caller.
type TransitionGuard func(ctx Context) (allow bool, err error)

// NodeExpanded is invoked exactly once per accepted pop, before the goal
// check.
type NodeExpanded func(key string, cost float64)

// Options configures a single Dijkstra or A* run.
type Options struct {
	ContextBuilder  ContextBuilder // required iff DirectionBias or TransitionGuard is set
	DirectionBias   DirectionBias
	TransitionGuard TransitionGuard
	OnNodeExpanded  NodeExpanded
	Coordinates     map[string]geo.Coordinate // A* only; heuristic input
}

// Result is a successful search outcome.
type Result struct {
	Weight float64
	Path   []string
}

type entry struct {
	priority float64 // cost (Dijkstra) or cost+heuristic (A*)
	cost     float64
	node     string
	path     []string
}

// entryHeap is a min-heap of concrete entry values ordered by priority,
// driven through container/heap (entries are boxed only on Push/Pop).
type entryHeap []entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Dijkstra runs a label-setting search from start to end on g.
func Dijkstra(g *compact.Graph, start, end string, opts Options) (Result, bool, error) {
	return run(g, start, end, opts, func(string) float64 { return 0 })
}

// AStar runs an A* search from start to end on g, using great-circle
// distance to opts.Coordinates[end] as the heuristic. When either endpoint
// of a heuristic evaluation has no known coordinate, the heuristic is 0
// (degenerates to Dijkstra for that node, keeping admissibility trivially).
func AStar(g *compact.Graph, start, end string, opts Options) (Result, bool, error) {
	goalCoord, haveGoal := opts.Coordinates[end]
	heuristic := func(node string) float64 {
		if !haveGoal {
			return 0
		}
		c, ok := opts.Coordinates[node]
		if !ok {
			return 0
		}
		return geo.GreatCircleKM(c, goalCoord)
	}
	return run(g, start, end, opts, heuristic)
}

func run(g *compact.Graph, start, end string, opts Options, heuristic func(node string) float64) (Result, bool, error) {
	if !g.HasVertex(start) || !g.HasVertex(end) {
		return Result{}, false, nil
	}

	best := map[string]float64{start: 0}
	pq := &entryHeap{{priority: heuristic(start), cost: 0, node: start, path: []string{start}}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(entry)

		// Lazy deletion: a popped entry whose cost exceeds the best known
		// cost for that node was superseded by a better entry pushed
		// later; discard it without expanding.
		if b, ok := best[cur.node]; ok && cur.cost > b {
			continue
		}

		if opts.OnNodeExpanded != nil {
			opts.OnNodeExpanded(cur.node, cur.cost)
		}
		if cur.node == end {
			return Result{Weight: cur.cost, Path: cur.path}, true, nil
		}

		for neighborKey, edge := range g.Neighbors(cur.node) {
			var ctx Context
			if opts.DirectionBias != nil || opts.TransitionGuard != nil {
				ctx = opts.ContextBuilder(cur.cost, cur.path, cur.node, neighborKey)
			}

			if opts.TransitionGuard != nil {
				allow, err := opts.TransitionGuard(ctx)
				if err != nil {
					return Result{}, false, err
				}
				if !allow {
					continue
				}
			}

			var bias float64
			if opts.DirectionBias != nil {
				bias = opts.DirectionBias(ctx)
			}

			newCost := cur.cost + edge.Weight + bias
			if math.IsInf(newCost, 1) {
				continue
			}
			if b, ok := best[neighborKey]; ok && newCost >= b {
				continue
			}
			best[neighborKey] = newCost

			path := make([]string, len(cur.path)+1)
			copy(path, cur.path)
			path[len(cur.path)] = neighborKey

			heap.Push(pq, entry{
				priority: newCost + heuristic(neighborKey),
				cost:     newCost,
				node:     neighborKey,
				path:     path,
			})
		}
	}

	return Result{}, false, nil
}
