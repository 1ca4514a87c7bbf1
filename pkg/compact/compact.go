// Package compact collapses degree-two chains in a raw topology.Graph into
// a compacted graph whose vertex set is exactly the junctions, dead-ends,
// and endpoints of the original network. It carries the full intermediate
// geometry and any folded edge payload along with each compacted edge.
//
// The walk here descends from the teacher's contraction-hierarchies
// shortcut search (pkg/ch/contractor.go): where CH repeatedly contracts the
// single lowest-priority node and records a shortcut bypassing it, this
// compactor contracts every degree-two node unconditionally (no priority
// queue needed — compactability doesn't depend on contraction order) and
// records the full chain geometry rather than one shortcut midpoint.
package compact

import (
	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/topology"
)

// Edge is a compacted directed edge between two junction (or endpoint)
// vertices. Coordinates holds the ordered intermediate coordinates between
// the edge's source and target, excluding the source and including the
// target as the last element — concatenating coordinate(u) with Coordinates
// reconstructs the exact underlying polyline.
type Edge struct {
	Weight      float64
	Coordinates []geo.Coordinate
	Payload     any
	HasPayload  bool
}

// Graph is the compacted, vertex-key-addressed adjacency structure. It is
// intentionally map-based and mutable (unlike topology.Graph's frozen CSR
// form) because phantom injection must insert and remove entries within
// the lifetime of a single search.
type Graph struct {
	// Adjacency maps source key -> target key -> Edge.
	Adjacency map[string]map[string]Edge
	// Coordinates maps vertex key -> its original coordinate.
	Coordinates map[string]geo.Coordinate
}

// NewGraph returns an empty compacted graph.
func NewGraph() *Graph {
	return &Graph{
		Adjacency:   make(map[string]map[string]Edge),
		Coordinates: make(map[string]geo.Coordinate),
	}
}

// HasVertex reports whether key is a compacted vertex (junction, dead-end,
// endpoint, or a currently-injected phantom).
func (g *Graph) HasVertex(key string) bool {
	_, ok := g.Adjacency[key]
	return ok
}

// Neighbors returns the outgoing edges from key.
func (g *Graph) Neighbors(key string) map[string]Edge {
	return g.Adjacency[key]
}

// AddEdge inserts or overwrites a directed edge u->v. Exported so
// pkg/phantom can graft a phantom vertex's edges without reaching into
// package internals.
func (g *Graph) AddEdge(u, v string, e Edge) {
	g.addEdge(u, v, e)
}

func (g *Graph) addEdge(u, v string, e Edge) {
	if g.Adjacency[u] == nil {
		g.Adjacency[u] = make(map[string]Edge)
	}
	g.Adjacency[u][v] = e
	if g.Adjacency[v] == nil {
		g.Adjacency[v] = make(map[string]Edge)
	}
}

// RemoveEdge deletes the directed edge u->v, if present.
func (g *Graph) RemoveEdge(u, v string) {
	if m, ok := g.Adjacency[u]; ok {
		delete(m, v)
	}
}

// RemoveVertex deletes a vertex's own adjacency entry (its outgoing edges)
// and its coordinate. It does not touch other vertices' edges into it —
// callers (phantom removal) must remove those separately.
func (g *Graph) RemoveVertex(key string) {
	delete(g.Adjacency, key)
	delete(g.Coordinates, key)
}

// Classifier precomputes, once per raw graph, which vertices are
// compactable (undirected degree exactly 2) and their undirected
// neighbors. Build uses it to find junctions; pkg/phantom retains one per
// facade so that grafting a mid-chain search endpoint doesn't repeat the
// O(V+E) classification pass on every query.
type Classifier struct {
	raw         *topology.Graph
	neighbors   [][]int32
	compactable []bool
	reducer     topology.ReducerFunc
}

// NewClassifier computes undirected degree for every vertex of raw in a
// single linear pass, grounded on the teacher's connected-component pass
// style (pkg/graph/component.go).
func NewClassifier(raw *topology.Graph, reducer topology.ReducerFunc) *Classifier {
	sets := make([]map[int32]struct{}, raw.NumVertices)
	for v := range sets {
		sets[v] = make(map[int32]struct{})
	}
	for v := int32(0); v < raw.NumVertices; v++ {
		start, end := raw.EdgesFrom(v)
		for e := start; e < end; e++ {
			to := raw.Head[e]
			sets[v][to] = struct{}{}
			sets[to][v] = struct{}{}
		}
	}
	neighbors := make([][]int32, raw.NumVertices)
	compactable := make([]bool, raw.NumVertices)
	for v, set := range sets {
		for n := range set {
			neighbors[v] = append(neighbors[v], n)
		}
		compactable[v] = len(set) == 2
	}
	return &Classifier{raw: raw, neighbors: neighbors, compactable: compactable, reducer: reducer}
}

// IsCompactable reports whether v has undirected degree exactly 2.
func (c *Classifier) IsCompactable(v int32) bool { return c.compactable[v] }

// Neighbors returns v's distinct undirected neighbors.
func (c *Classifier) Neighbors(v int32) []int32 { return c.neighbors[v] }

// other returns v's undirected neighbor other than from. v must have
// exactly two distinct neighbors.
func (c *Classifier) other(v, from int32) (int32, bool) {
	for _, n := range c.neighbors[v] {
		if n != from {
			return n, true
		}
	}
	return 0, false
}

// PhysicalChain returns the sequence of raw vertex indices starting at the
// immediate neighbor `first` of `from` and continuing through compactable
// vertices until a non-compactable (junction) vertex is reached, or `from`
// itself is reached again (a self-loop chain). Direction of the underlying
// raw edges plays no part here — §4.4 needs this physical shape so it can
// separately probe forward and backward directed traversability along it.
func (c *Classifier) PhysicalChain(from, first int32) []int32 {
	seq := []int32{first}
	prev, cur := from, first
	for c.compactable[cur] && cur != from {
		next, ok := c.other(cur, prev)
		if !ok {
			break
		}
		seq = append(seq, next)
		prev, cur = cur, next
	}
	return seq
}

// DirectedChain walks full[0]->full[1]->...->full[n-1] and accumulates
// weight and payload, provided every hop has a directed raw edge in that
// order; ok is false the moment a hop is missing (a one-way segment
// blocking that direction of the chain).
func (c *Classifier) DirectedChain(full []int32) (weight float64, coords []geo.Coordinate, payload any, hasPayload bool, ok bool) {
	for i := 0; i+1 < len(full); i++ {
		w, pl, has, exists := edgeData(c.raw, full[i], full[i+1])
		if !exists {
			return 0, nil, nil, false, false
		}
		weight += w
		coords = append(coords, c.raw.Coordinates[full[i+1]])
		payload, hasPayload = foldPayload(c.reducer, payload, hasPayload, pl, has)
	}
	return weight, coords, payload, hasPayload, true
}

// edgeData looks up the directed raw edge u->v and returns its weight and
// payload, or ok=false if no such edge exists.
func edgeData(raw *topology.Graph, u, v int32) (weight float64, payload any, hasPayload bool, ok bool) {
	start, end := raw.EdgesFrom(u)
	for e := start; e < end; e++ {
		if raw.Head[e] == v {
			if raw.Payload != nil {
				return raw.Weight[e], raw.Payload[e], true, true
			}
			return raw.Weight[e], nil, false, true
		}
	}
	return 0, nil, false, false
}

// foldPayload combines an already-accumulated (acc,hasAcc) payload with a
// freshly read per-raw-edge (next,hasNext) payload, using reducer when both
// are present. With no reducer configured, payload tracking is absent
// entirely (the sentinel described in spec.md §4.3).
func foldPayload(reducer topology.ReducerFunc, acc any, hasAcc bool, next any, hasNext bool) (any, bool) {
	if reducer == nil || !hasNext {
		return acc, hasAcc
	}
	if !hasAcc {
		return next, true
	}
	return reducer(acc, next), true
}

type edgeID struct{ from, to int32 }

// Identity returns a compacted graph with exactly the raw graph's vertex
// and edge set, performing no chain collapsing at all. Used when a caller
// sets pathfinder's Options.DisableCompaction: searches then run directly against
// the uncompacted topology, with every raw edge already a one-hop
// "compacted" edge.
func Identity(raw *topology.Graph) *Graph {
	g := NewGraph()
	for v := int32(0); v < raw.NumVertices; v++ {
		start, end := raw.EdgesFrom(v)
		for e := start; e < end; e++ {
			to := raw.Head[e]
			var payload any
			if raw.Payload != nil {
				payload = raw.Payload[e]
			}
			g.addEdge(raw.Keys[v], raw.Keys[to], Edge{
				Weight:      raw.Weight[e],
				Coordinates: []geo.Coordinate{raw.Coordinates[to]},
				Payload:     payload,
				HasPayload:  raw.HasPayload,
			})
		}
	}
	populateCoordinates(g, raw)
	return g
}

// Build collapses every degree-two vertex of raw into a compacted Graph.
// reducer, if non-nil, folds per-raw-edge payloads along a compacted
// chain; it must be the same reducer the caller passed to topology.Build
// as EdgeDataReducer, since it operates on whatever payload type that
// seed/reducer pair produces.
func Build(raw *topology.Graph, reducer topology.ReducerFunc, progress topology.ProgressFunc) *Graph {
	c := NewClassifier(raw, reducer)

	g := NewGraph()

	var junctions []int32
	for v := int32(0); v < raw.NumVertices; v++ {
		if !c.compactable[v] {
			junctions = append(junctions, v)
		}
	}

	visited := make(map[edgeID]bool)

	emit := func(from, firstHop int32) {
		ek := edgeID{from, firstHop}
		if visited[ek] {
			return
		}
		visited[ek] = true

		seq := c.PhysicalChain(from, firstHop)
		full := append([]int32{from}, seq...)
		w, coords, payload, hasPayload, ok := c.DirectedChain(full)
		if !ok {
			return
		}
		term := seq[len(seq)-1]
		g.addEdge(raw.Keys[from], raw.Keys[term], Edge{
			Weight:      w,
			Coordinates: coords,
			Payload:     payload,
			HasPayload:  hasPayload,
		})
	}

	total := len(junctions)
	for i, j := range junctions {
		start, end := raw.EdgesFrom(j)
		for e := start; e < end; e++ {
			emit(j, raw.Head[e])
		}
		if progress != nil {
			progress("compact", i+1, total)
		}
	}

	// No junctions at all: every vertex has undirected degree 2, so the
	// network is one or more standalone closed loops with no dead end or
	// fork anywhere. Such loops are left uncompacted: every vertex stays a
	// compacted vertex, joined to its neighbors by one-hop edges, so a
	// search can start and end anywhere on the loop.
	if len(junctions) == 0 {
		for v := int32(0); v < raw.NumVertices; v++ {
			start, end := raw.EdgesFrom(v)
			for e := start; e < end; e++ {
				to := raw.Head[e]
				w, coords, payload, hasPayload, ok := c.DirectedChain([]int32{v, to})
				if !ok {
					continue
				}
				g.addEdge(raw.Keys[v], raw.Keys[to], Edge{
					Weight:      w,
					Coordinates: coords,
					Payload:     payload,
					HasPayload:  hasPayload,
				})
			}
		}
	}

	populateCoordinates(g, raw)
	return g
}

// populateCoordinates fills g.Coordinates for exactly the vertices that
// ended up in g.Adjacency (the compacted vertex set: junctions, dead ends,
// and endpoints) — never for a raw vertex interior to a collapsed chain.
// Populating every raw vertex's coordinate here, unconditionally, would
// give pkg/phantom no way to tell whether a Coordinates[key] entry it
// deletes on release pre-existed (a real compacted vertex) or was its own
// graft, breaking the "bit-identical after release" guarantee for any
// phantom endpoint that also happens to be a raw vertex (spec.md §4.4).
func populateCoordinates(g *Graph, raw *topology.Graph) {
	for key := range g.Adjacency {
		if idx, ok := raw.KeyToIndex[key]; ok {
			g.Coordinates[key] = raw.Coordinates[idx]
		}
	}
}
