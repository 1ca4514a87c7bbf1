// Package topology builds the raw vertex/edge graph from a collection of
// polyline features. It is the first stage of preprocessing: feature
// geometry in, a CSR-indexed directed graph out.
package topology

import (
	"sort"

	"github.com/azybler/geopath/pkg/geo"
)

// Feature is a single polyline with an opaque properties bag, the library's
// minimal ingestion contract. Producers (pkg/osmingest, pkg/geojsonio, or a
// caller's own code) convert their source format into Features.
type Feature struct {
	Geometry   []geo.Coordinate
	Properties map[string]any
}

// Network is a collection of polyline features sharing endpoints or
// intersections, the raw input to Build.
type Network struct {
	Features []Feature
}

// Weight is returned by a WeightFunc. Zero in a direction means that
// direction is impassable and no edge is inserted for it.
type Weight struct {
	Forward  float64
	Backward float64
}

// WeightFunc computes the traversal weight(s) of segment a->b given the
// owning feature's properties. A symmetric weight can be expressed by
// setting both Forward and Backward to the same positive value.
type WeightFunc func(a, b geo.Coordinate, props map[string]any) Weight

// DefaultWeight makes every segment bidirectionally traversable at its
// great-circle length in kilometers.
func DefaultWeight(a, b geo.Coordinate, _ map[string]any) Weight {
	d := geo.GreatCircleKM(a, b)
	return Weight{Forward: d, Backward: d}
}

// ReducerFunc folds a newly seeded payload into an already-accumulated one
// for a directed edge that has been written to more than once.
type ReducerFunc func(acc, next any) any

// SeedFunc produces the initial payload value for a directed edge's first
// write, from the owning feature's properties.
type SeedFunc func(props map[string]any) any

// ProgressFunc reports preprocessing progress. phase identifies the stage
// ("topology", "compact"); done/total are feature or vertex counts.
type ProgressFunc func(phase string, done, total int)

// Options configures Build.
type Options struct {
	Tolerance       float64
	Key             geo.KeyFunc
	Weight          WeightFunc
	EdgeDataSeed    SeedFunc
	EdgeDataReducer ReducerFunc
	Progress        ProgressFunc
}

// Graph is the raw vertex graph in CSR form. Vertex v's outgoing edges
// occupy FirstOut[v]..FirstOut[v+1] within Head/Weight/Payload. It is built
// once by Build and never mutated afterward — the compactor only reads it.
type Graph struct {
	NumVertices int32
	FirstOut    []int32
	Head        []int32
	Weight      []float64
	Payload     []any // nil unless EdgeDataReducer was configured
	HasPayload  bool

	Keys        []string        // vertex index -> key
	Coordinates []geo.Coordinate // vertex index -> original (un-rounded) coordinate
	KeyToIndex  map[string]int32
}

// EdgesFrom returns the [start,end) edge-index range for vertex v's
// outgoing edges.
func (g *Graph) EdgesFrom(v int32) (start, end int32) {
	return g.FirstOut[v], g.FirstOut[v+1]
}

// Degrees returns, for every vertex, the number of distinct neighbors
// reachable by either an outgoing or incoming edge (the undirected degree).
// Computed in a single linear pass. The compactor does not call it:
// compact.NewClassifier computes the same degree itself.
func (g *Graph) Degrees() []int {
	neighbors := make([]map[int32]struct{}, g.NumVertices)
	for v := range neighbors {
		neighbors[v] = make(map[int32]struct{})
	}
	for v := int32(0); v < g.NumVertices; v++ {
		start, end := g.EdgesFrom(v)
		for e := start; e < end; e++ {
			to := g.Head[e]
			neighbors[v][to] = struct{}{}
			neighbors[to][v] = struct{}{}
		}
	}
	degrees := make([]int, g.NumVertices)
	for v, set := range neighbors {
		degrees[v] = len(set)
	}
	return degrees
}

type edgeKey struct{ from, to int32 }

type accumEdge struct {
	weight     float64
	payload    any
	hasPayload bool
}

// Build turns a Network into a raw Graph per Options.
func Build(net Network, opts Options) *Graph {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-5
	}
	keyFn := opts.Key
	if keyFn == nil {
		keyFn = geo.DefaultKey
	}
	weightFn := opts.Weight
	if weightFn == nil {
		weightFn = DefaultWeight
	}

	nodeIndex := make(map[string]int32)
	var keys []string
	var coords []geo.Coordinate

	addVertex := func(key string, c geo.Coordinate) int32 {
		if idx, ok := nodeIndex[key]; ok {
			return idx
		}
		idx := int32(len(keys))
		nodeIndex[key] = idx
		keys = append(keys, key)
		coords = append(coords, c)
		return idx
	}

	accum := make(map[edgeKey]*accumEdge)

	insert := func(from, to int32, w float64, props map[string]any) {
		if w <= 0 {
			return
		}
		ek := edgeKey{from, to}
		e, ok := accum[ek]
		if !ok {
			e = &accumEdge{weight: w}
			if opts.EdgeDataSeed != nil {
				e.payload = opts.EdgeDataSeed(props)
				e.hasPayload = true
			}
			accum[ek] = e
			return
		}
		if w < e.weight {
			e.weight = w
		}
		if opts.EdgeDataReducer != nil {
			var seed any
			if opts.EdgeDataSeed != nil {
				seed = opts.EdgeDataSeed(props)
			}
			if e.hasPayload {
				e.payload = opts.EdgeDataReducer(e.payload, seed)
			} else {
				e.payload = seed
				e.hasPayload = true
			}
		}
	}

	total := len(net.Features)
	for i, feat := range net.Features {
		for j := 0; j+1 < len(feat.Geometry); j++ {
			a := feat.Geometry[j]
			b := feat.Geometry[j+1]

			ra := geo.Round(a, opts.Tolerance)
			rb := geo.Round(b, opts.Tolerance)
			ka := keyFn(ra)
			kb := keyFn(rb)
			if ka == kb {
				continue // zero-length segment after snapping
			}

			va := addVertex(ka, a)
			vb := addVertex(kb, b)

			w := weightFn(a, b, feat.Properties)
			if w.Forward > 0 {
				insert(va, vb, w.Forward, feat.Properties)
			}
			if w.Backward > 0 {
				insert(vb, va, w.Backward, feat.Properties)
			}
		}
		if opts.Progress != nil {
			opts.Progress("topology", i+1, total)
		}
	}

	numVertices := int32(len(keys))

	type flatEdge struct {
		from, to int32
		weight   float64
		payload  any
	}
	flat := make([]flatEdge, 0, len(accum))
	for ek, e := range accum {
		flat = append(flat, flatEdge{from: ek.from, to: ek.to, weight: e.weight, payload: e.payload})
	}
	sort.Slice(flat, func(i, j int) bool {
		if flat[i].from != flat[j].from {
			return flat[i].from < flat[j].from
		}
		return flat[i].to < flat[j].to
	})

	numEdges := int32(len(flat))
	firstOut := make([]int32, numVertices+1)
	head := make([]int32, numEdges)
	weight := make([]float64, numEdges)
	var payload []any
	if opts.EdgeDataReducer != nil {
		payload = make([]any, numEdges)
	}

	for _, e := range flat {
		firstOut[e.from+1]++
	}
	for i := int32(1); i <= numVertices; i++ {
		firstOut[i] += firstOut[i-1]
	}
	pos := make([]int32, numVertices)
	copy(pos, firstOut[:numVertices])
	for _, e := range flat {
		idx := pos[e.from]
		head[idx] = e.to
		weight[idx] = e.weight
		if payload != nil {
			payload[idx] = e.payload
		}
		pos[e.from]++
	}

	return &Graph{
		NumVertices: numVertices,
		FirstOut:    firstOut,
		Head:        head,
		Weight:      weight,
		Payload:     payload,
		HasPayload:  opts.EdgeDataReducer != nil,
		Keys:        keys,
		Coordinates: coords,
		KeyToIndex:  nodeIndex,
	}
}
