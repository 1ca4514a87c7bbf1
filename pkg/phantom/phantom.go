// Package phantom temporarily grafts a search endpoint that lies mid-chain
// in a compacted graph into that graph's vertex set, for the duration of a
// single search, then removes it deterministically.
//
// The scoped-acquisition shape (Inject returns a release closure the
// caller defers) is grounded on the teacher's qsPool handling in
// pkg/routing/engine.go, where every query-state checkout is matched with
// `defer qs.Reset(); e.qsPool.Put(qs)` on every exit path, including an
// error return. Here the "pooled resource" is not a struct but a scoped
// mutation of the shared compacted graph.
package phantom

import (
	"github.com/azybler/geopath/pkg/compact"
	"github.com/azybler/geopath/pkg/topology"
)

// Injector grafts and removes phantom vertices against a single compacted
// graph. A facade owns exactly one Injector per compacted graph instance;
// it is not safe to use concurrently from two goroutines against the same
// graph (the non-reentrancy rule of spec §5 — callers needing concurrent
// searches must use disjoint graph copies, as the worker pool does).
type Injector struct {
	raw        *topology.Graph
	classifier *compact.Classifier
	graph      *compact.Graph
}

// New builds an Injector bound to raw (for chain geometry/weight lookups),
// classifier (the raw graph's precomputed compactability, shared with the
// compactor that built graph), and graph (the live compacted graph to
// mutate).
func New(raw *topology.Graph, classifier *compact.Classifier, graph *compact.Graph) *Injector {
	return &Injector{raw: raw, classifier: classifier, graph: graph}
}

// Inject grafts key into the compacted graph as a phantom vertex if it is
// not already a compacted vertex. It always returns a non-nil release
// function; callers must defer it on every exit path of the search,
// including an error return, so that a crashed or guard-rejected search
// still leaves the compacted graph bit-identical to its pre-injection
// state.
func (inj *Injector) Inject(key string) (release func(), err error) {
	noop := func() {}

	if inj.graph.HasVertex(key) {
		return noop, nil
	}
	idx, ok := inj.raw.KeyToIndex[key]
	if !ok {
		// Not a vertex of the network at all. The facade turns this into
		// a "no path" result rather than an error (spec.md §7); phantom
		// injection itself has nothing to graft.
		return noop, nil
	}

	inj.graph.Coordinates[key] = inj.raw.Coordinates[idx]
	grafted := make(map[string]bool)

	for _, n := range inj.classifier.Neighbors(idx) {
		seq := inj.classifier.PhysicalChain(idx, n)
		full := append([]int32{idx}, seq...)
		term := seq[len(seq)-1]
		termKey := inj.raw.Keys[term]

		if w, coords, payload, hasPayload, ok := inj.classifier.DirectedChain(full); ok {
			inj.graph.AddEdge(key, termKey, compact.Edge{
				Weight: w, Coordinates: coords, Payload: payload, HasPayload: hasPayload,
			})
			grafted[termKey] = true
		}
		if w, coords, payload, hasPayload, ok := inj.classifier.DirectedChain(reversed(full)); ok {
			inj.graph.AddEdge(termKey, key, compact.Edge{
				Weight: w, Coordinates: coords, Payload: payload, HasPayload: hasPayload,
			})
			grafted[termKey] = true
		}
	}

	release = func() {
		for termKey := range grafted {
			inj.graph.RemoveEdge(termKey, key)
		}
		inj.graph.RemoveVertex(key)
	}
	return release, nil
}

func reversed(s []int32) []int32 {
	out := make([]int32, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
