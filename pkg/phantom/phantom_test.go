package phantom

import (
	"reflect"
	"testing"

	"github.com/azybler/geopath/pkg/compact"
	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/topology"
)

func line(coords ...float64) []geo.Coordinate {
	out := make([]geo.Coordinate, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, geo.Coordinate{coords[i], coords[i+1]})
	}
	return out
}

func key(c geo.Coordinate) string {
	return geo.DefaultKey(geo.Round(c, 1e-5))
}

func buildNetwork(t *testing.T, weightFn topology.WeightFunc) (*topology.Graph, *compact.Classifier, *compact.Graph) {
	t.Helper()
	net := topology.Network{Features: []topology.Feature{
		{Geometry: line(0, 0, 1, 0, 2, 0)},
		{Geometry: line(2, 0, 3, 0)},
		{Geometry: line(2, 0, 2, 1)}, // spur, makes (2,0) a junction
	}}
	opts := topology.Options{}
	if weightFn != nil {
		opts.Weight = weightFn
	}
	raw := topology.Build(net, opts)
	classifier := compact.NewClassifier(raw, nil)
	g := compact.Build(raw, nil, nil)
	return raw, classifier, g
}

func TestInjectMidChainVertexBothDirections(t *testing.T) {
	raw, classifier, g := buildNetwork(t, nil)
	inj := New(raw, classifier, g)

	mid := key(geo.Coordinate{1, 0})
	a := key(geo.Coordinate{0, 0})
	c := key(geo.Coordinate{2, 0})

	if g.HasVertex(mid) {
		t.Fatalf("precondition: mid-chain vertex must not be compacted yet")
	}

	release, err := inj.Inject(mid)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !g.HasVertex(mid) {
		t.Fatalf("expected phantom vertex present after Inject")
	}
	if _, ok := g.Neighbors(mid)[a]; !ok {
		t.Fatalf("expected phantom->A edge")
	}
	if _, ok := g.Neighbors(mid)[c]; !ok {
		t.Fatalf("expected phantom->C edge")
	}
	if _, ok := g.Neighbors(a)[mid]; !ok {
		t.Fatalf("expected A->phantom edge (bidirectional default weight)")
	}
	if _, ok := g.Neighbors(c)[mid]; !ok {
		t.Fatalf("expected C->phantom edge (bidirectional default weight)")
	}

	release()
	if g.HasVertex(mid) {
		t.Fatalf("expected phantom vertex removed after release")
	}
	if _, ok := g.Neighbors(a)[mid]; ok {
		t.Fatalf("expected A->phantom edge removed after release")
	}
	if _, ok := g.Neighbors(c)[mid]; ok {
		t.Fatalf("expected C->phantom edge removed after release")
	}
}

func TestInjectAlreadyCompactedVertexIsNoop(t *testing.T) {
	raw, classifier, g := buildNetwork(t, nil)
	inj := New(raw, classifier, g)

	c := key(geo.Coordinate{2, 0})
	before := len(g.Adjacency)

	release, err := inj.Inject(c)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	release()

	if len(g.Adjacency) != before {
		t.Fatalf("expected no structural change injecting an already-compacted vertex")
	}
}

func TestInjectUnknownKeyIsNoop(t *testing.T) {
	raw, classifier, g := buildNetwork(t, nil)
	inj := New(raw, classifier, g)

	release, err := inj.Inject("999,999")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	release()
	if g.HasVertex("999,999") {
		t.Fatalf("unknown key must not be grafted")
	}
}

func TestInjectOneWayChainOnlyForwardDirection(t *testing.T) {
	weightFn := func(a, b geo.Coordinate, _ map[string]any) topology.Weight {
		return topology.Weight{Forward: geo.GreatCircleKM(a, b), Backward: 0}
	}
	raw, classifier, g := buildNetwork(t, weightFn)
	inj := New(raw, classifier, g)

	mid := key(geo.Coordinate{1, 0})
	a := key(geo.Coordinate{0, 0})
	c := key(geo.Coordinate{2, 0})

	release, err := inj.Inject(mid)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	defer release()

	if _, ok := g.Neighbors(a)[mid]; !ok {
		t.Fatalf("expected forward A->phantom edge")
	}
	if _, ok := g.Neighbors(mid)[a]; ok {
		t.Fatalf("one-way network must not produce a reverse phantom->A edge")
	}
	if _, ok := g.Neighbors(mid)[c]; !ok {
		t.Fatalf("expected forward phantom->C edge")
	}
}

func TestReleaseRestoresGraphExactly(t *testing.T) {
	raw, classifier, g := buildNetwork(t, nil)
	inj := New(raw, classifier, g)

	adjBefore, coordsBefore := snapshotGraph(g)

	mid := key(geo.Coordinate{1, 0})
	release, err := inj.Inject(mid)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	release()

	adjAfter, coordsAfter := snapshotGraph(g)
	if !reflect.DeepEqual(adjBefore, adjAfter) {
		t.Fatalf("adjacency not bit-identical after inject+release:\nbefore=%#v\nafter=%#v", adjBefore, adjAfter)
	}
	if !reflect.DeepEqual(coordsBefore, coordsAfter) {
		t.Fatalf("coordinates not bit-identical after inject+release:\nbefore=%#v\nafter=%#v", coordsBefore, coordsAfter)
	}
}

// TestReleaseDoesNotLeakNonJunctionCoordinate guards the specific regression
// spec.md §4.4 warns about: (1,0) here is a raw vertex of undirected degree
// 2, so it is not a junction and carries no Coordinates entry in the
// compacted graph until something phantom-injects it. Injecting it as a
// search endpoint and releasing it must leave it with no entry at all, not
// merely the same value it had before (it never had one).
func TestReleaseDoesNotLeakNonJunctionCoordinate(t *testing.T) {
	raw, classifier, g := buildNetwork(t, nil)
	inj := New(raw, classifier, g)

	a := key(geo.Coordinate{1, 0})
	if _, ok := g.Coordinates[a]; ok {
		t.Fatalf("precondition: (1,0) has undirected degree 2 and must not be a compacted vertex yet")
	}

	release, err := inj.Inject(a)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if _, ok := g.Coordinates[a]; !ok {
		t.Fatalf("expected phantom's own coordinate present while injected")
	}
	release()

	if _, ok := g.Coordinates[a]; ok {
		t.Fatalf("expected (1,0)'s coordinate entry removed after release, as it had none before injection")
	}
}

func snapshotGraph(g *compact.Graph) (map[string]map[string]compact.Edge, map[string]geo.Coordinate) {
	adj := make(map[string]map[string]compact.Edge, len(g.Adjacency))
	for k, m := range g.Adjacency {
		inner := make(map[string]compact.Edge, len(m))
		for k2, e := range m {
			inner[k2] = e
		}
		adj[k] = inner
	}
	coords := make(map[string]geo.Coordinate, len(g.Coordinates))
	for k, c := range g.Coordinates {
		coords[k] = c.Clone()
	}
	return adj, coords
}
