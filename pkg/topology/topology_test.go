package topology

import (
	"testing"

	"github.com/azybler/geopath/pkg/geo"
)

func line(coords ...float64) []geo.Coordinate {
	out := make([]geo.Coordinate, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, geo.Coordinate{coords[i], coords[i+1]})
	}
	return out
}

func TestBuildSimpleNetwork(t *testing.T) {
	net := Network{Features: []Feature{
		{Geometry: line(0, 0, 1, 0)},
		{Geometry: line(1, 0, 1, 1)},
	}}

	g := Build(net, Options{})

	if g.NumVertices != 3 {
		t.Fatalf("NumVertices = %d, want 3", g.NumVertices)
	}
	// Default weight is bidirectional, so every vertex on this open path
	// has at least one outgoing edge, and the middle vertex has two.
	var totalEdges int32
	for v := int32(0); v < g.NumVertices; v++ {
		s, e := g.EdgesFrom(v)
		totalEdges += e - s
	}
	if totalEdges != 4 {
		t.Fatalf("total directed edges = %d, want 4", totalEdges)
	}
}

func TestBuildSkipsZeroLengthSegments(t *testing.T) {
	net := Network{Features: []Feature{
		{Geometry: line(0, 0, 0, 0, 1, 0)},
	}}
	g := Build(net, Options{})
	if g.NumVertices != 2 {
		t.Fatalf("NumVertices = %d, want 2 (zero-length segment skipped)", g.NumVertices)
	}
}

func TestBuildOneWay(t *testing.T) {
	weightFn := func(a, b geo.Coordinate, _ map[string]any) Weight {
		return Weight{Forward: geo.GreatCircleKM(a, b), Backward: 0}
	}
	net := Network{Features: []Feature{
		{Geometry: line(0, 0, 1, 0)},
	}}
	g := Build(net, Options{Weight: weightFn})

	va := g.KeyToIndex[geo.DefaultKey(geo.Round(geo.Coordinate{0, 0}, 1e-5))]
	vb := g.KeyToIndex[geo.DefaultKey(geo.Round(geo.Coordinate{1, 0}, 1e-5))]

	s, e := g.EdgesFrom(va)
	if e-s != 1 || g.Head[s] != vb {
		t.Fatalf("expected a single forward edge a->b")
	}
	s, e = g.EdgesFrom(vb)
	if e != s {
		t.Fatalf("expected no backward edge b->a, found %d", e-s)
	}
}

func TestBuildMinWeightOnDuplicateEdge(t *testing.T) {
	// Two overlapping features contribute the same directed edge with
	// different weights; the minimum must win.
	net := Network{Features: []Feature{
		{Geometry: []geo.Coordinate{{0, 0}, {1, 0}}, Properties: map[string]any{"w": 10.0}},
		{Geometry: []geo.Coordinate{{0, 0}, {1, 0}}, Properties: map[string]any{"w": 2.0}},
	}}
	weightFn := func(_, _ geo.Coordinate, props map[string]any) Weight {
		w := props["w"].(float64)
		return Weight{Forward: w, Backward: w}
	}
	g := Build(net, Options{Weight: weightFn})

	va := g.KeyToIndex[geo.DefaultKey(geo.Round(geo.Coordinate{0, 0}, 1e-5))]
	s, e := g.EdgesFrom(va)
	if e-s != 1 {
		t.Fatalf("expected edges to be deduplicated, got %d", e-s)
	}
	if g.Weight[s] != 2.0 {
		t.Fatalf("expected minimum weight 2.0, got %f", g.Weight[s])
	}
}

func TestBuildPayloadReduction(t *testing.T) {
	net := Network{Features: []Feature{
		{Geometry: []geo.Coordinate{{0, 0}, {1, 0}}, Properties: map[string]any{"name": "A"}},
		{Geometry: []geo.Coordinate{{0, 0}, {1, 0}}, Properties: map[string]any{"name": "B"}},
	}}
	g := Build(net, Options{
		EdgeDataSeed: func(props map[string]any) any {
			return []string{props["name"].(string)}
		},
		EdgeDataReducer: func(acc, next any) any {
			return append(acc.([]string), next.([]string)...)
		},
	})

	if !g.HasPayload {
		t.Fatalf("expected HasPayload=true")
	}
	va := g.KeyToIndex[geo.DefaultKey(geo.Round(geo.Coordinate{0, 0}, 1e-5))]
	s, _ := g.EdgesFrom(va)
	names := g.Payload[s].([]string)
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("unexpected reduced payload: %v", names)
	}
}

func TestDegrees(t *testing.T) {
	net := Network{Features: []Feature{
		{Geometry: line(0, 0, 1, 0)},
		{Geometry: line(1, 0, 1, 1)},
		{Geometry: line(1, 0, 2, 0)},
	}}
	g := Build(net, Options{})
	degrees := g.Degrees()

	junction := g.KeyToIndex[geo.DefaultKey(geo.Round(geo.Coordinate{1, 0}, 1e-5))]
	if degrees[junction] != 3 {
		t.Fatalf("junction degree = %d, want 3", degrees[junction])
	}
}
