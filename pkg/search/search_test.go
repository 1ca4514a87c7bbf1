package search

import (
	"errors"
	"math"
	"testing"

	"github.com/azybler/geopath/pkg/compact"
	"github.com/azybler/geopath/pkg/geo"
)

func graphFromEdges(coords map[string]geo.Coordinate, edges map[string]map[string]float64) *compact.Graph {
	g := compact.NewGraph()
	for k, c := range coords {
		g.Coordinates[k] = c
	}
	for u, outs := range edges {
		for v, w := range outs {
			g.AddEdge(u, v, compact.Edge{Weight: w})
		}
	}
	return g
}

func TestDijkstraFindsShortestPath(t *testing.T) {
	g := graphFromEdges(
		map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}, "c": {2, 0}, "d": {0, 1}},
		map[string]map[string]float64{
			"a": {"b": 1, "d": 1},
			"b": {"c": 1},
			"d": {"c": 10},
		},
	)
	res, ok, err := Dijkstra(g, "a", "c", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a path")
	}
	if res.Weight != 2 {
		t.Fatalf("weight = %f, want 2", res.Weight)
	}
	want := []string{"a", "b", "c"}
	if len(res.Path) != len(want) {
		t.Fatalf("path = %v, want %v", res.Path, want)
	}
	for i := range want {
		if res.Path[i] != want[i] {
			t.Fatalf("path = %v, want %v", res.Path, want)
		}
	}
}

func TestDijkstraNoPath(t *testing.T) {
	g := graphFromEdges(
		map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}},
		map[string]map[string]float64{},
	)
	_, ok, err := Dijkstra(g, "a", "b", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no path")
	}
}

func TestAStarMatchesDijkstraWeight(t *testing.T) {
	coords := map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}, "c": {2, 0}, "d": {0, 1}}
	edges := map[string]map[string]float64{
		"a": {"b": 1, "d": 1},
		"b": {"c": 1},
		"d": {"c": 10},
	}
	g := graphFromEdges(coords, edges)

	dRes, dOk, _ := Dijkstra(g, "a", "c", Options{})
	aRes, aOk, _ := AStar(g, "a", "c", Options{Coordinates: coords})

	if !dOk || !aOk {
		t.Fatalf("expected both searches to find a path")
	}
	if math.Abs(dRes.Weight-aRes.Weight) > 1e-9 {
		t.Fatalf("Dijkstra weight %f != A* weight %f", dRes.Weight, aRes.Weight)
	}
}

func TestTransitionGuardBlocksEdge(t *testing.T) {
	g := graphFromEdges(
		map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}, "c": {2, 0}},
		map[string]map[string]float64{
			"a": {"b": 1},
			"b": {"c": 1},
		},
	)
	opts := Options{
		ContextBuilder: func(cost float64, path []string, from, to string) Context {
			return Context{Cost: cost, Path: path, From: from, To: to}
		},
		TransitionGuard: func(ctx Context) (bool, error) {
			return ctx.To != "b", nil
		},
	}
	_, ok, err := Dijkstra(g, "a", "c", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected guard to block the only path")
	}
}

func TestTransitionGuardErrorAbortsSearch(t *testing.T) {
	g := graphFromEdges(
		map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}},
		map[string]map[string]float64{"a": {"b": 1}},
	)
	boom := errors.New("boom")
	opts := Options{
		ContextBuilder: func(cost float64, path []string, from, to string) Context {
			return Context{Cost: cost, Path: path, From: from, To: to}
		},
		TransitionGuard: func(ctx Context) (bool, error) {
			return false, boom
		},
	}
	_, _, err := Dijkstra(g, "a", "b", opts)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestDirectionBiasChangesChosenPath(t *testing.T) {
	coords := map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}, "c": {2, 0}, "d": {0, 5}}
	g := graphFromEdges(coords, map[string]map[string]float64{
		"a": {"b": 1, "d": 1},
		"b": {"c": 1},
		"d": {"c": 1},
	})
	opts := Options{
		ContextBuilder: func(cost float64, path []string, from, to string) Context {
			return Context{Cost: cost, Path: path, From: from, To: to}
		},
		DirectionBias: func(ctx Context) float64 {
			if ctx.To == "b" {
				return 100
			}
			return 0
		},
	}
	res, ok, err := Dijkstra(g, "a", "c", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a path")
	}
	if res.Path[1] != "d" {
		t.Fatalf("expected biased search to avoid b, got path %v", res.Path)
	}
}

func TestOnNodeExpandedCalledOncePerAcceptedPop(t *testing.T) {
	g := graphFromEdges(
		map[string]geo.Coordinate{"a": {0, 0}, "b": {1, 0}, "c": {2, 0}},
		map[string]map[string]float64{
			"a": {"b": 1},
			"b": {"c": 1},
		},
	)
	var expanded []string
	opts := Options{
		OnNodeExpanded: func(key string, cost float64) {
			expanded = append(expanded, key)
		},
	}
	_, ok, _ := Dijkstra(g, "a", "c", opts)
	if !ok {
		t.Fatalf("expected a path")
	}
	seen := make(map[string]int)
	for _, k := range expanded {
		seen[k]++
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("node %q expanded %d times, want exactly once", k, n)
		}
	}
}
