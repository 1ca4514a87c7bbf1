// Package osmingest turns an OSM PBF extract into a topology.Network: one
// Feature per drivable way, carrying the way's full node-coordinate sequence
// and the tags a WeightFunc needs to decide direction and cost.
//
// The two-pass scan (ways first to learn which nodes matter, then nodes) and
// the car-accessibility/direction-flag rules descend directly from the
// teacher's pkg/osm/parser.go. What changes is the shape of the output: the
// teacher flattened each way into individual from/to RawEdges in millimeters
// for its own CSR builder; this package instead keeps each way whole as a
// topology.Feature and lets topology.Build do the segment splitting,
// snapping, and edge accumulation.
package osmingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/topology"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}
	return true
}

// directionFlags returns (forward, backward) based on highway type and
// oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		// Time-dependent — skip entirely.
		forward = false
		backward = false
	}
	return forward, backward
}

// BBox is a geographic bounding box for filtering. A zero BBox disables
// filtering.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b BBox) isZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

func (b BBox) contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Options configures Parse.
type Options struct {
	BBox BBox
}

type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
	Tags     osm.Tags
}

// Parse reads an OSM PBF extract and returns a Network of one Feature per
// drivable way, plus every way's Forward/Backward reachability recorded in
// the feature's Properties under "oneway_forward"/"oneway_backward" so a
// WeightFunc (see DefaultWeight) can translate it into a topology.Weight.
// rs is scanned twice (ways, then nodes), so it must support seeking back to
// the start.
func Parse(ctx context.Context, rs io.ReadSeeker, opts Options) (topology.Network, error) {
	useBBox := !opts.BBox.isZero()

	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}
		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{NodeIDs: nodeIDs, Forward: fwd, Backward: bwd, Tags: w.Tags})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return topology.Network{}, fmt.Errorf("osmingest: pass 1 (ways): %w", err)
	}
	scanner.Close()
	log.Printf("osmingest: pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referencedNodes))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return topology.Network{}, fmt.Errorf("osmingest: seek for pass 2: %w", err)
	}

	nodeCoord := make(map[osm.NodeID]geo.Coordinate, len(referencedNodes))
	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeCoord[n.ID] = geo.Coordinate{n.Lon, n.Lat}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return topology.Network{}, fmt.Errorf("osmingest: pass 2 (nodes): %w", err)
	}
	scanner.Close()
	log.Printf("osmingest: pass 2 complete: %d node coordinates collected", len(nodeCoord))

	var features []topology.Feature
	var skipped int
	for _, w := range ways {
		geom := make([]geo.Coordinate, 0, len(w.NodeIDs))
		complete := true
		for _, id := range w.NodeIDs {
			c, ok := nodeCoord[id]
			if !ok {
				complete = false
				break
			}
			geom = append(geom, c)
		}
		if !complete {
			skipped++
			continue
		}
		if useBBox {
			inBox := true
			for _, c := range geom {
				if !opts.BBox.contains(c.Lat(), c.Lon()) {
					inBox = false
					break
				}
			}
			if !inBox {
				continue
			}
		}
		features = append(features, topology.Feature{
			Geometry: geom,
			Properties: map[string]any{
				"highway":         w.Tags.Find("highway"),
				"oneway_forward":  w.Forward,
				"oneway_backward": w.Backward,
			},
		})
	}
	if skipped > 0 {
		log.Printf("osmingest: skipped %d ways with missing node coordinates", skipped)
	}
	log.Printf("osmingest: built %d features", len(features))

	return topology.Network{Features: features}, nil
}

// DefaultWeight is a topology.WeightFunc grounded on the teacher's
// Haversine-distance edge weighting: great-circle length in kilometers,
// zeroed out in whichever direction the way's oneway_forward/oneway_backward
// properties (set by Parse) disallow.
func DefaultWeight(a, b geo.Coordinate, props map[string]any) topology.Weight {
	d := geo.GreatCircleKM(a, b)
	d = math.Max(d, 1e-9) // avoid a zero-weight edge collapsing to "always free"

	forward, _ := props["oneway_forward"].(bool)
	backward, _ := props["oneway_backward"].(bool)

	var w topology.Weight
	if forward {
		w.Forward = d
	}
	if backward {
		w.Backward = d
	}
	return w
}
