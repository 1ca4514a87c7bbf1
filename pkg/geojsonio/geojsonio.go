// Package geojsonio adapts a GeoJSON FeatureCollection of LineString and
// MultiLineString geometry into a topology.Network, the other ingestion
// path alongside pkg/osmingest.
//
// orb.Point carries only longitude and latitude — github.com/paulmach/orb
// has no notion of a third coordinate — so geometry read through this
// package is always 2D. Callers who need elevation (topology.Network's
// Feature.Geometry supports a third component) must build the Network
// directly from their own source instead of through this adapter.
package geojsonio

import (
	"fmt"

	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/topology"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Decode parses a GeoJSON FeatureCollection document and returns a Network
// with one topology.Feature per LineString, and one topology.Feature per
// component line string of a MultiLineString (each inheriting the parent
// GeoJSON feature's properties). Any other geometry type is skipped.
func Decode(data []byte) (topology.Network, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return topology.Network{}, fmt.Errorf("geojsonio: %w", err)
	}
	return fromFeatureCollection(fc), nil
}

func fromFeatureCollection(fc *geojson.FeatureCollection) topology.Network {
	var features []topology.Feature
	for _, gf := range fc.Features {
		props := map[string]any(gf.Properties)
		switch g := gf.Geometry.(type) {
		case orb.LineString:
			if f, ok := lineStringFeature(g, props); ok {
				features = append(features, f)
			}
		case orb.MultiLineString:
			for _, ls := range g {
				if f, ok := lineStringFeature(ls, props); ok {
					features = append(features, f)
				}
			}
		}
	}
	return topology.Network{Features: features}
}

func lineStringFeature(ls orb.LineString, props map[string]any) (topology.Feature, bool) {
	if len(ls) < 2 {
		return topology.Feature{}, false
	}
	geom := make([]geo.Coordinate, len(ls))
	for i, p := range ls {
		geom[i] = geo.Coordinate{p[0], p[1]}
	}
	return topology.Feature{Geometry: geom, Properties: props}, true
}

// Encode renders a path (as produced by pkg/pathfinder's Path.Geometry) as a
// single-feature GeoJSON FeatureCollection LineString, the inverse direction
// of Decode. cmd/pathserver does not use it; its HTTP responses are built
// by pkg/api.
func Encode(coords []geo.Coordinate, properties map[string]any) []byte {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = orb.Point{c.Lon(), c.Lat()}
	}
	f := geojson.NewFeature(ls)
	for k, v := range properties {
		f.Properties[k] = v
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	out, _ := fc.MarshalJSON()
	return out
}
