// Command preprocess ingests an OSM PBF extract or a GeoJSON
// FeatureCollection, builds a pathfinder.Finder from it, runs a sample
// query, and reports timings. It is a smoke-test tool for a network file,
// not a persistence step — the library keeps no on-disk graph format (see
// DESIGN.md); cmd/pathserver re-ingests the same source file at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/geojsonio"
	"github.com/azybler/geopath/pkg/osmingest"
	"github.com/azybler/geopath/pkg/pathfinder"
)

func main() {
	input := flag.String("input", "", "Path to a .osm.pbf or .geojson network file")
	format := flag.String("format", "", "Input format: osm or geojson (default: inferred from --input's extension)")
	bbox := flag.String("bbox", "", "OSM bounding box filter: minLat,minLng,maxLat,maxLng")
	fromLat := flag.Float64("from-lat", 0, "Sample query start latitude")
	fromLng := flag.Float64("from-lng", 0, "Sample query start longitude")
	toLat := flag.Float64("to-lat", 0, "Sample query end latitude")
	toLng := flag.Float64("to-lng", 0, "Sample query end longitude")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf|file.geojson> [--format osm|geojson] [--bbox minLat,minLng,maxLat,maxLng] [--from-lat .. --from-lng .. --to-lat .. --to-lng ..]")
		os.Exit(1)
	}

	net, err := ingest(*input, *format, *bbox)
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}
	log.Printf("Ingested %d features", len(net.Features))

	start := time.Now()
	pre := pathfinder.Preprocess(net, pathfinder.Options{
		Weight: osmingest.DefaultWeight,
		Progress: func(phase string, done, total int) {
			if done == total {
				log.Printf("%s: %d/%d", phase, done, total)
			}
		},
	})
	log.Printf("Preprocessed in %s: %d raw vertices, %d compact vertices",
		time.Since(start).Round(time.Millisecond), pre.Raw.NumVertices, len(pre.Graph.Adjacency))

	finder := pathfinder.NewPreprocessed(pre, pathfinder.Options{})
	defer finder.Close()

	if *fromLat == 0 && *fromLng == 0 && *toLat == 0 && *toLng == 0 {
		return
	}

	queryStart := time.Now()
	path, ok, err := finder.FindPath(
		geo.Coordinate{*fromLng, *fromLat},
		geo.Coordinate{*toLng, *toLat},
		pathfinder.SearchOptions{},
	)
	elapsed := time.Since(queryStart)
	if err != nil {
		log.Fatalf("sample query failed: %v", err)
	}
	if !ok {
		log.Printf("sample query: no path found in %s", elapsed.Round(time.Microsecond))
		return
	}
	log.Printf("sample query: %.3f km over %d points in %s", path.Weight, len(path.Geometry), elapsed.Round(time.Microsecond))
}

func ingest(path, format, bbox string) (pathfinder.Network, error) {
	if format == "" {
		if strings.HasSuffix(path, ".geojson") || strings.HasSuffix(path, ".json") {
			format = "geojson"
		} else {
			format = "osm"
		}
	}

	switch format {
	case "geojson":
		data, err := os.ReadFile(path)
		if err != nil {
			return pathfinder.Network{}, err
		}
		return geojsonio.Decode(data)
	case "osm":
		f, err := os.Open(path)
		if err != nil {
			return pathfinder.Network{}, err
		}
		defer f.Close()

		var opts osmingest.Options
		if bbox != "" {
			var minLat, minLng, maxLat, maxLng float64
			if _, err := fmt.Sscanf(bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
				return pathfinder.Network{}, fmt.Errorf("invalid bbox format (expected minLat,minLng,maxLat,maxLng): %w", err)
			}
			opts.BBox = osmingest.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		}
		return osmingest.Parse(context.Background(), f, opts)
	default:
		return pathfinder.Network{}, fmt.Errorf("unknown format %q", format)
	}
}
