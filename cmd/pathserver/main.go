// Command pathserver ingests an OSM PBF extract or GeoJSON network, builds a
// pathfinder.Finder, and exposes it over HTTP. It plays the role the
// teacher's cmd/server played over a graph.bin binary, except there is no
// binary: the network file itself is the only input, re-ingested on every
// start (see cmd/preprocess and DESIGN.md for why no persisted format
// exists).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/azybler/geopath/pkg/api"
	"github.com/azybler/geopath/pkg/geojsonio"
	"github.com/azybler/geopath/pkg/osmingest"
	"github.com/azybler/geopath/pkg/pathfinder"
)

func main() {
	input := flag.String("input", "", "Path to a .osm.pbf or .geojson network file")
	format := flag.String("format", "", "Input format: osm or geojson (default: inferred from --input's extension)")
	bbox := flag.String("bbox", "", "OSM bounding box filter: minLat,minLng,maxLat,maxLng")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	workers := flag.Int("workers", runtime.NumCPU(), "Worker pool size for concurrent route queries (0 disables the pool)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: pathserver --input <file.osm.pbf|file.geojson> [--port 8080] [--workers N] [--bbox minLat,minLng,maxLat,maxLng] [--cors-origin origin]")
		os.Exit(1)
	}

	start := time.Now()

	log.Printf("Ingesting %s...", *input)
	net, err := ingest(*input, *format, *bbox)
	if err != nil {
		log.Fatalf("Failed to ingest network: %v", err)
	}
	log.Printf("Ingested %d features", len(net.Features))

	log.Println("Preprocessing...")
	pre := pathfinder.Preprocess(net, pathfinder.Options{Weight: osmingest.DefaultWeight})
	log.Printf("Preprocessed: %d raw vertices, %d compact vertices", pre.Raw.NumVertices, len(pre.Graph.Adjacency))

	finder := pathfinder.NewPreprocessed(pre, pathfinder.Options{
		Weight: osmingest.DefaultWeight,
		Worker: pathfinder.WorkerOptions{Enabled: *workers > 0, PoolSize: *workers},
	})
	defer finder.Close()

	// Reclaim memory from init-time temporaries. Without this, Go's heap
	// retains peak RSS from index construction.
	runtime.GC()
	debug.FreeOSMemory()

	log.Printf("Ready in %s", time.Since(start).Round(time.Millisecond))

	numCompactEdges := 0
	for _, edges := range pre.Graph.Adjacency {
		numCompactEdges += len(edges)
	}
	stats := api.StatsResponse{
		NumRawVertices:     int(pre.Raw.NumVertices),
		NumCompactVertices: len(pre.Graph.Adjacency),
		NumCompactEdges:    numCompactEdges,
	}

	addr := fmt.Sprintf(":%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	handlers := api.NewHandlers(finder, stats)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
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
