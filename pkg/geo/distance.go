package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const earthRadiusMeters = 6_371_000.0

// GreatCircleKM returns the great-circle distance between two coordinates
// in kilometers, using orb's haversine distance (orbgeo.DistanceHaversine).
// This is the default A* heuristic distance and the default helper offered
// to callers who want it in their own weight functions.
func GreatCircleKM(a, b Coordinate) float64 {
	pa := orb.Point{a.Lon(), a.Lat()}
	pb := orb.Point{b.Lon(), b.Lat()}
	return orbgeo.DistanceHaversine(pa, pb) / 1000.0
}

// HaversineKM is a direct, dependency-free port of the distance formula the
// teacher repository used before great-circle distance was delegated to
// orb/geo. It uses the same haversine formula as GreatCircleKM, but with a
// 6,371 km earth radius where orb uses 6,378.137 km, so its results are
// about 0.1% smaller. It is kept for callers porting code that called the
// original function by name.
func HaversineKM(a, b Coordinate) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c / 1000.0
}

// PointToSegmentDist computes the perpendicular distance in meters from
// point p to segment ab, and the projection ratio along ab clamped to
// [0,1]. No other package of this module calls it.
func PointToSegmentDist(p, a, b Coordinate) (dist float64, ratio float64) {
	cosLat := math.Cos((a.Lat() + b.Lat()) / 2 * math.Pi / 180)

	ax, ay := a.Lon()*cosLat, a.Lat()
	bx, by := b.Lon()*cosLat, b.Lat()
	px, py := p.Lon()*cosLat, p.Lat()

	if a.Lat() == b.Lat() && a.Lon() == b.Lon() {
		return HaversineKM(p, a) * 1000, 0
	}

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return HaversineKM(p, a) * 1000, 0
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Coordinate{a.Lon() + t*(b.Lon()-a.Lon()), a.Lat() + t*(b.Lat()-a.Lat())}
	return HaversineKM(p, closest) * 1000, t
}
