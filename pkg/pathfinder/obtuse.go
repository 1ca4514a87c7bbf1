package pathfinder

import (
	"github.com/azybler/geopath/pkg/compact"
	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/search"
)

// isTurnObtuse implements spec.md §4.6's built-in geometric admissibility
// rule. It walks the point sequence the path would actually trace through
// this transition — up to two vertices of history, the from vertex, and
// the candidate edge's own internal geometry — and rejects the transition
// the moment any consecutive triple's interior angle is acute: the dot
// product of the two vectors pointing outward from the triple's middle
// point is >= 0 exactly when that angle is 90 degrees or less. A triple
// with a zero-length vector (coincident coordinates) is skipped, i.e.
// treated as obtuse, so it can never cause a false rejection.
func isTurnObtuse(g *compact.Graph, ctx search.Context) bool {
	var pts []geo.Coordinate
	n := len(ctx.Path)
	if n >= 3 {
		if c, ok := g.Coordinates[ctx.Path[n-3]]; ok {
			pts = append(pts, c)
		}
	}
	if n >= 2 {
		if c, ok := g.Coordinates[ctx.Path[n-2]]; ok {
			pts = append(pts, c)
		}
	}
	pts = append(pts, ctx.FromCoord)
	if edge, ok := g.Neighbors(ctx.From)[ctx.To]; ok && len(edge.Coordinates) > 0 {
		pts = append(pts, edge.Coordinates...)
	} else {
		pts = append(pts, ctx.ToCoord)
	}

	for i := 1; i+1 < len(pts); i++ {
		p0, p1, p2 := pts[i-1], pts[i], pts[i+1]
		vA := [2]float64{p0.Lon() - p1.Lon(), p0.Lat() - p1.Lat()}
		vB := [2]float64{p2.Lon() - p1.Lon(), p2.Lat() - p1.Lat()}
		if isZero(vA) || isZero(vB) {
			continue
		}
		dot := vA[0]*vB[0] + vA[1]*vB[1]
		if dot >= 0 {
			return true
		}
	}
	return false
}

func isZero(v [2]float64) bool {
	return v[0] == 0 && v[1] == 0
}
