// Package geo provides coordinate rounding, vertex keying, and distance
// helpers shared by the topology, compaction, and search packages.
package geo

import (
	"fmt"
	"math"
)

// Coordinate is an ordered sequence of 2 or 3 real numbers: longitude,
// latitude, and an optional elevation. Only the first two components drive
// keying and distance; a third component (elevation) is carried through
// unchanged.
type Coordinate []float64

// Lon returns the longitude component.
func (c Coordinate) Lon() float64 { return c[0] }

// Lat returns the latitude component.
func (c Coordinate) Lat() float64 { return c[1] }

// HasElevation reports whether c carries a third (elevation) component.
func (c Coordinate) HasElevation() bool { return len(c) >= 3 }

// Elevation returns the third component, or 0 if absent.
func (c Coordinate) Elevation() float64 {
	if len(c) < 3 {
		return 0
	}
	return c[2]
}

// Clone returns a copy of c so callers can't mutate shared backing arrays.
func (c Coordinate) Clone() Coordinate {
	out := make(Coordinate, len(c))
	copy(out, c)
	return out
}

// Round returns a coordinate whose first two components are snapped to the
// nearest multiple of tol; any additional components (elevation) pass
// through untouched. tol must be > 0.
func Round(c Coordinate, tol float64) Coordinate {
	out := c.Clone()
	out[0] = roundTo(c[0], tol)
	out[1] = roundTo(c[1], tol)
	return out
}

func roundTo(v, tol float64) float64 {
	return math.Round(v/tol) * tol
}

// KeyFunc derives a deterministic vertex key from a (already rounded)
// coordinate. Implementations must be pure functions of the rounded 2D
// position.
type KeyFunc func(c Coordinate) string

// DefaultKey returns "x,y" of the 2D part of c, formatted so that equal
// rounded positions always produce byte-identical keys.
func DefaultKey(c Coordinate) string {
	return fmt.Sprintf("%g,%g", c[0], c[1])
}
