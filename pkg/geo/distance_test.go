package geo

import (
	"math"
	"testing"
)

func TestGreatCircleKM(t *testing.T) {
	tests := []struct {
		name             string
		a, b             Coordinate
		wantKM           float64
		tolerancePercent float64
	}{
		{
			name:             "Singapore CBD to Changi Airport",
			a:                Coordinate{103.8513, 1.2830},
			b:                Coordinate{103.9915, 1.3644},
			wantKM:           18.023,
			tolerancePercent: 1,
		},
		{
			name:             "same point",
			a:                Coordinate{103.8198, 1.3521},
			b:                Coordinate{103.8198, 1.3521},
			wantKM:           0,
			tolerancePercent: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GreatCircleKM(tt.a, tt.b)
			if tt.wantKM == 0 {
				if got > 1e-9 {
					t.Fatalf("expected ~0, got %f", got)
				}
				return
			}
			diff := math.Abs(got-tt.wantKM) / tt.wantKM * 100
			if diff > tt.tolerancePercent {
				t.Fatalf("GreatCircleKM = %f km, want ~%f km (diff %.1f%%)", got, tt.wantKM, diff)
			}
		})
	}
}

func TestHaversineKMMatchesGreatCircle(t *testing.T) {
	a := Coordinate{103.8198, 1.3521}
	b := Coordinate{103.8520, 1.2905}

	h := HaversineKM(a, b)
	g := GreatCircleKM(a, b)

	diff := math.Abs(h-g) / g * 100
	if diff > 0.5 {
		t.Fatalf("HaversineKM diverges from GreatCircleKM by %.2f%% (haversine=%f, greatcircle=%f)", diff, h, g)
	}
}

func TestPointToSegmentDist(t *testing.T) {
	a := Coordinate{103.8200, 1.3500}
	b := Coordinate{103.8200, 1.3600}

	dist, ratio := PointToSegmentDist(a, a, b)
	if dist > 1 || ratio != 0 {
		t.Fatalf("point at segment start: dist=%f ratio=%f", dist, ratio)
	}

	dist, ratio = PointToSegmentDist(b, a, b)
	if dist > 1 || ratio != 1 {
		t.Fatalf("point at segment end: dist=%f ratio=%f", dist, ratio)
	}
}
