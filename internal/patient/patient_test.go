package patient

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		a, b      Location
		wantKm    float64
		tolerance float64
	}{
		{
			name:   "same point",
			a:      Location{Lat: 26.8467, Lng: 80.9462},
			b:      Location{Lat: 26.8467, Lng: 80.9462},
			wantKm: 0,
		},
		{
			name:      "one degree of latitude",
			a:         Location{Lat: 26.0, Lng: 80.0},
			b:         Location{Lat: 27.0, Lng: 80.0},
			wantKm:    111.2,
			tolerance: 1.0,
		},
		{
			name:      "one degree of longitude at 26N",
			a:         Location{Lat: 26.0, Lng: 80.0},
			b:         Location{Lat: 26.0, Lng: 81.0},
			wantKm:    99.9,
			tolerance: 1.0,
		},
		{
			name:      "lucknow to kanpur",
			a:         Location{Lat: 26.8467, Lng: 80.9462},
			b:         Location{Lat: 26.4499, Lng: 80.3319},
			wantKm:    75,
			tolerance: 3.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.a.DistanceKm(tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm = %f, want %f +/- %f", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	t.Parallel()

	a := Location{Lat: 26.8467, Lng: 80.9462}
	b := Location{Lat: 25.3176, Lng: 82.9739}
	if d1, d2 := a.DistanceKm(b), b.DistanceKm(a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}
