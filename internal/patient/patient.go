// Package patient defines the caller-supplied patient context consumed by the
// triage pipeline. The core never owns or mutates this data.
package patient

import "math"

// Location is a WGS84 point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Context carries per-request patient information. All fields are optional;
// pointer fields distinguish "unset" from zero values.
type Context struct {
	Age            *int      `json:"age,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	MedicalHistory []string  `json:"medical_history,omitempty"`
	IsPregnant     *bool     `json:"is_pregnant,omitempty"`
	Location       *Location `json:"location,omitempty"`
}

const earthRadiusKm = 6371.0

// DistanceKm returns the approximate great-circle distance to other in
// kilometres using the equirectangular approximation, which is accurate
// enough for nearest-facility ranking at district scale.
func (l Location) DistanceKm(other Location) float64 {
	lat1 := l.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (other.Lng - l.Lng) * math.Pi / 180

	x := dLng * math.Cos((lat1+lat2)/2)
	return math.Sqrt(x*x+dLat*dLat) * earthRadiusKm
}
