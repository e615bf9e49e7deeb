// Package geo computes the approximate geometry of zone boundaries
package geo

import (
	"errors"
	"math"
)

// MetersPerDegree approximates the length of one degree on the ground
const MetersPerDegree = 111319.5

var ErrDegeneratePolygon = errors.New("polygon has no area")

// Point is a boundary vertex in degrees
type Point struct {
	Lat float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng float64 `json:"lng" binding:"gte=-180,lte=180"`
}

// Area returns the planar area of the polygon in square meters, treating
// degrees as a flat grid scaled by MetersPerDegree
func Area(points []Point) (float64, error) {
	if len(points) < 3 {
		return 0, ErrDegeneratePolygon
	}

	// shoelace formula over (lng, lat)
	var sum float64
	for i := range points {
		j := (i + 1) % len(points)
		sum += points[i].Lng*points[j].Lat - points[j].Lng*points[i].Lat
	}

	area := math.Abs(sum) / 2 * MetersPerDegree * MetersPerDegree
	if area <= 0 {
		return 0, ErrDegeneratePolygon
	}
	return area, nil
}

// CentroidLatitude averages the latitudes of the boundary points.
// It returns nil for an empty boundary.
func CentroidLatitude(points []Point) *float64 {
	if len(points) == 0 {
		return nil
	}
	var sum float64
	for _, p := range points {
		sum += p.Lat
	}
	lat := sum / float64(len(points))
	return &lat
}
