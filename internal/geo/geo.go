// Package geo computes distances and headings between WGS84 coordinates.
// Inputs are never validated: garbage coordinates give garbage results.
package geo

import "math"

// EarthRadiusFeet is the mean Earth radius used for all distances.
const EarthRadiusFeet = 20902231.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var directions = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// DistanceFeet returns the haversine great-circle distance between a and b in feet.
func DistanceFeet(a, b Point) float64 {
	φ1 := radians(a.Lat)
	φ2 := radians(b.Lat)
	dφ := radians(b.Lat - a.Lat)
	dλ := radians(b.Lng - a.Lng)

	sinDφ := math.Sin(dφ / 2)
	sinDλ := math.Sin(dλ / 2)

	h := sinDφ*sinDφ + math.Cos(φ1)*math.Cos(φ2)*sinDλ*sinDλ
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusFeet * c
}

// BearingDegrees returns the initial compass bearing from one point facing
// another, in [0, 360).
func BearingDegrees(from, to Point) float64 {
	φ1 := radians(from.Lat)
	φ2 := radians(to.Lat)
	dλ := radians(to.Lng - from.Lng)

	y := math.Sin(dλ) * math.Cos(φ2)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(dλ)
	return normalize(math.Atan2(y, x) * 180 / math.Pi)
}

// DirectionName maps a bearing to one of the eight compass labels.
func DirectionName(bearing float64) string {
	i := int(math.Round(normalize(bearing)/45)) % 8
	return directions[i]
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// Tiny negative inputs wrap to exactly 360.
	if deg >= 360 {
		deg = 0
	}
	return deg
}
