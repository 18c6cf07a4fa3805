// internal/geo/geo.go
//
// Great-circle helpers used to score guesses.
//   - Distance: haversine distance in whole metres.
//   - BearingClass: initial bearing quantized to one of 8 compass points.
//
// Coordinates are decimal degrees. Out-of-range latitude/longitude values are
// a caller bug and are not checked here.

package geo

import "math"

// EarthRadius is the equatorial radius in metres.
const EarthRadius = 6378137.0

// Point is a (latitude, longitude) pair in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Direction is a compass class from a guess towards the answer.
type Direction string

const (
	North     Direction = "N"
	NorthEast Direction = "NE"
	East      Direction = "E"
	SouthEast Direction = "SE"
	South     Direction = "S"
	SouthWest Direction = "SW"
	West      Direction = "W"
	NorthWest Direction = "NW"

	// SameLocation is returned when both points coincide.
	SameLocation Direction = "HERE"
)

// sectors is ordered clockwise from north; index = 45° sector.
var sectors = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

// Distance returns the great-circle distance between a and b in metres.
// It is symmetric and is 0 only when a == b; distinct points never round to 0.
func Distance(a, b Point) int {
	if a == b {
		return 0
	}
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))
	d := int(math.Round(2 * EarthRadius * math.Asin(math.Sqrt(h))))
	if d == 0 {
		return 1
	}
	return d
}

// Bearing returns the initial bearing from -> to in degrees, in [0, 360).
func Bearing(from, to Point) float64 {
	lat1, lat2 := radians(from.Lat), radians(to.Lat)
	dLng := radians(to.Lng - from.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Mod(degrees(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// BearingClass quantizes the initial bearing into 45° sectors centred on the
// compass points, so boundaries fall on odd multiples of 22.5°.
func BearingClass(from, to Point) Direction {
	if Distance(from, to) == 0 {
		return SameLocation
	}
	idx := int(math.Floor((Bearing(from, to)+22.5)/45)) % len(sectors)
	return sectors[idx]
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
