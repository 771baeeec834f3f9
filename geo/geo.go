// Package geo provides the small set of geodesic helpers used by the
// navigation pipeline. All functions are pure and operate on decimal degrees.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadius is the mean Earth radius in meters used by Distance and Destination.
const EarthRadius = 6371000.0

// Point is a position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// IsZero reports whether p is the zero value.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// ErrInvalidPoint is returned by ParsePoint for malformed or out-of-range input.
var ErrInvalidPoint = errors.New("invalid point")

// ParsePoint parses "lat,lng" in decimal degrees.
func ParsePoint(s string) (Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("%w: %q is not lat,lng", ErrInvalidPoint, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrInvalidPoint, latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrInvalidPoint, lngStr)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, fmt.Errorf("%w: %q out of range", ErrInvalidPoint, s)
	}
	return Point{Lat: lat, Lng: lng}, nil
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

// Distance returns the great-circle distance between a and b in meters
// using the Haversine formula.
func Distance(a, b Point) float64 {
	lat1Rad := radians(a.Lat)
	lat2Rad := radians(b.Lat)
	deltaLat := radians(b.Lat - a.Lat)
	deltaLon := radians(b.Lng - a.Lng)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// Bearing returns the initial bearing from a to b in degrees, in [0,360).
func Bearing(a, b Point) float64 {
	lat1Rad := radians(a.Lat)
	lat2Rad := radians(b.Lat)
	deltaLonRad := radians(b.Lng - a.Lng)

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	return NormalizeBearing(degrees(math.Atan2(y, x)))
}

// PlanarDistance is the Euclidean distance in raw degree space. It is only
// meaningful for relative comparisons between nearby candidates.
func PlanarDistance(a, b Point) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

// Lerp interpolates linearly between a and b in lat/lng space. t is clamped to [0,1].
func Lerp(a, b Point, t float64) Point {
	t = math.Max(0, math.Min(1, t))
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// NormalizeBearing reduces a bearing to [0,360).
func NormalizeBearing(b float64) float64 {
	b = math.Mod(b, 360)
	if b < 0 {
		b += 360
	}
	// math.Mod(-1e-15, 360) + 360 rounds to 360.
	if b >= 360 {
		b = 0
	}
	return b
}

// wrapDelta maps an angular difference into (-180,180].
func wrapDelta(d float64) float64 {
	d = math.Mod(d, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// SmoothAngle blends current toward target along the shortest arc. A factor
// of 1 returns target, 0 returns current.
func SmoothAngle(current, target, factor float64) float64 {
	return NormalizeBearing(current + wrapDelta(target-current)*factor)
}

// BearingDelta returns the smallest absolute angular difference between a
// and b, in [0,180].
func BearingDelta(a, b float64) float64 {
	return math.Abs(wrapDelta(b - a))
}

// Destination returns the point reached by travelling meters from p along
// the given bearing on a spherical Earth.
func Destination(p Point, bearing, meters float64) Point {
	latRad := radians(p.Lat)
	lonRad := radians(p.Lng)
	bearingRad := radians(bearing)
	angular := meters / EarthRadius

	newLatRad := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(bearingRad))
	newLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(newLatRad))

	lng := degrees(newLonRad)
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return Point{Lat: degrees(newLatRad), Lng: lng}
}

// CumulativeDistances returns the running along-line distance in meters for
// each vertex of poly. The result has the same length as poly.
func CumulativeDistances(poly []Point) []float64 {
	if len(poly) == 0 {
		return nil
	}
	cum := make([]float64, len(poly))
	for i := 1; i < len(poly); i++ {
		cum[i] = cum[i-1] + Distance(poly[i-1], poly[i])
	}
	return cum
}

// MetersPerPixel is the web-mercator ground resolution at the given latitude
// and zoom level.
func MetersPerPixel(lat, zoom float64) float64 {
	return 156543.03392 * math.Cos(radians(lat)) / math.Pow(2, zoom)
}
