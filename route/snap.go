package route

import (
	"math"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// Snapped is the projection of a raw fix onto a polyline.
type Snapped struct {
	Point   geo.Point `json:"point"`
	Bearing float64   `json:"bearing"`
	Segment int       `json:"segment"`
	OK      bool      `json:"ok"`
}

// Snap projects fix onto the nearest segment of poly. The search is a linear
// scan using planar distance; zero-length segments are skipped. OK is false
// when poly has no usable segment.
func Snap(fix geo.Point, poly []geo.Point) Snapped {
	best := Snapped{Segment: -1}
	bestDist := math.Inf(1)

	for i := 0; i+1 < len(poly); i++ {
		start, end := poly[i], poly[i+1]
		dLat := end.Lat - start.Lat
		dLng := end.Lng - start.Lng
		lenSq := dLat*dLat + dLng*dLng
		if lenSq == 0 {
			continue
		}

		t := ((fix.Lat-start.Lat)*dLat + (fix.Lng-start.Lng)*dLng) / lenSq
		var proj geo.Point
		switch {
		case t <= 0:
			proj = start
		case t >= 1:
			proj = end
		default:
			proj = geo.Point{Lat: start.Lat + t*dLat, Lng: start.Lng + t*dLng}
		}

		if d := geo.PlanarDistance(fix, proj); d < bestDist {
			bestDist = d
			best = Snapped{
				Point:   proj,
				Bearing: geo.Bearing(start, end),
				Segment: i,
				OK:      true,
			}
		}
	}
	return best
}
