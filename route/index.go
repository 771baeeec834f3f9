package route

import (
	"math"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// ManeuverMeta is the along-route placement of one maneuver.
type ManeuverMeta struct {
	DistanceAlong float64   `json:"distance_along"`
	AnchorIndex   int       `json:"anchor_index"`
	ExitBearing   float64   `json:"exit_bearing"`
	RoadName      string    `json:"road_name,omitempty"`
	Location      geo.Point `json:"location"`
}

// StopMeta is the along-route placement of one requested stop.
type StopMeta struct {
	Point         geo.Point `json:"point"`
	DistanceAlong float64   `json:"distance_along"`
}

// Index is derived from a Route and rebuilt whenever the route changes.
//
// Cumulative is aligned 1:1 with the polyline and Maneuvers 1:1 with the
// route's maneuvers. Both Cumulative and the DistanceAlong of maneuvers and
// stops are non-decreasing.
type Index struct {
	Polyline   []geo.Point
	Cumulative []float64
	Maneuvers  []ManeuverMeta
	Stops      []StopMeta
}

// Empty reports whether indexing was unavailable for the route.
func (ix *Index) Empty() bool {
	return ix == nil || len(ix.Maneuvers) == 0 || len(ix.Cumulative) < 2
}

// Length returns the along-polyline length in meters.
func (ix *Index) Length() float64 {
	if ix == nil || len(ix.Cumulative) == 0 {
		return 0
	}
	return ix.Cumulative[len(ix.Cumulative)-1]
}

// LastManeuver returns the index of the final maneuver, or -1.
func (ix *Index) LastManeuver() int {
	if ix == nil {
		return -1
	}
	return len(ix.Maneuvers) - 1
}

// Progress converts a snap result into distance along the route.
func (ix *Index) Progress(s Snapped) float64 {
	if ix.Empty() || !s.OK || s.Segment < 0 || s.Segment >= len(ix.Cumulative) {
		return 0
	}
	return ix.Cumulative[s.Segment] + geo.Distance(ix.Polyline[s.Segment], s.Point)
}

// PointAt returns the polyline position d meters along the route and the
// bearing of the segment containing it. d is clamped to the route length.
func (ix *Index) PointAt(d float64) (geo.Point, float64) {
	n := len(ix.Polyline)
	switch {
	case n == 0:
		return geo.Point{}, 0
	case n == 1:
		return ix.Polyline[0], 0
	}
	if d <= 0 {
		return ix.Polyline[0], geo.Bearing(ix.Polyline[0], ix.Polyline[1])
	}
	for i := 1; i < n; i++ {
		if ix.Cumulative[i] < d {
			continue
		}
		seg := ix.Cumulative[i] - ix.Cumulative[i-1]
		if seg <= 0 {
			continue
		}
		t := (d - ix.Cumulative[i-1]) / seg
		return geo.Lerp(ix.Polyline[i-1], ix.Polyline[i], t), geo.Bearing(ix.Polyline[i-1], ix.Polyline[i])
	}
	return ix.Polyline[n-1], exitBearing(ix.Polyline, n-1)
}

// BuildIndex computes the along-route index of r. stops are the waypoints
// the route was requested through and may be nil. A route with fewer than
// two polyline points or without maneuvers yields an empty index.
func BuildIndex(r *Route, stops []geo.Point) *Index {
	if r == nil || len(r.Polyline) < 2 || len(r.Maneuvers) == 0 {
		return &Index{}
	}

	poly := r.Polyline
	cum := geo.CumulativeDistances(poly)
	total := cum[len(cum)-1]

	scale := 1.0
	if r.DistanceMeters > 0 && total > 0 {
		scale = total / r.DistanceMeters
	}

	ix := &Index{
		Polyline:   poly,
		Cumulative: cum,
		Maneuvers:  make([]ManeuverMeta, len(r.Maneuvers)),
	}

	stepDistance := 0.0
	prev := 0.0
	for i, m := range r.Maneuvers {
		var along float64
		var anchor int
		if m.Anchor != nil {
			anchor = nearestVertex(poly, *m.Anchor)
			along = cum[anchor]
		} else {
			along = math.Min(stepDistance*scale, total)
			anchor = vertexAtOrPast(cum, along)
		}
		if i > 0 && along < prev {
			along = prev
			anchor = max(anchor, ix.Maneuvers[i-1].AnchorIndex)
		}
		prev = along
		stepDistance += m.DistanceMeters

		ix.Maneuvers[i] = ManeuverMeta{
			DistanceAlong: along,
			AnchorIndex:   anchor,
			ExitBearing:   exitBearing(poly, anchor),
			RoadName:      m.RoadName,
			Location:      poly[anchor],
		}
	}

	if len(stops) > 0 {
		ix.Stops = make([]StopMeta, len(stops))
		prev = 0
		for i, s := range stops {
			along := cum[nearestVertex(poly, s)]
			if along < prev {
				along = prev
			}
			prev = along
			ix.Stops[i] = StopMeta{Point: s, DistanceAlong: along}
		}
	}
	return ix
}

// nearestVertex returns the polyline vertex closest to p. Ties go to the
// first occurrence.
func nearestVertex(poly []geo.Point, p geo.Point) int {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range poly {
		if d := geo.PlanarDistance(v, p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func vertexAtOrPast(cum []float64, d float64) int {
	for i, c := range cum {
		if c >= d {
			return i
		}
	}
	return len(cum) - 1
}

// exitBearing is the bearing leaving vertex i. The final vertex has no
// outgoing segment, so the incoming one is used.
func exitBearing(poly []geo.Point, i int) float64 {
	if i < len(poly)-1 {
		return geo.Bearing(poly[i], poly[i+1])
	}
	if i > 0 {
		return geo.Bearing(poly[i-1], poly[i])
	}
	return 0
}
