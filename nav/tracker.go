package nav

import (
	"math"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

const (
	skipForwardSlack  = 15.0 // meters past a maneuver before it is skipped outright
	skipBackwardSlack = 30.0 // meters before a maneuver that send the tracker back one
	passedMargin      = 10.0 // meters past a maneuver that count as taken regardless of heading
)

// TrackManeuver updates the active maneuver for a rider progress meters
// along the route and heading in degrees. The index is first corrected for
// large jumps in either direction, then advanced once if the maneuver was
// passed or is close with a matching bearing. It never leaves the valid
// range. Sessions without an index are returned unchanged.
func TrackManeuver(s Session, progress, heading float64, th Thresholds) Session {
	if !s.Indexed() {
		return s
	}
	metas := s.Index.Maneuvers
	last := len(metas) - 1
	a := min(max(s.ActiveManeuver, 0), last)

	for a < last && progress-metas[a].DistanceAlong > th.Advance+skipForwardSlack {
		a++
	}
	for a > 0 && metas[a].DistanceAlong-progress > th.Advance+skipBackwardSlack {
		a--
	}

	if a < last {
		toManeuver := metas[a].DistanceAlong - progress
		switch {
		case toManeuver <= -passedMargin:
			a++
		case toManeuver <= th.Advance && geo.BearingDelta(heading, metas[a].ExitBearing) <= th.Bearing:
			a++
		}
	}

	s.ActiveManeuver = a
	s.RemainingMeters = math.Max(0, metas[a].DistanceAlong-progress)
	return s
}

// needsPublish reports whether the maneuver progress moved enough since the
// last publication to be worth emitting.
func (s *Session) needsPublish(delta float64) bool {
	return !s.published ||
		s.publishedIndex != s.ActiveManeuver ||
		math.Abs(s.RemainingMeters-s.publishedRemain) >= delta
}

func (s *Session) markPublished() {
	s.published = true
	s.publishedIndex = s.ActiveManeuver
	s.publishedRemain = s.RemainingMeters
}

// markVisitedStops advances NextStop past every intermediate stop the rider
// has reached. The final stop is never marked so that a reroute always
// targets it.
func markVisitedStops(s Session) Session {
	stops := s.Index.Stops
	for s.NextStop < len(stops)-1 && s.Progress >= stops[s.NextStop].DistanceAlong {
		s.NextStop++
	}
	return s
}
