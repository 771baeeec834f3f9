package nav

import (
	"time"

	"github.com/google/uuid"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// Session is the state of one navigation run. It is a value: every pipeline
// stage takes a Session and returns the updated copy. Route and Index are
// shared and never mutated; a reroute replaces both.
type Session struct {
	ID      uuid.UUID
	Route   *route.Route
	Index   *route.Index
	Request route.Request
	Started time.Time

	// Maneuver tracking.
	ActiveManeuver  int
	RemainingMeters float64
	Progress        float64
	LastSnapped     route.Snapped
	LastSegment     int
	NextStop        int

	// Off-route detection.
	OffRouteStrikes int
	DistanceToLine  float64
	LastReroute     time.Time
	Rerouting       bool

	ArrivalStreak int
	Arrived       bool

	// Latest uncommitted position and the committed rider state.
	Position   geo.Point
	Rider      RiderState
	lastCommit time.Time

	SmoothedHeading float64
	MapBearing      float64
	lastCamera      time.Time
	Follow          bool

	headingSet       bool
	riderHeadingSet  bool
	mapBearingSet    bool
	hasPosition      bool
	published        bool
	publishedIndex   int
	publishedRemain  float64
	offRouteReported bool
}

// NewSession starts a session on r. req is the request r was computed for;
// its stops drive visited-stop tracking and reroute requests.
func NewSession(r *route.Route, req route.Request, now time.Time) Session {
	s := Session{
		ID:      uuid.New(),
		Request: req,
		Started: now,
		Follow:  true,
	}
	return s.withRoute(r, req)
}

// withRoute installs a route and resets everything that referred to the
// previous one. Heading and rider state carry over.
func (s Session) withRoute(r *route.Route, req route.Request) Session {
	s.Route = r
	s.Request = req
	s.Index = route.BuildIndex(r, req.Stops)
	s.ActiveManeuver = 0
	s.RemainingMeters = 0
	s.Progress = 0
	s.LastSnapped = route.Snapped{}
	s.LastSegment = 0
	s.NextStop = 1
	s.OffRouteStrikes = 0
	s.DistanceToLine = 0
	s.Rerouting = false
	s.ArrivalStreak = 0
	s.published = false
	s.offRouteReported = false
	if !s.Index.Empty() {
		s.RemainingMeters = s.Index.Maneuvers[0].DistanceAlong
	}
	return s
}

// Indexed reports whether maneuver tracking and off-route detection apply.
func (s *Session) Indexed() bool {
	return !s.Index.Empty()
}

// OffRoute reports whether the strike count has reached limit.
func (s *Session) OffRoute(limit int) bool {
	return s.OffRouteStrikes >= limit
}

// RemainingRoute returns the distance left to the end of the route.
func (s *Session) RemainingRoute() float64 {
	if !s.Indexed() {
		return 0
	}
	return max(0, s.Index.Length()-s.Progress)
}

func (s *Session) maneuverProgress() ManeuverProgress {
	p := ManeuverProgress{
		Index:                s.ActiveManeuver,
		RemainingMeters:      s.RemainingMeters,
		RemainingRouteMeters: s.RemainingRoute(),
	}
	if s.Route != nil && s.ActiveManeuver < len(s.Route.Maneuvers) {
		p.Maneuver = s.Route.Maneuvers[s.ActiveManeuver]
	}
	if length := s.Index.Length(); length > 0 && s.Route != nil {
		p.RemainingSeconds = s.Route.DurationSeconds * p.RemainingRouteMeters / length
	}
	return p
}

func (s *Session) routeInfo(reroute bool) RouteInfo {
	return RouteInfo{
		Route:    s.Route,
		Reroute:  reroute,
		Length:   s.Index.Length(),
		Indexed:  s.Indexed(),
		NextStop: s.NextStop,
	}
}
