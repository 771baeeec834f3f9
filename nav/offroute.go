package nav

import (
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// DetectOffRoute compares the raw fix with the session's last snapped point.
// A fix farther than th.OffRoute adds a strike; any closer fix clears them.
// Once StrikeLimit strikes accumulate, and provided no reroute is in flight
// and the last one started at least RerouteCooldown ago, the session is
// marked as rerouting and the request to send is returned.
func DetectOffRoute(s Session, raw geo.Point, th Thresholds, cfg Config, now time.Time) (Session, *route.Request) {
	if !s.Indexed() || !s.LastSnapped.OK {
		return s, nil
	}

	s.DistanceToLine = geo.Distance(raw, s.LastSnapped.Point)
	if s.DistanceToLine > th.OffRoute {
		s.OffRouteStrikes++
	} else {
		s.OffRouteStrikes = 0
	}

	if s.OffRouteStrikes < cfg.StrikeLimit || s.Rerouting {
		return s, nil
	}
	if !s.LastReroute.IsZero() && now.Sub(s.LastReroute) < cfg.RerouteCooldown {
		return s, nil
	}

	s.Rerouting = true
	s.LastReroute = now
	req := rerouteRequest(s, raw)
	return s, &req
}

// rerouteRequest asks for a route from the rider's raw position through the
// stops not yet visited.
func rerouteRequest(s Session, from geo.Point) route.Request {
	req := s.Request
	var remaining []geo.Point
	if n := len(s.Request.Stops); n > 0 {
		next := min(max(s.NextStop, 1), n-1)
		remaining = s.Request.Stops[next:]
	} else if s.Route != nil && len(s.Route.Polyline) > 0 {
		remaining = s.Route.Polyline[len(s.Route.Polyline)-1:]
	}
	req.Stops = append([]geo.Point{from}, remaining...)
	return req
}
