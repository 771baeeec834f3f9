package nav

import (
	"time"

	"github.com/google/uuid"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// Pipeline runs the per-fix stages synchronously. It holds no session state
// of its own, so one Pipeline can serve any number of sessions.
type Pipeline struct {
	Config Config
}

// NewPipeline returns a pipeline using cfg.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{Config: cfg}
}

// StepResult is the outcome of one pipeline invocation. Reroute is non-nil
// when the caller must fetch a new route and hand it to ApplyReroute.
type StepResult struct {
	Session Session
	Events  []Event
	Reroute *route.Request
}

type eventBuffer struct {
	session uuid.UUID
	now     time.Time
	events  []Event
}

func (b *eventBuffer) add(t EventType, data any) {
	b.events = append(b.events, Event{Type: t, SessionID: b.session, Time: b.now, Data: data})
}

// Step feeds one fix through snapping, maneuver tracking, off-route
// detection, the rider commit gate, heading smoothing, the camera planner and
// arrival detection, in that order.
func (p *Pipeline) Step(s Session, fix gps.Fix, now time.Time) StepResult {
	cfg := p.Config
	out := eventBuffer{session: s.ID, now: now}
	var reroute *route.Request

	var heading float64
	snap := route.Snapped{}
	if s.Indexed() {
		snap = route.Snap(fix.Point, s.Index.Polyline)
	}

	if snap.OK {
		s.LastSnapped = snap
		s.LastSegment = snap.Segment
		s.Progress = s.Index.Progress(snap)
		s.Position = snap.Point
		s.hasPosition = true
		heading = fix.HeadingOr(snap.Bearing)

		th := ThresholdsFor(fix.SpeedKmh)
		s = TrackManeuver(s, s.Progress, heading, th)
		s = markVisitedStops(s)
		if s.needsPublish(cfg.PublishDelta) {
			s.markPublished()
			out.add(EventManeuver, s.maneuverProgress())
		}

		if !s.Arrived {
			s, reroute = DetectOffRoute(s, fix.Point, th, cfg, now)
			if off := s.OffRoute(cfg.StrikeLimit); off != s.offRouteReported {
				s.offRouteReported = off
				out.add(EventOffRoute, OffRouteState{
					OffRoute:       off,
					Strikes:        s.OffRouteStrikes,
					DistanceToLine: s.DistanceToLine,
				})
			}
			if reroute != nil {
				out.add(EventRerouting, RerouteState{InFlight: true})
			}
		}
	} else {
		// No usable index: follow the raw fixes, smoothed.
		if s.hasPosition {
			s.Position = geo.Lerp(s.Position, fix.Point, cfg.PositionSmoothing)
		} else {
			s.Position = fix.Point
			s.hasPosition = true
		}
		heading = fix.HeadingOr(s.SmoothedHeading)
	}

	var committed bool
	if s, committed = CommitRider(s, heading, fix.SpeedKmh, now, cfg); committed {
		out.add(EventRider, s.Rider)
	}
	s = SmoothHeading(s, heading, cfg)

	if next, cam, ok := PlanCamera(s, now, cfg); ok {
		s = next
		out.add(EventCamera, cam)
	}

	var arrived bool
	if s, arrived = DetectArrival(s, fix, cfg); arrived {
		out.add(EventArrived, Arrival{Position: s.Position, Simulated: fix.Simulated})
	}

	return StepResult{Session: s, Events: out.events, Reroute: reroute}
}

// ApplyReroute completes a reroute started by Step. On success the route,
// index and request are swapped in one assignment and tracking restarts at
// the beginning of the new route. On failure the session keeps its stale
// route and the in-flight flag is cleared.
func (p *Pipeline) ApplyReroute(s Session, r *route.Route, req route.Request, err error, now time.Time) StepResult {
	out := eventBuffer{session: s.ID, now: now}

	if err != nil {
		s.Rerouting = false
		out.add(EventRerouting, RerouteState{Error: err.Error()})
		out.add(EventError, ErrorInfo{Message: "reroute failed: " + err.Error()})
		return StepResult{Session: s, Events: out.events}
	}

	wasOff := s.offRouteReported
	s = s.withRoute(r, req)

	out.add(EventRoute, s.routeInfo(true))
	out.add(EventRerouting, RerouteState{})
	if wasOff {
		out.add(EventOffRoute, OffRouteState{})
	}
	s.markPublished()
	out.add(EventManeuver, s.maneuverProgress())
	return StepResult{Session: s, Events: out.events}
}
