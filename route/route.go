// Package route holds the route model produced by a routing provider, the
// derived along-route index used by the navigation pipeline, and the
// providers that fetch routes.
package route

import (
	"fmt"
	"strings"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// ManeuverKind enumerates the maneuver variants the pipeline distinguishes.
type ManeuverKind int

const (
	KindOther ManeuverKind = iota
	KindDepart
	KindTurn
	KindContinue
	KindMerge
	KindFork
	KindRamp
	KindRoundabout
	KindRotary
	KindUTurn
	KindArrive
)

var kindNames = [...]string{
	KindOther:      "other",
	KindDepart:     "depart",
	KindTurn:       "turn",
	KindContinue:   "continue",
	KindMerge:      "merge",
	KindFork:       "fork",
	KindRamp:       "ramp",
	KindRoundabout: "roundabout",
	KindRotary:     "rotary",
	KindUTurn:      "uturn",
	KindArrive:     "arrive",
}

func (k ManeuverKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "other"
	}
	return kindNames[k]
}

// ParseManeuverKind maps a provider maneuver type to a kind. Unknown values
// map to KindOther.
func ParseManeuverKind(s string) ManeuverKind {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "new name", "notification", "end of road":
		return KindTurn
	case "on ramp", "off ramp":
		return KindRamp
	case "exit roundabout", "roundabout turn":
		return KindRoundabout
	case "exit rotary":
		return KindRotary
	}
	for k, name := range kindNames {
		if name == s {
			return ManeuverKind(k)
		}
	}
	return KindOther
}

func (k ManeuverKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ManeuverKind) UnmarshalText(b []byte) error {
	*k = ParseManeuverKind(string(b))
	return nil
}

// Maneuver is one routing instruction. DistanceMeters is the length of the
// step that follows the maneuver.
type Maneuver struct {
	Instruction    string       `json:"instruction" yaml:"instruction"`
	DistanceMeters float64      `json:"distance_meters" yaml:"distance_meters"`
	Kind           ManeuverKind `json:"kind" yaml:"kind"`
	Anchor         *geo.Point   `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	RoadName       string       `json:"road_name,omitempty" yaml:"road_name,omitempty"`
}

// Stats describes how a route was produced.
type Stats struct {
	Provider  string      `json:"provider" yaml:"provider"`
	Mode      Mode        `json:"mode" yaml:"mode"`
	Waypoints []geo.Point `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
}

// Route is a routing result. Once handed to a navigation session it is
// treated as immutable; reroutes replace it wholesale.
type Route struct {
	Polyline        []geo.Point `json:"polyline" yaml:"polyline"`
	DistanceMeters  float64     `json:"distance_meters" yaml:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds" yaml:"duration_seconds"`
	Maneuvers       []Maneuver  `json:"maneuvers" yaml:"maneuvers"`
	Stats           Stats       `json:"stats" yaml:"stats"`
}

func (r *Route) String() string {
	if r == nil {
		return "<nil route>"
	}
	return fmt.Sprintf("route(%d points, %d maneuvers, %.0fm, %.0fs)",
		len(r.Polyline), len(r.Maneuvers), r.DistanceMeters, r.DurationSeconds)
}

// VisitOrder returns req with its stops in the order r visits them. Providers
// that reorder stops report the order in Stats.Waypoints; otherwise req is
// returned unchanged.
func (r *Route) VisitOrder(req Request) Request {
	if r == nil || len(r.Stats.Waypoints) == 0 || len(r.Stats.Waypoints) != len(req.Stops) {
		return req
	}
	req.Stops = append([]geo.Point(nil), r.Stats.Waypoints...)
	return req
}
