package nav

import (
	"time"

	"github.com/google/uuid"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// EventType names what changed.
type EventType string

const (
	EventRider     EventType = "rider"
	EventManeuver  EventType = "maneuver"
	EventCamera    EventType = "camera"
	EventStatus    EventType = "status"
	EventRoute     EventType = "route"
	EventOffRoute  EventType = "off_route"
	EventRerouting EventType = "rerouting"
	EventLocation  EventType = "location"
	EventError     EventType = "error"
	EventArrived   EventType = "arrived"
)

// Event is one externally visible state change. Data holds the payload type
// matching Type: RiderState, ManeuverProgress, Camera, StatusChange,
// RouteInfo, OffRouteState, RerouteState, LocationChange, ErrorInfo or
// Arrival.
type Event struct {
	Type      EventType `json:"type"`
	SessionID uuid.UUID `json:"session_id"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data"`
}

// RiderState is the throttled rider position shown to the user.
type RiderState struct {
	Position       geo.Point `json:"position"`
	HeadingDegrees float64   `json:"heading"`
	SpeedKmh       float64   `json:"speed_kmh"`
	Time           time.Time `json:"time"`
}

// ManeuverProgress reports the active maneuver and the distance left to it.
type ManeuverProgress struct {
	Index                int            `json:"index"`
	RemainingMeters      float64        `json:"remaining_meters"`
	Maneuver             route.Maneuver `json:"maneuver"`
	RemainingRouteMeters float64        `json:"remaining_route_meters"`
	RemainingSeconds     float64        `json:"remaining_seconds"`
}

// Camera is a follow-mode viewport.
type Camera struct {
	Center  geo.Point `json:"center"`
	Bearing float64   `json:"bearing"`
	Pitch   float64   `json:"pitch"`
	Zoom    float64   `json:"zoom"`
}

type StatusChange struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// RouteInfo announces the route a session follows.
type RouteInfo struct {
	Route    *route.Route `json:"route"`
	Reroute  bool         `json:"reroute"`
	Length   float64      `json:"length_meters"`
	Indexed  bool         `json:"indexed"`
	NextStop int          `json:"next_stop"`
}

type OffRouteState struct {
	OffRoute       bool    `json:"off_route"`
	Strikes        int     `json:"strikes"`
	DistanceToLine float64 `json:"distance_to_line"`
}

type RerouteState struct {
	InFlight bool   `json:"in_flight"`
	Error    string `json:"error,omitempty"`
}

// LocationState describes the health of the active location source.
type LocationState string

const (
	LocationIdle        LocationState = "idle"
	LocationWaiting     LocationState = "waiting"
	LocationActive      LocationState = "active"
	LocationUnavailable LocationState = "unavailable"
	LocationDenied      LocationState = "denied"
)

type LocationChange struct {
	State  LocationState `json:"state"`
	Source string        `json:"source,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type ErrorInfo struct {
	Message string `json:"message"`
}

type Arrival struct {
	Position  geo.Point `json:"position"`
	Simulated bool      `json:"simulated"`
}
