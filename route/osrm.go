package route

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// OSRMClient fetches routes from an OSRM HTTP server. Plain requests use the
// route service; requests with Optimize set use the trip service with the
// first and last stop fixed.
type OSRMClient struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// NewOSRMClient returns a client for the server at baseURL.
func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Logger:  slog.Default(),
	}
}

type osrmManeuver struct {
	Type     string    `json:"type"`
	Modifier string    `json:"modifier"`
	Location []float64 `json:"location"`
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Name     string       `json:"name"`
	Ref      string       `json:"ref"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmRoute struct {
	Geometry geojson.Geometry `json:"geometry"`
	Distance float64          `json:"distance"`
	Duration float64          `json:"duration"`
	Legs     []struct {
		Steps []osrmStep `json:"steps"`
	} `json:"legs"`
}

type osrmWaypoint struct {
	Location      []float64 `json:"location"`
	WaypointIndex int       `json:"waypoint_index"`
}

type osrmResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Routes    []osrmRoute    `json:"routes"`
	Trips     []osrmRoute    `json:"trips"`
	Waypoints []osrmWaypoint `json:"waypoints"`
}

func osrmProfile(m Mode) string {
	switch m {
	case ModeCycling:
		return "bike"
	case ModeWalking:
		return "foot"
	}
	return "driving"
}

func (c *OSRMClient) buildURL(req Request) string {
	coords := make([]string, len(req.Stops))
	for i, s := range req.Stops {
		coords[i] = fmt.Sprintf("%.6f,%.6f", s.Lng, s.Lat)
	}

	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	q.Set("steps", "true")

	var exclude []string
	if req.Avoid.Tolls {
		exclude = append(exclude, "toll")
	}
	if req.Avoid.Highways {
		exclude = append(exclude, "motorway")
	}
	if req.Avoid.Ferries {
		exclude = append(exclude, "ferry")
	}
	if len(exclude) > 0 {
		q.Set("exclude", strings.Join(exclude, ","))
	}

	service := "route"
	if req.Optimize && len(req.Stops) > 2 {
		service = "trip"
		q.Set("roundtrip", "false")
		q.Set("source", "first")
		q.Set("destination", "last")
	}

	return fmt.Sprintf("%s/%s/v1/%s/%s?%s", c.BaseURL, service, osrmProfile(req.Mode),
		strings.Join(coords, ";"), q.Encode())
}

// Route implements Provider.
func (c *OSRMClient) Route(ctx context.Context, req Request) (*Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u := c.buildURL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building OSRM request: %w", err)
	}

	start := time.Now()
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("OSRM request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading OSRM response: %w", err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: HTTP %d", ErrProviderStatus, resp.StatusCode)
		}
		return nil, fmt.Errorf("decoding OSRM response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || (parsed.Code != "" && parsed.Code != "Ok") {
		return nil, fmt.Errorf("%w: HTTP %d %s %s", ErrProviderStatus, resp.StatusCode, parsed.Code, parsed.Message)
	}

	routes := parsed.Routes
	if len(routes) == 0 {
		routes = parsed.Trips
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}

	r, err := convertOSRMRoute(routes[0])
	if err != nil {
		return nil, err
	}
	r.Stats = Stats{
		Provider:  "osrm",
		Mode:      req.Mode,
		Waypoints: orderedWaypoints(req, parsed.Waypoints),
	}

	if c.Logger != nil {
		c.Logger.Debug("osrm route",
			"stops", len(req.Stops),
			"points", len(r.Polyline),
			"maneuvers", len(r.Maneuvers),
			"distance_m", r.DistanceMeters,
			"elapsed", time.Since(start).String(),
		)
	}
	return r, nil
}

func convertOSRMRoute(or osrmRoute) (*Route, error) {
	var line orb.LineString
	switch g := or.Geometry.Geometry().(type) {
	case orb.LineString:
		line = g
	case orb.MultiLineString:
		for _, ls := range g {
			line = append(line, ls...)
		}
	default:
		return nil, ErrBadGeometry
	}

	r := &Route{
		Polyline:        make([]geo.Point, len(line)),
		DistanceMeters:  or.Distance,
		DurationSeconds: or.Duration,
	}
	for i, p := range line {
		r.Polyline[i] = geo.Point{Lat: p.Lat(), Lng: p.Lon()}
	}

	for li, leg := range or.Legs {
		for _, step := range leg.Steps {
			kind := ParseManeuverKind(step.Maneuver.Type)
			// Intermediate arrivals are waypoints, not the end of the route.
			if kind == KindArrive && li < len(or.Legs)-1 {
				continue
			}
			if kind == KindDepart && li > 0 {
				continue
			}
			m := Maneuver{
				Instruction:    instruction(kind, step.Maneuver.Modifier, step.Name),
				DistanceMeters: step.Distance,
				Kind:           kind,
				RoadName:       step.Name,
			}
			if len(step.Maneuver.Location) == 2 {
				m.Anchor = &geo.Point{Lat: step.Maneuver.Location[1], Lng: step.Maneuver.Location[0]}
			}
			r.Maneuvers = append(r.Maneuvers, m)
		}
	}
	return r, nil
}

// orderedWaypoints returns the request stops in the order the provider
// visits them.
func orderedWaypoints(req Request, wps []osrmWaypoint) []geo.Point {
	stops := append([]geo.Point(nil), req.Stops...)
	if !req.Optimize || len(wps) != len(stops) {
		return stops
	}
	idx := make([]int, len(stops))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return wps[idx[a]].WaypointIndex < wps[idx[b]].WaypointIndex
	})
	ordered := make([]geo.Point, len(stops))
	for i, j := range idx {
		ordered[i] = stops[j]
	}
	return ordered
}

func instruction(kind ManeuverKind, modifier, road string) string {
	var verb string
	switch kind {
	case KindDepart:
		verb = "Head out"
	case KindArrive:
		return "Arrive at destination"
	case KindRoundabout, KindRotary:
		verb = "Take the roundabout"
	case KindUTurn:
		verb = "Make a U-turn"
	case KindMerge:
		verb = "Merge"
	case KindFork:
		verb = "Keep " + modifier
	case KindRamp:
		verb = "Take the ramp"
	case KindContinue:
		verb = "Continue"
	default:
		if modifier != "" {
			verb = "Turn " + modifier
		} else {
			verb = "Continue"
		}
	}
	if road != "" {
		return verb + " onto " + road
	}
	return verb
}
