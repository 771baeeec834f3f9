package nav

import (
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/route"
)

var (
	testOrigin = geo.Point{Lat: 37.7749, Lng: -122.4194}
	testEpoch  = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
)

// lShape goes north for legMeters, then east for legMeters, with a vertex
// every stepMeters.
func lShape(legMeters, stepMeters float64) []geo.Point {
	poly := []geo.Point{testOrigin}
	for d := stepMeters; d <= legMeters+1e-9; d += stepMeters {
		poly = append(poly, geo.Destination(testOrigin, 0, d))
	}
	corner := poly[len(poly)-1]
	for d := stepMeters; d <= legMeters+1e-9; d += stepMeters {
		poly = append(poly, geo.Destination(corner, 90, d))
	}
	return poly
}

// testRoute is a 200 m L with a depart, a right turn at 100 m and an arrival.
func testRoute() (*route.Route, route.Request) {
	poly := lShape(100, 10)
	corner, end := poly[10], poly[len(poly)-1]
	r := &route.Route{
		Polyline:        poly,
		DistanceMeters:  200,
		DurationSeconds: 40,
		Maneuvers: []route.Maneuver{
			{Kind: route.KindDepart, Instruction: "Head north", Anchor: &poly[0], DistanceMeters: 100},
			{Kind: route.KindTurn, Instruction: "Turn right onto Market St", Anchor: &corner, DistanceMeters: 100, RoadName: "Market St"},
			{Kind: route.KindArrive, Instruction: "Arrive", Anchor: &end},
		},
		Stats: route.Stats{Provider: "test", Mode: route.ModeDriving},
	}
	req := route.Request{
		Stops: []geo.Point{testOrigin, corner, end},
		Mode:  route.ModeDriving,
	}
	return r, req
}

// straightRoute runs north for 2*half meters with one maneuver at the
// midpoint and the arrival at the end.
func straightRoute(half float64) (*route.Route, route.Request) {
	mid := geo.Destination(testOrigin, 0, half)
	end := geo.Destination(testOrigin, 0, 2*half)
	r := &route.Route{
		Polyline:       []geo.Point{testOrigin, mid, end},
		DistanceMeters: 2 * half,
		Maneuvers: []route.Maneuver{
			{Kind: route.KindContinue, Instruction: "Continue", Anchor: &mid, DistanceMeters: half},
			{Kind: route.KindArrive, Instruction: "Arrive", Anchor: &end},
		},
	}
	return r, route.Request{Stops: []geo.Point{testOrigin, end}, Mode: route.ModeDriving}
}

func testSession() Session {
	r, req := testRoute()
	return NewSession(r, req, testEpoch)
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func countEvents(events []Event, t EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
