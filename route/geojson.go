package route

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

func orbPoint(p geo.Point) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FeatureCollection renders the route line, its maneuvers and stops as
// GeoJSON for map clients.
func FeatureCollection(r *Route, ix *Index) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if r == nil {
		return fc
	}

	line := make(orb.LineString, len(r.Polyline))
	for i, p := range r.Polyline {
		line[i] = orbPoint(p)
	}
	f := geojson.NewFeature(line)
	f.Properties["kind"] = "route"
	f.Properties["distance_meters"] = r.DistanceMeters
	f.Properties["duration_seconds"] = r.DurationSeconds
	f.Properties["provider"] = r.Stats.Provider
	fc.Append(f)

	for i, m := range r.Maneuvers {
		var loc geo.Point
		switch {
		case ix != nil && i < len(ix.Maneuvers):
			loc = ix.Maneuvers[i].Location
		case m.Anchor != nil:
			loc = *m.Anchor
		default:
			continue
		}
		mf := geojson.NewFeature(orbPoint(loc))
		mf.Properties["kind"] = "maneuver"
		mf.Properties["index"] = i
		mf.Properties["type"] = m.Kind.String()
		mf.Properties["instruction"] = m.Instruction
		if ix != nil && i < len(ix.Maneuvers) {
			mf.Properties["distance_along"] = ix.Maneuvers[i].DistanceAlong
			mf.Properties["exit_bearing"] = ix.Maneuvers[i].ExitBearing
		}
		fc.Append(mf)
	}

	for i, s := range r.Stats.Waypoints {
		sf := geojson.NewFeature(orbPoint(s))
		sf.Properties["kind"] = "stop"
		sf.Properties["index"] = i
		fc.Append(sf)
	}
	return fc
}
