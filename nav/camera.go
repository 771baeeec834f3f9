package nav

import (
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// PlanCamera computes the follow-mode camera. The map bearing eases toward
// the smoothed heading and the center is pushed ahead of the rider along it,
// so the rider sits below the middle of the view. ok is false when follow
// mode is off, no position is known yet, or the previous camera is younger
// than CameraInterval.
func PlanCamera(s Session, now time.Time, cfg Config) (Session, Camera, bool) {
	if !s.Follow || !s.hasPosition {
		return s, Camera{}, false
	}
	if !s.lastCamera.IsZero() && now.Sub(s.lastCamera) < cfg.CameraInterval {
		return s, Camera{}, false
	}
	s.lastCamera = now

	if s.mapBearingSet {
		s.MapBearing = geo.SmoothAngle(s.MapBearing, s.SmoothedHeading, cfg.MapBearingFactor)
	} else {
		s.MapBearing = s.SmoothedHeading
		s.mapBearingSet = true
	}

	offset := cfg.CameraOffsetPixels * geo.MetersPerPixel(s.Position.Lat, cfg.CameraZoom)
	return s, Camera{
		Center:  geo.Destination(s.Position, s.MapBearing, offset),
		Bearing: s.MapBearing,
		Pitch:   cfg.CameraPitch,
		Zoom:    cfg.CameraZoom,
	}, true
}
