package nav

import (
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// CommitRider publishes the session's current position as its RiderState at
// most once per CommitInterval; later fixes inside the window are dropped
// from the committed state. The committed heading blends toward heading by
// RiderHeadingFactor and stays put below MinHeadingSpeedKmh.
func CommitRider(s Session, heading, speedKmh float64, now time.Time, cfg Config) (Session, bool) {
	if !s.lastCommit.IsZero() && now.Sub(s.lastCommit) < cfg.CommitInterval {
		return s, false
	}

	s.lastCommit = now
	s.Rider.Position = s.Position
	s.Rider.SpeedKmh = speedKmh
	s.Rider.Time = now

	if speedKmh >= cfg.MinHeadingSpeedKmh {
		if s.riderHeadingSet {
			s.Rider.HeadingDegrees = geo.SmoothAngle(s.Rider.HeadingDegrees, heading, cfg.RiderHeadingFactor)
		} else {
			s.Rider.HeadingDegrees = geo.NormalizeBearing(heading)
			s.riderHeadingSet = true
		}
	}
	return s, true
}

// SmoothHeading blends the rendering heading toward heading. It runs on
// every fix, independent of the commit gate.
func SmoothHeading(s Session, heading float64, cfg Config) Session {
	if !s.headingSet {
		s.SmoothedHeading = geo.NormalizeBearing(heading)
		s.headingSet = true
		return s
	}
	s.SmoothedHeading = geo.SmoothAngle(s.SmoothedHeading, heading, cfg.SmoothHeadingFactor)
	return s
}
