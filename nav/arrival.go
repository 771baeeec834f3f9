package nav

import (
	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/gps"
)

// DetectArrival decides whether the rider has arrived. A simulated run
// arrives on its final fix. Live fixes arrive once ArrivalFixes consecutive
// fixes, taken while the last maneuver is active, fall within ArrivalRadius
// of that maneuver. Arrival is reported once per session.
func DetectArrival(s Session, fix gps.Fix, cfg Config) (Session, bool) {
	if s.Arrived {
		return s, false
	}
	if fix.Final {
		s.Arrived = true
		return s, true
	}
	if fix.Simulated || cfg.ArrivalFixes == 0 || !s.Indexed() {
		return s, false
	}

	last := s.Index.LastManeuver()
	if s.ActiveManeuver != last || geo.Distance(fix.Point, s.Index.Maneuvers[last].Location) > cfg.ArrivalRadius {
		s.ArrivalStreak = 0
		return s, false
	}

	s.ArrivalStreak++
	if s.ArrivalStreak < cfg.ArrivalFixes {
		return s, false
	}
	s.Arrived = true
	return s, true
}
