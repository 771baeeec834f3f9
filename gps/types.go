package gps

import (
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// TrackPoint represents a point in a GPS track
type TrackPoint struct {
	Lat       float64
	Lon       float64
	Elevation float64
	Time      time.Time
}

// Point returns the track point's position.
func (p TrackPoint) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lon}
}

// SimulatorStatus represents the current simulator status
type SimulatorStatus struct {
	Running     bool            `json:"running"`
	StartTime   time.Time       `json:"start_time,omitempty"`
	ElapsedTime time.Duration   `json:"elapsed_time"`
	Position    geo.Point       `json:"position"`
	Distance    float64         `json:"distance"`
	Length      float64         `json:"length"`
	Frames      int             `json:"frames"`
	Completed   bool            `json:"completed"`
	Config      SimulatorConfig `json:"config"`
}

// ReplayStatus represents the progress of a GPX replay
type ReplayStatus struct {
	Running   bool `json:"running"`
	Index     int  `json:"index"`
	Total     int  `json:"total"`
	Completed bool `json:"completed"`
}
