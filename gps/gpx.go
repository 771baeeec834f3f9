package gps

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tkrajina/gpxgo/gpx"
)

const (
	gpxCreator    = "go-gps-navigator"
	gpxFlushEvery = 10 // points between periodic writes
)

// TrackRecorder writes fixes to a GPX track file. The file is rewritten
// every few points so a crash loses little of the track.
type TrackRecorder struct {
	mu       sync.Mutex
	filename string
	doc      *gpx.GPX
	file     *os.File
}

// NewTrackRecorder creates filename and starts an empty track in it
func NewTrackRecorder(filename, trackName string) (*TrackRecorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}

	doc := &gpx.GPX{
		Version: "1.1",
		Creator: gpxCreator,
		Tracks: []gpx.GPXTrack{{
			Name:     trackName,
			Segments: []gpx.GPXTrackSegment{{}},
		}},
	}

	return &TrackRecorder{
		filename: filename,
		doc:      doc,
		file:     file,
	}, nil
}

// AddFix appends f to the track and writes the file every few points.
func (w *TrackRecorder) AddFix(f Fix) error {
	t := f.Time
	if t.IsZero() {
		t = time.Now()
	}
	if w.AddTrackPoint(f.Point.Lat, f.Point.Lng, f.Altitude, t)%gpxFlushEvery == 0 {
		return w.WriteToFile()
	}
	return nil
}

// AddTrackPoint adds a new track point and returns the new point count
func (w *TrackRecorder) AddTrackPoint(lat, lon, elevation float64, timestamp time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	point := gpx.GPXPoint{
		Point: gpx.Point{
			Latitude:  lat,
			Longitude: lon,
		},
		Timestamp: timestamp.UTC(),
	}
	point.Elevation.SetValue(elevation)

	seg := &w.doc.Tracks[0].Segments[0]
	seg.Points = append(seg.Points, point)
	return len(seg.Points)
}

// WriteToFile rewrites the file with the current track
func (w *TrackRecorder) WriteToFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}

	data, err := w.doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}

	if _, err := w.file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek to beginning of file: %w", err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("failed to write GPX data: %w", err)
	}

	// Flush to ensure data is written
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// Close writes the final track and closes the file
func (w *TrackRecorder) Close() error {
	if err := w.WriteToFile(); err != nil {
		if err == os.ErrClosed {
			return nil
		}
		w.closeFile()
		return err
	}
	return w.closeFile()
}

func (w *TrackRecorder) closeFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// GetTrackPointCount returns the number of track points currently stored
func (w *TrackRecorder) GetTrackPointCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.doc.Tracks[0].Segments[0].Points)
}

// Filename returns the path being written.
func (w *TrackRecorder) Filename() string {
	return w.filename
}

// ReadGPXFile reads and parses a GPX file, returning its track points. Track
// segments are concatenated; files without tracks fall back to their first
// route.
func ReadGPXFile(filename string) ([]TrackPoint, error) {
	doc, err := gpx.ParseFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file %s: %w", filename, err)
	}

	var points []TrackPoint
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				points = append(points, trackPoint(p))
			}
		}
	}

	// Convert route points to track points
	if len(points) == 0 && len(doc.Routes) > 0 {
		for _, p := range doc.Routes[0].Points {
			points = append(points, trackPoint(p))
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyTrack)
	}
	return points, nil
}

func trackPoint(p gpx.GPXPoint) TrackPoint {
	var ele float64
	if p.Elevation.NotNull() {
		ele = p.Elevation.Value()
	}
	return TrackPoint{
		Lat:       p.Latitude,
		Lon:       p.Longitude,
		Elevation: ele,
		Time:      p.Timestamp,
	}
}
