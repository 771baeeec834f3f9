package gps

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// replayTick is how often a running replay checks for the next point.
const replayTick = 50 * time.Millisecond

// Replay plays back a recorded GPX track as a location source
type Replay struct {
	mu        sync.RWMutex
	config    ReplayConfig
	name      string
	points    []TrackPoint
	timed     bool
	index     int
	completed bool
	running   bool
}

// NewReplay loads config.File for playback
func NewReplay(config ReplayConfig) (*Replay, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	points, err := ReadGPXFile(config.File)
	if err != nil {
		return nil, err
	}
	r, err := NewReplayPoints(points, config)
	if err != nil {
		return nil, err
	}
	r.name = "replay:" + filepath.Base(config.File)
	return r, nil
}

// NewReplayPoints plays back points instead of a file.
func NewReplayPoints(points []TrackPoint, config ReplayConfig) (*Replay, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrEmptyTrack
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &Replay{
		config: config,
		name:   "replay",
		points: points,
		timed:  hasSequentialTimestamps(points),
	}, nil
}

func (r *Replay) Name() string { return r.name }

// Run implements Source. Points are released in real time scaled by the
// replay speed, following the file's timestamps when they are sequential
// and a fixed interval otherwise.
func (r *Replay) Run(ctx context.Context, sink Sink) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrSourceAlreadyRunning
	}
	r.running = true
	r.completed = false
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(replayTick)
	defer ticker.Stop()

	start := time.Now()
	last := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			idx, completed := r.indexAt(now.Sub(start))
			if completed {
				if last != len(r.points)-1 {
					sink.PushFix(r.fixAt(len(r.points)-1, now))
				}
				if !r.config.Loop {
					r.setProgress(len(r.points)-1, true)
					return nil
				}
				// Loop back to start
				start = now
				last = -1
				continue
			}
			if idx != last {
				last = idx
				r.setProgress(idx, false)
				sink.PushFix(r.fixAt(idx, now))
			}
		}
	}
}

// indexAt returns the point that should be active elapsed into the replay,
// and whether the replay has run past its last point.
func (r *Replay) indexAt(elapsed time.Duration) (int, bool) {
	adjusted := time.Duration(float64(elapsed) * r.config.Speed)

	if r.timed {
		// Time-based progression using GPX timestamps
		target := r.points[0].Time.Add(adjusted)
		if target.After(r.points[len(r.points)-1].Time) {
			return len(r.points) - 1, true
		}
		idx := 0
		for i, p := range r.points {
			if p.Time.After(target) {
				break
			}
			idx = i
		}
		return idx, false
	}

	// Index-based progression when timestamps are not sequential
	idx := int(adjusted / r.config.Interval)
	if idx >= len(r.points) {
		return len(r.points) - 1, true
	}
	return idx, false
}

// fixAt builds the fix for point i. Speed and course come from the segment
// to the next point, or from the previous segment at the end of the track.
func (r *Replay) fixAt(i int, now time.Time) Fix {
	p := r.points[i]
	fix := Fix{
		Point:    p.Point(),
		Altitude: p.Elevation,
		Time:     now,
	}

	a, b := i, i+1
	if b >= len(r.points) {
		a, b = i-1, i
	}
	if a < 0 {
		return fix
	}

	from, to := r.points[a], r.points[b]
	distance := geo.Distance(from.Point(), to.Point())

	var timeDiff float64
	if r.timed {
		timeDiff = to.Time.Sub(from.Time).Seconds()
	} else {
		timeDiff = r.config.Interval.Seconds()
	}
	if timeDiff > 0 {
		fix.SpeedKmh = distance / timeDiff * 3.6
	}
	if distance > 0 {
		fix = fix.WithHeading(geo.Bearing(from.Point(), to.Point()))
	}
	return fix
}

func (r *Replay) setProgress(idx int, completed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = idx
	r.completed = completed
}

// Status returns the replay progress
func (r *Replay) Status() ReplayStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ReplayStatus{
		Running:   r.running,
		Index:     r.index,
		Total:     len(r.points),
		Completed: r.completed,
	}
}

// hasSequentialTimestamps checks if the points carry non-decreasing timestamps
func hasSequentialTimestamps(points []TrackPoint) bool {
	if len(points) < 2 {
		return false
	}
	if points[0].Time.IsZero() || !points[len(points)-1].Time.After(points[0].Time) {
		return false
	}

	for i := 0; i < len(points)-1; i++ {
		if points[i+1].Time.Before(points[i].Time) {
			return false
		}
	}
	return true
}
