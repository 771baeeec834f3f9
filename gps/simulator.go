package gps

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// maxPositionNoise is the position error in meters at full jitter.
const maxPositionNoise = 12.0

// Simulator replays a route polyline at a fixed speed. Every logical frame
// advances the same distance, so the simulated run is independent of how
// promptly the ticker fires.
type Simulator struct {
	mu         sync.RWMutex
	config     SimulatorConfig
	polyline   []geo.Point
	cumulative []float64
	rng        *rand.Rand

	distance      float64
	currentSpeed  float64 // km/h with jitter applied
	currentCourse float64 // degrees with jitter applied
	frames        int
	started       bool
	done          bool

	running   bool
	startTime time.Time
	ticker    *time.Ticker
}

// NewSimulator creates a simulator over polyline
func NewSimulator(polyline []geo.Point, config SimulatorConfig) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(polyline) < 2 {
		return nil, ErrEmptyRoute
	}
	cum := geo.CumulativeDistances(polyline)
	if cum[len(cum)-1] <= 0 {
		return nil, ErrEmptyRoute
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Simulator{
		config:     config,
		polyline:   polyline,
		cumulative: cum,
		rng:        rand.New(rand.NewSource(seed)),
		distance:   math.Min(math.Max(config.StartOffset, 0), cum[len(cum)-1]),
	}, nil
}

// Name implements Source.
func (s *Simulator) Name() string { return "simulator" }

// Length returns the route length in meters.
func (s *Simulator) Length() float64 {
	return s.cumulative[len(s.cumulative)-1]
}

// Run implements Source. It ticks at the display rate and produces one fix
// per logical frame until the end of the route is reached or ctx is done.
func (s *Simulator) Run(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSourceAlreadyRunning
	}
	s.running = true
	s.startTime = time.Now()
	s.ticker = time.NewTicker(time.Second / time.Duration(s.config.DisplayRate))
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ticker.Stop()
		s.running = false
		s.mu.Unlock()
	}()

	ticks := 0
	for {
		s.mu.RLock()
		tickC := s.ticker.C
		skip := s.frameSkip()
		s.mu.RUnlock()

		select {
		case <-ctx.Done():
			return nil
		case now := <-tickC:
			ticks++
			if ticks%skip != 0 {
				continue
			}
			fix := s.Step(now)
			sink.PushFix(fix)
			if fix.Final {
				return nil
			}
		}
	}
}

// frameSkip is the number of display ticks per logical frame.
func (s *Simulator) frameSkip() int {
	return max(1, s.config.DisplayRate/s.config.FrameRate)
}

// Step produces the next logical frame. The first call reports the start
// position; each later call advances SpeedKmh/FrameRate worth of distance.
// The fix that reaches the end of the route is marked Final.
func (s *Simulator) Step(now time.Time) Fix {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := s.Length()
	if s.started && !s.done {
		s.distance = math.Min(s.distance+s.stepMeters(), length)
	}
	s.started = true
	s.frames++

	point, bearing := s.pointAt(s.distance)
	s.updateSpeedAndCourse(bearing)
	point = s.applyPositionNoise(point)

	s.done = s.distance >= length
	course := s.currentCourse
	return Fix{
		Point:     point,
		Heading:   &course,
		SpeedKmh:  s.currentSpeed,
		Time:      now,
		Simulated: true,
		Final:     s.done,
	}
}

func (s *Simulator) stepMeters() float64 {
	return s.config.SpeedKmh / 3.6 / float64(s.config.FrameRate)
}

// pointAt interpolates the polyline d meters from its start.
func (s *Simulator) pointAt(d float64) (geo.Point, float64) {
	n := len(s.polyline)
	for i := 1; i < n; i++ {
		if s.cumulative[i] < d {
			continue
		}
		seg := s.cumulative[i] - s.cumulative[i-1]
		if seg <= 0 {
			continue
		}
		t := (d - s.cumulative[i-1]) / seg
		return geo.Lerp(s.polyline[i-1], s.polyline[i], t), geo.Bearing(s.polyline[i-1], s.polyline[i])
	}
	return s.polyline[n-1], geo.Bearing(s.polyline[n-2], s.polyline[n-1])
}

// updateSpeedAndCourse applies jitter to speed and course
func (s *Simulator) updateSpeedAndCourse(bearing float64) {
	var speedVariation, courseVariation float64

	if s.config.Jitter == 0.0 {
		speedVariation = 0.0
		courseVariation = 0.0
	} else if s.config.Jitter < 0.2 {
		speedVariation = 0.05
		courseVariation = 2.0
	} else if s.config.Jitter < 0.7 {
		speedVariation = 0.10 + (s.config.Jitter-0.2)*0.40
		courseVariation = 5.0 + (s.config.Jitter-0.2)*20.0
	} else {
		speedVariation = 0.30 + (s.config.Jitter-0.7)*0.67
		courseVariation = 15.0 + (s.config.Jitter-0.7)*50.0
	}

	speedDelta := (s.rng.Float64() - 0.5) * 2 * s.config.SpeedKmh * speedVariation
	s.currentSpeed = math.Max(0, s.config.SpeedKmh+speedDelta)

	courseDelta := (s.rng.Float64() - 0.5) * 2 * courseVariation
	s.currentCourse = geo.NormalizeBearing(bearing + courseDelta)
}

// applyPositionNoise scatters the reported position around the true one.
func (s *Simulator) applyPositionNoise(p geo.Point) geo.Point {
	if s.config.Jitter == 0 {
		return p
	}
	r := s.rng.Float64() * s.config.Jitter * maxPositionNoise
	return geo.Destination(p, s.rng.Float64()*360, r)
}

// IsRunning returns whether the simulator is currently running
func (s *Simulator) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the current simulator status
func (s *Simulator) Status() SimulatorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var elapsed time.Duration
	if s.running {
		elapsed = time.Since(s.startTime)
	}
	point, _ := s.pointAt(s.distance)
	return SimulatorStatus{
		Running:     s.running,
		StartTime:   s.startTime,
		ElapsedTime: elapsed,
		Position:    point,
		Distance:    s.distance,
		Length:      s.Length(),
		Frames:      s.frames,
		Completed:   s.done,
		Config:      s.config,
	}
}

// UpdateConfig updates the simulator configuration (can be called while running)
func (s *Simulator) UpdateConfig(newConfig SimulatorConfig) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldRate := s.config.DisplayRate
	s.config = newConfig

	// If the display rate changed and the simulator is running, restart the ticker
	if s.running && oldRate != newConfig.DisplayRate {
		s.ticker.Stop()
		s.ticker = time.NewTicker(time.Second / time.Duration(newConfig.DisplayRate))
	}

	return nil
}
