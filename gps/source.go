package gps

import (
	"context"
	"sync"
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// Fix is one position report from a location source.
type Fix struct {
	Point      geo.Point `json:"point"`
	Heading    *float64  `json:"heading,omitempty"` // degrees, nil when the source has no course
	SpeedKmh   float64   `json:"speed_kmh"`
	Altitude   float64   `json:"altitude,omitempty"`
	Satellites int       `json:"satellites,omitempty"`
	Time       time.Time `json:"time"`
	Simulated  bool      `json:"simulated,omitempty"`
	Final      bool      `json:"final,omitempty"` // last fix of a simulated run
}

// HeadingOr returns the fix heading, or fallback when the fix carries none.
func (f Fix) HeadingOr(fallback float64) float64 {
	if f.Heading == nil {
		return fallback
	}
	return *f.Heading
}

// WithHeading returns a copy of f with its heading set.
func (f Fix) WithHeading(deg float64) Fix {
	h := geo.NormalizeBearing(deg)
	f.Heading = &h
	return f
}

// Sink receives the output of a Source. Implementations must not block for
// long; sources call them from their own goroutine.
type Sink interface {
	PushFix(Fix)
	PushError(error)
}

// Source produces fixes. Run streams into sink until ctx is cancelled or the
// source is exhausted, and returns nil in both cases. Errors that end the
// source early are returned; recoverable ones go to sink.PushError.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// SinkFuncs adapts a pair of functions to the Sink interface. Nil fields
// discard their input.
type SinkFuncs struct {
	Fix   func(Fix)
	Error func(error)
}

func (s SinkFuncs) PushFix(f Fix) {
	if s.Fix != nil {
		s.Fix(f)
	}
}

func (s SinkFuncs) PushError(err error) {
	if s.Error != nil {
		s.Error(err)
	}
}

// PushSource forwards fixes handed to Push, for example fixes posted by a
// browser's geolocation watch. Push fails while the source is not running.
type PushSource struct {
	mu      sync.Mutex
	fixes   chan Fix
	running bool
}

// NewPushSource returns a push source buffering up to size fixes.
func NewPushSource(size int) *PushSource {
	if size <= 0 {
		size = 16
	}
	return &PushSource{fixes: make(chan Fix, size)}
}

func (p *PushSource) Name() string { return "push" }

// Push queues a fix. When the buffer is full the oldest queued fix is
// dropped, since a newer position supersedes it.
func (p *PushSource) Push(f Fix) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrSourceNotRunning
	}
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	for {
		select {
		case p.fixes <- f:
			return nil
		default:
		}
		select {
		case <-p.fixes:
		default:
		}
	}
}

// Run implements Source.
func (p *PushSource) Run(ctx context.Context, sink Sink) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrSourceAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-p.fixes:
			sink.PushFix(f)
		}
	}
}

// IsRunning reports whether Run is active.
func (p *PushSource) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
