package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

// Mode is the travel mode requested from a provider.
type Mode string

const (
	ModeDriving Mode = "driving"
	ModeCycling Mode = "cycling"
	ModeWalking Mode = "walking"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeDriving, ModeCycling, ModeWalking:
		return true
	}
	return false
}

// Avoid lists road classes a provider should avoid.
type Avoid struct {
	Tolls    bool `json:"tolls,omitempty" yaml:"tolls,omitempty"`
	Highways bool `json:"highways,omitempty" yaml:"highways,omitempty"`
	Ferries  bool `json:"ferries,omitempty" yaml:"ferries,omitempty"`
}

// Request asks a provider for a route through Stops in order. With Optimize
// set the provider may reorder the intermediate stops; the first and last
// stop stay fixed.
type Request struct {
	Stops    []geo.Point `json:"stops"`
	Mode     Mode        `json:"mode"`
	Avoid    Avoid       `json:"avoid"`
	Optimize bool        `json:"optimize,omitempty"`
}

// Validate checks that the request can be sent to a provider.
func (r Request) Validate() error {
	if len(r.Stops) < 2 {
		return ErrTooFewStops
	}
	if r.Mode != "" && !r.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, r.Mode)
	}
	return nil
}

// Key returns a stable string identifying the request, used for caching.
func (r Request) Key() string {
	var b strings.Builder
	mode := r.Mode
	if mode == "" {
		mode = ModeDriving
	}
	fmt.Fprintf(&b, "%s|t%v|h%v|f%v|o%v", mode, r.Avoid.Tolls, r.Avoid.Highways, r.Avoid.Ferries, r.Optimize)
	for _, s := range r.Stops {
		fmt.Fprintf(&b, "|%.6f,%.6f", s.Lat, s.Lng)
	}
	return b.String()
}

// Provider computes routes. Implementations must be safe for concurrent use.
type Provider interface {
	Route(ctx context.Context, req Request) (*Route, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*Route, error)

func (f ProviderFunc) Route(ctx context.Context, req Request) (*Route, error) {
	return f(ctx, req)
}
