package route

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileProvider serves a precomputed route from a YAML or JSON file. It is
// used for offline simulation and for tests. The requested stops replace the
// file's waypoints so that reroutes through it stay consistent.
type FileProvider struct {
	route *Route
}

// LoadRouteFile reads a route fixture. JSON is accepted as a YAML subset.
func LoadRouteFile(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file %s: %w", path, err)
	}
	var r Route
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse route file %s: %w", path, err)
	}
	if len(r.Polyline) == 0 {
		return nil, fmt.Errorf("route file %s: %w", path, ErrNoRoute)
	}
	if r.Stats.Provider == "" {
		r.Stats.Provider = "file:" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &r, nil
}

// NewFileProvider loads path and returns a provider serving it.
func NewFileProvider(path string) (*FileProvider, error) {
	r, err := LoadRouteFile(path)
	if err != nil {
		return nil, err
	}
	return &FileProvider{route: r}, nil
}

// Route implements Provider. Each call returns a fresh copy.
func (p *FileProvider) Route(ctx context.Context, req Request) (*Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := *p.route
	r.Polyline = append(r.Polyline[:0:0], p.route.Polyline...)
	r.Maneuvers = append(r.Maneuvers[:0:0], p.route.Maneuvers...)
	if len(req.Stops) > 0 {
		r.Stats.Waypoints = append(r.Stats.Waypoints[:0:0], req.Stops...)
	}
	if req.Mode != "" {
		r.Stats.Mode = req.Mode
	}
	return &r, nil
}
