// Package config loads the navigator's application configuration from a
// YAML file, GPSNAV_ environment variables and .env files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/logging"
	"github.com/Bucknalla/go-gps-navigator/nav"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// EnvPrefix prefixes every environment override, e.g.
// GPSNAV_NAVIGATION_REROUTE_COOLDOWN=20s.
const EnvPrefix = "GPSNAV"

// ServerConfig configures the HTTP and websocket API.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" json:"addr" validate:"required"`
	StaticDir    string        `mapstructure:"static_dir" json:"static_dir"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"gte=0"`
}

// RoutingConfig selects and tunes the route provider.
type RoutingConfig struct {
	Provider  string        `mapstructure:"provider" json:"provider" validate:"oneof=osrm file"`
	OSRMURL   string        `mapstructure:"osrm_url" json:"osrm_url" validate:"required_if=Provider osrm"`
	File      string        `mapstructure:"file" json:"file" validate:"required_if=Provider file"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout" validate:"gte=0"`
	CacheSize int           `mapstructure:"cache_size" json:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" json:"cache_ttl" validate:"gte=0"`
}

// TripConfig is the trip planned at startup in headless mode. Stops are
// "lat,lng" strings, origin first.
type TripConfig struct {
	Stops []string `mapstructure:"stops" json:"stops" validate:"omitempty,min=2"`
	Mode  string   `mapstructure:"mode" json:"mode" validate:"omitempty,oneof=driving cycling walking"`
}

// AppConfig holds the entire configuration.
type AppConfig struct {
	Server     ServerConfig        `mapstructure:"server" json:"server"`
	Log        logging.Config      `mapstructure:"log" json:"log"`
	Routing    RoutingConfig       `mapstructure:"routing" json:"routing"`
	Trip       TripConfig          `mapstructure:"trip" json:"trip"`
	Navigation nav.Config          `mapstructure:"navigation" json:"navigation"`
	Simulator  gps.SimulatorConfig `mapstructure:"simulator" json:"simulator"`
	Receiver   gps.ReceiverConfig  `mapstructure:"receiver" json:"receiver"`
	Replay     gps.ReplayConfig    `mapstructure:"replay" json:"replay"`
}

// Default returns a configuration with sensible defaults
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:         ":8080",
			StaticDir:    "static",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Log: logging.DefaultConfig(),
		Routing: RoutingConfig{
			Provider:  "osrm",
			OSRMURL:   "https://router.project-osrm.org",
			Timeout:   10 * time.Second,
			CacheSize: 64,
			CacheTTL:  10 * time.Minute,
		},
		Trip:       TripConfig{Mode: string(route.ModeDriving)},
		Navigation: nav.DefaultConfig(),
		Simulator:  gps.DefaultSimulatorConfig(),
		Receiver:   gps.DefaultReceiverConfig(),
		Replay:     gps.DefaultReplayConfig(),
	}
}

var validate = validator.New()

// Validate checks struct constraints and each component's own rules.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Navigation.Validate(); err != nil {
		return fmt.Errorf("navigation: %w", err)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	if err := c.Receiver.Validate(); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	if err := c.Replay.Validate(); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if _, err := c.Trip.Request(); err != nil {
		return fmt.Errorf("trip: %w", err)
	}
	return nil
}

// Request converts the trip into a route request. It returns a zero request
// when no stops are configured.
func (t TripConfig) Request() (route.Request, error) {
	if len(t.Stops) == 0 {
		return route.Request{}, nil
	}
	req := route.Request{Mode: route.Mode(t.Mode)}
	for _, s := range t.Stops {
		p, err := geo.ParsePoint(s)
		if err != nil {
			return route.Request{}, err
		}
		req.Stops = append(req.Stops, p)
	}
	return req, req.Validate()
}

// LoadDotEnv loads environment variables from .env files. Missing files are
// skipped; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// flatten lists every leaf key of cfg in viper's dotted form, using the
// json field names which mirror the mapstructure ones.
func flatten(cfg AppConfig) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := strings.TrimPrefix(prefix+"."+k, ".")
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			out[key] = v
		}
	}
	walk("", tree)
	return out, nil
}
