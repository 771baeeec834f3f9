package nav

import "time"

// Config holds the tuning constants of the navigation pipeline
type Config struct {
	// CommitInterval is the minimum gap between committed rider states.
	CommitInterval      time.Duration `mapstructure:"commit_interval" json:"commit_interval"`
	RiderHeadingFactor  float64       `mapstructure:"rider_heading_factor" json:"rider_heading_factor"`
	SmoothHeadingFactor float64       `mapstructure:"smooth_heading_factor" json:"smooth_heading_factor"`
	MapBearingFactor    float64       `mapstructure:"map_bearing_factor" json:"map_bearing_factor"`

	// The committed heading is frozen below this speed.
	MinHeadingSpeedKmh float64 `mapstructure:"min_heading_speed_kmh" json:"min_heading_speed_kmh"`

	// PositionSmoothing is the raw-fix lerp used when the route cannot be indexed.
	PositionSmoothing float64 `mapstructure:"position_smoothing" json:"position_smoothing"`

	StrikeLimit     int           `mapstructure:"strike_limit" json:"strike_limit"`
	RerouteCooldown time.Duration `mapstructure:"reroute_cooldown" json:"reroute_cooldown"`

	// PublishDelta is how far remaining meters must move before republishing.
	PublishDelta float64 `mapstructure:"publish_delta" json:"publish_delta"`

	CameraInterval     time.Duration `mapstructure:"camera_interval" json:"camera_interval"`
	CameraPitch        float64       `mapstructure:"camera_pitch" json:"camera_pitch"`
	CameraZoom         float64       `mapstructure:"camera_zoom" json:"camera_zoom"`
	CameraOffsetPixels float64       `mapstructure:"camera_offset_pixels" json:"camera_offset_pixels"`

	// Live arrival: ArrivalFixes consecutive fixes within ArrivalRadius meters
	// of the final maneuver. Zero fixes disables it.
	ArrivalRadius float64 `mapstructure:"arrival_radius" json:"arrival_radius"`
	ArrivalFixes  int     `mapstructure:"arrival_fixes" json:"arrival_fixes"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		CommitInterval:      100 * time.Millisecond,
		RiderHeadingFactor:  0.15,
		SmoothHeadingFactor: 0.12,
		MapBearingFactor:    0.1,
		MinHeadingSpeedKmh:  3,
		PositionSmoothing:   0.5,
		StrikeLimit:         3,
		RerouteCooldown:     15 * time.Second,
		PublishDelta:        10,
		CameraInterval:      40 * time.Millisecond,
		CameraPitch:         60,
		CameraZoom:          17,
		CameraOffsetPixels:  120,
		ArrivalRadius:       25,
		ArrivalFixes:        3,
	}
}

func validFactor(f float64) bool {
	return f > 0 && f <= 1
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.CommitInterval < 0 || c.CameraInterval < 0 {
		return ErrInvalidInterval
	}
	if !validFactor(c.RiderHeadingFactor) || !validFactor(c.SmoothHeadingFactor) ||
		!validFactor(c.MapBearingFactor) || !validFactor(c.PositionSmoothing) {
		return ErrInvalidFactor
	}
	if c.MinHeadingSpeedKmh < 0 {
		return ErrInvalidSpeed
	}
	if c.StrikeLimit < 1 {
		return ErrInvalidStrikeLimit
	}
	if c.RerouteCooldown < 0 {
		return ErrInvalidCooldown
	}
	if c.PublishDelta < 0 {
		return ErrInvalidPublishDelta
	}
	if c.CameraPitch < 0 || c.CameraPitch > 85 {
		return ErrInvalidPitch
	}
	if c.CameraZoom < 0 || c.CameraZoom > 24 {
		return ErrInvalidZoom
	}
	if c.ArrivalRadius <= 0 || c.ArrivalFixes < 0 {
		return ErrInvalidArrival
	}
	return nil
}
