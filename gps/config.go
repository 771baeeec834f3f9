package gps

import "time"

// SimulatorConfig holds all configuration options for the route simulator
type SimulatorConfig struct {
	SpeedKmh    float64 `mapstructure:"speed_kmh" json:"speed_kmh"`
	FrameRate   int     `mapstructure:"frame_rate" json:"frame_rate"`     // logical frames per second
	DisplayRate int     `mapstructure:"display_rate" json:"display_rate"` // ticker rate; frames are skipped down to FrameRate
	Jitter      float64 `mapstructure:"jitter" json:"jitter"`             // GPS jitter factor (0.0-1.0)
	StartOffset float64 `mapstructure:"start_offset" json:"start_offset"` // meters along the route to start from
	Seed        int64   `mapstructure:"seed" json:"seed"`                 // jitter seed, 0 picks one from the clock
}

// DefaultSimulatorConfig returns a configuration with sensible defaults
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		SpeedKmh:    40,
		FrameRate:   30,
		DisplayRate: 60,
		Jitter:      0.0,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *SimulatorConfig) Validate() error {
	if c.SpeedKmh <= 0 {
		return ErrInvalidSpeed
	}
	if c.DisplayRate <= 0 {
		return ErrInvalidDisplayRate
	}
	if c.FrameRate <= 0 || c.FrameRate > c.DisplayRate {
		return ErrInvalidFrameRate
	}
	if c.Jitter < 0.0 || c.Jitter > 1.0 {
		return ErrInvalidJitter
	}
	return nil
}

// ReceiverConfig configures an NMEA receiver on a serial port
type ReceiverConfig struct {
	SerialPort string        `mapstructure:"serial_port" json:"serial_port"` // e.g. /dev/ttyUSB0, COM1
	BaudRate   int           `mapstructure:"baud_rate" json:"baud_rate"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"` // no fix for this long reports the source unavailable
}

// DefaultReceiverConfig returns a configuration with sensible defaults
func DefaultReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		BaudRate: 9600,
		Timeout:  5 * time.Second,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *ReceiverConfig) Validate() error {
	if c.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	return nil
}

// ReplayConfig configures a GPX replay source
type ReplayConfig struct {
	File  string  `mapstructure:"file" json:"file"`
	Speed float64 `mapstructure:"speed" json:"speed"` // replay speed multiplier (1.0 = real-time)
	Loop  bool    `mapstructure:"loop" json:"loop"`
	// Interval is the gap between points when the file has no usable
	// timestamps, at 1x speed.
	Interval time.Duration `mapstructure:"interval" json:"interval"`
}

// DefaultReplayConfig returns a configuration with sensible defaults
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *ReplayConfig) Validate() error {
	if c.Speed <= 0.0 {
		return ErrInvalidReplaySpeed
	}
	return nil
}
