package gps

import "errors"

// Common errors returned by the location sources
var (
	ErrInvalidSpeed         = errors.New("speed must be positive")
	ErrInvalidFrameRate     = errors.New("frame rate must be positive and not above the display rate")
	ErrInvalidDisplayRate   = errors.New("display rate must be positive")
	ErrInvalidJitter        = errors.New("jitter must be between 0.0 and 1.0")
	ErrInvalidBaudRate      = errors.New("baud rate must be positive")
	ErrNoSerialPort         = errors.New("serial port is required")
	ErrInvalidReplaySpeed   = errors.New("replay speed must be positive")
	ErrEmptyRoute           = errors.New("route has no indexed polyline")
	ErrEmptyTrack           = errors.New("GPX file contains no track points")
	ErrSourceNotRunning     = errors.New("source is not running")
	ErrSourceAlreadyRunning = errors.New("source is already running")
	ErrPermissionDenied     = errors.New("location source permission denied")
	ErrNoFix                = errors.New("receiver reports no fix")
	ErrInvalidSentence      = errors.New("invalid NMEA sentence")
	ErrChecksumMismatch     = errors.New("NMEA checksum mismatch")
	ErrUnsupportedSentence  = errors.New("unsupported NMEA sentence")
)
