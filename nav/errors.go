package nav

import "errors"

// Common errors returned by the navigation engine
var (
	ErrInvalidInterval     = errors.New("intervals must be non-negative")
	ErrInvalidFactor       = errors.New("smoothing factors must be in (0, 1]")
	ErrInvalidSpeed        = errors.New("minimum heading speed must be non-negative")
	ErrInvalidStrikeLimit  = errors.New("off-route strike limit must be at least 1")
	ErrInvalidCooldown     = errors.New("reroute cooldown must be non-negative")
	ErrInvalidPublishDelta = errors.New("publish delta must be non-negative")
	ErrInvalidPitch        = errors.New("camera pitch must be between 0 and 85 degrees")
	ErrInvalidZoom         = errors.New("camera zoom must be between 0 and 24")
	ErrInvalidArrival      = errors.New("arrival radius must be positive and arrival fixes non-negative")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNoRoute             = errors.New("no route has been planned")
	ErrPlanFailed          = errors.New("route planning failed")
	ErrNoSession           = errors.New("navigation is not active")
	ErrEngineRunning       = errors.New("engine is already running")
	ErrEngineStopped       = errors.New("engine is not running")
)
