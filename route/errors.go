package route

import "errors"

var (
	ErrTooFewStops    = errors.New("a route request needs at least two stops")
	ErrInvalidMode    = errors.New("unknown travel mode")
	ErrNoRoute        = errors.New("provider returned no route")
	ErrBadGeometry    = errors.New("route geometry is not a line string")
	ErrProviderStatus = errors.New("routing provider returned an error status")
)
