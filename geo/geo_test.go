package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	sf := Point{Lat: 37.7749, Lng: -122.4194}
	oak := Point{Lat: 37.8044, Lng: -122.2712}

	assert.Zero(t, Distance(sf, sf))
	// SF to Oakland is about 13.4 km.
	assert.InDelta(t, 13400, Distance(sf, oak), 200)
	assert.InDelta(t, Distance(sf, oak), Distance(oak, sf), 1e-6)

	// One degree of latitude.
	assert.InDelta(t, 111195, Distance(Point{0, 0}, Point{1, 0}), 1)
}

func TestBearing(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{Lat: 1, Lng: 0}, 0},
		{"east", Point{Lat: 0, Lng: 1}, 90},
		{"south", Point{Lat: -1, Lng: 0}, 180},
		{"west", Point{Lat: 0, Lng: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestBearingDeltaWraps(t *testing.T) {
	assert.InDelta(t, 20, BearingDelta(350, 10), 1e-9)
	assert.InDelta(t, 20, BearingDelta(10, 350), 1e-9)
	assert.InDelta(t, 180, BearingDelta(0, 180), 1e-9)
	assert.InDelta(t, 0, BearingDelta(720, 0), 1e-9)
	assert.InDelta(t, 90, BearingDelta(-45, 45), 1e-9)
}

func TestSmoothAngle(t *testing.T) {
	// Full blend reaches the target through the short way.
	assert.InDelta(t, 10, SmoothAngle(350, 10, 1.0), 1e-9)
	// Half blend crosses north rather than swinging through 180.
	assert.InDelta(t, 0, SmoothAngle(350, 10, 0.5), 1e-9)
	assert.InDelta(t, 350, SmoothAngle(350, 10, 0), 1e-9)
	assert.InDelta(t, 355, SmoothAngle(10, 340, 0.5), 1e-9)

	for _, f := range []float64{0, 0.12, 0.5, 1} {
		got := SmoothAngle(359.9, 0.1, f)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 360.0)
	}
}

func TestLerpClamps(t *testing.T) {
	a := Point{Lat: 10, Lng: 20}
	b := Point{Lat: 20, Lng: 40}

	assert.Equal(t, Point{Lat: 15, Lng: 30}, Lerp(a, b, 0.5))
	assert.Equal(t, a, Lerp(a, b, -1))
	assert.Equal(t, b, Lerp(a, b, 2))
}

func TestNormalizeBearing(t *testing.T) {
	assert.InDelta(t, 0, NormalizeBearing(360), 1e-12)
	assert.InDelta(t, 270, NormalizeBearing(-90), 1e-12)
	assert.InDelta(t, 45, NormalizeBearing(765), 1e-12)
	assert.Less(t, NormalizeBearing(-1e-15), 360.0)
}

func TestDestinationRoundTrip(t *testing.T) {
	start := Point{Lat: 37.7749, Lng: -122.4194}
	for _, bearing := range []float64{0, 45, 90, 180, 270, 333} {
		end := Destination(start, bearing, 500)
		assert.InDelta(t, 500, Distance(start, end), 0.01)
		assert.InDelta(t, 0, BearingDelta(bearing, Bearing(start, end)), 0.01)
	}
}

func TestDestinationWrapsLongitude(t *testing.T) {
	p := Destination(Point{Lat: 0, Lng: 179.9999}, 90, 1000)
	assert.Less(t, p.Lng, 0.0)
	assert.GreaterOrEqual(t, p.Lng, -180.0)
}

func TestCumulativeDistances(t *testing.T) {
	assert.Nil(t, CumulativeDistances(nil))

	poly := []Point{{0, 0}, {0, 0.001}, {0, 0.001}, {0.001, 0.001}}
	cum := CumulativeDistances(poly)
	require.Len(t, cum, len(poly))
	assert.Zero(t, cum[0])
	for i := 1; i < len(cum); i++ {
		assert.GreaterOrEqual(t, cum[i], cum[i-1])
	}
	assert.Equal(t, cum[1], cum[2], "duplicate vertex adds no distance")
}

func TestMetersPerPixel(t *testing.T) {
	assert.InDelta(t, 156543.03392, MetersPerPixel(0, 0), 1e-6)
	assert.InDelta(t, 156543.03392/math.Pow(2, 17), MetersPerPixel(0, 17), 1e-9)
	assert.Less(t, MetersPerPixel(60, 17), MetersPerPixel(0, 17))
}

func TestPlanarDistance(t *testing.T) {
	assert.InDelta(t, 5, PlanarDistance(Point{0, 0}, Point{3, 4}), 1e-12)
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("37.7749, -122.4194")
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: 37.7749, Lng: -122.4194}, p)

	for _, bad := range []string{"", "37.7", "abc,1", "1,abc", "91,0", "0,181"} {
		_, err := ParsePoint(bad)
		assert.ErrorIs(t, err, ErrInvalidPoint, bad)
	}
}
