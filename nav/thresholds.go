package nav

// Thresholds are the speed-dependent distances and angles used by the
// maneuver tracker and the off-route detector.
type Thresholds struct {
	Advance  float64 // meters before a maneuver at which a bearing match advances
	Bearing  float64 // maximum heading deviation from the exit bearing, degrees
	OffRoute float64 // lateral distance that counts as an off-route strike
}

type thresholdBucket struct {
	maxSpeedKmh float64
	Thresholds
}

// The last bucket catches every speed.
var thresholdTable = []thresholdBucket{
	{10, Thresholds{Advance: 20, Bearing: 70, OffRoute: 25}},
	{30, Thresholds{Advance: 30, Bearing: 55, OffRoute: 35}},
	{60, Thresholds{Advance: 50, Bearing: 45, OffRoute: 55}},
	{0, Thresholds{Advance: 80, Bearing: 35, OffRoute: 80}},
}

// ThresholdsFor returns the thresholds for a speed in km/h. Negative and NaN
// speeds fall into the slowest bucket.
func ThresholdsFor(speedKmh float64) Thresholds {
	if !(speedKmh > 0) {
		return thresholdTable[0].Thresholds
	}
	for _, b := range thresholdTable[:len(thresholdTable)-1] {
		if speedKmh <= b.maxSpeedKmh {
			return b.Thresholds
		}
	}
	return thresholdTable[len(thresholdTable)-1].Thresholds
}
