package gps

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

func testFix() Fix {
	f := Fix{
		Point:      geo.Point{Lat: 37.7749, Lng: -122.4194},
		SpeedKmh:   10,
		Altitude:   45.0,
		Satellites: 9,
		Time:       time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
	}
	return f.WithHeading(90)
}

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		expected string
	}{
		{
			name:     "Simple GGA sentence",
			sentence: "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
			expected: "47",
		},
		{
			name:     "Simple RMC sentence",
			sentence: "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W",
			expected: "6A",
		},
		{
			name:     "Empty fields",
			sentence: "$GPGGA,,,,,,,,,,,,,,,",
			expected: "7A",
		},
		{
			name:     "Single character after $",
			sentence: "$A",
			expected: "41",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calculateChecksum(tt.sentence)
			if result != tt.expected {
				t.Errorf("calculateChecksum(%q) = %q, want %q", tt.sentence, result, tt.expected)
			}
		})
	}
}

func TestFormatNMEA(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		expected string
	}{
		{
			name:     "Simple sentence",
			sentence: "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
			expected: "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n",
		},
		{
			name:     "RMC sentence",
			sentence: "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W",
			expected: "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatNMEA(tt.sentence)
			if result != tt.expected {
				t.Errorf("formatNMEA(%q) = %q, want %q", tt.sentence, result, tt.expected)
			}
		})
	}
}

func TestFormatGGA(t *testing.T) {
	result := FormatGGA(testFix())

	if !strings.HasPrefix(result, "$GPGGA,") {
		t.Errorf("FormatGGA should start with '$GPGGA,', got: %s", result)
	}
	if !strings.Contains(result, "103045") {
		t.Errorf("FormatGGA should contain time '103045', got: %s", result)
	}
	if !strings.Contains(result, "3746.4940,N") {
		t.Errorf("FormatGGA should contain latitude '3746.4940,N', got: %s", result)
	}
	if !strings.Contains(result, "12225.1640,W") {
		t.Errorf("FormatGGA should contain longitude '12225.1640,W', got: %s", result)
	}
	if !strings.Contains(result, ",1,09,") {
		t.Errorf("FormatGGA should contain fix quality and satellites ',1,09,', got: %s", result)
	}
	if !strings.Contains(result, "45.0,M") {
		t.Errorf("FormatGGA should contain altitude '45.0,M', got: %s", result)
	}
	if !strings.Contains(result, "*") || !strings.HasSuffix(result, "\r\n") {
		t.Errorf("FormatGGA should end with checksum and CRLF, got: %s", result)
	}
}

func TestFormatRMC(t *testing.T) {
	result := FormatRMC(testFix())

	if !strings.HasPrefix(result, "$GPRMC,103045,A,") {
		t.Errorf("FormatRMC should start with '$GPRMC,103045,A,', got: %s", result)
	}
	// 10 km/h is 5.4 knots
	if !strings.Contains(result, ",5.4,90.0,150124,") {
		t.Errorf("FormatRMC should contain speed, course and date, got: %s", result)
	}
}

func TestFormatRMCWithoutHeading(t *testing.T) {
	f := testFix()
	f.Heading = nil
	result := FormatRMC(f)

	if !strings.Contains(result, ",5.4,,150124,") {
		t.Errorf("FormatRMC should leave the course empty, got: %s", result)
	}
}

func TestFormatVTG(t *testing.T) {
	result := FormatVTG(testFix())

	if !strings.HasPrefix(result, "$GPVTG,90.0,T,,M,5.4,N,10.0,K,A*") {
		t.Errorf("unexpected VTG sentence: %s", result)
	}
}

func TestWriteNMEA(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNMEA(&buf, testFix()); err != nil {
		t.Fatalf("WriteNMEA failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\r\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 sentences, got %d: %q", len(lines), buf.String())
	}
	for i, prefix := range []string{"$GPGGA", "$GPRMC", "$GPVTG"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("Sentence %d should start with %s, got %s", i, prefix, lines[i])
		}
	}
}

func TestNMEAChecksumValidation(t *testing.T) {
	for _, sentence := range Sentences(testFix()) {
		// Extract the sentence part (without checksum and CRLF)
		parts := strings.Split(sentence, "*")
		if len(parts) != 2 {
			t.Errorf("Sentence should have exactly one '*': %s", sentence)
			continue
		}

		sentencePart := parts[0]
		checksumPart := strings.TrimSuffix(parts[1], "\r\n")

		expectedChecksum := calculateChecksum(sentencePart)
		if checksumPart != expectedChecksum {
			t.Errorf("Invalid checksum in sentence %s: expected %s, got %s", sentence, expectedChecksum, checksumPart)
		}
	}
}

func TestParseSentenceRoundTrip(t *testing.T) {
	f := testFix()

	rmc, err := ParseSentence(FormatRMC(f))
	if err != nil {
		t.Fatalf("ParseSentence(RMC) failed: %v", err)
	}
	if rmc.Type != "RMC" || !rmc.Valid {
		t.Fatalf("Expected a valid RMC, got %+v", rmc)
	}
	if math.Abs(rmc.Fix.Point.Lat-f.Point.Lat) > 1e-6 || math.Abs(rmc.Fix.Point.Lng-f.Point.Lng) > 1e-6 {
		t.Errorf("Expected position %v, got %v", f.Point, rmc.Fix.Point)
	}
	if math.Abs(rmc.Fix.SpeedKmh-10) > 0.1 {
		t.Errorf("Expected speed near 10 km/h, got %f", rmc.Fix.SpeedKmh)
	}
	if rmc.Fix.Heading == nil || *rmc.Fix.Heading != 90 {
		t.Errorf("Expected heading 90, got %v", rmc.Fix.Heading)
	}
	if !rmc.Fix.Time.Equal(f.Time) {
		t.Errorf("Expected time %v, got %v", f.Time, rmc.Fix.Time)
	}

	gga, err := ParseSentence(FormatGGA(f))
	if err != nil {
		t.Fatalf("ParseSentence(GGA) failed: %v", err)
	}
	if gga.Type != "GGA" || !gga.Valid {
		t.Fatalf("Expected a valid GGA, got %+v", gga)
	}
	if gga.Fix.Satellites != 9 {
		t.Errorf("Expected 9 satellites, got %d", gga.Fix.Satellites)
	}
	if gga.Fix.Altitude != 45 {
		t.Errorf("Expected altitude 45, got %f", gga.Fix.Altitude)
	}
}

func TestParseSentenceForeignTalker(t *testing.T) {
	s, err := ParseSentence("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	if err != nil {
		t.Fatalf("ParseSentence failed: %v", err)
	}
	if math.Abs(s.Fix.Point.Lat-48.1173) > 1e-4 || math.Abs(s.Fix.Point.Lng-11.516667) > 1e-4 {
		t.Errorf("Unexpected position %v", s.Fix.Point)
	}

	// Multi-constellation receivers use the GN talker
	body := "$GNRMC,123519,A,4807.038,S,01131.000,W,022.4,084.4,230394,003.1,W"
	s, err = ParseSentence(formatNMEA(body))
	if err != nil {
		t.Fatalf("ParseSentence(GNRMC) failed: %v", err)
	}
	if s.Fix.Point.Lat >= 0 || s.Fix.Point.Lng >= 0 {
		t.Errorf("Expected southern and western hemispheres, got %v", s.Fix.Point)
	}
}

func TestParseSentenceNoFix(t *testing.T) {
	s, err := ParseSentence("$GPRMC,123519,V,,,,,,,230394,,")
	if err != nil {
		t.Fatalf("ParseSentence failed: %v", err)
	}
	if s.Valid {
		t.Error("A void RMC should not be valid")
	}

	s, err = ParseSentence("$GPGGA,123519,,,,,0,00,,,M,,M,,")
	if err != nil {
		t.Fatalf("ParseSentence failed: %v", err)
	}
	if s.Valid {
		t.Error("A GGA with fix quality 0 should not be valid")
	}
}

func TestParseSentenceErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"missing dollar", "GPRMC,123519,A", ErrInvalidSentence},
		{"too short", "$GP", ErrInvalidSentence},
		{"bad checksum", "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00", ErrChecksumMismatch},
		{"unsupported", "$GPGSV,3,1,11", ErrUnsupportedSentence},
		{"truncated RMC", "$GPRMC,123519,A", ErrInvalidSentence},
		{"bad coordinate", "$GPRMC,123519,A,48x7.038,N,01131.000,E,022.4,084.4,230394,,", ErrInvalidSentence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSentence(tt.line)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseSentence(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestCoordinateConversion(t *testing.T) {
	tests := []struct {
		name           string
		point          geo.Point
		expectedLat    string
		expectedLatHem string
		expectedLon    string
		expectedLonHem string
	}{
		{"San Francisco", geo.Point{Lat: 37.7749, Lng: -122.4194}, "3746.4940", "N", "12225.1640", "W"},
		{"Sydney", geo.Point{Lat: -33.8688, Lng: 151.2093}, "3352.1280", "S", "15112.5580", "E"},
		{"Origin", geo.Point{}, "0000.0000", "N", "00000.0000", "E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, latHem, lon, lonHem := nmeaCoordinates(tt.point)
			if lat != tt.expectedLat || latHem != tt.expectedLatHem {
				t.Errorf("Expected latitude %s,%s got %s,%s", tt.expectedLat, tt.expectedLatHem, lat, latHem)
			}
			if lon != tt.expectedLon || lonHem != tt.expectedLonHem {
				t.Errorf("Expected longitude %s,%s got %s,%s", tt.expectedLon, tt.expectedLonHem, lon, lonHem)
			}
		})
	}
}
