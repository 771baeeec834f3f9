package gps

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Bucknalla/go-gps-navigator/geo"
)

const knotsToKmh = 1.852

// calculateChecksum calculates the NMEA checksum for a sentence
func calculateChecksum(sentence string) string {
	var checksum byte
	for i := 1; i < len(sentence); i++ { // Skip the '$' character
		checksum ^= sentence[i]
	}
	return fmt.Sprintf("%02X", checksum)
}

// formatNMEA formats a complete NMEA sentence with checksum
func formatNMEA(sentence string) string {
	checksum := calculateChecksum(sentence)
	return fmt.Sprintf("%s*%s\r\n", sentence, checksum)
}

// nmeaCoordinates converts a position to NMEA DDMM.MMMM fields
func nmeaCoordinates(p geo.Point) (lat, latHem, lon, lonHem string) {
	latDeg := int(math.Abs(p.Lat))
	latMin := (math.Abs(p.Lat) - float64(latDeg)) * 60
	latHem = "N"
	if p.Lat < 0 {
		latHem = "S"
	}

	lonDeg := int(math.Abs(p.Lng))
	lonMin := (math.Abs(p.Lng) - float64(lonDeg)) * 60
	lonHem = "E"
	if p.Lng < 0 {
		lonHem = "W"
	}

	return fmt.Sprintf("%02d%07.4f", latDeg, latMin), latHem, fmt.Sprintf("%03d%07.4f", lonDeg, lonMin), lonHem
}

// FormatGGA generates a GGA (Global Positioning System Fix Data) sentence
func FormatGGA(f Fix) string {
	timeStr := f.Time.UTC().Format("150405") // HHMMSS
	lat, latHem, lon, lonHem := nmeaCoordinates(f.Point)

	sats := f.Satellites
	if sats == 0 {
		sats = 8
	}

	sentence := fmt.Sprintf("$GPGGA,%s,%s,%s,%s,%s,1,%02d,1.2,%.1f,M,0.0,M,,",
		timeStr,
		lat, latHem,
		lon, lonHem,
		sats, f.Altitude)

	return formatNMEA(sentence)
}

// FormatRMC generates an RMC (Recommended Minimum) sentence
func FormatRMC(f Fix) string {
	timeStr := f.Time.UTC().Format("150405") // HHMMSS
	dateStr := f.Time.UTC().Format("020106") // DDMMYY
	lat, latHem, lon, lonHem := nmeaCoordinates(f.Point)

	var course string
	if f.Heading != nil {
		course = fmt.Sprintf("%.1f", *f.Heading)
	}
	speed := fmt.Sprintf("%.1f", f.SpeedKmh/knotsToKmh) // Speed over ground in knots

	sentence := fmt.Sprintf("$GPRMC,%s,A,%s,%s,%s,%s,%s,%s,%s,,,A",
		timeStr,
		lat, latHem,
		lon, lonHem,
		speed, course, dateStr)

	return formatNMEA(sentence)
}

// FormatVTG generates a VTG (Track Made Good and Ground Speed) sentence
func FormatVTG(f Fix) string {
	var course string
	if f.Heading != nil {
		course = fmt.Sprintf("%.1f", *f.Heading)
	}
	sentence := fmt.Sprintf("$GPVTG,%s,T,,M,%.1f,N,%.1f,K,A",
		course, f.SpeedKmh/knotsToKmh, f.SpeedKmh)
	return formatNMEA(sentence)
}

// Sentences returns the GGA, RMC and VTG sentences describing f.
func Sentences(f Fix) []string {
	return []string{FormatGGA(f), FormatRMC(f), FormatVTG(f)}
}

// WriteNMEA writes the sentences describing f to w.
func WriteNMEA(w io.Writer, f Fix) error {
	for _, s := range Sentences(f) {
		if _, err := io.WriteString(w, s); err != nil {
			return fmt.Errorf("writing NMEA sentence: %w", err)
		}
	}
	return nil
}

// Sentence is a decoded NMEA sentence. Only the fields relevant to its type
// are populated in Fix.
type Sentence struct {
	Type  string // e.g. "RMC", "GGA", without talker ID
	Valid bool   // receiver reports a usable fix
	Fix   Fix
}

// ParseSentence decodes an RMC or GGA sentence from any talker. The
// checksum is verified when present.
func ParseSentence(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") || len(line) < 7 {
		return Sentence{}, fmt.Errorf("%w: %q", ErrInvalidSentence, line)
	}

	body := line
	if i := strings.LastIndexByte(line, '*'); i >= 0 {
		body = line[:i]
		if got, want := strings.ToUpper(line[i+1:]), calculateChecksum(body); got != want {
			return Sentence{}, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
		}
	}

	fields := strings.Split(body[1:], ",")
	if len(fields[0]) < 5 {
		return Sentence{}, fmt.Errorf("%w: %q", ErrInvalidSentence, line)
	}
	kind := fields[0][len(fields[0])-3:]

	switch kind {
	case "RMC":
		return parseRMC(fields)
	case "GGA":
		return parseGGA(fields)
	}
	return Sentence{Type: kind}, ErrUnsupportedSentence
}

func parseRMC(fields []string) (Sentence, error) {
	if len(fields) < 10 {
		return Sentence{}, fmt.Errorf("%w: RMC has %d fields", ErrInvalidSentence, len(fields))
	}
	out := Sentence{Type: "RMC", Valid: fields[2] == "A"}
	if !out.Valid {
		return out, nil
	}

	p, err := parsePosition(fields[3], fields[4], fields[5], fields[6])
	if err != nil {
		return Sentence{}, err
	}
	out.Fix.Point = p

	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return Sentence{}, fmt.Errorf("%w: speed %q", ErrInvalidSentence, fields[7])
		}
		out.Fix.SpeedKmh = knots * knotsToKmh
	}
	if fields[8] != "" {
		course, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			return Sentence{}, fmt.Errorf("%w: course %q", ErrInvalidSentence, fields[8])
		}
		out.Fix = out.Fix.WithHeading(course)
	}
	out.Fix.Time = parseTime(fields[1], fields[9])
	return out, nil
}

func parseGGA(fields []string) (Sentence, error) {
	if len(fields) < 10 {
		return Sentence{}, fmt.Errorf("%w: GGA has %d fields", ErrInvalidSentence, len(fields))
	}
	out := Sentence{Type: "GGA", Valid: fields[6] != "" && fields[6] != "0"}
	if !out.Valid {
		return out, nil
	}

	p, err := parsePosition(fields[2], fields[3], fields[4], fields[5])
	if err != nil {
		return Sentence{}, err
	}
	out.Fix.Point = p
	out.Fix.Satellites, _ = strconv.Atoi(fields[7])
	out.Fix.Altitude, _ = strconv.ParseFloat(fields[9], 64)
	out.Fix.Time = parseTime(fields[1], "")
	return out, nil
}

// parsePosition converts NMEA DDMM.MMMM fields to decimal degrees.
func parsePosition(lat, latHem, lon, lonHem string) (geo.Point, error) {
	la, err := parseCoordinate(lat, 2)
	if err != nil {
		return geo.Point{}, err
	}
	lo, err := parseCoordinate(lon, 3)
	if err != nil {
		return geo.Point{}, err
	}
	if latHem == "S" {
		la = -la
	}
	if lonHem == "W" {
		lo = -lo
	}
	return geo.Point{Lat: la, Lng: lo}, nil
}

func parseCoordinate(s string, degDigits int) (float64, error) {
	if len(s) < degDigits+2 {
		return 0, fmt.Errorf("%w: coordinate %q", ErrInvalidSentence, s)
	}
	deg, err := strconv.Atoi(s[:degDigits])
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrInvalidSentence, s)
	}
	minutes, err := strconv.ParseFloat(s[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrInvalidSentence, s)
	}
	return float64(deg) + minutes/60, nil
}

// parseTime combines an hhmmss(.sss) field with an optional ddmmyy date.
// Without a date the current UTC date is assumed.
func parseTime(hms, dmy string) time.Time {
	now := time.Now().UTC()
	if len(hms) < 6 {
		return now
	}
	h, _ := strconv.Atoi(hms[0:2])
	m, _ := strconv.Atoi(hms[2:4])
	sec, _ := strconv.ParseFloat(hms[4:], 64)

	year, month, day := now.Date()
	if len(dmy) == 6 {
		d, _ := strconv.Atoi(dmy[0:2])
		mo, _ := strconv.Atoi(dmy[2:4])
		y, _ := strconv.Atoi(dmy[4:6])
		year, month, day = 2000+y, time.Month(mo), d
	}
	whole := math.Floor(sec)
	return time.Date(year, month, day, h, m, int(whole), int((sec-whole)*1e9), time.UTC)
}
