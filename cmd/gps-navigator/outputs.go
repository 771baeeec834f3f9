package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Bucknalla/go-gps-navigator/config"
	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/nav"
)

// riderFix turns a committed rider state back into a fix for the outputs
// that speak GPS.
func riderFix(r nav.RiderState) gps.Fix {
	return gps.Fix{
		Point:    r.Position,
		SpeedKmh: r.SpeedKmh,
		Time:     r.Time,
	}.WithHeading(r.HeadingDegrees)
}

// nmeaQueue is how many rider updates may wait for a slow NMEA writer.
const nmeaQueue = 32

// nmeaOutput writes each rider update to w as NMEA sentences, so that other
// equipment sees the snapped position as a GPS feed. Writes happen on their
// own goroutine until ctx ends; updates arriving while the queue is full are
// dropped.
func nmeaOutput(ctx context.Context, w io.Writer, logger *slog.Logger) func(nav.Event) {
	fixes := make(chan gps.Fix, nmeaQueue)

	go func() {
		failed := false
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-fixes:
				if err := gps.WriteNMEA(w, f); err != nil {
					if !failed {
						logger.Warn("failed to write NMEA output", "error", err)
					}
					failed = true
					continue
				}
				failed = false
			}
		}
	}()

	return func(ev nav.Event) {
		rider, ok := ev.Data.(nav.RiderState)
		if !ok {
			return
		}
		select {
		case fixes <- riderFix(rider):
		default:
			logger.Debug("NMEA output is behind, dropping rider update")
		}
	}
}

// trackRecorder appends each rider update to a GPX track.
func trackRecorder(rec *gps.TrackRecorder, logger *slog.Logger) func(nav.Event) {
	return func(ev nav.Event) {
		rider, ok := ev.Data.(nav.RiderState)
		if !ok {
			return
		}
		if err := rec.AddFix(riderFix(rider)); err != nil {
			logger.Warn("failed to record track point", "file", rec.Filename(), "error", err)
		}
	}
}

// progressPrinter prints instructions and status changes for a human.
func progressPrinter(w io.Writer) func(nav.Event) {
	lastManeuver := -1
	return func(ev nav.Event) {
		switch d := ev.Data.(type) {
		case nav.ManeuverProgress:
			if d.Index != lastManeuver {
				lastManeuver = d.Index
				fmt.Fprintf(w, "Next: %s (in %.0f m)\n", d.Maneuver.Instruction, d.RemainingMeters)
			}
		case nav.StatusChange:
			if d.To == nav.StatusNavigating && d.From != nav.StatusRerouting {
				lastManeuver = -1
			}
			fmt.Fprintf(w, "Status: %s\n", d.To)
		case nav.RerouteState:
			if d.Error != "" {
				fmt.Fprintf(w, "Reroute failed: %s\n", d.Error)
			}
		case nav.LocationChange:
			if d.State == nav.LocationDenied || d.State == nav.LocationUnavailable {
				fmt.Fprintf(w, "Location %s: %s\n", d.State, d.Error)
			}
		case nav.Arrival:
			fmt.Fprintf(w, "Arrived at %s\n", d.Position)
		}
	}
}

func printBanner(w io.Writer, cfg config.AppConfig, opts options) {
	fmt.Fprintf(w, "Starting GPS navigator...\n")
	switch cfg.Routing.Provider {
	case "file":
		fmt.Fprintf(w, "Routing: route file %s\n", cfg.Routing.File)
	default:
		fmt.Fprintf(w, "Routing: OSRM at %s\n", cfg.Routing.OSRMURL)
	}
	if opts.Headless {
		fmt.Fprintf(w, "Trip: %d stops (%s)\n", len(cfg.Trip.Stops), cfg.Trip.Mode)
		fmt.Fprintf(w, "Location source: %s\n", opts.Source)
		if opts.Source == "simulator" {
			fmt.Fprintf(w, "Simulated speed: %.1f km/h\n", cfg.Simulator.SpeedKmh)
		}
	} else {
		fmt.Fprintf(w, "Web server: %s\n", cfg.Server.Addr)
	}
	if opts.NMEAOut != "" {
		fmt.Fprintf(w, "NMEA output: %s (%d baud)\n", opts.NMEAOut, cfg.Receiver.BaudRate)
	}
	if opts.GPX {
		fmt.Fprintf(w, "GPX output: %s\n", opts.GPXFile)
	}
	if opts.ConfigFile != "" {
		fmt.Fprintf(w, "Config: %s (watching for changes)\n", opts.ConfigFile)
	}
	fmt.Fprintf(w, "\nPress Ctrl+C to stop\n\n")
}
