package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Bucknalla/go-gps-navigator/config"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

// options are the command line settings that are not part of the
// configuration file.
type options struct {
	ConfigFile string
	EnvFile    string
	Headless   bool
	Source     string
	Stops      string
	NMEAOut    string
	GPX        bool
	GPXFile    string
	Quiet      bool
	Duration   time.Duration
}

func newFlagSet(name string, opts *options, overrides map[string]string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file (hot reloaded)")
	fs.StringVar(&opts.EnvFile, "env", ".env", "Environment file loaded before the configuration")
	fs.BoolVar(&opts.Headless, "headless", false, "Navigate the configured trip without the web server")
	fs.StringVar(&opts.Source, "source", "simulator", "Location source in headless mode: simulator, serial or replay")
	fs.StringVar(&opts.NMEAOut, "nmea-out", "", "Serial port to write the navigated position to as NMEA (e.g., /dev/ttyUSB1)")
	fs.BoolVar(&opts.GPX, "gpx", false, "Record the navigated track to a GPX file with a timestamp-based filename")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Suppress info messages")
	fs.DurationVar(&opts.Duration, "duration", 0, "How long to run (e.g., 30s, 5m, 1h). Default is indefinite")

	// Settings that override the configuration file. Only flags given on
	// the command line are applied.
	override := func(flagName, key, usage string) {
		fs.Func(flagName, usage, func(v string) error {
			overrides[key] = v
			return nil
		})
	}
	override("addr", "server.addr", "Web server listen address (e.g., :8080)")
	override("static", "server.static_dir", "Directory of static web client files")
	override("osrm", "routing.osrm_url", "OSRM server base URL")
	override("route-file", "routing.file", "Serve a fixed route from a YAML/JSON file instead of OSRM")
	fs.StringVar(&opts.Stops, "stops", "", "Trip stops as lat,lng pairs separated by ';' (origin first)")
	override("mode", "trip.mode", "Travel mode: driving, cycling or walking")
	override("speed", "simulator.speed_kmh", "Simulated speed in km/h")
	override("jitter", "simulator.jitter", "GPS position jitter factor (0.0=stable, 1.0=high jitter)")
	override("serial", "receiver.serial_port", "Serial port of an NMEA GPS receiver (e.g., /dev/ttyUSB0, COM1)")
	override("baud", "receiver.baud_rate", "Serial port baud rate")
	override("replay", "replay.file", "GPX file to replay as the location source")
	override("replay-speed", "replay.speed", "Replay speed multiplier (1.0=real-time, 2.0=2x speed, 0.5=half speed)")
	fs.BoolFunc("replay-loop", "Loop the GPX replay continuously", func(v string) error {
		overrides["replay.loop"] = v
		return nil
	})
	override("log-level", "log.level", "Log level: debug, info, warn or error")
	override("log-file", "log.file", "Write JSON logs to this rotating file instead of stderr")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [options]\n", name)
		fmt.Fprintf(out, "\nGPS Navigator\n")
		fmt.Fprintf(out, "Turn-by-turn navigation along a planned route, driven by a simulator, a serial GPS or a GPX replay.\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
	}
	return fs
}

// applyOverrides copies command line overrides into the environment so the
// configuration loader sees them with the highest precedence.
func applyOverrides(overrides map[string]string) error {
	if _, ok := overrides["routing.file"]; ok {
		if _, set := overrides["routing.provider"]; !set {
			overrides["routing.provider"] = "file"
		}
	}
	for key, v := range overrides {
		env := config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := os.Setenv(env, v); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var opts options
	var showVersion bool
	overrides := make(map[string]string)

	fs := newFlagSet(os.Args[0], &opts, overrides)
	fs.BoolVar(&showVersion, "version", false, "Show version information and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	// Handle version flag
	if showVersion {
		if Version != "dev" {
			fmt.Printf("v%s\n", Version)
		} else {
			fmt.Printf("%s\n", Commit)
		}
		os.Exit(0)
	}

	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyOverrides(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var banner io.Writer = os.Stderr
	if opts.Quiet {
		banner = io.Discard
	}
	if err := run(ctx, opts, banner); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
