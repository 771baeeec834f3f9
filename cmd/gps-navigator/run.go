package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Bucknalla/go-gps-navigator/config"
	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/logging"
	"github.com/Bucknalla/go-gps-navigator/nav"
	"github.com/Bucknalla/go-gps-navigator/route"
	"github.com/Bucknalla/go-gps-navigator/web"
)

func splitStops(s string) []string {
	var stops []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			stops = append(stops, part)
		}
	}
	return stops
}

func buildProvider(cfg config.RoutingConfig) (route.Provider, error) {
	var p route.Provider
	switch cfg.Provider {
	case "file":
		fp, err := route.NewFileProvider(cfg.File)
		if err != nil {
			return nil, err
		}
		p = fp
	default:
		p = route.NewOSRMClient(cfg.OSRMURL, cfg.Timeout)
	}
	if cfg.CacheSize > 0 {
		p = route.NewCachedProvider(p, cfg.CacheSize, cfg.CacheTTL)
	}
	return p, nil
}

func run(ctx context.Context, opts options, banner io.Writer) error {
	store, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	cfg := store.Current()
	if opts.Stops != "" {
		cfg.Trip.Stops = splitStops(opts.Stops)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer logger.Close()

	provider, err := buildProvider(cfg.Routing)
	if err != nil {
		return err
	}
	engine, err := nav.NewEngine(cfg.Navigation, provider, logger.Logger)
	if err != nil {
		return err
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.NMEAOut != "" {
		port, err := gps.OpenSerial(opts.NMEAOut, cfg.Receiver.BaudRate)
		if err != nil {
			return err
		}
		defer port.Close()
		engine.Subscribe(nmeaOutput(ctx, port, logger.Logger))
	}
	if opts.GPX {
		if opts.GPXFile == "" {
			opts.GPXFile = fmt.Sprintf("%s.gpx", time.Now().Format("20060102_150405"))
		}
		rec, err := gps.NewTrackRecorder(opts.GPXFile, "Navigation")
		if err != nil {
			return err
		}
		defer rec.Close()
		engine.Subscribe(trackRecorder(rec, logger.Logger))
	}
	engine.Subscribe(progressPrinter(banner))
	printBanner(banner, cfg, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })

	if opts.Headless {
		store.Watch(logger.Logger, func(c config.AppConfig) {
			if err := engine.UpdateConfig(gctx, c.Navigation); err != nil {
				logger.Warn("failed to apply navigation config", "error", err)
			}
		})
		g.Go(func() error { return navigate(gctx, engine, cfg, opts.Source, cancel) })
	} else {
		srv := web.NewServer(engine, web.Options{
			StaticDir:  cfg.Server.StaticDir,
			Navigation: cfg.Navigation,
			Simulator:  cfg.Simulator,
			Replay:     cfg.Replay,
		}, logger.Logger)
		store.Watch(logger.Logger, func(c config.AppConfig) {
			if err := srv.UpdateNavigation(gctx, c.Navigation); err != nil {
				logger.Warn("failed to apply navigation config", "error", err)
			}
		})
		g.Go(func() error { return srv.Run(gctx) })
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// navigate plans the configured trip, starts the selected source and
// returns once the destination is reached or ctx ends.
func navigate(ctx context.Context, engine *nav.Engine, cfg config.AppConfig, source string, done context.CancelFunc) error {
	req, err := cfg.Trip.Request()
	if err != nil {
		return err
	}
	if len(req.Stops) == 0 {
		return errors.New("headless mode needs trip stops (-stops or trip.stops)")
	}

	arrived := make(chan struct{})
	unsubscribe := engine.Subscribe(func(ev nav.Event) {
		if ev.Type == nav.EventArrived {
			select {
			case <-arrived:
			default:
				close(arrived)
			}
		}
	})
	defer unsubscribe()

	if _, err := engine.Plan(ctx, req); err != nil {
		return err
	}
	if err := engine.Confirm(ctx); err != nil {
		return err
	}

	switch source {
	case "simulator":
		err = engine.Simulate(ctx, cfg.Simulator)
	case "serial":
		var rx *gps.Receiver
		if rx, err = gps.NewSerialReceiver(cfg.Receiver); err == nil {
			err = engine.Start(ctx, rx)
		}
	case "replay":
		var rp *gps.Replay
		if rp, err = gps.NewReplay(cfg.Replay); err == nil {
			err = engine.Start(ctx, rp)
		}
	default:
		err = fmt.Errorf("unknown source %q", source)
	}
	if err != nil {
		return err
	}

	select {
	case <-arrived:
		done()
	case <-ctx.Done():
	}
	return nil
}
