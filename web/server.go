// Package web exposes a navigation engine over HTTP and websockets.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Bucknalla/go-gps-navigator/config"
	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/nav"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// Options are the settings a Server starts from. Simulator and Replay are
// the defaults for /api/start; Navigation is the tuning /api/config edits.
type Options struct {
	StaticDir  string
	Navigation nav.Config
	Simulator  gps.SimulatorConfig
	Replay     gps.ReplayConfig
	// PushBuffer is the fix queue length of browser-fed sources.
	PushBuffer int
}

// Server serves the navigation API.
type Server struct {
	engine   *nav.Engine
	logger   *slog.Logger
	upgrader websocket.Upgrader
	handler  http.Handler

	broadcast   chan nav.Event
	unsubscribe func()

	mu         sync.Mutex
	clients    map[*client]bool
	push       *gps.PushSource
	navConfig  nav.Config
	simConfig  gps.SimulatorConfig
	replay     gps.ReplayConfig
	pushBuffer int
}

// NewServer creates a server for engine and subscribes to its events. Call
// Run to deliver them to websocket clients.
func NewServer(engine *nav.Engine, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PushBuffer <= 0 {
		opts.PushBuffer = 32
	}
	s := &Server{
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		broadcast:  make(chan nav.Event, 256),
		clients:    make(map[*client]bool),
		navConfig:  opts.Navigation,
		simConfig:  opts.Simulator,
		replay:     opts.Replay,
		pushBuffer: opts.PushBuffer,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodPost)
	api.HandleFunc("/confirm", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/fix", s.handleFix).Methods(http.MethodPost)
	api.HandleFunc("/follow", s.handleFollow).Methods(http.MethodPost)
	api.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleGetStatus).Methods(http.MethodGet)
	api.HandleFunc("/route.geojson", s.handleRouteGeoJSON).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWebSocket)

	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir)))
	}

	s.handler = recovery(logger)(requestLogging(logger)(cors(r)))
	s.unsubscribe = engine.Subscribe(func(ev nav.Event) {
		select {
		case s.broadcast <- ev:
		default:
			// Channel full, skip this update
		}
	})
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run forwards engine events to websocket clients until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return nil
		case ev := <-s.broadcast:
			s.broadcastToClients(wsMessage{Type: string(ev.Type), Data: ev})
		}
	}
}

// ListenAndServe serves the API on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", cfg.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

type startRequest struct {
	Source    string               `json:"source"`
	Simulator *gps.SimulatorConfig `json:"simulator,omitempty"`
	Replay    *gps.ReplayConfig    `json:"replay,omitempty"`
}

type followRequest struct {
	Follow bool `json:"follow"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req route.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	rt, err := s.engine.Plan(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": snap.Status,
		"route":  rt,
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Confirm(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": s.engine.Snapshot().Status})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	var err error
	switch req.Source {
	case "", "push":
		err = s.startPush(r.Context())
	case "simulator":
		err = s.startSimulator(r.Context(), req.Simulator)
	case "replay":
		err = s.startReplay(r.Context(), req.Replay)
	default:
		http.Error(w, fmt.Sprintf("unknown source %q", req.Source), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap := s.engine.Snapshot()
	s.logger.Info("navigation started", "source", snap.Source, "session", snap.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     snap.Status,
		"source":     snap.Source,
		"session_id": snap.SessionID,
	})
}

func (s *Server) startPush(ctx context.Context) error {
	src := gps.NewPushSource(s.pushBuffer)
	if err := s.engine.Start(ctx, src); err != nil {
		return err
	}
	s.mu.Lock()
	s.push = src
	s.mu.Unlock()
	return nil
}

func (s *Server) startSimulator(ctx context.Context, cfg *gps.SimulatorConfig) error {
	s.mu.Lock()
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			s.mu.Unlock()
			return err
		}
		s.simConfig = *cfg
	}
	simCfg := s.simConfig
	s.mu.Unlock()

	if err := s.engine.Simulate(ctx, simCfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.push = nil
	s.mu.Unlock()
	return nil
}

func (s *Server) startReplay(ctx context.Context, cfg *gps.ReplayConfig) error {
	s.mu.Lock()
	replayCfg := s.replay
	s.mu.Unlock()
	if cfg != nil {
		replayCfg = *cfg
	}

	src, err := gps.NewReplay(replayCfg)
	if err != nil {
		return err
	}
	if err := s.engine.Start(ctx, src); err != nil {
		return err
	}
	s.mu.Lock()
	s.push = nil
	s.mu.Unlock()
	return nil
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.mu.Lock()
	s.push = nil
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var f gps.Fix
	if !decodeJSON(w, r, &f) {
		return
	}
	if err := s.pushFix(f); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// pushFix feeds a browser-reported fix to the active push source.
func (s *Server) pushFix(f gps.Fix) error {
	s.mu.Lock()
	src := s.push
	s.mu.Unlock()
	if src == nil {
		return gps.ErrSourceNotRunning
	}
	f.Simulated, f.Final = false, false
	return src.Push(f)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.engine.SetFollow(r.Context(), req.Follow); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.navConfig
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateConfig applies a partial navigation config over the current one.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.navConfig
	s.mu.Unlock()

	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := s.UpdateNavigation(r.Context(), cfg); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateNavigation validates cfg and applies it to the engine.
func (s *Server) UpdateNavigation(ctx context.Context, cfg nav.Config) error {
	if err := s.engine.UpdateConfig(ctx, cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.navConfig = cfg
	s.mu.Unlock()
	return nil
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap.Route == nil {
		http.Error(w, nav.ErrNoRoute.Error(), http.StatusNotFound)
		return
	}
	fc := route.FeatureCollection(snap.Route, snap.Index)
	data, err := fc.MarshalJSON()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var badRequestErrors = []error{
	route.ErrTooFewStops,
	route.ErrInvalidMode,
	gps.ErrInvalidSpeed,
	gps.ErrInvalidFrameRate,
	gps.ErrInvalidDisplayRate,
	gps.ErrInvalidJitter,
	gps.ErrInvalidReplaySpeed,
	gps.ErrEmptyTrack,
	nav.ErrInvalidInterval,
	nav.ErrInvalidFactor,
	nav.ErrInvalidSpeed,
	nav.ErrInvalidStrikeLimit,
	nav.ErrInvalidCooldown,
	nav.ErrInvalidPublishDelta,
	nav.ErrInvalidPitch,
	nav.ErrInvalidZoom,
	nav.ErrInvalidArrival,
}

var conflictErrors = []error{
	nav.ErrInvalidTransition,
	nav.ErrNoRoute,
	nav.ErrNoSession,
	gps.ErrSourceNotRunning,
	gps.ErrEmptyRoute,
}

var upstreamErrors = []error{
	nav.ErrPlanFailed,
	route.ErrNoRoute,
	route.ErrProviderStatus,
	route.ErrBadGeometry,
}

func statusFor(err error) int {
	isAny := func(targets []error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
	switch {
	case isAny(badRequestErrors):
		return http.StatusBadRequest
	case isAny(conflictErrors):
		return http.StatusConflict
	case isAny(upstreamErrors):
		return http.StatusBadGateway
	case errors.Is(err, nav.ErrEngineStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "error", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
