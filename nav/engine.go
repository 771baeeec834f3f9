package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/route"
)

// Snapshot is the latest externally visible state of an Engine.
type Snapshot struct {
	Status    Status            `json:"status"`
	SessionID uuid.UUID         `json:"session_id"`
	Source    string            `json:"source,omitempty"`
	Location  LocationState     `json:"location"`
	Rider     *RiderState       `json:"rider,omitempty"`
	Maneuver  *ManeuverProgress `json:"maneuver,omitempty"`
	Camera    *Camera           `json:"camera,omitempty"`
	OffRoute  bool              `json:"off_route"`
	Rerouting bool              `json:"rerouting"`
	Error     string            `json:"error,omitempty"`
	Route     *route.Route      `json:"-"`
	Index     *route.Index      `json:"-"`
}

// Engine drives navigation sessions. Every change to session state happens
// on the goroutine executing Run, in the order fixes, source errors, reroute
// results and commands arrive; the exported methods only post work to it.
// Run must be active for those methods to return.
type Engine struct {
	provider route.Provider
	logger   *slog.Logger
	now      func() time.Time

	inbox   chan func()
	done    chan struct{}
	running atomic.Bool

	mu      sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
	snap    Snapshot

	// Owned by the run loop.
	ctx          context.Context
	pipeline     *Pipeline
	status       StatusMachine
	plan         *route.Route
	planReq      route.Request
	session      *Session
	sessCancel   context.CancelFunc
	sessCtx      context.Context
	source       gps.Source
	sourceCancel context.CancelFunc
	sourceGen    int
	location     LocationState
}

// NewEngine creates an engine that fetches routes from provider. A nil
// logger uses slog.Default().
func NewEngine(cfg Config, provider route.Provider, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.New("route provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: provider,
		logger:   logger,
		now:      time.Now,
		inbox:    make(chan func(), 256),
		done:     make(chan struct{}),
		subs:     make(map[int]func(Event)),
		snap:     Snapshot{Location: LocationIdle},
		pipeline: NewPipeline(cfg),
		location: LocationIdle,
	}, nil
}

// Run processes work until ctx is cancelled. It stops the active source and
// any in-flight reroute before returning.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}
	defer close(e.done)

	e.ctx = ctx
	e.logger.Info("navigation engine started")
	for {
		select {
		case <-ctx.Done():
			e.endSession()
			e.logger.Info("navigation engine stopped")
			return nil
		case fn := <-e.inbox:
			fn()
		}
	}
}

// Subscribe registers fn for every emitted event and returns a function
// that removes it. fn runs on the engine goroutine and must not block.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Snapshot returns the latest state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Plan fetches a route for req and shows it as a preview. Any running
// session is stopped first. On failure the engine enters StatusError.
func (e *Engine) Plan(ctx context.Context, req route.Request) (*route.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r, routeErr := e.provider.Route(ctx, req)
	err := e.call(ctx, func() error {
		e.endSession()
		e.plan = nil
		if routeErr != nil {
			e.emitError(fmt.Sprintf("route planning failed: %v", routeErr))
			_, err := e.transition(StatusError)
			return err
		}

		req = r.VisitOrder(req)
		e.plan, e.planReq = r, req
		ix := route.BuildIndex(r, req.Stops)
		e.updateSnapshot(func(s *Snapshot) {
			s.Route, s.Index = r, ix
			s.Error = ""
		})
		e.emit(Event{Type: EventRoute, Time: e.now(), Data: RouteInfo{
			Route:   r,
			Length:  ix.Length(),
			Indexed: !ix.Empty(),
		}})
		_, err := e.transition(StatusPreview)
		return err
	})
	if err != nil {
		return nil, err
	}
	if routeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanFailed, routeErr)
	}
	return r, nil
}

// Confirm moves a previewed route to the confirmation step.
func (e *Engine) Confirm(ctx context.Context) error {
	return e.call(ctx, func() error {
		if e.plan == nil {
			return ErrNoRoute
		}
		_, err := e.transition(StatusConfirm)
		return err
	})
}

// Start begins navigation fed by src. From StatusConfirm it starts a session
// on the planned route. While navigating it swaps the active source and
// keeps the session. After arrival it restarts on the same route. The
// previous source, if any, is stopped.
func (e *Engine) Start(ctx context.Context, src gps.Source) error {
	return e.call(ctx, func() error { return e.startSource(src) })
}

// Simulate starts navigation driven by a route simulator over the current
// route, replacing any live source.
func (e *Engine) Simulate(ctx context.Context, cfg gps.SimulatorConfig) error {
	return e.call(ctx, func() error {
		r, _ := e.currentRoute()
		if r == nil {
			return ErrNoRoute
		}
		sim, err := gps.NewSimulator(r.Polyline, cfg)
		if err != nil {
			return err
		}
		return e.startSource(sim)
	})
}

// Stop ends navigation, stops the source, abandons any reroute and clears
// the planned route.
func (e *Engine) Stop(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.endSession()
		e.plan = nil
		e.planReq = route.Request{}
		e.updateSnapshot(func(s *Snapshot) {
			*s = Snapshot{Status: s.Status, Location: LocationIdle}
		})
		_, err := e.transition(StatusIdle)
		return err
	})
}

// UpdateConfig replaces the pipeline tuning. It applies from the next fix.
func (e *Engine) UpdateConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return e.call(ctx, func() error {
		e.pipeline = NewPipeline(cfg)
		e.logger.Info("navigation config updated")
		return nil
	})
}

// SetFollow switches the follow camera on or off for the running session.
func (e *Engine) SetFollow(ctx context.Context, follow bool) error {
	return e.call(ctx, func() error {
		if e.session == nil {
			return ErrNoSession
		}
		e.session.Follow = follow
		return nil
	})
}

// Session returns a copy of the running session.
func (e *Engine) Session(ctx context.Context) (Session, error) {
	var s Session
	err := e.call(ctx, func() error {
		if e.session == nil {
			return ErrNoSession
		}
		s = *e.session
		return nil
	})
	return s, err
}

func (e *Engine) post(fn func()) bool {
	select {
	case e.inbox <- fn:
		return true
	case <-e.done:
		return false
	}
}

// call runs fn on the engine goroutine and waits for its result.
func (e *Engine) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case e.inbox <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
}

func (e *Engine) currentRoute() (*route.Route, route.Request) {
	if e.session != nil {
		return e.session.Route, e.session.Request
	}
	return e.plan, e.planReq
}

func (e *Engine) startSource(src gps.Source) error {
	switch e.status.Current() {
	case StatusConfirm:
		if e.plan == nil {
			return ErrNoRoute
		}
		e.beginSession(NewSession(e.plan, e.planReq, e.now()))
	case StatusNavigating, StatusRerouting:
	case StatusArrived:
		r, req := e.currentRoute()
		e.dropSession()
		e.beginSession(NewSession(r, req, e.now()))
	default:
		return fmt.Errorf("%w: cannot start navigation while %s", ErrInvalidTransition, e.status.Current())
	}

	e.attachSource(src)
	if e.status.Current() != StatusRerouting {
		if _, err := e.transition(StatusNavigating); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) beginSession(s Session) {
	e.session = &s
	e.sessCtx, e.sessCancel = context.WithCancel(e.ctx)
	e.updateSnapshot(func(snap *Snapshot) {
		snap.SessionID = s.ID
		snap.Route, snap.Index = s.Route, s.Index
		snap.Rider, snap.Maneuver, snap.Camera = nil, nil, nil
		snap.OffRoute, snap.Rerouting = false, false
		snap.Error = ""
	})
	e.emit(Event{Type: EventRoute, SessionID: s.ID, Time: e.now(), Data: s.routeInfo(false)})
	e.logger.Info("navigation session started",
		"session", s.ID,
		"route", s.Route.String(),
		"indexed", s.Indexed(),
	)
}

// endSession stops the source, abandons any reroute and drops the session.
// It returns the engine to StatusIdle when a session was running.
func (e *Engine) endSession() {
	if e.dropSession() {
		e.transition(StatusIdle)
	}
}

func (e *Engine) dropSession() bool {
	e.detachSource()
	if e.session == nil {
		return false
	}
	e.sessCancel()
	e.logger.Info("navigation session ended", "session", e.session.ID)
	e.session = nil
	e.sessCtx, e.sessCancel = nil, nil
	e.updateSnapshot(func(s *Snapshot) {
		s.SessionID = uuid.Nil
		s.Rider, s.Maneuver, s.Camera = nil, nil, nil
		s.OffRoute, s.Rerouting = false, false
	})
	return true
}

func (e *Engine) attachSource(src gps.Source) {
	e.detachSource()

	ctx, cancel := context.WithCancel(e.ctx)
	e.source = src
	e.sourceCancel = cancel
	e.sourceGen++
	gen := e.sourceGen

	e.setLocation(LocationWaiting, "")
	e.logger.Info("location source started", "source", src.Name())

	go func() {
		err := src.Run(ctx, engineSink{e: e, gen: gen})
		e.post(func() { e.sourceEnded(gen, src, err) })
	}()
}

func (e *Engine) detachSource() {
	if e.source == nil {
		return
	}
	e.sourceCancel()
	e.logger.Info("location source stopped", "source", e.source.Name())
	e.source = nil
	e.sourceCancel = nil
	e.sourceGen++
	e.setLocation(LocationIdle, "")
}

func (e *Engine) sourceEnded(gen int, src gps.Source, err error) {
	if gen != e.sourceGen {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("location source failed", "source", src.Name(), "error", err)
		e.sourceError(gen, err)
		return
	}
	e.logger.Info("location source finished", "source", src.Name())
}

type engineSink struct {
	e   *Engine
	gen int
}

func (k engineSink) PushFix(f gps.Fix) {
	k.e.post(func() { k.e.handleFix(k.gen, f) })
}

func (k engineSink) PushError(err error) {
	k.e.post(func() { k.e.sourceError(k.gen, err) })
}

func (e *Engine) handleFix(gen int, f gps.Fix) {
	if gen != e.sourceGen || e.session == nil {
		return
	}
	if e.location != LocationActive {
		e.setLocation(LocationActive, "")
	}

	res := e.pipeline.Step(*e.session, f, e.now())
	*e.session = res.Session
	for _, ev := range res.Events {
		e.emit(ev)
		if ev.Type == EventArrived {
			e.logger.Info("arrived", "session", e.session.ID)
			e.transition(StatusArrived)
		}
	}

	if res.Reroute != nil {
		e.transition(StatusRerouting)
		e.startReroute(*res.Reroute)
	}
}

// sourceError classifies a location error. Permission denial is sticky;
// anything else marks the source unavailable until the next fix.
func (e *Engine) sourceError(gen int, err error) {
	if gen != e.sourceGen {
		return
	}
	if errors.Is(err, gps.ErrPermissionDenied) {
		e.setLocation(LocationDenied, err.Error())
		return
	}
	if e.location == LocationDenied {
		return
	}
	e.logger.Debug("location unavailable", "error", err)
	e.setLocation(LocationUnavailable, err.Error())
}

func (e *Engine) startReroute(req route.Request) {
	id := e.session.ID
	ctx := e.sessCtx
	e.logger.Info("rerouting",
		"session", id,
		"from", req.Stops[0].String(),
		"stops", len(req.Stops),
	)

	go func() {
		r, err := e.provider.Route(ctx, req)
		e.post(func() { e.finishReroute(id, req, r, err) })
	}()
}

func (e *Engine) finishReroute(id uuid.UUID, req route.Request, r *route.Route, err error) {
	if e.session == nil || e.session.ID != id {
		e.logger.Debug("discarding reroute for ended session", "session", id)
		return
	}
	if err != nil {
		e.logger.Warn("reroute failed, keeping current route", "session", id, "error", err)
	} else {
		req = r.VisitOrder(req)
	}

	res := e.pipeline.ApplyReroute(*e.session, r, req, err, e.now())
	*e.session = res.Session
	if err == nil {
		e.updateSnapshot(func(s *Snapshot) {
			s.Route, s.Index = res.Session.Route, res.Session.Index
		})
	}
	for _, ev := range res.Events {
		e.emit(ev)
	}
	if e.status.Current() == StatusRerouting {
		e.transition(StatusNavigating)
	}
}

func (e *Engine) transition(to Status) (bool, error) {
	from := e.status.Current()
	changed, err := e.status.Transition(to)
	if err != nil {
		e.logger.Warn("rejected status change", "from", from, "to", to)
		return false, err
	}
	if changed {
		var id uuid.UUID
		if e.session != nil {
			id = e.session.ID
		}
		e.emit(Event{Type: EventStatus, SessionID: id, Time: e.now(), Data: StatusChange{From: from, To: to}})
	}
	return changed, nil
}

func (e *Engine) setLocation(state LocationState, msg string) {
	if state == e.location && msg == "" {
		return
	}
	e.location = state
	var name string
	if e.source != nil {
		name = e.source.Name()
	}
	var id uuid.UUID
	if e.session != nil {
		id = e.session.ID
	}
	e.emit(Event{Type: EventLocation, SessionID: id, Time: e.now(), Data: LocationChange{
		State:  state,
		Source: name,
		Error:  msg,
	}})
}

func (e *Engine) emitError(msg string) {
	var id uuid.UUID
	if e.session != nil {
		id = e.session.ID
	}
	e.emit(Event{Type: EventError, SessionID: id, Time: e.now(), Data: ErrorInfo{Message: msg}})
}

func (e *Engine) updateSnapshot(fn func(*Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.snap)
}

// emit records ev in the snapshot and hands it to every subscriber.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	switch d := ev.Data.(type) {
	case RiderState:
		e.snap.Rider = &d
	case ManeuverProgress:
		e.snap.Maneuver = &d
	case Camera:
		e.snap.Camera = &d
	case StatusChange:
		e.snap.Status = d.To
	case OffRouteState:
		e.snap.OffRoute = d.OffRoute
	case RerouteState:
		e.snap.Rerouting = d.InFlight
	case LocationChange:
		e.snap.Location = d.State
		e.snap.Source = d.Source
	case ErrorInfo:
		e.snap.Error = d.Message
	}
	subs := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
