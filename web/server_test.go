package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bucknalla/go-gps-navigator/geo"
	"github.com/Bucknalla/go-gps-navigator/gps"
	"github.com/Bucknalla/go-gps-navigator/logging"
	"github.com/Bucknalla/go-gps-navigator/nav"
	"github.com/Bucknalla/go-gps-navigator/route"
)

var origin = geo.Point{Lat: 37.7749, Lng: -122.4194}

func straightRoute() *route.Route {
	mid := geo.Destination(origin, 0, 100)
	end := geo.Destination(origin, 0, 200)
	return &route.Route{
		Polyline:       []geo.Point{origin, mid, end},
		DistanceMeters: 200,
		Maneuvers: []route.Maneuver{
			{Kind: route.KindDepart, Instruction: "Head north", Anchor: &origin, DistanceMeters: 100},
			{Kind: route.KindContinue, Instruction: "Continue", Anchor: &mid, DistanceMeters: 100},
			{Kind: route.KindArrive, Instruction: "Arrive", Anchor: &end},
		},
		Stats: route.Stats{Provider: "test", Mode: route.ModeDriving},
	}
}

const planBody = `{"stops":[{"lat":37.7749,"lng":-122.4194},{"lat":37.7767,"lng":-122.4194}],"mode":"driving"}`

func newTestServer(t *testing.T, provider route.Provider) (*Server, *httptest.Server) {
	t.Helper()
	if provider == nil {
		provider = route.ProviderFunc(func(context.Context, route.Request) (*route.Route, error) {
			return straightRoute(), nil
		})
	}
	engine, err := nav.NewEngine(nav.DefaultConfig(), provider, logging.Discard())
	require.NoError(t, err)

	s := NewServer(engine, Options{
		Navigation: nav.DefaultConfig(),
		Simulator:  gps.SimulatorConfig{SpeedKmh: 3600, FrameRate: 100, DisplayRate: 100, Seed: 1},
		Replay:     gps.DefaultReplayConfig(),
	}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	serverDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()
	go func() {
		s.Run(ctx)
		close(serverDone)
	}()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-engineDone
		<-serverDone
	})
	return s, ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func status(t *testing.T, ts *httptest.Server) map[string]any {
	t.Helper()
	resp := get(t, ts, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode(t, resp)
}

func TestNavigationFlow(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := post(t, ts, "/api/plan", planBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "preview", body["status"])
	assert.NotNil(t, body["route"])

	resp = post(t, ts, "/api/start", `{"source":"push"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "start needs confirmation")

	resp = post(t, ts, "/api/confirm", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirm", decode(t, resp)["status"])

	resp = post(t, ts, "/api/start", `{"source":"push"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode(t, resp)
	assert.Equal(t, "navigating", body["status"])
	assert.Equal(t, "push", body["source"])

	var accepted bool
	require.Eventually(t, func() bool {
		resp, err := http.Post(ts.URL+"/api/fix", "application/json",
			strings.NewReader(`{"point":{"lat":37.7750,"lng":-122.4194},"heading":0,"speed_kmh":20}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		accepted = resp.StatusCode == http.StatusAccepted
		return accepted
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st := status(t, ts)
		return st["rider"] != nil && st["location"] == "active"
	}, 5*time.Second, 10*time.Millisecond)

	resp = post(t, ts, "/api/follow", `{"follow":false}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts, "/api/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", status(t, ts)["status"])

	resp = post(t, ts, "/api/fix", `{"point":{"lat":37.7750,"lng":-122.4194}}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no push source after stop")
}

func TestSimulatorStart(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := post(t, ts, "/api/start", `{"source":"simulator"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "nothing planned")

	post(t, ts, "/api/plan", planBody)
	post(t, ts, "/api/confirm", "")

	resp = post(t, ts, "/api/start", `{"source":"simulator","simulator":{"speed_kmh":-1,"frame_rate":10,"display_rate":10}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/start", `{"source":"simulator"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "simulator", decode(t, resp)["source"])

	require.Eventually(t, func() bool {
		return status(t, ts)["status"] == "arrived"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := post(t, ts, "/api/start", `{"source":"carrier-pigeon"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/start", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	post(t, ts, "/api/plan", planBody)
	post(t, ts, "/api/confirm", "")
	resp = post(t, ts, "/api/start", `{"source":"replay","replay":{"file":"/does/not/exist.gpx","speed":1}}`)
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
}

func TestPlanErrors(t *testing.T) {
	failing := route.ProviderFunc(func(context.Context, route.Request) (*route.Route, error) {
		return nil, route.ErrNoRoute
	})
	_, ts := newTestServer(t, failing)

	resp := post(t, ts, "/api/plan", `{"stops":[{"lat":1,"lng":1}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/plan", `{"stops":[{"lat":1,"lng":1},{"lat":2,"lng":2}],"mode":"teleport"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/plan", planBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode(t, resp)
	assert.Contains(t, body["error"], "no route")

	st := status(t, ts)
	assert.Equal(t, "error", st["status"])
	assert.NotEmpty(t, st["error"])

	resp = post(t, ts, "/api/confirm", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPlanProviderUnreachable(t *testing.T) {
	unreachable := route.ProviderFunc(func(context.Context, route.Request) (*route.Route, error) {
		return nil, fmt.Errorf("OSRM request failed: %w", syscall.ECONNREFUSED)
	})
	_, ts := newTestServer(t, unreachable)

	resp := post(t, ts, "/api/plan", planBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decode(t, resp)["error"], "connection refused")
}

func TestSimulatorStartFailureKeepsPush(t *testing.T) {
	single := route.ProviderFunc(func(context.Context, route.Request) (*route.Route, error) {
		return &route.Route{Polyline: []geo.Point{origin}}, nil
	})
	_, ts := newTestServer(t, single)

	require.Equal(t, http.StatusOK, post(t, ts, "/api/plan", planBody).StatusCode)
	require.Equal(t, http.StatusOK, post(t, ts, "/api/confirm", "").StatusCode)
	require.Equal(t, http.StatusOK, post(t, ts, "/api/start", `{"source":"push"}`).StatusCode)

	resp := post(t, ts, "/api/start", `{"source":"simulator"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "a one-point route cannot be simulated")

	require.Eventually(t, func() bool {
		resp, err := http.Post(ts.URL+"/api/fix", "application/json",
			strings.NewReader(`{"point":{"lat":37.7750,"lng":-122.4194}}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusAccepted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "navigating", status(t, ts)["status"])
}

func TestRouteGeoJSON(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/route.geojson")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post(t, ts, "/api/plan", planBody)
	resp = get(t, ts, "/api/route.geojson")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	body := decode(t, resp)
	assert.Equal(t, "FeatureCollection", body["type"])
	features, ok := body["features"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, features)
}

func TestConfigEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, decode(t, resp)["strike_limit"])

	resp = post(t, ts, "/api/config", `{"strike_limit":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, 5.0, body["strike_limit"])
	assert.Equal(t, 17.0, body["camera_zoom"], "unspecified fields are kept")

	resp = post(t, ts, "/api/config", `{"strike_limit":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, ts, "/api/config")
	assert.Equal(t, 5.0, decode(t, resp)["strike_limit"], "rejected update is not stored")
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/plan", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket(t *testing.T) {
	s, ts := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, "snapshot", first["type"])
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	post(t, ts, "/api/plan", planBody)
	seen := map[string]bool{}
	for !seen["status"] || !seen["route"] {
		msg := readMessage(t, conn)
		seen[msg["type"].(string)] = true
	}

	post(t, ts, "/api/confirm", "")
	post(t, ts, "/api/start", "")

	fix := map[string]any{
		"type": "fix",
		"data": map[string]any{"point": map[string]float64{"lat": 37.7750, "lng": -122.4194}, "speed_kmh": 20},
	}
	sendFix := func() {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(fix))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, buf.Bytes()))
	}
	sendFix()

	for {
		msg := readMessage(t, conn)
		if msg["type"] == "error" {
			// The push source may not be running yet.
			time.Sleep(10 * time.Millisecond)
			sendFix()
			continue
		}
		if msg["type"] == "rider" {
			data := msg["data"].(map[string]any)
			assert.NotEmpty(t, data["session_id"])
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "snapshot"}))
	for {
		msg := readMessage(t, conn)
		if msg["type"] == "snapshot" {
			assert.Equal(t, "navigating", msg["data"].(map[string]any)["status"])
			break
		}
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(route.ErrTooFewStops))
	assert.Equal(t, http.StatusConflict, statusFor(nav.ErrNoSession))
	assert.Equal(t, http.StatusBadGateway, statusFor(route.ErrProviderStatus))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("%w: %w", nav.ErrPlanFailed, syscall.ECONNREFUSED)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(nav.ErrEngineStopped))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}
