package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"turntable/internal/config"
	"turntable/internal/hw/camera"
	"turntable/internal/logic/command"
	"turntable/internal/logic/state"
)

type nopDiagnostics struct{}

func (nopDiagnostics) SendIR() error       { return nil }
func (nopDiagnostics) SetWired(bool) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Hostname:    "bench-turntable",
		Pins:        config.PinsConfig{StepperCoils: [4]int{21, 20, 19, 18}, Button: 22, WiredShutter: 10, IRTransmit: 13, Indicator: 25},
		Speeds:      config.SpeedsConfig{SlowMs: 13, NormalMs: 4, FastMs: 1},
		PhotoDelays: config.PhotoDelaysConfig{ShortMs: 500, MediumMs: 1000, LongMs: 2000},
		Defaults:    config.DefaultsConfig{TriggerMode: "WIRED", StepsPerDegree: 33.96, ListenAddr: ":0", DebugLevel: 0, MockGPIO: true},
	}
}

type serverFixture struct {
	op        *state.Operation
	srv       *Server
	ts        *httptest.Server
	cfgPath   string
	restarted chan struct{}
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	op := state.NewOperation(state.NewSpeedTable([]int{13, 4, 1}, 1), camera.Wired)
	handler := command.NewHandler(op, command.Defaults{NormalSpeedMs: 4, MediumDelayMs: 1000}, nopDiagnostics{})

	f := &serverFixture{
		op:        op,
		cfgPath:   filepath.Join(t.TempDir(), "config.yaml"),
		restarted: make(chan struct{}),
	}
	restart := func() { close(f.restarted) }
	f.srv = NewServer(":0", NewBroadcaster(op.Snapshot), handler, testConfig(), f.cfgPath, restart)
	f.ts = httptest.NewServer(f.srv.Mux())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *serverFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) state.Status {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	var status state.Status
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return status
}

func TestWebSocketSendsInitialStatus(t *testing.T) {
	f := newServerFixture(t)
	conn := f.dial(t)

	status := readStatus(t, conn)
	if status.Mode != state.Idle || status.Message != "Ready" {
		t.Errorf("initial status = %+v", status)
	}
	if status.Speed != 4 || status.TriggerMode != camera.Wired {
		t.Errorf("initial status = %+v", status)
	}
}

func TestWebSocketCommandUpdatesState(t *testing.T) {
	f := newServerFixture(t)
	conn := f.dial(t)
	readStatus(t, conn) // initial

	msg := `{"command":"start_spin","speed":1}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}

	status := readStatus(t, conn)
	if status.Mode != state.Spin {
		t.Fatalf("mode = %v, want SPIN", status.Mode)
	}
	if status.Speed != 1 {
		t.Errorf("speed = %d, want 1", status.Speed)
	}
}

func TestWebSocketDropsMalformedCommand(t *testing.T) {
	f := newServerFixture(t)
	conn := f.dial(t)
	readStatus(t, conn) // initial

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	// A valid command afterwards still works; the malformed one caused
	// neither a state change nor a broadcast.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"command":"take_picture"}`)); err != nil {
		t.Fatal(err)
	}

	status := readStatus(t, conn)
	if status.Mode != state.Picture {
		t.Errorf("mode = %v, want PICTURE", status.Mode)
	}
}

func TestWebSocketBroadcastReachesAllClients(t *testing.T) {
	f := newServerFixture(t)
	first := f.dial(t)
	readStatus(t, first)
	second := f.dial(t)
	readStatus(t, second)
	readStatus(t, first) // second client's connect broadcast

	if err := first.WriteMessage(websocket.TextMessage, []byte(`{"command":"start_spin"}`)); err != nil {
		t.Fatal(err)
	}

	if status := readStatus(t, second); status.Mode != state.Spin {
		t.Errorf("second client saw %+v, want SPIN", status)
	}
}

func TestGetSettingsReturnsConfig(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/api/settings")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var cfg config.Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Hostname != "bench-turntable" {
		t.Errorf("hostname = %q", cfg.Hostname)
	}
	if cfg.Speeds.NormalMs != 4 {
		t.Errorf("normal speed = %d, want 4", cfg.Speeds.NormalMs)
	}
}

func TestPostSettingsSavesAndSchedulesRestart(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(testConfig())
	resp, err := http.Post(f.ts.URL+"/api/settings", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var reply map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply["status"] != "ok" {
		t.Errorf("reply = %v", reply)
	}

	if _, err := os.Stat(f.cfgPath); err != nil {
		t.Errorf("settings file not written: %v", err)
	}

	select {
	case <-f.restarted:
	case <-time.After(3 * time.Second):
		t.Error("restart was not scheduled")
	}
}

func TestPostSettingsRejectsMalformedBody(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/settings", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if _, err := os.Stat(f.cfgPath); !os.IsNotExist(err) {
		t.Error("malformed settings were persisted")
	}
}

func TestRebootEndpointSchedulesRestart(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/reboot", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	select {
	case <-f.restarted:
	case <-time.After(3 * time.Second):
		t.Error("restart was not scheduled")
	}
}

func TestControlPagesServed(t *testing.T) {
	f := newServerFixture(t)

	for _, path := range []string{"/", "/settings"} {
		resp, err := http.Get(f.ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(f.ts.URL + "/no-such-page")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /no-such-page = %d, want 404", resp.StatusCode)
	}
}
