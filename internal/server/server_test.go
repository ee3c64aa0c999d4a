package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simview/simview/internal/bundle"
	"github.com/simview/simview/internal/config"
	"github.com/simview/simview/internal/db"
	"github.com/simview/simview/internal/logview"
	"github.com/simview/simview/internal/panel"
	"github.com/simview/simview/internal/state"
	"github.com/simview/simview/internal/workspace"
)

func setupServer(t *testing.T) (*Server, *panel.Registry, *logview.Buffer) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Workspace = t.TempDir()

	b := bundle.New("")
	ws, err := workspace.Active(cfg, b)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := state.NewStore(database, ws.Root)
	logBuf := logview.NewBuffer()
	surface := NewSurface()
	registry := panel.New(surface, ws, b, store, logBuf, panel.Options{})

	srv := New(Config{Port: 0, AllowAll: true}, registry, surface, b, store)
	return srv, registry, logBuf
}

func TestHealthCheck(t *testing.T) {
	srv, _, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestIndexPlaceholderThenDocument(t *testing.T) {
	srv, _, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No program loaded") {
		t.Error("expected placeholder before first load")
	}

	// Load a program through the API, then the assembled document is
	// served.
	req = httptest.NewRequest("POST", "/api/load", strings.NewReader("console.log(1)"))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), "usePostMessage: true") {
		t.Error("expected assembled document after load")
	}
	if strings.Contains(w.Body.String(), "usePostMessage: false") {
		t.Error("assembled document still in direct-embed mode")
	}
}

func TestBundleRoute(t *testing.T) {
	srv, _, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/bundle/simulator.js", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("expected javascript content type, got %q", ct)
	}
}

func TestPanelStatusLifecycle(t *testing.T) {
	srv, registry, _ := setupServer(t)

	req := httptest.NewRequest("GET", "/api/panel", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	var status panelStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Live {
		t.Error("expected no live panel initially")
	}

	if err := registry.Show(t.Context()); err != nil {
		t.Fatalf("Show: %v", err)
	}

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/panel", nil))
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Live {
		t.Error("expected live panel after Show")
	}

	// DELETE disposes the panel and clears the instance.
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("DELETE", "/api/panel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("dispose: expected 200, got %d", w.Code)
	}
	if registry.Status().Live {
		t.Error("expected instance cleared after dispose")
	}
}

func TestWebSocketFetchJSRoundTrip(t *testing.T) {
	srv, registry, _ := setupServer(t)

	if err := registry.Show(t.Context()); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if err := registry.Load(t.Context(), "program-text"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	server := httptest.NewServer(srv.Router())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sim"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fetch-js","id":"1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var fields map[string]any
	if err := conn.ReadJSON(&fields); err != nil {
		t.Fatalf("read: %v", err)
	}
	if fields["text"] != "program-text" {
		t.Errorf("expected program text in reply, got %v", fields["text"])
	}
	if fields["id"] != "1" {
		t.Errorf("envelope not echoed: %v", fields)
	}
}

func TestWebSocketSerialToLog(t *testing.T) {
	srv, registry, logBuf := setupServer(t)

	if err := registry.Show(t.Context()); err != nil {
		t.Fatalf("Show: %v", err)
	}

	server := httptest.NewServer(srv.Router())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sim"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	lineSeen := make(chan string, 2)
	logBuf.Subscribe(func(ev logview.Event) {
		if ev.Kind == logview.EventLine {
			lineSeen <- ev.Line
		}
	})

	raw := `{"type":"bulkserial","data":[{"data":"a","time":1},{"data":"b","time":2}]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := <-lineSeen; got != "a" {
		t.Errorf("expected first line 'a', got %q", got)
	}
	if got := <-lineSeen; got != "b" {
		t.Errorf("expected second line 'b', got %q", got)
	}

	// History is persisted and served by the API.
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/serial", nil))
	var lines []state.SerialLine
	if err := json.NewDecoder(w.Body).Decode(&lines); err != nil {
		t.Fatalf("decode serial: %v", err)
	}
	if len(lines) != 2 || lines[0].Line != "a" || lines[1].Line != "b" {
		t.Errorf("unexpected serial history %+v", lines)
	}
}

func TestStopEndpointPushesStopSim(t *testing.T) {
	srv, registry, _ := setupServer(t)

	if err := registry.Show(t.Context()); err != nil {
		t.Fatalf("Show: %v", err)
	}

	server := httptest.NewServer(srv.Router())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sim"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	// Wait for the server to attach the connection before pushing.
	deadline := time.Now().Add(2 * time.Second)
	for srv.surface.Connections() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("POST", "/api/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", w.Code)
	}

	var fields map[string]any
	if err := conn.ReadJSON(&fields); err != nil {
		t.Fatalf("read: %v", err)
	}
	if fields["type"] != "stop-sim" {
		t.Errorf("expected stop-sim push, got %v", fields["type"])
	}
	if fields["_fromVscode"] != true {
		t.Error("expected origin marker on push")
	}
}
