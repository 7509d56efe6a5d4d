package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/partyrelay/internal/relay"
)

const testOrigin = "http://localhost:10000"

// startTestServer runs a hub and an httptest server around a fresh relay and
// tears both down when the test ends.
func startTestServer(t *testing.T, cfg *Config) (*httptest.Server, *Hub) {
	t.Helper()
	if cfg == nil {
		cfg = NewConfig()
	}

	hub := NewHub(relay.New(cfg.RelayOptions(nil)), cfg.CooldownSweepInterval)
	go hub.Run()

	srv := NewServer(*cfg, hub)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		if err := hub.Shutdown(2 * time.Second); err != nil {
			t.Logf("hub shutdown: %v", err)
		}
		ts.Close()
	})
	return ts, hub
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial(wsURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

func sendJoin(t *testing.T, conn *websocket.Conn, id, name string) {
	t.Helper()
	send(t, conn, map[string]interface{}{
		"type": "join", "id": id, "x": 1.0, "y": 2.0, "color": "#00ff00", "username": name,
	})
}

// readUntil reads frames until one has the wanted type or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed waiting for %q: %v", msgType, err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("Frame is not a single JSON object: %q: %v", payload, err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

// expectNoMessage fails if any frame arrives within wait.
func expectNoMessage(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Errorf("Expected no message, got %s", payload)
	}
}

// join connects a player and waits for its welcome.
func join(t *testing.T, ts *httptest.Server, id, name string) *websocket.Conn {
	t.Helper()
	conn := dial(t, ts)
	sendJoin(t, conn, id, name)
	readUntil(t, conn, "welcome")
	return conn
}
