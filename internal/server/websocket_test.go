package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestJoinOverWebSocket tests the join handshake end to end. It verifies that
// the joiner gets a welcome listing existing peers and that existing players
// are told about the newcomer.
func TestJoinOverWebSocket(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	ann := join(t, ts, "p1", "Ann")

	bob := dial(t, ts)
	sendJoin(t, bob, "p2", "Bob")
	welcome := readUntil(t, bob, "welcome")
	if welcome["id"] != "p2" {
		t.Errorf("Expected welcome for p2, got %v", welcome["id"])
	}
	peers, ok := welcome["peers"].([]interface{})
	if !ok || len(peers) != 1 {
		t.Fatalf("Expected one peer, got %v", welcome["peers"])
	}

	joined := readUntil(t, ann, "join")
	if joined["username"] != "Bob" || joined["id"] != "p2" {
		t.Errorf("Unexpected join announcement: %v", joined)
	}
}

// TestEachMessageIsItsOwnFrame tests that queued outbound messages are never
// batched into one frame.
func TestEachMessageIsItsOwnFrame(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ann := join(t, ts, "p1", "Ann")
	join(t, ts, "p2", "Bob")
	readUntil(t, ann, "join")

	for i := 0; i < 5; i++ {
		send(t, ann, map[string]interface{}{"type": "chat", "message": "hi"})
	}
	for i := 0; i < 5; i++ {
		msg := readUntil(t, ann, "chat")
		if msg["message"] != "hi" {
			t.Fatalf("Unexpected chat frame %v", msg)
		}
	}
}

// TestStateRelayedToOthers tests that a position update reaches other players
// but is not echoed back.
func TestStateRelayedToOthers(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ann := join(t, ts, "p1", "Ann")
	bob := join(t, ts, "p2", "Bob")
	readUntil(t, ann, "join")

	send(t, bob, map[string]interface{}{"type": "state", "id": "p2", "x": 42.0, "y": 7.0})

	state := readUntil(t, ann, "state")
	if state["id"] != "p2" || state["x"] != 42.0 || state["y"] != 7.0 {
		t.Errorf("Unexpected state: %v", state)
	}
	expectNoMessage(t, bob, 200*time.Millisecond)
}

// TestInvalidFramesAreDropped tests that malformed or unknown messages are
// ignored without an error reply and without closing the connection.
func TestInvalidFramesAreDropped(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ann := join(t, ts, "p1", "Ann")

	for _, raw := range []string{`not json`, `{"type":"dance"}`, `{"type":"state","x":1}`, `[]`} {
		if err := ann.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write %q: %v", raw, err)
		}
	}

	send(t, ann, map[string]interface{}{"type": "chat", "message": "still here"})
	msg := readUntil(t, ann, "chat")
	if msg["message"] != "still here" {
		t.Errorf("Expected connection to keep working, got %v", msg)
	}
}

// TestDuplicateNameRejected tests the username uniqueness check over the
// wire.
func TestDuplicateNameRejected(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	join(t, ts, "p1", "Ann")

	other := dial(t, ts)
	sendJoin(t, other, "p2", "ANN")
	msg := readUntil(t, other, "error")
	if msg["message"] != "Username is already taken." {
		t.Errorf("Unexpected error message: %v", msg["message"])
	}
}

// TestDisconnectBroadcastsLeave tests that closing a socket removes the
// player and notifies everyone else.
func TestDisconnectBroadcastsLeave(t *testing.T) {
	ts, hub := startTestServer(t, nil)
	ann := join(t, ts, "p1", "Ann")
	bob := join(t, ts, "p2", "Bob")
	readUntil(t, ann, "join")

	err := bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = bob.Close()

	leave := readUntil(t, ann, "leave")
	if leave["id"] != "p2" || leave["username"] != "Bob" {
		t.Errorf("Unexpected leave: %v", leave)
	}

	waitFor(t, func() bool { return hub.Players() == 1 })
}

// TestPartyCommandsOverWebSocket tests the invite and accept flow through chat
// commands.
func TestPartyCommandsOverWebSocket(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ann := join(t, ts, "p1", "Ann")
	bob := join(t, ts, "p2", "Bob")

	send(t, ann, map[string]interface{}{"type": "chat", "message": "/party invite Bob"})
	invite := readUntil(t, bob, "chat")
	if invite["username"] != "System" || !strings.Contains(invite["message"].(string), "Ann invited you") {
		t.Fatalf("Unexpected invite notice: %v", invite)
	}

	send(t, bob, map[string]interface{}{"type": "chat", "message": "/party accept"})
	readUntil(t, bob, "party_history")

	send(t, bob, map[string]interface{}{"type": "chat", "message": "hello team", "scope": "party"})
	for {
		msg := readUntil(t, ann, "chat")
		if msg["message"] == "hello team" {
			if msg["scope"] != "party" {
				t.Errorf("Expected party scope, got %v", msg["scope"])
			}
			break
		}
	}
}

// TestMessageSizeLimit tests that an oversized frame closes the connection.
func TestMessageSizeLimit(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxMessageSize = 128
	ts, _ := startTestServer(t, cfg)
	conn := join(t, ts, "p1", "Ann")

	big := `{"type":"chat","message":"` + strings.Repeat("a", 512) + `"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				t.Fatal("Expected the server to close the connection")
			}
			return
		}
	}
}

// TestRateLimitDropsExcessFrames tests that frames beyond the burst are
// discarded while the connection stays open.
func TestRateLimitDropsExcessFrames(t *testing.T) {
	cfg := NewConfig()
	cfg.RateLimit = RateLimitConfig{Burst: 3, RefillInterval: time.Hour}
	ts, _ := startTestServer(t, cfg)

	conn := dial(t, ts)
	sendJoin(t, conn, "p1", "Ann")
	readUntil(t, conn, "welcome")

	for i := 0; i < 5; i++ {
		send(t, conn, map[string]interface{}{"type": "chat", "message": "spam"})
	}

	received := 0
	if err := conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		received++
	}
	// The join consumed one token.
	if received != 2 {
		t.Errorf("Expected 2 chats within the burst, got %d", received)
	}
}

// TestOriginPolicyOnUpgrade tests that the upgrade honours the allow-list.
func TestOriginPolicyOnUpgrade(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"https://game.example"}
	ts, _ := startTestServer(t, cfg)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	headers.Set("Origin", "https://evil.example")
	_, resp, err := dialer.Dial(wsURL(ts), headers)
	if err == nil {
		t.Fatal("Expected disallowed origin to be rejected")
	}
	if resp != nil {
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", resp.StatusCode)
		}
		_ = resp.Body.Close()
	}

	headers.Set("Origin", "HTTPS://GAME.EXAMPLE")
	conn, resp, err := dialer.Dial(wsURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Expected allowed origin to connect: %v", err)
	}
	_ = conn.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
