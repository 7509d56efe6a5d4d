package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestHealthHandler tests the health endpoint. It verifies the status code,
// content type and that the body reports the number of players online.
func TestHealthHandler(t *testing.T) {
	ts, hub := startTestServer(t, nil)
	join(t, ts, "p1", "Ann")
	waitFor(t, func() bool { return hub.Players() == 1 })

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Expected content type text/plain, got %s", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "Relay is running! Players online: 1" {
		t.Errorf("Unexpected body: %q", body)
	}
}

// TestWebSocketHandlerRejectsNonGet tests that the upgrade endpoint only
// accepts GET.
func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	hub := NewHub(nil, 0)
	srv := NewServer(*NewConfig(), hub)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/ws", http.NoBody)
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405, got %d", rr.Code)
			}
		})
	}
}

// TestWebSocketHandlerRequiresUpgrade tests that a plain GET is refused by
// the upgrader.
func TestWebSocketHandlerRequiresUpgrade(t *testing.T) {
	hub := NewHub(nil, 0)
	srv := NewServer(*NewConfig(), hub)

	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
}
