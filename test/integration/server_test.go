package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/vinhnt/goshare/internal/server"
	"github.com/vinhnt/goshare/test/testhelpers"
)

// TestHealthEndpoint verifies the health endpoint with the actual route setup.
func TestHealthEndpoint(t *testing.T) {
	startSignalingServer(t)
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "text/plain" {
		t.Errorf("Expected content type text/plain, got %s", contentType)
	}
}

// TestStatsEndpoint verifies that the stats endpoint reports the registries'
// counters as JSON.
func TestStatsEndpoint(t *testing.T) {
	url := startSignalingServer(t)

	c := testhelpers.ConnectWebSocket(t, url)
	testhelpers.SendJSON(t, c, map[string]any{"type": "join", "room": "room-stats", "id": "sender"})
	testhelpers.ReadType(t, c, "room_users")

	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Expected content type application/json, got %s", contentType)
	}

	var stats map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats["clients"] < 1 {
		t.Errorf("Expected at least one connected client, got %d", stats["clients"])
	}
	if stats["rooms"] < 1 {
		t.Errorf("Expected at least one live room, got %d", stats["rooms"])
	}
}

// TestWebSocketEndpointRejectsNonGet verifies the method guard on the
// upgrade endpoint.
func TestWebSocketEndpointRejectsNonGet(t *testing.T) {
	startSignalingServer(t)
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/ws", "application/json", http.NoBody)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status code %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

// TestGracefulShutdown verifies that a hub shuts down cleanly when idle.
func TestGracefulShutdown(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	time.Sleep(50 * time.Millisecond)

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}
