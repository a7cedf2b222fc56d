// Package server exposes the HTTP handlers: the WebSocket upgrade endpoint,
// a health check, and a stats endpoint for operational visibility.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Sized for SDP payloads.
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests. It upgrades the HTTP
// connection, creates a Client, and registers it with the hub, which launches
// the read/write pumps.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)
	client.hub.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Signaling server is running!")
}

// StatsHandler reports current connection, room, and session counts as JSON.
func StatsHandler(w http.ResponseWriter, _ *http.Request) {
	clients, rooms, sessions := hub.Counts()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]int{
		"clients":  clients,
		"rooms":    rooms,
		"sessions": sessions,
	})
	if err != nil {
		log.Printf("Error writing stats response: %v", err)
	}
}
