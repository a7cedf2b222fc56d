// Package testhelpers provides shared utilities for the signaling server's
// integration tests: spinning up test servers, dialing WebSocket clients, and
// exchanging protocol messages with deadlines.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ReadTimeout bounds every expected read in integration tests.
const ReadTimeout = 2 * time.Second

// CreateTestServer creates a test HTTP server with the given handler. The
// returned server should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL converts a test server's base URL into its ws:// endpoint.
func WebSocketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// ConnectWebSocket dials the WebSocket endpoint with a test origin header and
// fails the test on error. The connection is closed during test cleanup.
func ConnectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendJSON marshals and sends a message, failing the test on error.
func SendJSON(t *testing.T, conn *websocket.Conn, message map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(message); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

// ReadJSON reads the next message within ReadTimeout and decodes it.
func ReadJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var message map[string]any
	if err := json.Unmarshal(payload, &message); err != nil {
		t.Fatalf("Failed to decode message %q: %v", payload, err)
	}
	return message
}

// ReadType reads the next message and asserts its type field.
func ReadType(t *testing.T, conn *websocket.Conn, expected string) map[string]any {
	t.Helper()
	message := ReadJSON(t, conn)
	if message["type"] != expected {
		t.Fatalf("Expected message type %q, got %v", expected, message)
	}
	return message
}

// ExpectNoMessage asserts that nothing arrives within the given window.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, got %q", payload)
	}
	if !strings.Contains(err.Error(), "timeout") && !strings.Contains(err.Error(), "deadline") {
		t.Fatalf("Expected a read timeout, got: %v", err)
	}
}

// ExpectClosed asserts that the server closes the connection.
func ExpectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected connection to be closed, got message %q", payload)
	}
}

// FakeAuthStore is an in-memory credential store for integration tests.
type FakeAuthStore struct {
	mu    sync.Mutex
	users map[string]string
}

// NewFakeAuthStore builds an empty store.
func NewFakeAuthStore() *FakeAuthStore {
	return &FakeAuthStore{users: make(map[string]string)}
}

// Register records a new user unless the name is taken.
func (f *FakeAuthStore) Register(username, password string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.users[username]; taken {
		return false
	}
	f.users[username] = password
	return true
}

// Authenticate verifies a username/password pair.
func (f *FakeAuthStore) Authenticate(username, password string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[username]
	return ok && stored == password
}

// ChangePassword swaps the password after verifying the old one.
func (f *FakeAuthStore) ChangePassword(username, oldPassword, newPassword string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.users[username]; !ok || stored != oldPassword {
		return false
	}
	f.users[username] = newPassword
	return true
}

// ChangeUsername renames the account unless the new name is taken.
func (f *FakeAuthStore) ChangeUsername(username, password, newUsername string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.users[username]; !ok || stored != password {
		return false
	}
	if _, taken := f.users[newUsername]; taken {
		return false
	}
	f.users[newUsername] = f.users[username]
	delete(f.users, username)
	return true
}
