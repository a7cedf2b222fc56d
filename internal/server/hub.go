// Package server coordinates connection registration, message dispatch, and
// disconnect cleanup for the signaling service via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub owns the connection set, the three registries, and the message router.
// Its run loop is the single goroutine that mutates registry state: every
// inbound message is processed to completion there, which is what makes the
// sender-uniqueness and single-session invariants hold under concurrent
// connections.
type Hub struct {
	clients    map[*Client]bool
	inbound    chan *Message
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	registry *ConnectionRegistry
	rooms    *RoomTable
	sessions *SessionDirectory
	router   *MessageRouter
}

// NewHub creates and initializes a new Hub instance with empty registries.
// Call SetAuthStore before Run to enable credential-backed logins.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*Client]bool),
		inbound:    make(chan *Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		registry:   NewConnectionRegistry(),
		rooms:      NewRoomTable(),
		sessions:   NewSessionDirectory(),
	}
	h.router = newMessageRouter(h)
	return h
}

// SetAuthStore injects the credential store consulted by login, register, and
// credential-change messages. Without one, only bypass-token logins succeed.
func (h *Hub) SetAuthStore(store AuthStore) {
	h.router.auth = store
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			h.drainPumps()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			// Cleanup runs before the connection record disappears and is
			// idempotent, so a server-side eviction followed by the transport
			// close does no harm.
			h.router.handleDisconnect(client)
			if h.drop(client) {
				log.Printf("Client %s unregistered from %s", client.id, client.addr)
			}

		case msg := <-h.inbound:
			h.router.dispatch(msg)
		}
	}
}

// safeSend enqueues a payload for a client, reporting false if the client is
// gone or its buffer is full. Delivery to a closed connection is a silent
// no-op by design of the protocol.
func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// sendMessage marshals and enqueues a server-originated message.
func (h *Hub) sendMessage(client *Client, msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	h.safeSend(client, payload)
}

// drop removes the client from the hub and closes its send channel; the write
// pump flushes queued messages, sends a close frame, and closes the socket.
// It reports whether the client was still present.
func (h *Hub) drop(client *Client) bool {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client)
	client.closed = true
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	return true
}

// Counts returns the number of connected clients, live rooms, and bound
// sessions, in that order.
func (h *Hub) Counts() (clients, rooms, sessions int) {
	h.mutex.RLock()
	clients = len(h.clients)
	h.mutex.RUnlock()
	return clients, h.rooms.Count(), h.sessions.Count()
}

// drainPumps keeps servicing the hub channels after shutdown until every pump
// goroutine has exited. A pump blocked handing off an unregister or an inbound
// message would otherwise never find a receiver and leak.
func (h *Hub) drainPumps() {
	settled := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(settled)
	}()

	for {
		select {
		case client := <-h.unregister:
			h.router.handleDisconnect(client)
			h.drop(client)
		case <-h.inbound:
			// Discarded; the sender only needed the handoff to unblock.
		case client := <-h.register:
			if client != nil && client.conn != nil {
				client.conn.Close()
			}
		case <-settled:
			return
		}
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all client
// goroutines to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
