// Package server tracks per-connection session attributes in the
// ConnectionRegistry. The registry is pure bookkeeping; the router owns all
// business rules built on top of it.
package server

import "sync"

// participantRecord holds the attributes a connection accumulates over its
// lifetime. An empty string means the field was never set.
type participantRecord struct {
	room          string
	participantID string
	displayName   string
}

// ConnectionRegistry maps each live connection to its room name, participant
// id, and display name. All three fields are independently optional until a
// join or login message sets them, and the whole record is erased on
// disconnect. Mutations happen on the hub loop; the mutex makes point reads
// from other goroutines (stats handler, tests) safe.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	records map[*Client]*participantRecord
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{records: make(map[*Client]*participantRecord)}
}

func (r *ConnectionRegistry) record(c *Client) *participantRecord {
	rec, ok := r.records[c]
	if !ok {
		rec = &participantRecord{}
		r.records[c] = rec
	}
	return rec
}

// SetRoom records the room a connection is currently a member of.
func (r *ConnectionRegistry) SetRoom(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(c).room = room
}

// SetParticipantID records the room-scoped participant id of a connection.
func (r *ConnectionRegistry) SetParticipantID(c *Client, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(c).participantID = id
}

// SetDisplayName records the authenticated or claimed username of a connection.
func (r *ConnectionRegistry) SetDisplayName(c *Client, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(c).displayName = name
}

// Room returns the connection's room name, if one was set.
func (r *ConnectionRegistry) Room(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[c]; ok && rec.room != "" {
		return rec.room, true
	}
	return "", false
}

// ParticipantID returns the connection's participant id, if one was set.
func (r *ConnectionRegistry) ParticipantID(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[c]; ok && rec.participantID != "" {
		return rec.participantID, true
	}
	return "", false
}

// DisplayName returns the connection's display name, if one was set.
func (r *ConnectionRegistry) DisplayName(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[c]; ok && rec.displayName != "" {
		return rec.displayName, true
	}
	return "", false
}

// Release erases every field recorded for the connection in one step. Calling
// it for an unknown connection is a no-op.
func (r *ConnectionRegistry) Release(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, c)
}
