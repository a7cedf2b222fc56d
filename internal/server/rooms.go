// Package server owns room lifecycle in the RoomTable: rooms are created on
// first join and deleted the instant their member set becomes empty.
package server

import "sync"

// RoomTable maps room names to their current member connections. Membership
// is keyed by connection identity, not participant id. Mutations happen on
// the hub loop; the mutex makes point reads from other goroutines safe.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewRoomTable creates an empty room table.
func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[string]map[*Client]struct{})}
}

// JoinOrCreate adds the connection to the named room, creating the room if it
// does not exist, and returns a snapshot of the other members at the moment of
// joining. Joining a room the connection is already a member of only refreshes
// membership.
func (t *RoomTable) JoinOrCreate(room string, c *Client) []*Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		t.rooms[room] = members
	}

	others := make([]*Client, 0, len(members))
	for m := range members {
		if m != c {
			others = append(others, m)
		}
	}
	members[c] = struct{}{}
	return others
}

// Leave removes the connection from the named room and reports whether the
// room became empty and was deleted. Leaving a room the connection is not a
// member of is a no-op.
func (t *RoomTable) Leave(room string, c *Client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.rooms[room]
	if !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(t.rooms, room)
		return true
	}
	return false
}

// Members returns a point-in-time snapshot of the room's member connections.
// A missing room yields an empty slice.
func (t *RoomTable) Members(room string) []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.rooms[room]
	snapshot := make([]*Client, 0, len(members))
	for m := range members {
		snapshot = append(snapshot, m)
	}
	return snapshot
}

// Contains reports whether the connection is currently a member of the room.
func (t *RoomTable) Contains(room string, c *Client) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members, ok := t.rooms[room]
	if !ok {
		return false
	}
	_, member := members[c]
	return member
}

// Count returns the number of live rooms.
func (t *RoomTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
