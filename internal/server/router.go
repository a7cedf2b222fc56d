// Package server classifies each inbound message and applies it to the
// registries through the MessageRouter. All router methods run on the hub
// loop, so every message is processed to completion before the next one from
// another connection can touch shared state.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// AuthStore verifies and maintains user credentials. Implementations report
// failure as a plain false; the router never learns why an operation failed
// and therefore cannot leak the reason to clients.
type AuthStore interface {
	Register(username, password string) bool
	Authenticate(username, password string) bool
	ChangePassword(username, oldPassword, newPassword string) bool
	ChangeUsername(username, password, newUsername string) bool
}

// MessageRouter dispatches inbound messages to control handlers or relays
// them by the room/target rules.
type MessageRouter struct {
	hub      *Hub
	registry *ConnectionRegistry
	rooms    *RoomTable
	sessions *SessionDirectory
	auth     AuthStore
}

func newMessageRouter(h *Hub) *MessageRouter {
	return &MessageRouter{
		hub:      h,
		registry: h.registry,
		rooms:    h.rooms,
		sessions: h.sessions,
	}
}

// dispatch routes one inbound message. Account messages work without a room;
// everything else is silently dropped unless it names one.
func (r *MessageRouter) dispatch(msg *Message) {
	switch msg.Type {
	case TypeLogin:
		r.handleLogin(msg.client, msg)
		return
	case TypeRegister:
		r.handleRegister(msg.client, msg)
		return
	case TypeChangePassword:
		r.handleChangePassword(msg.client, msg)
		return
	case TypeChangeUsername:
		r.handleChangeUsername(msg.client, msg)
		return
	}

	if msg.Room == "" {
		return
	}

	switch msg.Type {
	case TypeJoin:
		r.handleJoin(msg.client, msg)
	case TypeRequestShare:
		r.handleRequestShare(msg.client, msg)
	case TypeSwapAccept:
		r.handleSwapAccept(msg.client, msg)
	case TypeKickUser:
		r.handleKickUser(msg.client, msg)
	default:
		r.relay(msg.client, msg)
	}
}

// handleLogin authenticates the connection and installs it as the single live
// session for the username, evicting a superseded connection first.
func (r *MessageRouter) handleLogin(c *Client, msg *Message) {
	ok := msg.Username != "" &&
		(msg.Password == currentConfig().BypassToken ||
			(r.auth != nil && r.auth.Authenticate(msg.Username, msg.Password)))
	if !ok {
		// One generic reason for every cause; wrong password and unknown user
		// must be indistinguishable.
		r.hub.sendMessage(c, &Message{Type: TypeLoginFail, Reason: "invalid credentials"})
		return
	}

	// A connection holds at most one session; re-logging-in under a new name
	// releases the old binding so the directory never references this
	// connection twice.
	if prev, has := r.registry.DisplayName(c); has && prev != msg.Username {
		r.sessions.Unbind(prev, c)
	}

	if old := r.sessions.Bind(msg.Username, c); old != nil {
		r.hub.sendMessage(old, &Message{Type: TypeForceLogout, Reason: "logged in from another location"})
		r.disconnect(old)
		log.Printf("Session for %q moved to client %s; previous connection evicted", msg.Username, c.id)
	}

	r.registry.SetDisplayName(c, msg.Username)
	r.hub.sendMessage(c, &Message{Type: TypeLoginSuccess, Username: msg.Username})
}

func (r *MessageRouter) handleRegister(c *Client, msg *Message) {
	ok := msg.Username != "" && msg.Password != "" &&
		r.auth != nil && r.auth.Register(msg.Username, msg.Password)
	if ok {
		r.hub.sendMessage(c, &Message{Type: TypeRegisterSuccess})
	} else {
		r.hub.sendMessage(c, &Message{Type: TypeRegisterFail})
	}
}

func (r *MessageRouter) handleChangePassword(c *Client, msg *Message) {
	ok := msg.Username != "" && msg.NewPassword != "" &&
		r.auth != nil && r.auth.ChangePassword(msg.Username, msg.Password, msg.NewPassword)
	if ok {
		r.hub.sendMessage(c, &Message{Type: TypePasswordChangeSuccess})
	} else {
		r.hub.sendMessage(c, &Message{Type: TypePasswordChangeFail})
	}
}

// handleChangeUsername renames the account and, when the requesting
// connection holds the session for the old name, carries the session and
// display name over so the directory key stays consistent.
func (r *MessageRouter) handleChangeUsername(c *Client, msg *Message) {
	ok := msg.Username != "" && msg.NewUsername != "" &&
		r.auth != nil && r.auth.ChangeUsername(msg.Username, msg.Password, msg.NewUsername)
	if !ok {
		r.hub.sendMessage(c, &Message{Type: TypeUsernameChangeFail})
		return
	}

	r.sessions.Rename(msg.Username, msg.NewUsername, c)
	if name, has := r.registry.DisplayName(c); has && name == msg.Username {
		r.registry.SetDisplayName(c, msg.NewUsername)
	}
	r.hub.sendMessage(c, &Message{Type: TypeUsernameChangeSuccess, Username: msg.NewUsername})
}

// handleJoin adds the connection to the room, rejecting a second claim on the
// sender slot, then sends the roster to the joiner and forwards the join
// verbatim to everyone already there.
func (r *MessageRouter) handleJoin(c *Client, msg *Message) {
	if msg.ID == SenderID && r.roomHasSender(msg.Room, c) {
		r.hub.sendMessage(c, &Message{Type: TypeJoinFail, Reason: "room already has an active sender"})
		return
	}

	// A connection is a member of at most one room; joining a different room
	// implies leaving the old one first.
	if current, has := r.registry.Room(c); has && current != msg.Room {
		r.leaveRoom(c, current)
	}

	others := r.rooms.JoinOrCreate(msg.Room, c)
	r.registry.SetRoom(c, msg.Room)
	r.registry.SetParticipantID(c, msg.ID)
	if _, has := r.registry.DisplayName(c); !has {
		r.registry.SetDisplayName(c, msg.Username)
	}

	users := make([]RoomUser, 0, len(others))
	for _, member := range others {
		id, _ := r.registry.ParticipantID(member)
		name, _ := r.registry.DisplayName(member)
		users = append(users, RoomUser{ID: id, Username: name})
		// Existing members learn of the newcomer via the join message itself.
		r.hub.safeSend(member, msg.raw)
	}
	r.hub.sendMessage(c, &Message{Type: TypeRoomUsers, Users: users})

	log.Printf("Client %s joined room %q as %q (%d other members)", c.id, msg.Room, msg.ID, len(others))
}

// handleRequestShare forwards a viewer's share request to the room's current
// sender. Without a sender the request is dropped.
func (r *MessageRouter) handleRequestShare(c *Client, msg *Message) {
	if sender := r.memberWithID(msg.Room, SenderID); sender != nil {
		r.hub.safeSend(sender, msg.raw)
	}
}

// handleSwapAccept notifies both sides of a granted role swap and retires the
// current sender's participant id so the sender slot is free for the target
// to claim with a fresh join. The target is not promoted automatically; the
// client protocol re-joins with the sender id once its media is ready.
func (r *MessageRouter) handleSwapAccept(c *Client, msg *Message) {
	if msg.TargetID == "" {
		return
	}
	target := r.memberWithID(msg.Room, msg.TargetID)
	if target == nil {
		return
	}

	r.hub.sendMessage(c, &Message{Type: TypeGrantView})
	r.hub.sendMessage(target, &Message{Type: TypeGrantShare})
	r.registry.SetParticipantID(c, retiredID())

	log.Printf("Sender of room %q retired; slot offered to %q", msg.Room, msg.TargetID)
}

// retiredID builds a participant id that can never collide with the sender
// token, freeing the slot the instant a swap is accepted.
func retiredID() string {
	return fmt.Sprintf("v_retired_%d", time.Now().UnixMilli())
}

// handleKickUser evicts the room member holding the target participant id.
func (r *MessageRouter) handleKickUser(c *Client, msg *Message) {
	if msg.TargetID == "" {
		return
	}
	target := r.memberWithID(msg.Room, msg.TargetID)
	if target == nil {
		return
	}

	r.hub.sendMessage(target, &Message{Type: TypeForceLogout, Reason: "removed by moderator"})
	r.disconnect(target)
	log.Printf("Client %s kicked from room %q (participant %q)", target.id, msg.Room, msg.TargetID)
}

// relay delivers a generic routed message: unicast when it names a target
// participant id, broadcast to the rest of the room otherwise. A target that
// matches nobody drops the message; it never falls back to broadcast.
func (r *MessageRouter) relay(c *Client, msg *Message) {
	if target := msg.targetKey(); target != "" {
		if member := r.memberWithID(msg.Room, target); member != nil {
			r.hub.safeSend(member, msg.raw)
		}
		return
	}
	r.broadcast(msg.Room, msg.raw, c)
}

// broadcast sends a payload to every room member except the excluded one.
func (r *MessageRouter) broadcast(room string, payload []byte, exclude *Client) {
	for _, member := range r.rooms.Members(room) {
		if member != exclude {
			r.hub.safeSend(member, payload)
		}
	}
}

// memberWithID returns the room member whose participant id matches exactly,
// or nil.
func (r *MessageRouter) memberWithID(room, id string) *Client {
	for _, member := range r.rooms.Members(room) {
		if pid, _ := r.registry.ParticipantID(member); pid == id {
			return member
		}
	}
	return nil
}

// roomHasSender reports whether any room member other than the excluded
// connection currently holds the sender id. The exclusion lets a retired
// sender re-claim its own slot by re-joining.
func (r *MessageRouter) roomHasSender(room string, exclude *Client) bool {
	for _, member := range r.rooms.Members(room) {
		if member == exclude {
			continue
		}
		if pid, _ := r.registry.ParticipantID(member); pid == SenderID {
			return true
		}
	}
	return false
}

// leaveRoom removes the connection from a room, announces the departure to
// the remaining members, and logs the room's deletion when it empties.
func (r *MessageRouter) leaveRoom(c *Client, room string) {
	id, hasID := r.registry.ParticipantID(c)
	emptied := r.rooms.Leave(room, c)
	if emptied {
		log.Printf("Room %q closed", room)
		return
	}
	if hasID {
		payload, err := json.Marshal(&Message{Type: TypeUserLeft, ID: id})
		if err != nil {
			log.Printf("Error marshaling user_left message: %v", err)
			return
		}
		r.broadcast(room, payload, c)
	}
}

// handleDisconnect unwinds every registry record referencing the connection.
// It tolerates partially-initialized state and repeated invocation: each step
// degrades to a no-op when its precondition is absent.
func (r *MessageRouter) handleDisconnect(c *Client) {
	if name, has := r.registry.DisplayName(c); has {
		r.sessions.Unbind(name, c)
	}
	if room, has := r.registry.Room(c); has {
		r.leaveRoom(c, room)
	}
	r.registry.Release(c)
}

// disconnect runs cleanup for a connection the server itself is evicting and
// removes it from the hub. The queued notification (force_logout) is flushed
// by the write pump before the socket closes.
func (r *MessageRouter) disconnect(c *Client) {
	r.handleDisconnect(c)
	r.hub.drop(c)
}
