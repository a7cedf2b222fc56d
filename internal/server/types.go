// Package server defines the wire message envelope exchanged with signaling
// clients and the constants of the room protocol.
package server

import (
	"encoding/json"
	"strings"
)

// Client-originated message types recognized by the router. Anything else is
// relayed verbatim by the room/target rules.
const (
	TypeLogin          = "login"
	TypeRegister       = "register"
	TypeJoin           = "join"
	TypeRequestShare   = "request_share"
	TypeSwapAccept     = "swap_accept"
	TypeKickUser       = "kick_user"
	TypeChangePassword = "change_password"
	TypeChangeUsername = "change_username"
)

// Server-originated message types.
const (
	TypeLoginSuccess          = "login_success"
	TypeLoginFail             = "login_fail"
	TypeRegisterSuccess       = "register_success"
	TypeRegisterFail          = "register_fail"
	TypePasswordChangeSuccess = "password_change_success"
	TypePasswordChangeFail    = "password_change_fail"
	TypeUsernameChangeSuccess = "username_change_success"
	TypeUsernameChangeFail    = "username_change_fail"
	TypeJoinFail              = "join_fail"
	TypeRoomUsers             = "room_users"
	TypeUserLeft              = "user_left"
	TypeGrantView             = "grant_view"
	TypeGrantShare            = "grant_share"
	TypeForceLogout           = "force_logout"
)

// SenderID is the reserved participant id held by the active screen
// broadcaster of a room. At most one member per room may hold it.
const SenderID = "sender"

// RoomUser is one entry of a room_users roster.
type RoomUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is the flat JSON envelope used in both directions. Only the fields
// the server interprets are declared; raw retains the bytes as received so
// relayed messages reach their recipients byte-for-byte, unknown fields
// included.
type Message struct {
	Type        string     `json:"type"`
	Username    string     `json:"username,omitempty"`
	Password    string     `json:"password,omitempty"`
	NewPassword string     `json:"newPassword,omitempty"`
	NewUsername string     `json:"newUsername,omitempty"`
	Room        string     `json:"room,omitempty"`
	ID          string     `json:"id,omitempty"`
	Target      string     `json:"target,omitempty"`
	TargetID    string     `json:"targetId,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Users       []RoomUser `json:"users,omitempty"`

	raw    []byte  // original bytes, for verbatim relay
	client *Client // originating connection, set by the read pump
}

// parseMessage decodes a raw frame into a Message, keeping the original bytes.
func parseMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	msg.raw = raw
	return &msg, nil
}

// targetKey returns the participant id a routed message is addressed to, with
// "target" taking precedence over "targetId". Empty means broadcast.
func (m *Message) targetKey() string {
	if m.Target != "" {
		return m.Target
	}
	return m.TargetID
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
