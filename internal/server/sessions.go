// Package server enforces the single-active-session invariant in the
// SessionDirectory: a username is bound to at most one live connection, and a
// newer login evicts the older one.
package server

import "sync"

// SessionDirectory maps usernames to the single connection currently logged
// in under that name. Connections that never sent a login message (for
// example viewers using the bypass token) do not appear here.
type SessionDirectory struct {
	mu     sync.RWMutex
	byName map[string]*Client
}

// NewSessionDirectory creates an empty directory.
func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{byName: make(map[string]*Client)}
}

// Bind installs the connection as the session for the username and returns
// the previously bound connection when a different one is being superseded,
// so the caller can notify and close it. Binding never fails.
func (d *SessionDirectory) Bind(username string, c *Client) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.byName[username]
	d.byName[username] = c
	if old != nil && old != c {
		return old
	}
	return nil
}

// Unbind removes the binding only if it still points at the given connection,
// guarding against a stale disconnect racing a newer login. It reports
// whether a binding was removed.
func (d *SessionDirectory) Unbind(username string, c *Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.byName[username] != c {
		return false
	}
	delete(d.byName, username)
	return true
}

// Lookup returns the connection currently bound to the username.
func (d *SessionDirectory) Lookup(username string) (*Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.byName[username]
	return c, ok
}

// Rename moves the binding from one username to another, but only if the old
// name is still bound to the given connection. Used when an authenticated
// user changes their username mid-session.
func (d *SessionDirectory) Rename(oldName, newName string, c *Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.byName[oldName] != c {
		return false
	}
	delete(d.byName, oldName)
	d.byName[newName] = c
	return true
}

// Count returns the number of live sessions.
func (d *SessionDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}
