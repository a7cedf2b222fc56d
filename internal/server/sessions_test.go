package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindReturnsSupersededConnection(t *testing.T) {
	sessions := NewSessionDirectory()
	h := NewHub()
	c1 := NewClient(nil, h, "c1")
	c2 := NewClient(nil, h, "c2")

	require.Nil(t, sessions.Bind("alice", c1))

	// Re-binding the same connection is not an eviction.
	require.Nil(t, sessions.Bind("alice", c1))

	evicted := sessions.Bind("alice", c2)
	require.Same(t, c1, evicted)

	bound, ok := sessions.Lookup("alice")
	require.True(t, ok)
	require.Same(t, c2, bound)
	require.Equal(t, 1, sessions.Count())
}

func TestUnbindOnlyRemovesCurrentBinding(t *testing.T) {
	sessions := NewSessionDirectory()
	h := NewHub()
	c1 := NewClient(nil, h, "c1")
	c2 := NewClient(nil, h, "c2")

	sessions.Bind("alice", c1)
	sessions.Bind("alice", c2)

	// A stale disconnect of the evicted connection must not unbind the new one.
	require.False(t, sessions.Unbind("alice", c1))
	bound, ok := sessions.Lookup("alice")
	require.True(t, ok)
	require.Same(t, c2, bound)

	require.True(t, sessions.Unbind("alice", c2))
	_, ok = sessions.Lookup("alice")
	require.False(t, ok)
}

func TestRenameMovesBindingForOwner(t *testing.T) {
	sessions := NewSessionDirectory()
	h := NewHub()
	c1 := NewClient(nil, h, "c1")
	c2 := NewClient(nil, h, "c2")

	sessions.Bind("alice", c1)

	// Only the connection holding the session may rename it.
	require.False(t, sessions.Rename("alice", "alicia", c2))
	require.True(t, sessions.Rename("alice", "alicia", c1))

	_, ok := sessions.Lookup("alice")
	require.False(t, ok)
	bound, ok := sessions.Lookup("alicia")
	require.True(t, ok)
	require.Same(t, c1, bound)
}
