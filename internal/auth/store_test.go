package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	store := openTestStore(t)

	require.True(t, store.Register("alice", "secret"))
	require.True(t, store.Authenticate("alice", "secret"))
	require.False(t, store.Authenticate("alice", "wrong"))
	require.False(t, store.Authenticate("nobody", "secret"))
}

func TestRegisterDuplicateUsernameFails(t *testing.T) {
	store := openTestStore(t)

	require.True(t, store.Register("alice", "secret"))
	require.False(t, store.Register("alice", "other"))

	// Original credentials are untouched.
	require.True(t, store.Authenticate("alice", "secret"))
}

func TestChangePassword(t *testing.T) {
	store := openTestStore(t)
	require.True(t, store.Register("alice", "old"))

	require.False(t, store.ChangePassword("alice", "wrong", "new"))
	require.False(t, store.ChangePassword("nobody", "old", "new"))

	require.True(t, store.ChangePassword("alice", "old", "new"))
	require.True(t, store.Authenticate("alice", "new"))
	require.False(t, store.Authenticate("alice", "old"))
}

func TestChangeUsername(t *testing.T) {
	store := openTestStore(t)
	require.True(t, store.Register("alice", "secret"))
	require.True(t, store.Register("bob", "hunter2"))

	require.False(t, store.ChangeUsername("alice", "wrong", "alicia"))
	require.False(t, store.ChangeUsername("alice", "secret", "bob"), "taken username must be rejected")

	require.True(t, store.ChangeUsername("alice", "secret", "alicia"))
	require.True(t, store.Authenticate("alicia", "secret"))
	require.False(t, store.Authenticate("alice", "secret"))
}

func TestPasswordsAreNotStoredInPlaintext(t *testing.T) {
	store := openTestStore(t)
	require.True(t, store.Register("alice", "secret"))

	var hash string
	err := store.db.QueryRow(`SELECT password_hash FROM users WHERE username = ?`, "alice").Scan(&hash)
	require.NoError(t, err)
	require.NotEqual(t, "secret", hash)
	require.Contains(t, hash, "$2", "expected a bcrypt hash")
}
