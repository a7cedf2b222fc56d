// Package auth persists user credentials in SQLite and verifies them with
// bcrypt. Every operation reports success as a plain boolean: duplicate
// usernames, missing users, and wrong passwords all come back as false, so
// callers cannot tell the cases apart.
package auth

import (
	"database/sql"
	"log"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL
);
`

// Store is a SQLite-backed credential store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the credential database at the given
// path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("Credential store ready at %s", path)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register creates a new user with a bcrypt-hashed password. It returns false
// when the username is already taken.
func (s *Store) Register(username, password string) bool {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password for %q: %v", username, err)
		return false
	}

	_, err = s.db.Exec(`INSERT INTO users(username, password_hash) VALUES(?, ?)`, username, string(hash))
	return err == nil
}

// Authenticate verifies a username/password pair.
func (s *Store) Authenticate(username, password string) bool {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ChangePassword replaces the user's password after verifying the old one.
func (s *Store) ChangePassword(username, oldPassword, newPassword string) bool {
	if !s.Authenticate(username, oldPassword) {
		return false
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password for %q: %v", username, err)
		return false
	}

	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE username = ?`, string(hash), username)
	if err != nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// ChangeUsername renames the account after verifying the password. It returns
// false when the new name is already taken.
func (s *Store) ChangeUsername(username, password, newUsername string) bool {
	if !s.Authenticate(username, password) {
		return false
	}

	res, err := s.db.Exec(`UPDATE users SET username = ? WHERE username = ?`, newUsername, username)
	if err != nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
