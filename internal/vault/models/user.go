// Package models defines the vault's persisted data records. All types
// marshal to the JSON checkpoint formats kept under the storage root.
package models

// User is an account record, stored in users.json keyed by username.
// Salt and PasswordHash are replaced atomically on password change;
// everything else is immutable after registration.
type User struct {
	ID           string `json:"user_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash []byte `json:"hashed_password"`
	Salt         []byte `json:"salt"`
	Role         string `json:"role"`
}

// Session is a live login, stored in sessions.json keyed by token.
// Sessions carry no expiry; they exist until logout.
type Session struct {
	Token    string `json:"-"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
