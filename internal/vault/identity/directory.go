// Package identity implements the credential and session directory backing
// authorization across the vault. Users persist to <root>/users.json keyed
// by username, live sessions to <root>/sessions.json keyed by token; both
// maps are held in memory and flushed on every mutation.
package identity

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/cryptox"
	"github.com/evault-dev/evault/internal/vault/models"
	"github.com/google/uuid"
)

const (
	usersFile    = "users.json"
	sessionsFile = "sessions.json"

	saltSize = 16
	// tokenSize random bytes hex-encode to a 64-character session token.
	tokenSize = 32

	defaultRole = "user"
)

// Directory holds user accounts and live sessions.
//
// Sessions carry no expiry and logins are not throttled; both are known
// gaps of the design, kept deliberately rather than silently fixed.
type Directory struct {
	root     string
	mu       sync.RWMutex
	users    map[string]*models.User    // keyed by username
	sessions map[string]*models.Session // keyed by token
}

// NewDirectory opens (or creates) the directory rooted at dir and loads
// both maps.
func NewDirectory(dir string) (*Directory, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	d := &Directory{
		root:     dir,
		users:    make(map[string]*models.User),
		sessions: make(map[string]*models.Session),
	}
	if err := loadJSON(filepath.Join(dir, usersFile), &d.users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, sessionsFile), &d.sessions); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for token, session := range d.sessions {
		session.Token = token
	}
	return d, nil
}

// Register creates a new account with a random salt, an argon2id password
// hash, and a generated opaque id. Taken usernames yield ErrDuplicateUser.
func (d *Directory) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[username]; ok {
		return nil, fmt.Errorf("register %q: %w", username, common.ErrDuplicateUser)
	}

	salt := common.GenerateRandByteArray(saltSize)
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: cryptox.HashPassword([]byte(password), salt),
		Salt:         salt,
		Role:         defaultRole,
	}
	d.users[username] = user

	if err := d.flushUsersLocked(); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and, on success, mints a high-entropy
// random token and records the session. Unknown usernames and hash
// mismatches are indistinguishable to the caller: both yield
// ErrInvalidCredentials.
func (d *Directory) Login(ctx context.Context, username, password string) (*models.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[username]
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	candidate := cryptox.HashPassword([]byte(password), user.Salt)
	if subtle.ConstantTimeCompare(candidate, user.PasswordHash) != 1 {
		return nil, common.ErrInvalidCredentials
	}

	token, err := common.MakeRandHexString(tokenSize)
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}
	session := &models.Session{Token: token, UserID: user.ID, Username: user.Username}
	d.sessions[token] = session

	if err := d.flushSessionsLocked(); err != nil {
		return nil, err
	}
	return session, nil
}

// Logout removes the session if present. It is idempotent and reports
// whether a session was actually removed.
func (d *Directory) Logout(ctx context.Context, token string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[token]; !ok {
		return false, nil
	}
	delete(d.sessions, token)
	if err := d.flushSessionsLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// BySession resolves a session token to its user. Used pervasively for
// authorization; an unknown token yields ErrUnauthorized.
func (d *Directory) BySession(token string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	session, ok := d.sessions[token]
	if !ok {
		return nil, common.ErrUnauthorized
	}
	user, ok := d.users[session.Username]
	if !ok {
		return nil, common.ErrUnauthorized
	}
	return user, nil
}

// ByID finds a user by its opaque id.
func (d *Directory) ByID(userID string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, user := range d.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, fmt.Errorf("user id %s: %w", userID, common.ErrNotFound)
}

// ByUsername finds a user by handle.
func (d *Directory) ByUsername(username string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, common.ErrNotFound)
	}
	return user, nil
}

// ChangePassword verifies the old password and atomically replaces the salt
// and hash with values derived from the new one. Existing sessions stay
// valid.
func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[username]
	if !ok {
		return common.ErrInvalidCredentials
	}
	candidate := cryptox.HashPassword([]byte(oldPassword), user.Salt)
	if subtle.ConstantTimeCompare(candidate, user.PasswordHash) != 1 {
		return common.ErrInvalidCredentials
	}

	salt := common.GenerateRandByteArray(saltSize)
	user.Salt = salt
	user.PasswordHash = cryptox.HashPassword([]byte(newPassword), salt)

	return d.flushUsersLocked()
}

func (d *Directory) flushUsersLocked() error {
	return flushJSON(filepath.Join(d.root, usersFile), d.users)
}

func (d *Directory) flushSessionsLocked() error {
	return flushJSON(filepath.Join(d.root, sessionsFile), d.sessions)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func flushJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
