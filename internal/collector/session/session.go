// Package session keeps admin dashboard logins in memory.
//
// The browser holds a random token in a cookie; only its SHA-256 hash is
// kept here, so a dump of the session table cannot be replayed.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session token.
const CookieName = "fp_admin_session"

// Session is one admin login.
type Session struct {
	// ID identifies the session in logs without exposing the token.
	ID        uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager issues and validates sessions. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session // keyed by token hash
	now      func() time.Time
}

// NewManager returns a manager whose sessions live for ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:      ttl,
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create starts a session and returns the plaintext token for the cookie.
func (m *Manager) Create() (string, Session, error) {
	token, err := generateToken()
	if err != nil {
		return "", Session{}, err
	}

	now := m.now()
	s := Session{
		ID:        uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[hashToken(token)] = s
	m.mu.Unlock()

	return token, s, nil
}

// Lookup returns the live session for token. Expired sessions are dropped.
func (m *Manager) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	key := hashToken(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return Session{}, false
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, key)
		return Session{}, false
	}
	return s, true
}

// Revoke ends the session for token, if any.
func (m *Manager) Revoke(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	delete(m.sessions, hashToken(token))
	m.mu.Unlock()
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held, including expired ones not yet swept.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// generateToken creates a secure random token.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA-256 hash of the token.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
