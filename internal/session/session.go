// Package session owns the ephemeral per-process state: the current
// authenticated identity and the transient notification queue. Nothing
// here survives a restart.
package session

import (
	"sync"

	"linoslms.org/internal/records"
)

// Manager holds the authenticated identity for this process. It is
// constructed once at startup and injected into its consumers; only
// Login, Logout and UpdateUser mutate it.
type Manager struct {
	mu            sync.RWMutex
	user          *records.User
	token         string
	authenticated bool
}

// NewManager starts in the unauthenticated state.
func NewManager() *Manager {
	return &Manager{}
}

// Login stores the identity and token. Credential validation happens
// before this is called; Login itself trusts its arguments.
func (m *Manager) Login(user records.User, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.user = &u
	m.token = token
	m.authenticated = true
}

// Logout resets to the initial unauthenticated state.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.token = ""
	m.authenticated = false
}

// UpdateUser shallow-merges supplied fields into the current user.
// No-op when no session is active.
func (m *Manager) UpdateUser(upd records.UserUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return
	}
	if upd.Name != nil {
		m.user.Name = *upd.Name
	}
	if upd.Email != nil {
		m.user.Email = *upd.Email
	}
	if upd.Role != nil {
		m.user.Role = *upd.Role
	}
	if upd.PasswordSecret != nil {
		m.user.PasswordSecret = *upd.PasswordSecret
	}
	if upd.Active != nil {
		m.user.Active = *upd.Active
	}
}

// Current returns a copy of the session state.
func (m *Manager) Current() (records.User, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authenticated || m.user == nil {
		return records.User{}, "", false
	}
	return *m.user, m.token, true
}
