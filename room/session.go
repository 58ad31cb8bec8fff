package room

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("session already has a username")
	ErrAlreadyInRoom     = errors.New("session is already in a room")
	ErrNotInRoom         = errors.New("session is not in a room")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is closed")
)

// Session is one connection's authorization state. A connection may have
// several requests in flight (one can be suspended on a challenge while
// others arrive), so every transition is guarded and atomic.
type Session struct {
	mu       sync.Mutex
	id       string
	verified bool
	closed   bool
	username string
	roomName string
}

// NewSession creates an unverified, unregistered session for connID.
func NewSession(connID string) *Session {
	return &Session{id: connID}
}

// ID returns the transport-assigned connection identifier.
func (s *Session) ID() string { return s.id }

// Verify marks the session as having passed the app-id handshake.
func (s *Session) Verify() {
	s.mu.Lock()
	s.verified = true
	s.mu.Unlock()
}

// Verified reports whether the handshake has succeeded.
func (s *Session) Verified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified
}

// Close marks the session dead. A closed session can never claim room
// membership again, so a request suspended across the disconnect cannot
// commit on behalf of a connection that no longer exists.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the session's connection has gone away.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Register sets the session's username. A username is immutable for the
// session's lifetime; registering twice fails.
func (s *Session) Register(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username != "" {
		return ErrAlreadyRegistered
	}
	s.username = username
	return nil
}

// Username returns the registered username, empty if none.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// EnterRoom claims room membership for the session. It is the session-side
// half of a join/create commit; callers roll it back with LeaveRoom if the
// registry side fails.
func (s *Session) EnterRoom(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.roomName != "" {
		return ErrAlreadyInRoom
	}
	s.roomName = name
	return nil
}

// LeaveRoom clears the session's room and returns the name it was in.
func (s *Session) LeaveRoom() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomName == "" {
		return "", ErrNotInRoom
	}
	name := s.roomName
	s.roomName = ""
	return name, nil
}

// Room returns the session's current room, if any.
func (s *Session) Room() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomName, s.roomName != ""
}

// Store maps connection IDs to sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a fresh session for connID, replacing any stale entry.
func (st *Store) Create(connID string) *Session {
	s := NewSession(connID)
	st.mu.Lock()
	st.sessions[connID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session for connID.
func (st *Store) Get(connID string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, exists := st.sessions[connID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes the session for connID, closing it so no in-flight
// request can still commit against it.
func (st *Store) Delete(connID string) {
	st.mu.Lock()
	s := st.sessions[connID]
	delete(st.sessions, connID)
	st.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Username resolves connID to its registered username, empty if the session
// is gone or unregistered.
func (st *Store) Username(connID string) string {
	s, err := st.Get(connID)
	if err != nil {
		return ""
	}
	return s.Username()
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
