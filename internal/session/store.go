// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/traylinx/lltranslate/internal/cache"
)

// Store keeps session states in memory, keyed by an opaque ID. Idle sessions
// expire and the oldest are evicted once the store is full.
type Store struct {
	states *cache.Cache[string, State]

	mu           sync.RWMutex
	defaultModel string
}

// NewStore creates a store holding at most maxSessions states for idleTTL each.
func NewStore(maxSessions int, idleTTL time.Duration, defaultModel string) *Store {
	return &Store{
		states:       cache.New[string, State](maxSessions, idleTTL),
		defaultModel: strings.TrimSpace(defaultModel),
	}
}

// NewID returns a fresh session identifier.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an identifier issued by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// Get returns a copy of the state for id and extends its idle lifetime.
// Unknown or expired IDs yield a fresh state preselecting the default model.
func (s *Store) Get(id string) (State, bool) {
	if st, ok := s.states.Get(id); ok {
		s.states.Set(id, st)
		return st.clone(), true
	}
	return s.Fresh(), false
}

// Fresh returns the state a new session starts with.
func (s *Store) Fresh() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Selected: s.defaultModel}
}

// Save replaces the state stored under id.
func (s *Store) Save(id string, state State) {
	s.states.Set(id, state.clone())
}

// TakeNotices returns and clears the pending notices of id.
func (s *Store) TakeNotices(id string) []string {
	st, ok := s.states.Get(id)
	if !ok || len(st.Notices) == 0 {
		return nil
	}
	notices := st.Notices
	st = st.clone()
	st.Notices = nil
	s.states.Set(id, st)
	return notices
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	return s.states.Len()
}

// SetDefaultModel changes the model new sessions start with.
func (s *Store) SetDefaultModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultModel = strings.TrimSpace(model)
}

// SetIdleTTL changes how long sessions touched from now on are kept.
func (s *Store) SetIdleTTL(ttl time.Duration) {
	s.states.SetTTL(ttl)
}

// PurgeExpired drops idle sessions and returns how many were removed.
func (s *Store) PurgeExpired() int {
	return s.states.PurgeExpired()
}
