package auth

import (
	"sync"
	"time"
)

// Sessions tracks live admin sessions so that logout invalidates tokens that have not
// expired yet. State is in memory; a restart logs every admin out.
type Sessions struct {
	mu     sync.Mutex
	active map[string]time.Time
}

func NewSessions() *Sessions {
	return &Sessions{active: make(map[string]time.Time)}
}

func (s *Sessions) Add(id string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(time.Now())
	s.active[id] = expiresAt
}

func (s *Sessions) Active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.active[id]
	return ok && time.Now().Before(exp)
}

func (s *Sessions) Revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// RevokeAll ends every session and reports how many were live.
func (s *Sessions) RevokeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.active)
	s.active = make(map[string]time.Time)
	return n
}

func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(time.Now())
	return len(s.active)
}

func (s *Sessions) pruneLocked(now time.Time) {
	for id, exp := range s.active {
		if !now.Before(exp) {
			delete(s.active, id)
		}
	}
}
