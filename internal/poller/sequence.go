package poller

import "sync"

// Sequence orders overlapping loads of the same resource. Each load takes a token from
// Begin; its result is applied only if no later-started load has been applied already,
// so a slow poll cannot overwrite a fresher manual reload.
type Sequence struct {
	mu      sync.Mutex
	next    uint64
	applied uint64
}

func (s *Sequence) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Apply runs fn and reports true when token is not stale.
func (s *Sequence) Apply(token uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token < s.applied {
		return false
	}
	s.applied = token
	if fn != nil {
		fn()
	}
	return true
}
