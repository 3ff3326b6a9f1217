package utils

import (
	"sync"
	"time"
)

// ttlSet is an in-process set whose members expire. It backs token revocation
// and OAuth state when Redis is not configured.
type ttlSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newTTLSet() *ttlSet {
	return &ttlSet{entries: map[string]time.Time{}}
}

func (s *ttlSet) add(key string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[key] = expiresAt
}

func (s *ttlSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[key]
	if ok && time.Now().After(exp) {
		delete(s.entries, key)
		return false
	}
	return ok
}

// take removes key and reports whether it was present and unexpired.
func (s *ttlSet) take(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[key]
	delete(s.entries, key)
	return ok && time.Now().Before(exp)
}

func (s *ttlSet) sweepLocked() {
	now := time.Now()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}
}
