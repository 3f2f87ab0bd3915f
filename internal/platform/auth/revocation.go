package auth

import (
	"sync"
	"time"
)

// revocationEntry stores metadata about a revoked session token.
type revocationEntry struct {
	ExpiresAt time.Time
	UserID    string
}

// TokenRevocationStore remembers session tokens that were logged out before
// they expired. Entries are dropped once the token would have expired anyway.
// A per-user cutoff revokes every token issued to that user before it.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]revocationEntry // jti -> entry
	cutoffs map[string]time.Time       // userID -> revoke tokens issued before
	maxTTL  time.Duration
	now     func() time.Time
	done    chan struct{}
}

// NewTokenRevocationStore starts a background sweep every interval. maxTTL
// bounds how long a user cutoff has to be kept.
func NewTokenRevocationStore(interval, maxTTL time.Duration) *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]revocationEntry),
		cutoffs: make(map[string]time.Time),
		maxTTL:  maxTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if interval > 0 {
		go s.cleanupLoop(interval)
	}
	return s
}

func (s *TokenRevocationStore) Revoke(jti, userID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = revocationEntry{ExpiresAt: expiresAt, UserID: userID}
}

// RevokeAllForUser invalidates every token issued to userID before the
// current second and returns how many individually revoked tokens that user
// already had.
func (s *TokenRevocationStore) RevokeAllForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Token timestamps have second precision.
	s.cutoffs[userID] = s.now().Truncate(time.Second)
	count := 0
	for _, e := range s.entries {
		if e.UserID == userID {
			count++
		}
	}
	return count
}

// IsRevoked reports whether the token identified by jti, issued to userID at
// issuedAt, must be rejected.
func (s *TokenRevocationStore) IsRevoked(jti, userID string, issuedAt time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entries[jti]; ok {
		return true
	}
	if cutoff, ok := s.cutoffs[userID]; ok && issuedAt.Before(cutoff) {
		return true
	}
	return false
}

func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweep. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *TokenRevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *TokenRevocationStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, jti)
		}
	}
	for userID, cutoff := range s.cutoffs {
		if now.After(cutoff.Add(s.maxTTL)) {
			delete(s.cutoffs, userID)
		}
	}
}
