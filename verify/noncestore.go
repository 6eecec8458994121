package verify

import (
	"sync"
	"time"
)

// NonceStore records (miner ID, nonce) pairs already consumed.
//
// Remember is an atomic insert-if-absent: it returns true exactly once per
// pair, false on any later call, even under concurrent verification.
type NonceStore interface {
	Remember(minerID int64, nonce uint64, now time.Time) bool
}

type nonceKey struct {
	miner int64
	nonce uint64
}

// MemoryNonceStore is an in-process NonceStore with TTL expiry.
//
// Expired entries may be forgotten: a resubmission that late is already
// rejected by the freshness window, so the TTL must be at least as long as
// the verifier's accepted-age window.
type MemoryNonceStore struct {
	ttl time.Duration

	mu        sync.Mutex
	seen      map[nonceKey]time.Time
	lastSweep time.Time
}

// NewMemoryNonceStore creates a store whose entries expire after ttl.
// ttl <= 0 means entries never expire.
func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{ttl: ttl, seen: make(map[nonceKey]time.Time)}
}

func (s *MemoryNonceStore) Remember(minerID int64, nonce uint64, now time.Time) bool {
	key := nonceKey{miner: minerID, nonce: nonce}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	if at, ok := s.seen[key]; ok {
		if s.ttl <= 0 || now.Sub(at) < s.ttl {
			return false
		}
	}
	s.seen[key] = now
	return true
}

// sweepLocked drops expired entries at most once per TTL interval so a hot
// verifier does not rescan the map on every submission.
func (s *MemoryNonceStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	for k, at := range s.seen {
		if now.Sub(at) >= s.ttl {
			delete(s.seen, k)
		}
	}
	s.lastSweep = now
}

// Len returns the number of live entries.
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
