// Package siwe implements the Sign-In-with-Ethereum challenge flow: nonce
// issuance, EIP-191 personal-signature verification, and the bearer token
// minted after a successful verify.
package siwe

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NonceLifetime is how long an issued nonce stays redeemable.
const NonceLifetime = 5 * time.Minute

// nonceEntry tracks one outstanding challenge.
type nonceEntry struct {
	Wallet   string
	IssuedAt time.Time
}

// NonceStore keeps the outstanding challenge nonces. It is an explicit
// process-scoped object constructed in main and passed to the components
// that need it; expired entries are swept on every access.
type NonceStore struct {
	lifetime time.Duration
	mu       sync.Mutex
	nonces   map[string]nonceEntry
}

// NewNonceStore creates an empty nonce store.
func NewNonceStore() *NonceStore {
	return &NonceStore{
		lifetime: NonceLifetime,
		nonces:   make(map[string]nonceEntry),
	}
}

// Issue creates a fresh nonce bound to the given wallet address.
func (s *NonceStore) Issue(wallet string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(time.Now())

	nonce := uuid.NewString()
	s.nonces[nonce] = nonceEntry{Wallet: wallet, IssuedAt: time.Now()}
	return nonce
}

// Consume redeems a nonce, returning the wallet it was issued to. A nonce
// can be redeemed at most once; unknown or expired nonces report false.
func (s *NonceStore) Consume(nonce string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(time.Now())

	entry, ok := s.nonces[nonce]
	if !ok {
		return "", false
	}
	delete(s.nonces, nonce)
	return entry.Wallet, true
}

// Len reports the number of outstanding nonces.
func (s *NonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nonces)
}

func (s *NonceStore) sweepLocked(now time.Time) {
	for nonce, entry := range s.nonces {
		if now.Sub(entry.IssuedAt) > s.lifetime {
			delete(s.nonces, nonce)
		}
	}
}
