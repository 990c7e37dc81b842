package session

import (
	"sync"

	"github.com/shopspring/decimal"
)

// State is the explicit per-session object shared by the core components:
// the bearer token, the optimistic balance cache and the selected instrument.
// The cached balance is UI feedback only; it is overwritten with the
// authoritative ledger figure after every mutating round-trip.
type State struct {
	mu sync.RWMutex

	token   string
	balance decimal.Decimal
	pair    string
	isAdmin bool
}

func New(token, pair string) *State {
	return &State{token: token, pair: pair}
}

func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *State) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Authenticated reports whether a bearer token is present.
func (s *State) Authenticated() bool {
	return s.Token() != ""
}

func (s *State) Balance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// SetAuthoritativeBalance replaces the cache with the server figure,
// discarding any local drift.
func (s *State) SetAuthoritativeBalance(b decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = b
}

func (s *State) Pair() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

func (s *State) SetPair(pair string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
}

func (s *State) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdmin
}

func (s *State) SetAdmin(admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isAdmin = admin
}

// Invalidate drops the token and the cached balance. Open positions stay
// recoverable from the remote ledger on the next login.
func (s *State) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.balance = decimal.Zero
}
