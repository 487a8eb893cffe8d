package wallet

import (
	"slices"
	"sync"
	"time"
)

// State is an immutable snapshot of the process-wide application state.
type State struct {
	Token   string
	Balance int64
	Journal []Adjustment
}

// AdjustmentSource tells where a balance delta came from.
type AdjustmentSource string

const (
	SourceLocal  AdjustmentSource = "local"  // display hint applied by the client
	SourceServer AdjustmentSource = "server" // reconciliation to a fetched profile
)

// Adjustment is one entry of the ledger's audit trail.
type Adjustment struct {
	Delta  int64
	Source AdjustmentSource
	At     time.Time
}

// action is a state transition. Only SessionStore and Ledger construct them.
type action interface {
	reduce(State) State
}

type tokenIssued struct{ token string }

func (a tokenIssued) reduce(s State) State {
	s.Token = a.token
	return s
}

type tokenRevoked struct{}

func (tokenRevoked) reduce(s State) State {
	s.Token = ""
	return s
}

type balanceAdjusted struct{ adj Adjustment }

func (a balanceAdjusted) reduce(s State) State {
	s.Balance += a.adj.Delta
	s.Journal = append(slices.Clip(s.Journal), a.adj)
	return s
}

// reconciled derives the delta from the balance it is reduced against,
// so a concurrent local delta can't leave the balance off the server value.
type reconciled struct {
	server int64
	at     time.Time
}

func (a reconciled) reduce(s State) State {
	delta := a.server - s.Balance
	if delta == 0 {
		return s
	}
	s.Balance = a.server
	s.Journal = append(slices.Clip(s.Journal), Adjustment{Delta: delta, Source: SourceServer, At: a.at})
	return s
}

// Store is the typed application-state container. Reads are free, writes go through dispatch.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore(openingBalance int64) *Store {
	return &Store{state: State{Balance: openingBalance}}
}

// State returns a copy that the caller may keep.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	st.Journal = slices.Clone(s.state.Journal)
	return st
}

// CurrentToken lets the remote client read the bearer token without being able to change it.
func (s *Store) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token, s.state.Token != ""
}

func (s *Store) dispatch(a action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = a.reduce(s.state)
	return s.state
}
