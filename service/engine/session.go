package engine

import (
	"errors"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/soloquy/service/swap"
)

// State is the confirmation state machine's observable state. Executed,
// Failed, and Cancelled are transitions, not resting states: the machine
// always comes back to Idle once an execution or cancellation completes, so
// a caller can never observe a stuck terminal state.
type State string

const (
	StateIdle      State = "idle"
	StateProposed  State = "proposed"
	StateExecuting State = "executing"
)

// ErrNoPendingTransaction is returned when confirm is called with nothing
// proposed.
var ErrNoPendingTransaction = errors.New("no pending transaction to confirm")

// ErrExecutionInProgress is returned when a transition is requested while an
// execution is running. Once executing, the operation runs to completion;
// cancellation is no longer possible.
var ErrExecutionInProgress = errors.New("a transaction is already executing")

// ErrSessionMismatch is returned when a session id is reused with a
// different wallet address or signing mode. A session is pinned to its
// first binding; a mismatch is an id collision, not a rebind.
var ErrSessionMismatch = errors.New("session is bound to a different wallet or signing mode")

// PendingTransaction wraps a validated intent awaiting explicit user
// confirmation. At most one lives per session, owned exclusively by the
// session's state machine. It is never mutated: replacing a proposal is
// destroy-then-create.
type PendingTransaction struct {
	Validated  *ValidatedIntent
	Mode       SigningMode
	Route      *swap.Route // swaps only: the quote fetched at propose time
	ProposedAt time.Time
}

// Session holds one caller's conversation state: the confirmation state
// machine, the pending transaction, and the last-known balance snapshot.
// Sessions are never shared across callers; all fields behind mu are
// session-scoped.
type Session struct {
	ID      string
	Address solanago.PublicKey
	Mode    SigningMode

	mu              sync.Mutex
	state           State
	pending         *PendingTransaction
	balanceLamports uint64
	balanceFetched  time.Time
}

// NewSession creates an idle session for the given caller address and
// signing mode.
func NewSession(id string, address solanago.PublicKey, mode SigningMode) *Session {
	return &Session{
		ID:      id,
		Address: address,
		Mode:    mode,
		state:   StateIdle,
	}
}

// State returns the current state machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the currently proposed transaction, or nil.
func (s *Session) Pending() *PendingTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// propose installs a new pending transaction, moving Idle -> Proposed.
// Proposing while already Proposed replaces the prior pending transaction,
// since the user has implicitly abandoned it, and reports the replacement so
// the caller can surface it rather than leave it ambiguous which request is
// live.
func (s *Session) propose(p *PendingTransaction) (replaced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExecuting {
		return false, ErrExecutionInProgress
	}
	replaced = s.pending != nil
	s.pending = p
	s.state = StateProposed
	return replaced, nil
}

// beginExecution moves Proposed -> Executing and hands the pending
// transaction to the caller. Only an explicit confirmation reaches this;
// nothing is ever built or submitted from Idle.
func (s *Session) beginExecution() (*PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateExecuting:
		return nil, ErrExecutionInProgress
	case StateIdle:
		return nil, ErrNoPendingTransaction
	}
	p := s.pending
	s.pending = nil
	s.state = StateExecuting
	return p, nil
}

// finishExecution resets the machine to Idle after an execution completed,
// whether it Executed or Failed. The user can re-propose from a clean state.
func (s *Session) finishExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.pending = nil
}

// cancel drops the pending transaction, Proposed -> Idle. No network call is
// ever made. Cancelling from Idle is a no-op, so the call is idempotent;
// cancelling during execution is refused.
func (s *Session) cancel() (cancelled bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExecuting {
		return false, ErrExecutionInProgress
	}
	if s.state == StateIdle {
		return false, nil
	}
	s.pending = nil
	s.state = StateIdle
	return true, nil
}

// balanceSnapshot returns the last-known balance and when it was fetched.
// The snapshot is a UX safeguard, not a correctness guarantee: the ledger
// itself rejects over-spends even if a stale snapshot let one through.
func (s *Session) balanceSnapshot() (uint64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLamports, s.balanceFetched
}

// setBalance updates the balance snapshot.
func (s *Session) setBalance(lamports uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceLamports = lamports
	s.balanceFetched = at
}
