package engine

import (
	"sync"

	solanago "github.com/gagliardetto/solana-go"
)

// sessionRegistry maps session ids to their session state. Each session is
// independently locked; the registry lock only guards the map itself.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*Session)}
}

func (r *sessionRegistry) getOrCreate(id string, address solanago.PublicKey, mode SigningMode) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return checkBinding(s, address, mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return checkBinding(s, address, mode)
	}
	s = NewSession(id, address, mode)
	r.sessions[id] = s
	return s, nil
}

// checkBinding refuses to hand an existing session to a caller presenting a
// different wallet or signing mode. Silently acting on the original binding
// would let one caller's proposal be confirmed against another's address.
func checkBinding(s *Session, address solanago.PublicKey, mode SigningMode) (*Session, error) {
	if !s.Address.Equals(address) || s.Mode != mode {
		return nil, ErrSessionMismatch
	}
	return s, nil
}
