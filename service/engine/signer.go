package engine

import (
	"fmt"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
)

// SigningMode selects who signs a built transaction.
type SigningMode string

const (
	// ClientSign returns an unsigned payload for the caller's own wallet
	// to sign and broadcast. The agent never sees the client's key.
	ClientSign SigningMode = "client"

	// AgentSign signs and broadcasts with the agent's custodial key.
	// Requires a configured agent credential.
	AgentSign SigningMode = "agent"
)

// AgentSigner holds the agent's custodial signing key. It is an explicit,
// constructor-injected dependency rather than module state: there is exactly
// one credential, so all build-sign-broadcast spans that use it must be
// serialized through Lock/Unlock to avoid blockhash races producing
// conflicting signed transactions from the same address.
type AgentSigner struct {
	key solanago.PrivateKey
	mu  sync.Mutex
}

// NewAgentSigner creates a signer from a base58-encoded private key.
func NewAgentSigner(base58Key string) (*AgentSigner, error) {
	key, err := solanago.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("invalid agent private key: %w", err)
	}
	return &AgentSigner{key: key}, nil
}

// PublicKey returns the custodial address.
func (s *AgentSigner) PublicKey() solanago.PublicKey {
	return s.key.PublicKey()
}

// Lock acquires the credential for one build-sign-broadcast span.
// Callers must hold it from just before signing until the broadcast result
// is known, and must not hold it across unrelated I/O.
func (s *AgentSigner) Lock() { s.mu.Lock() }

// Unlock releases the credential.
func (s *AgentSigner) Unlock() { s.mu.Unlock() }

// Sign signs the transaction with the custodial key.
func (s *AgentSigner) Sign(tx *solanago.Transaction) error {
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
