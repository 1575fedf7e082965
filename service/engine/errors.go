package engine

import "fmt"

// The pipeline's error taxonomy. Every failure path produces exactly one of
// these kinds plus a human-readable detail; nothing is silently swallowed.
// Validation and build errors are detected locally; execution errors carry
// every network-facing failure, whether it struck while constructing a
// transaction or while broadcasting it.

// ValidationKind identifies why a command failed validation.
type ValidationKind string

const (
	NeedsClarification  ValidationKind = "needs_clarification"
	InvalidAmount       ValidationKind = "invalid_amount"
	InvalidAddress      ValidationKind = "invalid_address"
	SelfTransfer        ValidationKind = "self_transfer"
	InsufficientBalance ValidationKind = "insufficient_balance"
)

// ValidationError is a local, pre-network failure. Always recoverable by
// re-prompting the user.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Detail)
}

// BuildKind identifies why transaction construction failed.
type BuildKind string

const (
	// NoRouteFound is recoverable: the user should adjust the amount or asset.
	NoRouteFound BuildKind = "no_route_found"
	// MissingCredential is fatal for the request, not for the process.
	MissingCredential BuildKind = "missing_credential"
)

// BuildError is a transaction construction failure.
type BuildError struct {
	Kind   BuildKind
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed (%s): %s", e.Kind, e.Detail)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ExecutionKind identifies why a broadcast failed.
type ExecutionKind string

const (
	NetworkUnavailable ExecutionKind = "network_unavailable"
	RateLimited        ExecutionKind = "rate_limited"
	Rejected           ExecutionKind = "rejected"
	Timeout            ExecutionKind = "timeout"
)

// ExecutionError is a failure surfaced by the ledger network. Never retried
// automatically: re-broadcasting a financial transaction risks double-spend.
type ExecutionError struct {
	Kind   ExecutionKind
	Detail string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (%s): %s", e.Kind, e.Detail)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
