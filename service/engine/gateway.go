package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// Result is the outcome of executing a payload. Agent-signed flows carry the
// broadcast signature; client-signed flows carry the unsigned payload and
// "success" means "payload constructed", not "funds moved".
type Result struct {
	Mode            SigningMode `json:"mode"`
	Signature       string      `json:"signature,omitempty"`
	UnsignedPayload string      `json:"unsigned_payload,omitempty"`
	ExpectedOutput  uint64      `json:"expected_output,omitempty"` // swap only, in destination base units
}

// Gateway dispatches built payloads to the correct signing path and
// normalizes ledger failures into the ExecutionError taxonomy.
type Gateway struct {
	ledger Ledger
	logger *slog.Logger
}

// NewGateway creates an execution gateway over the ledger client.
func NewGateway(ledger Ledger, logger *slog.Logger) *Gateway {
	return &Gateway{ledger: ledger, logger: logger}
}

// Execute runs the payload. Client-signed payloads are returned to the
// caller without any network call; agent-signed payloads are broadcast
// exactly once.
func (g *Gateway) Execute(ctx context.Context, p *Payload) (*Result, error) {
	switch p.Mode {
	case ClientSign:
		res := &Result{Mode: ClientSign, UnsignedPayload: p.Unsigned}
		if p.Route != nil {
			res.ExpectedOutput = p.Route.OutAmount
		}
		return res, nil

	case AgentSign:
		sig, err := g.ledger.Broadcast(ctx, p.SignedTx)
		if err != nil {
			execErr := normalizeNetworkError(err)
			g.logger.ErrorContext(ctx, "broadcast failed",
				"kind", string(execErr.Kind),
				"error", err,
			)
			return nil, execErr
		}
		return &Result{Mode: AgentSign, Signature: sig.String()}, nil

	default:
		return nil, fmt.Errorf("unknown signing mode %q", p.Mode)
	}
}

// normalizeNetworkError maps a ledger or aggregator failure onto the
// execution error taxonomy so callers see a uniform surface across
// transaction kinds, whether the failure struck while constructing a
// transaction or while broadcasting it.
func normalizeNetworkError(err error) *ExecutionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecutionError{Kind: Timeout, Detail: "the network did not respond in time", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ExecutionError{Kind: Timeout, Detail: "the network did not respond in time", Err: err}
		}
		return &ExecutionError{Kind: NetworkUnavailable, Detail: "could not reach the network", Err: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		return &ExecutionError{Kind: RateLimited, Detail: "the RPC endpoint is rate limiting requests", Err: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return &ExecutionError{Kind: NetworkUnavailable, Detail: "could not reach the network", Err: err}
	default:
		// The ledger actively refused: stale blockhash, real-time balance
		// mismatch, malformed transaction.
		return &ExecutionError{Kind: Rejected, Detail: msg, Err: err}
	}
}
