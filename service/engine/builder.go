package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/brojonat/soloquy/service/intent"
	solanasvc "github.com/brojonat/soloquy/service/solana"
	"github.com/brojonat/soloquy/service/swap"
)

// Ledger is the narrow surface of the Solana client the engine needs.
type Ledger interface {
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
	Broadcast(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	RecentSignatures(ctx context.Context, account solanago.PublicKey, limit int) ([]solanasvc.SignatureInfo, error)
}

// SwapQuoter is the surface of the swap aggregator the engine needs.
type SwapQuoter interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*swap.Route, error)
	SwapTransaction(ctx context.Context, route *swap.Route, userPublicKey string) (string, error)
}

// Payload is a built transaction ready for execution. Exactly one of
// SignedTx (agent mode) or Unsigned (client mode) is set.
type Payload struct {
	Mode     SigningMode
	SignedTx *solanago.Transaction // signed with the agent key, ready to broadcast
	Unsigned string                // base64-serialized, awaiting the client's signature
	Route    *swap.Route           // set for swaps, for surfacing expected output
}

// defaultSlippageBps is the swap slippage tolerance (0.5%).
const defaultSlippageBps = 50

// Builder converts validated intents into transaction payloads. It only ever
// sees intents that passed the Validator; amount and address invariants are
// not re-checked here.
type Builder struct {
	ledger Ledger
	quoter SwapQuoter
	signer *AgentSigner // nil when no agent credential is configured
	logger *slog.Logger
}

// NewBuilder creates a transaction builder. signer may be nil, in which case
// AgentSign builds fail with MissingCredential.
func NewBuilder(ledger Ledger, quoter SwapQuoter, signer *AgentSigner, logger *slog.Logger) *Builder {
	return &Builder{
		ledger: ledger,
		quoter: quoter,
		signer: signer,
		logger: logger,
	}
}

// QuoteSwap fetches the best route for a validated swap. This runs at
// propose time so the user confirms against the expected output; a missing
// route is surfaced before anything is proposed.
func (b *Builder) QuoteSwap(ctx context.Context, v *ValidatedIntent) (*swap.Route, error) {
	route, err := b.quoter.Quote(ctx, v.SourceAsset.Mint, v.DestinationAsset.Mint, v.BaseAmount, defaultSlippageBps)
	if err != nil {
		if errors.Is(err, swap.ErrNoRoute) {
			return nil, &BuildError{
				Kind: NoRouteFound,
				Detail: fmt.Sprintf("no route from %s to %s for that amount; try a different amount or asset",
					v.SourceAsset.Symbol, v.DestinationAsset.Symbol),
				Err: err,
			}
		}
		return nil, normalizeNetworkError(fmt.Errorf("failed to fetch swap quote: %w", err))
	}
	return route, nil
}

// Build constructs the transaction for a confirmed pending transaction.
// For AgentSign sends the caller must hold the signer lock across Build and
// the subsequent broadcast.
func (b *Builder) Build(ctx context.Context, p *PendingTransaction) (*Payload, error) {
	v := p.Validated
	switch v.Action {
	case intent.ActionSend:
		return b.buildSend(ctx, v, p.Mode)
	case intent.ActionSwap:
		// Swaps move user-custodied funds and are always client-signed.
		return b.buildSwap(ctx, v, p.Route)
	default:
		return nil, fmt.Errorf("action %q does not produce a transaction", v.Action)
	}
}

func (b *Builder) buildSend(ctx context.Context, v *ValidatedIntent, mode SigningMode) (*Payload, error) {
	from := v.Caller
	if mode == AgentSign {
		if b.signer == nil {
			return nil, &BuildError{
				Kind:   MissingCredential,
				Detail: "agent signing requested but no agent key is configured",
			}
		}
		from = b.signer.PublicKey()
	}

	// Fetch the blockhash as late as possible: it is short-lived and the
	// transaction must be signed soon after.
	blockhash, err := b.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, normalizeNetworkError(fmt.Errorf("failed to fetch blockhash: %w", err))
	}

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{
			system.NewTransferInstruction(v.BaseAmount, from, v.Destination).Build(),
		},
		blockhash,
		solanago.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer: %w", err)
	}

	if mode == AgentSign {
		if err := b.signer.Sign(tx); err != nil {
			return nil, err
		}
		b.logger.DebugContext(ctx, "built agent-signed transfer",
			"lamports", v.BaseAmount,
			"destination", v.Destination.String(),
		)
		return &Payload{Mode: AgentSign, SignedTx: tx}, nil
	}

	// Client mode: serialize with placeholder signatures so the caller's
	// wallet can fill them in. No private key is ever available here.
	tx.Signatures = make([]solanago.Signature, tx.Message.Header.NumRequiredSignatures)
	unsigned, err := tx.ToBase64()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize unsigned transfer: %w", err)
	}

	b.logger.DebugContext(ctx, "built unsigned transfer for client signing",
		"lamports", v.BaseAmount,
		"destination", v.Destination.String(),
	)
	return &Payload{Mode: ClientSign, Unsigned: unsigned}, nil
}

func (b *Builder) buildSwap(ctx context.Context, v *ValidatedIntent, route *swap.Route) (*Payload, error) {
	if route == nil {
		return nil, fmt.Errorf("swap has no route; quote before building")
	}

	unsigned, err := b.quoter.SwapTransaction(ctx, route, v.Caller.String())
	if err != nil {
		return nil, normalizeNetworkError(fmt.Errorf("failed to build swap transaction: %w", err))
	}

	b.logger.DebugContext(ctx, "built unsigned swap for client signing",
		"source", v.SourceAsset.Symbol,
		"destination", v.DestinationAsset.Symbol,
		"in_amount", route.InAmount,
		"out_amount", route.OutAmount,
	)
	return &Payload{Mode: ClientSign, Unsigned: unsigned, Route: route}, nil
}
