package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/soloquy/service/intent"
	"github.com/brojonat/soloquy/service/swap"
)

func TestBuilder_AgentSendIsSigned(t *testing.T) {
	ctx := context.Background()
	wallet := solanago.NewWallet()
	signer, err := NewAgentSigner(wallet.PrivateKey.String())
	require.NoError(t, err)

	b := NewBuilder(&mockLedger{}, &mockQuoter{}, signer, testLogger())
	pending := &PendingTransaction{
		Validated: &ValidatedIntent{
			Action:      intent.ActionSend,
			Caller:      signer.PublicKey(),
			BaseAmount:  100_000_000,
			Destination: solanago.NewWallet().PublicKey(),
		},
		Mode:       AgentSign,
		ProposedAt: time.Now(),
	}

	payload, err := b.Build(ctx, pending)

	require.NoError(t, err)
	assert.Equal(t, AgentSign, payload.Mode)
	require.NotNil(t, payload.SignedTx)
	require.NotEmpty(t, payload.SignedTx.Signatures)
	assert.False(t, payload.SignedTx.Signatures[0].IsZero(), "agent path must produce a real signature")
	assert.Empty(t, payload.Unsigned)
}

func TestBuilder_ClientSendIsUnsigned(t *testing.T) {
	ctx := context.Background()
	caller := solanago.NewWallet().PublicKey()

	b := NewBuilder(&mockLedger{}, &mockQuoter{}, nil, testLogger())
	pending := &PendingTransaction{
		Validated: &ValidatedIntent{
			Action:      intent.ActionSend,
			Caller:      caller,
			BaseAmount:  100_000_000,
			Destination: solanago.NewWallet().PublicKey(),
		},
		Mode:       ClientSign,
		ProposedAt: time.Now(),
	}

	payload, err := b.Build(ctx, pending)

	require.NoError(t, err)
	assert.Equal(t, ClientSign, payload.Mode)
	assert.NotEmpty(t, payload.Unsigned)
	assert.Nil(t, payload.SignedTx)
}

func TestBuilder_AgentSendWithoutCredential(t *testing.T) {
	ctx := context.Background()

	b := NewBuilder(&mockLedger{}, &mockQuoter{}, nil, testLogger())
	pending := &PendingTransaction{
		Validated: &ValidatedIntent{
			Action:      intent.ActionSend,
			Caller:      solanago.NewWallet().PublicKey(),
			BaseAmount:  1,
			Destination: solanago.NewWallet().PublicKey(),
		},
		Mode: AgentSign,
	}

	_, err := b.Build(ctx, pending)

	var bErr *BuildError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, MissingCredential, bErr.Kind)
}

func TestBuilder_SwapWithoutRouteFails(t *testing.T) {
	ctx := context.Background()

	b := NewBuilder(&mockLedger{}, &mockQuoter{swapTx: "tx"}, nil, testLogger())
	pending := &PendingTransaction{
		Validated: &ValidatedIntent{
			Action: intent.ActionSwap,
			Caller: solanago.NewWallet().PublicKey(),
		},
		Mode: ClientSign,
	}

	_, err := b.Build(ctx, pending)

	assert.Error(t, err, "a swap must be quoted before it is built")
}

func TestBuilder_BlockhashOutageIsTyped(t *testing.T) {
	ctx := context.Background()
	ledger := &mockLedger{blockhashErr: errors.New("dial tcp 127.0.0.1:8899: connect: connection refused")}

	b := NewBuilder(ledger, &mockQuoter{}, nil, testLogger())
	pending := &PendingTransaction{
		Validated: &ValidatedIntent{
			Action:      intent.ActionSend,
			Caller:      solanago.NewWallet().PublicKey(),
			BaseAmount:  100_000_000,
			Destination: solanago.NewWallet().PublicKey(),
		},
		Mode: ClientSign,
	}

	_, err := b.Build(ctx, pending)

	var xErr *ExecutionError
	require.ErrorAs(t, err, &xErr)
	assert.Equal(t, NetworkUnavailable, xErr.Kind)
	assert.NotEmpty(t, xErr.Detail)
}

func TestBuilder_QuoteTransportFailureIsTyped(t *testing.T) {
	ctx := context.Background()
	quoter := &mockQuoter{quoteErr: errors.New("429 Too Many Requests")}

	b := NewBuilder(&mockLedger{}, quoter, nil, testLogger())
	v := &ValidatedIntent{
		Action:           intent.ActionSwap,
		Caller:           solanago.NewWallet().PublicKey(),
		BaseAmount:       500_000_000,
		SourceAsset:      Asset{Symbol: "SOL", Mint: NativeMint, Decimals: 9},
		DestinationAsset: Asset{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	}

	_, err := b.QuoteSwap(ctx, v)

	var xErr *ExecutionError
	require.ErrorAs(t, err, &xErr)
	assert.Equal(t, RateLimited, xErr.Kind)
}

func TestBuilder_SwapTransportFailureIsTyped(t *testing.T) {
	ctx := context.Background()
	quoter := &mockQuoter{swapErr: errors.New("dial tcp: lookup quote-api.jup.ag: no such host")}

	b := NewBuilder(&mockLedger{}, quoter, nil, testLogger())
	pending := &PendingTransaction{
		Validated: &ValidatedIntent{
			Action: intent.ActionSwap,
			Caller: solanago.NewWallet().PublicKey(),
		},
		Mode:  ClientSign,
		Route: &swap.Route{InAmount: 500_000_000, OutAmount: 73_210_000},
	}

	_, err := b.Build(ctx, pending)

	var xErr *ExecutionError
	require.ErrorAs(t, err, &xErr)
	assert.Equal(t, NetworkUnavailable, xErr.Kind)
}

func TestNewAgentSigner_RejectsGarbage(t *testing.T) {
	_, err := NewAgentSigner("not-a-key")

	assert.Error(t, err)
}
