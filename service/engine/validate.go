package engine

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/soloquy/service/intent"
)

// ValidatedIntent is the output of validation: a fully resolved, typed
// command that the builder can act on without re-checking anything.
type ValidatedIntent struct {
	Action     intent.Action
	Caller     solanago.PublicKey
	BaseAmount uint64 // amount in the source asset's smallest unit

	// Send
	Destination solanago.PublicKey

	// Swap
	SourceAsset      Asset
	DestinationAsset Asset

	// Summary is a human-readable description of what will happen,
	// shown to the user before they confirm.
	Summary string
}

// Validator enforces the financial invariants on a classified intent before
// any transaction is built. It is a pure decision function: no side effects,
// no network calls. Rules are applied in order and the first failure wins.
type Validator struct {
	assets *AssetRegistry
}

// NewValidator creates a validator over the given asset registry.
func NewValidator(assets *AssetRegistry) *Validator {
	return &Validator{assets: assets}
}

// Validate checks the intent against the caller's identity and the
// last-known balance snapshot (in lamports). The snapshot may be seconds
// old; the ledger remains the final authority and will reject an over-spend
// even if this check passes.
func (v *Validator) Validate(it *intent.Intent, caller solanago.PublicKey, balanceLamports uint64) (*ValidatedIntent, error) {
	if it.Action == intent.ActionUnknown || it.NeedsMoreInfo {
		detail := it.Message
		if it.ClassifierError != "" {
			detail = it.ClassifierError
		}
		return nil, &ValidationError{Kind: NeedsClarification, Detail: detail}
	}

	switch it.Action {
	case intent.ActionSend:
		return v.validateSend(it, caller, balanceLamports)
	case intent.ActionSwap:
		return v.validateSwap(it, caller, balanceLamports)
	case intent.ActionCheckBalance, intent.ActionAskAddress, intent.ActionShowHistory:
		// Read-only actions carry no financial invariant.
		return &ValidatedIntent{Action: it.Action, Caller: caller, Summary: it.Message}, nil
	default:
		return nil, &ValidationError{Kind: NeedsClarification, Detail: fmt.Sprintf("unsupported action %q", it.Action)}
	}
}

func (v *Validator) validateSend(it *intent.Intent, caller solanago.PublicKey, balanceLamports uint64) (*ValidatedIntent, error) {
	sol, _ := v.assets.Lookup("SOL")

	lamports, err := ToBaseUnits(it.Amount, sol.Decimals)
	if err != nil {
		return nil, &ValidationError{Kind: InvalidAmount, Detail: err.Error()}
	}
	if lamports == 0 {
		return nil, &ValidationError{Kind: InvalidAmount, Detail: "amount must be greater than zero"}
	}

	dest, err := solanago.PublicKeyFromBase58(it.Destination)
	if err != nil {
		return nil, &ValidationError{
			Kind:   InvalidAddress,
			Detail: fmt.Sprintf("destination %q is not a valid address: %v", it.Destination, err),
		}
	}
	if dest.Equals(caller) {
		return nil, &ValidationError{Kind: SelfTransfer, Detail: "destination is your own address"}
	}

	if lamports > balanceLamports {
		return nil, &ValidationError{
			Kind: InsufficientBalance,
			Detail: fmt.Sprintf("amount %s SOL exceeds balance %s SOL",
				FormatBaseUnits(lamports, sol.Decimals),
				FormatBaseUnits(balanceLamports, sol.Decimals)),
		}
	}

	return &ValidatedIntent{
		Action:      intent.ActionSend,
		Caller:      caller,
		BaseAmount:  lamports,
		Destination: dest,
		Summary: fmt.Sprintf("Send %s SOL to %s",
			FormatBaseUnits(lamports, sol.Decimals), dest.String()),
	}, nil
}

func (v *Validator) validateSwap(it *intent.Intent, caller solanago.PublicKey, balanceLamports uint64) (*ValidatedIntent, error) {
	src, ok := v.assets.Lookup(it.SourceAsset)
	if !ok {
		return nil, &ValidationError{Kind: NeedsClarification, Detail: fmt.Sprintf("unknown asset %q", it.SourceAsset)}
	}
	dst, ok := v.assets.Lookup(it.DestinationAsset)
	if !ok {
		return nil, &ValidationError{Kind: NeedsClarification, Detail: fmt.Sprintf("unknown asset %q", it.DestinationAsset)}
	}

	amount, err := ToBaseUnits(it.Amount, src.Decimals)
	if err != nil {
		return nil, &ValidationError{Kind: InvalidAmount, Detail: err.Error()}
	}
	if amount == 0 {
		return nil, &ValidationError{Kind: InvalidAmount, Detail: "amount must be greater than zero"}
	}

	if src.Mint == dst.Mint {
		return nil, &ValidationError{
			Kind:   NeedsClarification,
			Detail: fmt.Sprintf("cannot swap %s to itself", src.Symbol),
		}
	}

	// The local snapshot only covers the native asset. Token balances are
	// checked by the quote service, not re-validated here.
	if v.assets.Native(src.Symbol) && amount > balanceLamports {
		return nil, &ValidationError{
			Kind: InsufficientBalance,
			Detail: fmt.Sprintf("amount %s SOL exceeds balance %s SOL",
				FormatBaseUnits(amount, src.Decimals),
				FormatBaseUnits(balanceLamports, src.Decimals)),
		}
	}

	return &ValidatedIntent{
		Action:           intent.ActionSwap,
		Caller:           caller,
		BaseAmount:       amount,
		SourceAsset:      src,
		DestinationAsset: dst,
		Summary: fmt.Sprintf("Swap %s %s to %s",
			FormatBaseUnits(amount, src.Decimals), src.Symbol, dst.Symbol),
	}, nil
}
