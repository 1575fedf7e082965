package intent

import (
	"context"
)

// Action is the kind of operation the user asked for.
type Action string

const (
	ActionSend         Action = "send"
	ActionSwap         Action = "swap"
	ActionCheckBalance Action = "check_balance"
	ActionAskAddress   Action = "ask_address"
	ActionShowHistory  Action = "show_history"
	ActionUnknown      Action = "unknown"
)

// Intent is the structured representation of a classified user command.
// It is an immutable value: the pipeline reads it but never mutates it.
//
// Exactly one of the following holds for any Intent produced by this package:
// NeedsMoreInfo is true, the action is fully actionable, or the action is
// ActionUnknown. Normalize enforces this at the classifier boundary.
type Intent struct {
	Action Action `json:"action"`

	// Amount is a human-unit decimal string (e.g. "0.1"), empty when absent.
	// Conversion to base units happens downstream with asset-specific
	// precision; this package never does float arithmetic on it.
	Amount string `json:"amount,omitempty"`

	// Destination is the recipient address for send actions.
	Destination string `json:"destination,omitempty"`

	// SourceAsset and DestinationAsset are asset symbols for swap actions
	// (e.g. "SOL", "USDC"). Absent for sends, where the asset is SOL.
	SourceAsset      string `json:"source_asset,omitempty"`
	DestinationAsset string `json:"destination_asset,omitempty"`

	// Message is a human-readable description of what was understood,
	// always present.
	Message string `json:"message"`

	// NeedsMoreInfo is true when required parameters are missing and the
	// caller should re-prompt the user instead of proceeding.
	NeedsMoreInfo bool `json:"needs_more_info"`

	// ClassifierError carries a diagnostic from the classifier when it
	// could not make sense of the input (ambiguous phrasing, API failure).
	ClassifierError string `json:"classifier_error,omitempty"`
}

// Actionable reports whether the intent is ready for validation: a known
// action with no missing parameters.
func (i *Intent) Actionable() bool {
	return i.Action != ActionUnknown && !i.NeedsMoreInfo
}

// MovesFunds reports whether the action, once confirmed, results in an
// irreversible transfer. These actions always require explicit confirmation.
func (i *Intent) MovesFunds() bool {
	return i.Action == ActionSend || i.Action == ActionSwap
}

// Classifier maps free-form user text to a structured Intent.
// Implementations call an external text-completion service; callers must
// treat any returned error as an Unknown intent, never as a crash.
type Classifier interface {
	Classify(ctx context.Context, text, contextAddress, contextBalance string) (*Intent, error)
}

// Unknown returns an Intent representing an unclassifiable command, carrying
// the diagnostic so it can be surfaced to the user.
func Unknown(diagnostic string) *Intent {
	return &Intent{
		Action:          ActionUnknown,
		Message:         "Sorry, I couldn't understand that command.",
		ClassifierError: diagnostic,
	}
}

// Normalize enforces the Intent invariant on a raw classifier result.
// Loosely-typed classifier output stops here: anything downstream can rely
// on the action being a known variant and on the needs-more-info flag being
// consistent with the populated fields.
func Normalize(raw *Intent) *Intent {
	out := *raw

	switch out.Action {
	case ActionSend, ActionSwap, ActionCheckBalance, ActionAskAddress, ActionShowHistory:
		// known action
	default:
		out.Action = ActionUnknown
	}

	if out.Message == "" {
		out.Message = "Understood."
	}

	switch out.Action {
	case ActionSend:
		if out.Amount == "" || out.Destination == "" {
			out.NeedsMoreInfo = true
		}
		// The asset for a send is implicitly SOL.
		out.SourceAsset = ""
		out.DestinationAsset = ""
	case ActionSwap:
		if out.Amount == "" || out.SourceAsset == "" || out.DestinationAsset == "" {
			out.NeedsMoreInfo = true
		}
		out.Destination = ""
	case ActionUnknown:
		// Unknown is terminal; a re-prompt flag would be redundant.
		out.NeedsMoreInfo = false
	default:
		// Read-only actions never need parameters.
		out.NeedsMoreInfo = false
	}

	return &out
}
