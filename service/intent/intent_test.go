package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_UnknownAction(t *testing.T) {
	raw := &Intent{Action: Action("buy_lambo"), Message: "???"}
	out := Normalize(raw)

	assert.Equal(t, ActionUnknown, out.Action)
	assert.False(t, out.NeedsMoreInfo)
	assert.False(t, out.Actionable())
}

func TestNormalize_SendMissingDestination(t *testing.T) {
	raw := &Intent{
		Action:  ActionSend,
		Amount:  "0.1",
		Message: "Send 0.1 SOL... to whom?",
	}
	out := Normalize(raw)

	assert.True(t, out.NeedsMoreInfo)
	assert.False(t, out.Actionable())
}

func TestNormalize_SendComplete(t *testing.T) {
	raw := &Intent{
		Action:      ActionSend,
		Amount:      "0.1",
		Destination: "4Nd1mYvM6PjEXk2XnEXkXjEXk2XnEXkXjEXk2XnEXkXj",
		Message:     "Send 0.1 SOL",
		// Classifier sometimes volunteers the asset; sends are always SOL.
		SourceAsset: "SOL",
	}
	out := Normalize(raw)

	assert.True(t, out.Actionable())
	assert.False(t, out.NeedsMoreInfo)
	assert.Empty(t, out.SourceAsset)
}

func TestNormalize_SwapMissingAssets(t *testing.T) {
	raw := &Intent{Action: ActionSwap, Amount: "0.5", Message: "Swap 0.5 of what?"}
	out := Normalize(raw)

	assert.True(t, out.NeedsMoreInfo)
}

func TestNormalize_SwapComplete(t *testing.T) {
	raw := &Intent{
		Action:           ActionSwap,
		Amount:           "0.5",
		SourceAsset:      "SOL",
		DestinationAsset: "USDC",
		Message:          "Swap 0.5 SOL to USDC",
	}
	out := Normalize(raw)

	assert.True(t, out.Actionable())
	assert.True(t, out.MovesFunds())
}

func TestNormalize_ReadOnlyActionsNeverNeedInfo(t *testing.T) {
	for _, action := range []Action{ActionCheckBalance, ActionAskAddress, ActionShowHistory} {
		raw := &Intent{Action: action, NeedsMoreInfo: true, Message: "ok"}
		out := Normalize(raw)

		assert.False(t, out.NeedsMoreInfo, "action %s", action)
		assert.True(t, out.Actionable(), "action %s", action)
		assert.False(t, out.MovesFunds(), "action %s", action)
	}
}

func TestNormalize_ExactlyOneDispositionHolds(t *testing.T) {
	cases := []*Intent{
		{Action: ActionSend, Message: "m"},
		{Action: ActionSend, Amount: "1", Destination: "addr", Message: "m"},
		{Action: ActionSwap, Amount: "1", SourceAsset: "SOL", DestinationAsset: "USDC", Message: "m"},
		{Action: ActionUnknown, NeedsMoreInfo: true, Message: "m"},
		{Action: Action("garbage"), Message: "m"},
		{Action: ActionCheckBalance, Message: "m"},
	}
	for i, raw := range cases {
		out := Normalize(raw)

		states := 0
		if out.NeedsMoreInfo {
			states++
		}
		if out.Action == ActionUnknown {
			states++
		}
		if out.Actionable() {
			states++
		}
		assert.Equal(t, 1, states, "case %d: intent must be in exactly one disposition", i)
	}
}

func TestUnknown_CarriesDiagnostic(t *testing.T) {
	out := Unknown("upstream timeout")

	assert.Equal(t, ActionUnknown, out.Action)
	assert.Equal(t, "upstream timeout", out.ClassifierError)
	assert.NotEmpty(t, out.Message)
}
