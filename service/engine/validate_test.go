package engine

import (
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/soloquy/service/intent"
)

func testAssets() *AssetRegistry {
	r := NewAssetRegistry()
	r.Register(Asset{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6})
	return r
}

func validationKind(t *testing.T, err error) ValidationKind {
	t.Helper()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %v", err)
	return vErr.Kind
}

func TestValidate_SendInvalidAmounts(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()
	dest := solanago.NewWallet().PublicKey()

	for _, amount := range []string{"0", "0.000000000", "-1", "abc", "", "1.2.3"} {
		it := &intent.Intent{
			Action:      intent.ActionSend,
			Amount:      amount,
			Destination: dest.String(),
			Message:     "m",
		}
		_, err := v.Validate(it, caller, 1_000_000_000)

		assert.Equal(t, InvalidAmount, validationKind(t, err), "amount %q", amount)
	}
}

func TestValidate_SendInvalidAddress(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:      intent.ActionSend,
		Amount:      "0.1",
		Destination: "not-an-address",
		Message:     "m",
	}
	_, err := v.Validate(it, caller, 1_000_000_000)

	assert.Equal(t, InvalidAddress, validationKind(t, err))
}

func TestValidate_SendSelfTransfer(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:      intent.ActionSend,
		Amount:      "0.1",
		Destination: caller.String(),
		Message:     "m",
	}
	_, err := v.Validate(it, caller, 1_000_000_000)

	assert.Equal(t, SelfTransfer, validationKind(t, err))
}

func TestValidate_SendInsufficientBalance(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()
	dest := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:      intent.ActionSend,
		Amount:      "0.1",
		Destination: dest.String(),
		Message:     "m",
	}
	// 0.05 SOL balance, trying to send 0.1
	_, err := v.Validate(it, caller, 50_000_000)

	assert.Equal(t, InsufficientBalance, validationKind(t, err))
}

func TestValidate_SendOK(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()
	dest := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:      intent.ActionSend,
		Amount:      "0.1",
		Destination: dest.String(),
		Message:     "m",
	}
	validated, err := v.Validate(it, caller, 1_000_000_000)

	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), validated.BaseAmount)
	assert.Equal(t, dest, validated.Destination)
	assert.Contains(t, validated.Summary, "0.1 SOL")
}

func TestValidate_SendRulesApplyInOrder(t *testing.T) {
	// An intent that is wrong in several ways fails on the first rule:
	// amount before address before balance.
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:      intent.ActionSend,
		Amount:      "0",
		Destination: "garbage",
		Message:     "m",
	}
	_, err := v.Validate(it, caller, 0)

	assert.Equal(t, InvalidAmount, validationKind(t, err))
}

func TestValidate_SwapSameAsset(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:           intent.ActionSwap,
		Amount:           "0.5",
		SourceAsset:      "SOL",
		DestinationAsset: "sol",
		Message:          "m",
	}
	_, err := v.Validate(it, caller, 1_000_000_000)

	assert.Equal(t, NeedsClarification, validationKind(t, err))
}

func TestValidate_SwapInsufficientNativeBalance(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:           intent.ActionSwap,
		Amount:           "2",
		SourceAsset:      "SOL",
		DestinationAsset: "USDC",
		Message:          "m",
	}
	_, err := v.Validate(it, caller, 1_000_000_000)

	assert.Equal(t, InsufficientBalance, validationKind(t, err))
}

func TestValidate_SwapNonNativeSourceSkipsBalanceCheck(t *testing.T) {
	// Token balances live with the quote service; the local snapshot only
	// covers SOL.
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:           intent.ActionSwap,
		Amount:           "1000000",
		SourceAsset:      "USDC",
		DestinationAsset: "SOL",
		Message:          "m",
	}
	validated, err := v.Validate(it, caller, 0)

	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000), validated.BaseAmount) // 10^6 decimals
}

func TestValidate_SwapOK(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	it := &intent.Intent{
		Action:           intent.ActionSwap,
		Amount:           "0.5",
		SourceAsset:      "SOL",
		DestinationAsset: "USDC",
		Message:          "m",
	}
	validated, err := v.Validate(it, caller, 1_000_000_000)

	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), validated.BaseAmount)
	assert.Equal(t, "SOL", validated.SourceAsset.Symbol)
	assert.Equal(t, "USDC", validated.DestinationAsset.Symbol)
}

func TestValidate_ReadOnlyActionsAlwaysValid(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	for _, action := range []intent.Action{intent.ActionCheckBalance, intent.ActionAskAddress, intent.ActionShowHistory} {
		it := &intent.Intent{Action: action, Message: "m"}
		validated, err := v.Validate(it, caller, 0)

		require.NoError(t, err, "action %s", action)
		assert.Equal(t, action, validated.Action)
	}
}

func TestValidate_UnknownAndNeedsInfoShortCircuit(t *testing.T) {
	v := NewValidator(testAssets())
	caller := solanago.NewWallet().PublicKey()

	cases := []*intent.Intent{
		{Action: intent.ActionUnknown, Message: "m"},
		{Action: intent.ActionSend, NeedsMoreInfo: true, Message: "m"},
	}
	for _, it := range cases {
		_, err := v.Validate(it, caller, 1_000_000_000)

		assert.Equal(t, NeedsClarification, validationKind(t, err))
	}
}
