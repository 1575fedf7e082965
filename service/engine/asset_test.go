package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"0.1", 9, 100_000_000, false},
		{"1", 9, 1_000_000_000, false},
		{"1.5", 9, 1_500_000_000, false},
		{"0.000000001", 9, 1, false},
		{".5", 9, 500_000_000, false},
		{"42", 6, 42_000_000, false},
		{"0.123456", 6, 123_456, false},
		{"0", 9, 0, false},
		{"0.0000000001", 9, 0, true}, // more precision than the asset has
		{"-1", 9, 0, true},
		{"+1", 9, 0, true},
		{"1e9", 9, 0, true},
		{"", 9, 0, true},
		{".", 9, 0, true},
		{"1.2.3", 9, 0, true},
		{"one", 9, 0, true},
		{"18446744073709551616", 0, 0, true}, // MaxUint64 + 1
	}

	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		if tt.wantErr {
			assert.Error(t, err, "amount %q", tt.amount)
			continue
		}
		require.NoError(t, err, "amount %q", tt.amount)
		assert.Equal(t, tt.want, got, "amount %q", tt.amount)
	}
}

func TestToBaseUnits_MaxValue(t *testing.T) {
	got, err := ToBaseUnits("18446744073709551615", 0)

	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)
}

func TestFormatBaseUnits(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{100_000_000, 9, "0.1"},
		{1_000_000_000, 9, "1"},
		{1_500_000_000, 9, "1.5"},
		{1, 9, "0.000000001"},
		{123_456, 6, "0.123456"},
		{0, 9, "0"},
		{42, 0, "42"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBaseUnits(tt.amount, tt.decimals), "amount %d", tt.amount)
	}
}

func TestToBaseUnits_RoundTrips(t *testing.T) {
	for _, s := range []string{"0.1", "1.5", "0.000000001", "12345.6789"} {
		base, err := ToBaseUnits(s, 9)
		require.NoError(t, err)

		assert.Equal(t, s, FormatBaseUnits(base, 9), "value %q", s)
	}
}

func TestAssetRegistry(t *testing.T) {
	r := testAssets()

	sol, ok := r.Lookup("sol")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, uint8(9), sol.Decimals)
	assert.Equal(t, NativeMint, sol.Mint)
	assert.True(t, r.Native("SOL"))
	assert.False(t, r.Native("USDC"))

	_, ok = r.Lookup("DOGE")
	assert.False(t, ok)
}
