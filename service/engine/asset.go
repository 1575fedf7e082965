package engine

import (
	"fmt"
	"math"
	"strings"
)

// Asset describes a tradeable asset: its symbol, mint address, and the
// number of decimal places in its base unit.
type Asset struct {
	Symbol   string
	Mint     string
	Decimals uint8
}

// NativeMint is the wrapped-SOL mint used by aggregators to represent the
// native asset.
const NativeMint = "So11111111111111111111111111111111111111112"

// AssetRegistry maps asset symbols to their on-chain identity. The native
// asset is always present; token mints come from configuration.
type AssetRegistry struct {
	assets map[string]Asset
}

// NewAssetRegistry creates a registry seeded with the native asset.
func NewAssetRegistry() *AssetRegistry {
	r := &AssetRegistry{assets: make(map[string]Asset)}
	r.Register(Asset{Symbol: "SOL", Mint: NativeMint, Decimals: 9})
	return r
}

// Register adds or replaces an asset. Symbols are case-insensitive.
func (r *AssetRegistry) Register(a Asset) {
	r.assets[strings.ToUpper(a.Symbol)] = a
}

// Lookup returns the asset for a symbol.
func (r *AssetRegistry) Lookup(symbol string) (Asset, bool) {
	a, ok := r.assets[strings.ToUpper(symbol)]
	return a, ok
}

// Native reports whether the symbol refers to the network's native asset.
func (r *AssetRegistry) Native(symbol string) bool {
	return strings.EqualFold(symbol, "SOL")
}

// ToBaseUnits converts a human-unit decimal string into the asset's smallest
// integer unit with exact arithmetic. No floating point is involved, so
// "0.1" SOL is always exactly 100_000_000 lamports.
func ToBaseUnits(amount string, decimals uint8) (uint64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("amount %q must be an unsigned decimal", amount)
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && (!hasFrac || fracPart == "") {
		return 0, fmt.Errorf("amount %q is not a decimal number", amount)
	}
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || (hasFrac && !digitsOnly(fracPart)) {
		return 0, fmt.Errorf("amount %q is not a decimal number", amount)
	}
	if len(fracPart) > int(decimals) {
		return 0, fmt.Errorf("amount %q has more precision than the asset's %d decimals", amount, decimals)
	}

	// Pad the fraction out to the full decimal width, then fold both parts
	// into a single integer with overflow checks.
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	var out uint64
	for _, r := range intPart + fracPart {
		d := uint64(r - '0')
		if out > (math.MaxUint64-d)/10 {
			return 0, fmt.Errorf("amount %q overflows the asset's base unit", amount)
		}
		out = out*10 + d
	}
	return out, nil
}

// FormatBaseUnits renders a base-unit amount as a human decimal string,
// trimming trailing zeros ("1.500000000" -> "1.5").
func FormatBaseUnits(amount uint64, decimals uint8) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", amount)
	}
	pow := uint64(1)
	for range decimals {
		pow *= 10
	}
	whole := amount / pow
	frac := amount % pow
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%0*d", decimals, frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
