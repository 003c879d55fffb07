package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// limbBase is 2^128, the base combining a u256 from its two felt limbs.
var limbBase = gethmath.BigPow(2, 128)

// NormalizeAddress canonicalizes a hex address: the prefix is stripped, the
// value parsed as an unsigned integer and re-rendered as minimal lowercase hex.
// Malformed input is returned unchanged so the caller can surface a later, more
// specific failure instead of a parse error here.
func NormalizeAddress(addr string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if s == "" {
		return addr
	}

	n, ok := new(big.Int).SetString(s, 16)
	if !ok || n.Sign() < 0 {
		return addr
	}

	return hexutil.EncodeBig(n)
}

// AddressesEqual reports whether two addresses share the same canonical form.
func AddressesEqual(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// CompareAmounts compares two decimal strings with unbounded precision,
// returning -1, 0 or 1. Values well beyond 256 bits compare without truncation.
func CompareAmounts(a, b string) (int, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", a, err)
	}

	db, err := decimal.NewFromString(b)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", b, err)
	}

	return da.Cmp(db), nil
}

// ValidateAmount checks that an amount string is a non-negative integer decimal.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	if !dec.IsInteger() {
		return nil, fmt.Errorf("amount must be an integer")
	}

	return &dec, nil
}

// CombineLimbs combines a u256 from its two 128-bit limbs as low + high*2^128.
func CombineLimbs(low, high *big.Int) *big.Int {
	out := new(big.Int).Mul(high, limbBase)
	return out.Add(out, low)
}

// CombineLimbHex combines two felt-encoded hex limbs into a u256.
func CombineLimbHex(lowHex, highHex string) (*big.Int, error) {
	low, err := parseFelt(lowHex)
	if err != nil {
		return nil, fmt.Errorf("invalid low limb: %w", err)
	}

	high, err := parseFelt(highHex)
	if err != nil {
		return nil, fmt.Errorf("invalid high limb: %w", err)
	}

	return CombineLimbs(low, high), nil
}

// SplitAmountHex decomposes a decimal amount string into its two felt-encoded
// 128-bit limbs, low first.
func SplitAmountHex(amount string) (lowHex, highHex string, err error) {
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return "", "", fmt.Errorf("invalid amount %q", amount)
	}

	high, low := new(big.Int).DivMod(n, limbBase, new(big.Int))
	return hexutil.EncodeBig(low), hexutil.EncodeBig(high), nil
}

func parseFelt(s string) (*big.Int, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if t == "" {
		return nil, fmt.Errorf("empty felt %q", s)
	}

	n, ok := new(big.Int).SetString(t, 16)
	if !ok {
		return nil, fmt.Errorf("malformed felt %q", s)
	}

	return n, nil
}
