package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatBigInt converts a smallest-unit amount to a human-readable decimal
// string for the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(amountFloat, divisor)

	formatted := value.Text('f', int(decimals))
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}
	if strings.HasPrefix(formatted, ".") {
		formatted = "0" + formatted
	}
	if formatted == "" {
		if amount.Sign() == 0 {
			return "0", nil
		}
		return value.Text('f', 2), fmt.Errorf("formatting resulted in empty string for non-zero value")
	}
	return formatted, nil
}

// ParseDecimalAmount converts a positive decimal string ("1.5") into the
// chain's smallest unit for the given decimals. Returns an error for empty,
// malformed, zero, negative, or over-precise inputs.
func ParseDecimalAmount(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("amount %q must be an unsigned decimal", amount)
	}

	whole := s
	frac := ""
	if idx := strings.Index(s, "."); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
		if strings.Contains(frac, ".") {
			return nil, fmt.Errorf("amount %q has multiple decimal points", amount)
		}
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	combined := whole + frac
	value, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a valid decimal", amount)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive", amount)
	}
	return value, nil
}

// ParseChainIDHex parses a provider chain id string, hex ("0x89") or
// decimal ("137"), into its numeric form.
func ParseChainIDHex(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("chain id is empty")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	value, ok := new(big.Int).SetString(s, base)
	if !ok || !value.IsUint64() {
		return 0, fmt.Errorf("invalid chain id %q", raw)
	}
	return value.Uint64(), nil
}
