package chain

import (
	"fmt"
	"math/big"
	"strings"

	"taskmap-backend/core"
)

// etherDecimals is the minor-unit exponent of the default currency.
const etherDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(etherDecimals), nil)

// ParseEther converts a decimal ether string such as "0.05" to wei without
// going through floating point. Rejects non-positive amounts and fractions
// finer than 18 decimal places.
func ParseEther(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, &core.ValidationError{Field: "reward", Reason: "amount is required"}
	}
	if strings.HasPrefix(s, "-") {
		return nil, &core.ValidationError{Field: "reward", Reason: "amount must be greater than zero"}
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > etherDecimals {
		return nil, &core.ValidationError{
			Field:  "reward",
			Reason: fmt.Sprintf("amount has more than %d decimal places", etherDecimals),
		}
	}

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, &core.ValidationError{Field: "reward", Reason: "amount is not a decimal number"}
	}
	fracInt := big.NewInt(0)
	if frac != "" {
		fracInt, ok = new(big.Int).SetString(frac+strings.Repeat("0", etherDecimals-len(frac)), 10)
		if !ok {
			return nil, &core.ValidationError{Field: "reward", Reason: "amount is not a decimal number"}
		}
	}

	wei := new(big.Int).Mul(wholeInt, weiPerEther)
	wei.Add(wei, fracInt)
	if wei.Sign() <= 0 {
		return nil, &core.ValidationError{Field: "reward", Reason: "amount must be greater than zero"}
	}
	return wei, nil
}

// FormatEther renders a wei amount as a decimal ether string with trailing
// zeros trimmed. Used for payment URIs and logs.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	quo, rem := new(big.Int).QuoRem(wei, weiPerEther, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%018s", rem.String()), "0")
	return quo.String() + "." + frac
}
