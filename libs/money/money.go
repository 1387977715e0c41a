// Package money works in integer minor units (cents). Nothing here touches
// floating point.
package money

import (
	"fmt"
	"math/big"
	"strings"
)

// PercentOf returns pct% of amount, rounded half up to the cent.
func PercentOf(amount int64, pct int) int64 {
	return divRound(amount*int64(pct), 100)
}

// SplitVAT splits a tax-inclusive amount into net and VAT parts for a rate in
// basis points (2000 = 20%). net + vat == gross always holds.
func SplitVAT(gross int64, rateBps int) (net, vat int64) {
	if rateBps <= 0 {
		return gross, 0
	}
	net = divRound(gross*10000, int64(10000+rateBps))
	return net, gross - net
}

// Prorate returns floor(amount * part / whole) without overflowing int64 on
// the intermediate product. whole must be positive.
func Prorate(amount, part, whole int64) int64 {
	n := new(big.Int).Mul(big.NewInt(amount), big.NewInt(part))
	return n.Div(n, big.NewInt(whole)).Int64()
}

func divRound(num, den int64) int64 {
	if num < 0 {
		return -divRound(-num, den)
	}
	return (num + den/2) / den
}

// Format renders cents as "1234.50 EUR".
func Format(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
