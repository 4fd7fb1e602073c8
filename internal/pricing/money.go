package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// MaxAmount bounds any single amount the engine accepts or computes (1 000 000 €).
const MaxAmount Money = 100_000_000

// addMoney adds b to a and reports false when the sum overflows int64.
func addMoney(a, b Money) (Money, bool) {
	sum := a + b
	if (sum > a) != (b > 0) {
		return 0, false
	}
	return sum, true
}

// mulMoney multiplies m by a positive factor n and reports false on overflow.
func mulMoney(m Money, n int64) (Money, bool) {
	if n <= 0 {
		return 0, n == 0
	}
	p := m * n
	if p/n != m {
		return 0, false
	}
	return p, true
}

// inRange reports whether m lies within ±MaxAmount.
func inRange(m Money) bool {
	return m >= -MaxAmount && m <= MaxAmount
}

// FormatMajor renders cents in major units, French style ("12,50 €"). It is only
// used to build human-readable messages; amounts never leave the cents domain.
func FormatMajor(m Money) string {
	return strings.Replace(decimal.New(m, -2).StringFixed(2), ".", ",", 1) + " €"
}

func abs(m Money) Money {
	if m < 0 {
		return -m
	}
	return m
}
