package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/noah-isme/foodtruck-orders/internal/common"
)

// ErrTotalMismatch indicates the client total differs from the server recomputation.
var ErrTotalMismatch = errors.New("order total mismatch")

// DefaultTolerance is the accepted absolute difference between client and server totals.
const DefaultTolerance Money = 1

// Discounts groups the validated amounts of every discount mechanism.
type Discounts struct {
	Promo  Money
	Deal   Money
	Offers Money
}

// Sum returns the aggregated discount, saturating instead of wrapping.
func (d Discounts) Sum() Money {
	var sum Money
	for _, m := range []Money{d.Promo, d.Deal, d.Offers} {
		next, ok := addMoney(sum, m)
		if !ok {
			if m > 0 {
				return math.MaxInt64
			}
			return math.MinInt64
		}
		sum = next
	}
	return sum
}

// Totals is the server-side view of an order's money.
type Totals struct {
	Subtotal Money `json:"serverSubtotalCents"`
	Discount Money `json:"totalDiscountCents"`
	Total    Money `json:"serverTotalCents"`
}

// Compute derives totals from resolved lines; the total is clamped at zero.
func Compute(lines []Resolved, d Discounts) Totals {
	var subtotal Money
	for _, l := range lines {
		subtotal += l.LineTotal
	}
	discount := d.Sum()
	var total Money
	if discount < subtotal {
		total = subtotal - discount
	}
	return Totals{Subtotal: subtotal, Discount: discount, Total: total}
}

// Reconcile compares the claimed client total with the recomputed one.
func Reconcile(lines []Resolved, claimed Money, d Discounts, tolerance Money) (Totals, error) {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	totals := Compute(lines, d)
	if abs(totals.Total-claimed) > tolerance {
		msg := fmt.Sprintf("Le total ne correspond pas (calculé : %s, reçu : %s). Veuillez actualiser votre panier.",
			FormatMajor(totals.Total), FormatMajor(claimed))
		return totals, common.Reject("TOTAL_MISMATCH", msg, ErrTotalMismatch).WithDetails(map[string]any{
			"serverTotalCents": totals.Total,
			"clientTotalCents": claimed,
			"serverTotal":      FormatMajor(totals.Total),
			"clientTotal":      FormatMajor(claimed),
		})
	}
	return totals, nil
}
