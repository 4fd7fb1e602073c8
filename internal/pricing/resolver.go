package pricing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
)

var (
	// ErrPriceResolution is returned when a line cannot be priced from the snapshot.
	ErrPriceResolution = errors.New("price resolution failed")
	// ErrQuantityOutOfRange is returned when a line quantity is below 1 or above MaxLineQuantity.
	ErrQuantityOutOfRange = errors.New("quantity out of range")
	// ErrAmountOutOfRange is returned when a price or sum leaves the accepted amount range.
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// Resolved carries the server-side price of a single cart line.
type Resolved struct {
	Line      Line
	UnitPrice Money
	LineTotal Money
}

// UnitPrice computes the true unit price of a line from the menu item record.
//
// Bundle lines price at the bundle fixed price (anchor line only) plus the bundle
// supplement, plus non-size option modifiers unless the bundle waives them. A line
// carrying a size option uses the size modifier as its base instead of the item
// price. Several size options on one line are summed. ResolveLine must be used for
// untrusted lines; UnitPrice does not report overflow.
func UnitPrice(line Line, item menu.Item) Money {
	unit, _ := unitPrice(line, item)
	return unit
}

func unitPrice(line Line, item menu.Item) (Money, bool) {
	var sizes, extras Money
	hasSize := false
	ok := true
	add := func(acc *Money, m Money) {
		sum, fits := addMoney(*acc, m)
		if !fits || !inRange(m) || !inRange(sum) {
			ok = false
		}
		*acc = sum
	}
	for _, opt := range line.SelectedOptions {
		if opt.IsSizeOption {
			hasSize = true
			add(&sizes, opt.PriceModifierCents)
			continue
		}
		add(&extras, opt.PriceModifierCents)
	}

	var unit Money
	switch {
	case line.InBundle():
		if line.BundleFixedPriceCents != nil {
			add(&unit, *line.BundleFixedPriceCents)
		}
		if line.BundleSupplementCents != nil {
			add(&unit, *line.BundleSupplementCents)
		}
		if !line.BundleFreeOptions {
			add(&unit, extras)
		}
	case hasSize:
		add(&unit, sizes)
		add(&unit, extras)
	default:
		add(&unit, item.BasePriceCents)
		add(&unit, extras)
	}
	return unit, ok
}

// ResolveLine prices one line against the snapshot.
func ResolveLine(line Line, snap menu.Snapshot) (Resolved, error) {
	item, ok := snap.Items[line.MenuItemID]
	if !ok {
		return Resolved{}, common.Reject("PRICE_RESOLUTION_FAILED",
			fmt.Sprintf("Impossible de calculer le prix de l'article %s", line.MenuItemID), ErrPriceResolution)
	}
	if line.Quantity < 1 || line.Quantity > MaxLineQuantity {
		return Resolved{}, common.Reject("QUANTITY_OUT_OF_RANGE",
			fmt.Sprintf("Quantité invalide pour l'article %s (1 à %d)", line.MenuItemID, MaxLineQuantity), ErrQuantityOutOfRange).
			WithDetails(map[string]any{"menuItemId": line.MenuItemID, "quantity": line.Quantity, "max": MaxLineQuantity})
	}
	unit, ok := unitPrice(line, item)
	if !ok {
		return Resolved{}, amountOutOfRange(line.MenuItemID)
	}
	total, ok := mulMoney(unit, int64(line.Quantity))
	if !ok || !inRange(total) {
		return Resolved{}, amountOutOfRange(line.MenuItemID)
	}
	return Resolved{Line: line, UnitPrice: unit, LineTotal: total}, nil
}

// ResolveCart prices every line and returns the per-line results with the subtotal.
func ResolveCart(lines []Line, snap menu.Snapshot) ([]Resolved, Money, error) {
	out := make([]Resolved, 0, len(lines))
	var subtotal Money
	for _, line := range lines {
		r, err := ResolveLine(line, snap)
		if err != nil {
			return nil, 0, err
		}
		sum, ok := addMoney(subtotal, r.LineTotal)
		if !ok || !inRange(sum) {
			return nil, 0, amountOutOfRange(line.MenuItemID)
		}
		subtotal = sum
		out = append(out, r)
	}
	return out, subtotal, nil
}

func amountOutOfRange(menuItemID string) error {
	return common.Reject("AMOUNT_OUT_OF_RANGE",
		fmt.Sprintf("Montant hors limites pour l'article %s (maximum %s)", menuItemID, FormatMajor(MaxAmount)), ErrAmountOutOfRange).
		WithDetails(map[string]any{"menuItemId": menuItemID, "maxCents": MaxAmount})
}
