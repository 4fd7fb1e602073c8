package pricing

// SelectedOption is a size or supplement choice attached to a cart line. When
// IsSizeOption is set, PriceModifierCents is the full unit price of the line.
type SelectedOption struct {
	OptionID           string `json:"optionId" validate:"required"`
	OptionGroupID      string `json:"optionGroupId"`
	Name               string `json:"name"`
	GroupName          string `json:"groupName"`
	PriceModifierCents Money  `json:"priceModifierCents"`
	IsSizeOption       bool   `json:"isSizeOption"`
}

// MaxLineQuantity bounds the quantity of a single line; keep the max tag on
// Line.Quantity in sync.
const MaxLineQuantity = 1000

// Line is one entry of an order request.
type Line struct {
	MenuItemID            string           `json:"menuItemId" validate:"required"`
	Quantity              int              `json:"quantity" validate:"min=1,max=1000"`
	Notes                 *string          `json:"notes,omitempty"`
	SelectedOptions       []SelectedOption `json:"selectedOptions" validate:"dive"`
	BundleID              *string          `json:"bundleId,omitempty"`
	BundleName            *string          `json:"bundleName,omitempty"`
	BundleFixedPriceCents *Money           `json:"bundleFixedPriceCents,omitempty"`
	BundleSupplementCents *Money           `json:"bundleSupplementCents,omitempty"`
	BundleFreeOptions     bool             `json:"bundleFreeOptions,omitempty"`
}

// InBundle reports whether the line belongs to a bundle instance.
func (l Line) InBundle() bool {
	return l.BundleID != nil && *l.BundleID != ""
}

// Quantities sums line quantities per menu item.
func Quantities(lines []Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.MenuItemID] += l.Quantity
	}
	return out
}
