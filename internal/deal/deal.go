package deal

import (
	"errors"

	"github.com/noah-isme/foodtruck-orders/internal/menu"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

var (
	ErrDiscountWithoutDeal = errors.New("deal discount claimed without deal")
	ErrNotFound            = errors.New("deal not found")
	ErrInactive            = errors.New("deal inactive")
	ErrConditionNotMet     = errors.New("deal condition not met")
	ErrDiscountMismatch    = errors.New("deal discount mismatch")
	ErrDiscountExceedsCart = errors.New("deal discount exceeds cart")
)

// RewardType enumerates how a legacy deal rewards the customer.
type RewardType string

const (
	RewardFreeItem   RewardType = "free_item"
	RewardPercentage RewardType = "percentage"
	RewardFixed      RewardType = "fixed"
)

// Source reports which table resolved a deal id.
type Source string

const (
	SourceDeal  Source = "deal"
	SourceOffer Source = "offer"
)

// Deal is a row of the legacy deals table.
type Deal struct {
	ID                string
	FoodtruckID       string
	Name              string
	TriggerCategoryID string
	TriggerQuantity   int
	RewardType        RewardType
	RewardItemID      *string
	RewardValue       *int64
	IsActive          bool
}

// TriggerCount sums the quantities of cart lines whose item belongs to the trigger category.
func (d Deal) TriggerCount(lines []pricing.Line, snap menu.Snapshot) int {
	count := 0
	for _, line := range lines {
		item, ok := snap.Items[line.MenuItemID]
		if !ok || item.CategoryID == "" || item.CategoryID != d.TriggerCategoryID {
			continue
		}
		count += line.Quantity
	}
	return count
}

// Expected computes the discount the deal grants on cartTotal. rewardPrice is the
// base price of the reward item for free_item deals.
func (d Deal) Expected(cartTotal, rewardPrice int64) int64 {
	if cartTotal <= 0 {
		return 0
	}
	var value int64
	if d.RewardValue != nil {
		value = *d.RewardValue
	}
	var discount int64
	switch d.RewardType {
	case RewardFreeItem:
		discount = rewardPrice
	case RewardPercentage:
		discount = cartTotal * value / 100
	case RewardFixed:
		discount = value
	}
	if discount < 0 {
		return 0
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	return discount
}
