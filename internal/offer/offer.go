package offer

import "time"

// Offer is a persisted promotional rule of the multi-offer system.
type Offer struct {
	ID                      string
	FoodtruckID             string
	Name                    string
	Type                    Type
	Config                  Config
	IsActive                bool
	StartDate               *time.Time
	EndDate                 *time.Time
	TimeStart               *string
	TimeEnd                 *string
	DaysOfWeek              []int32
	MaxUses                 *int32
	MaxUsesPerCustomer      *int32
	CurrentUses             int32
	TotalDiscountGivenCents int64
}

// ConsumedItem records how many units of a cart item an offer used up.
type ConsumedItem struct {
	MenuItemID string `json:"menuItemId" validate:"required"`
	Quantity   int    `json:"quantity" validate:"min=1,max=1000"`
}

// Claim is a client-supplied assertion that an offer was applied to the order.
type Claim struct {
	OfferID             string         `json:"offerId" validate:"required"`
	TimesApplied        int            `json:"timesApplied" validate:"min=1,max=1000"`
	DiscountAmountCents int64          `json:"discountAmountCents" validate:"min=0"`
	ItemsConsumed       []ConsumedItem `json:"itemsConsumed" validate:"dive"`
	FreeItemName        *string        `json:"freeItemName,omitempty"`
}

// Applied pairs a validated claim with the offer it refers to.
type Applied struct {
	Offer Offer
	Claim Claim
}

// Result is the outcome of validating every applied offer of an order.
type Result struct {
	Applied  []Applied
	Discount int64
}
