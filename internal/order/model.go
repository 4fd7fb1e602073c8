package order

import (
	"context"
	"time"

	"github.com/noah-isme/foodtruck-orders/internal/events"
)

// Status is the lifecycle state an order is created with.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Order is the persisted order header.
type Order struct {
	ID                 string    `json:"id"`
	FoodtruckID        string    `json:"foodtruckId"`
	CustomerEmail      string    `json:"customerEmail"`
	CustomerName       string    `json:"customerName"`
	CustomerPhone      *string   `json:"customerPhone,omitempty"`
	PickupTime         time.Time `json:"pickupTime"`
	IsASAP             bool      `json:"isAsap"`
	Notes              *string   `json:"notes,omitempty"`
	Status             Status    `json:"status"`
	SubtotalCents      int64     `json:"subtotalCents"`
	DiscountCents      int64     `json:"discountCents"`
	TotalCents         int64     `json:"totalCents"`
	PromoCodeID        *string   `json:"promoCodeId,omitempty"`
	PromoDiscountCents int64     `json:"promoDiscountCents"`
	DealID             *string   `json:"dealId,omitempty"`
	DealDiscountCents  int64     `json:"dealDiscountCents"`
	DealFreeItemName   *string   `json:"dealFreeItemName,omitempty"`
	PaymentIntentID    *string   `json:"paymentIntentId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	Items              []Item    `json:"items,omitempty"`
}

// Item is an order line priced by the server.
type Item struct {
	ID             string       `json:"id"`
	OrderID        string       `json:"orderId"`
	MenuItemID     string       `json:"menuItemId"`
	Quantity       int          `json:"quantity"`
	UnitPriceCents int64        `json:"unitPriceCents"`
	Notes          *string      `json:"notes,omitempty"`
	BundleID       *string      `json:"bundleId,omitempty"`
	BundleName     *string      `json:"bundleName,omitempty"`
	Options        []ItemOption `json:"selectedOptions"`
}

// ItemOption is the snapshot of a selected option at order time.
type ItemOption struct {
	OptionID           string `json:"optionId"`
	OptionGroupID      string `json:"optionGroupId"`
	Name               string `json:"name"`
	GroupName          string `json:"groupName"`
	PriceModifierCents int64  `json:"priceModifierCents"`
	IsSizeOption       bool   `json:"isSizeOption"`
}

// Store persists orders and the discount usage ledger.
type Store interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	CreateOrderItems(ctx context.Context, orderID string, items []Item) error
	DeleteOrder(ctx context.Context, orderID string) error
	ApplyPromoCode(ctx context.Context, promoCodeID, orderID, email string, discountCents int64) error
	ApplyDeal(ctx context.Context, dealID, orderID, email string, discountCents int64) error
	ApplyOffer(ctx context.Context, offerID, orderID, email string, timesApplied int, discountCents int64) error
}

// Reader loads persisted orders.
type Reader interface {
	GetOrder(ctx context.Context, id string) (Order, error)
}

// Locker serialises work under a named key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}
