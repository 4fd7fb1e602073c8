package promo

import (
	"errors"
	"time"
)

var (
	// ErrInvalid is returned when the code does not exist for the foodtruck.
	ErrInvalid = errors.New("promo code invalid")
	// ErrInactive is returned when the code has been switched off.
	ErrInactive = errors.New("promo code inactive")
	// ErrNotYetActive is returned before the validity window opens.
	ErrNotYetActive = errors.New("promo code not yet active")
	// ErrExpired is returned after the validity window closed.
	ErrExpired = errors.New("promo code expired")
	// ErrMinimumNotMet indicates the subtotal is below the code's minimum order amount.
	ErrMinimumNotMet = errors.New("promo code minimum not met")
	// ErrExhausted indicates the code has reached its global usage cap.
	ErrExhausted = errors.New("promo code exhausted")
	// ErrAlreadyUsed indicates the customer has reached the per-customer cap.
	ErrAlreadyUsed = errors.New("promo code already used")
	// ErrDiscountMismatch indicates the claimed discount differs from the recomputed one.
	ErrDiscountMismatch = errors.New("promo code discount mismatch")
)

// DiscountType distinguishes percentage and fixed-amount codes.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Code captures the runtime constraints of a promo code.
type Code struct {
	ID                  string
	FoodtruckID         string
	Code                string
	DiscountType        DiscountType
	DiscountValue       int64
	MinOrderAmountCents *int64
	MaxDiscountCents    *int64
	MaxUses             *int32
	MaxUsesPerCustomer  *int32
	CurrentUses         int32
	IsActive            bool
	ValidFrom           *time.Time
	ValidUntil          *time.Time
}

// Validate checks activity, validity window, minimum order and global usage, in that order.
func (c Code) Validate(now time.Time, subtotal int64) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrNotYetActive
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrExpired
	}
	if c.MinOrderAmountCents != nil && subtotal < *c.MinOrderAmountCents {
		return ErrMinimumNotMet
	}
	if c.MaxUses != nil && *c.MaxUses >= 0 && c.CurrentUses >= *c.MaxUses {
		return ErrExhausted
	}
	return nil
}

// CustomerLimitReached reports whether used redemptions exhaust the per-customer cap.
func (c Code) CustomerLimitReached(used int64) bool {
	return c.MaxUsesPerCustomer != nil && *c.MaxUsesPerCustomer > 0 && used >= int64(*c.MaxUsesPerCustomer)
}

// Compute determines the expected discount for the subtotal.
func Compute(c Code, subtotal int64) int64 {
	if subtotal <= 0 || c.DiscountValue <= 0 {
		return 0
	}
	var discount int64
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal * c.DiscountValue / 100
		if c.MaxDiscountCents != nil && *c.MaxDiscountCents >= 0 && discount > *c.MaxDiscountCents {
			discount = *c.MaxDiscountCents
		}
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}
