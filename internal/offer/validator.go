package offer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

var (
	ErrNotFound            = errors.New("offer not found")
	ErrCountMismatch       = errors.New("offer count mismatch")
	ErrInactive            = errors.New("offer inactive")
	ErrNotYetActive        = errors.New("offer not yet active")
	ErrExpired             = errors.New("offer expired")
	ErrExhausted           = errors.New("offer exhausted")
	ErrConditionNotMet     = errors.New("offer condition not met")
	ErrItemNotInCart       = errors.New("consumed item not in cart")
	ErrItemOverconsumed    = errors.New("item overconsumed")
	ErrDiscountExceedsCart = errors.New("total discount exceeds cart")
	ErrNegativeDiscount    = errors.New("negative offer discount")
)

// Querier batch-loads offers scoped to a foodtruck.
type Querier interface {
	ListOffersByIDs(ctx context.Context, foodtruckID string, ids []string) ([]Offer, error)
}

// Validator checks the integrity of applied-offer claims. Per-type pricing is
// computed upstream by the combination optimizer; only activity, consumption
// and aggregate bounds are enforced here.
type Validator struct {
	Q   Querier
	Now func() time.Time
}

// Validate returns the summed claimed discount once every claim passes.
func (v *Validator) Validate(ctx context.Context, foodtruckID string, claims []Claim, lines []pricing.Line, subtotal int64) (Result, error) {
	if len(claims) == 0 {
		return Result{}, nil
	}
	if v == nil || v.Q == nil {
		return Result{}, errors.New("offer validator not configured")
	}

	ids := make([]string, 0, len(claims))
	seen := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		id := strings.TrimSpace(c.OfferID)
		if _, dup := seen[id]; dup {
			return Result{}, common.Reject("OFFER_COUNT_MISMATCH",
				"Une même offre ne peut être déclarée qu'une seule fois", ErrCountMismatch).
				WithDetails(map[string]any{"offerId": id})
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	rows, err := v.Q.ListOffersByIDs(ctx, foodtruckID, ids)
	if err != nil {
		return Result{}, fmt.Errorf("load offers: %w", err)
	}
	byID := make(map[string]Offer, len(rows))
	for _, o := range rows {
		if o.FoodtruckID != "" && o.FoodtruckID != foodtruckID {
			continue
		}
		byID[o.ID] = o
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return Result{}, common.Reject("OFFER_NOT_FOUND", "Offre introuvable", ErrNotFound).
				WithDetails(map[string]any{"offerId": id})
		}
	}
	if len(byID) != len(ids) {
		return Result{}, common.Reject("OFFER_COUNT_MISMATCH", "Nombre d'offres incohérent", ErrCountMismatch)
	}

	now := v.now()
	applied := make([]Applied, 0, len(claims))
	for _, c := range claims {
		o := byID[strings.TrimSpace(c.OfferID)]
		if err := checkWindow(o, now); err != nil {
			return Result{}, err
		}
		if err := checkCondition(o, subtotal); err != nil {
			return Result{}, err
		}
		applied = append(applied, Applied{Offer: o, Claim: c})
	}

	if err := checkConsumption(claims, pricing.Quantities(lines)); err != nil {
		return Result{}, err
	}

	var total int64
	for _, c := range claims {
		if c.DiscountAmountCents < 0 {
			return Result{}, common.Reject("OFFER_DISCOUNT_NEGATIVE",
				"La réduction d'une offre ne peut pas être négative", ErrNegativeDiscount)
		}
		if c.DiscountAmountCents > subtotal-total {
			return Result{}, common.Reject("TOTAL_DISCOUNT_EXCEEDS_CART",
				fmt.Sprintf("Le total des réductions dépasse le montant du panier (%s)", pricing.FormatMajor(subtotal)),
				ErrDiscountExceedsCart).
				WithDetails(map[string]any{"offerId": c.OfferID, "discountSoFarCents": total, "subtotalCents": subtotal})
		}
		total += c.DiscountAmountCents
	}
	return Result{Applied: applied, Discount: total}, nil
}

func checkWindow(o Offer, now time.Time) error {
	label := displayName(o)
	if !o.IsActive {
		return common.Reject("OFFER_INACTIVE", fmt.Sprintf("L'offre %s n'est plus active", label), ErrInactive)
	}
	if o.StartDate != nil && now.Before(*o.StartDate) {
		return common.Reject("OFFER_NOT_YET_ACTIVE", fmt.Sprintf("L'offre %s n'a pas encore commencé", label), ErrNotYetActive)
	}
	if o.EndDate != nil && now.After(*o.EndDate) {
		return common.Reject("OFFER_EXPIRED", fmt.Sprintf("L'offre %s a expiré", label), ErrExpired)
	}
	if o.MaxUses != nil && *o.MaxUses > 0 && o.CurrentUses >= *o.MaxUses {
		return common.Reject("OFFER_EXHAUSTED", fmt.Sprintf("L'offre %s a atteint sa limite d'utilisation", label), ErrExhausted)
	}
	return nil
}

// minimumAmount returns the subtotal a config requires before it can apply.
func minimumAmount(cfg Config) (int64, error) {
	switch c := cfg.(type) {
	case ThresholdConfig:
		return c.MinAmountCents, nil
	case PromoCodeConfig:
		if c.MinOrderAmountCents != nil {
			return *c.MinOrderAmountCents, nil
		}
		return 0, nil
	case BundleConfig, BuyXGetYConfig, HappyHourConfig, nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnknownType, cfg)
	}
}

func checkCondition(o Offer, subtotal int64) error {
	minimum, err := minimumAmount(o.Config)
	if err != nil {
		return fmt.Errorf("offer %s: %w", o.ID, err)
	}
	if minimum > 0 && subtotal < minimum {
		return common.Reject("OFFER_CONDITION_NOT_MET",
			fmt.Sprintf("L'offre %s requiert un minimum de %s", displayName(o), pricing.FormatMajor(minimum)),
			ErrConditionNotMet).
			WithDetails(map[string]any{"offerId": o.ID, "minAmountCents": minimum, "subtotalCents": subtotal})
	}
	return nil
}

// checkConsumption ensures no cart unit pays for more than one offer condition.
func checkConsumption(claims []Claim, inCart map[string]int) error {
	tally := make(map[string]int)
	for _, c := range claims {
		for _, item := range c.ItemsConsumed {
			id := item.MenuItemID
			available, ok := inCart[id]
			if !ok {
				return common.Reject("CONSUMED_ITEM_NOT_IN_CART",
					"Une offre utilise un article absent du panier", ErrItemNotInCart).
					WithDetails(map[string]any{"menuItemId": id})
			}
			// Compare against what is left so the tally never exceeds the cart.
			if item.Quantity < 1 || item.Quantity > available-tally[id] {
				return common.Reject("ITEM_OVERCONSUMED",
					fmt.Sprintf("Un article est utilisé au-delà des %d exemplaires présents dans le panier", available),
					ErrItemOverconsumed).
					WithDetails(map[string]any{"menuItemId": id, "offerId": c.OfferID, "alreadyConsumed": tally[id], "requested": item.Quantity, "inCart": available})
			}
			tally[id] += item.Quantity
		}
	}
	return nil
}

func displayName(o Offer) string {
	if o.Name != "" {
		return fmt.Sprintf("%q", o.Name)
	}
	return o.ID
}

func (v *Validator) now() time.Time {
	if v != nil && v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
