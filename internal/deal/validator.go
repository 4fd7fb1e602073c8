package deal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
	"github.com/noah-isme/foodtruck-orders/internal/offer"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

// Querier loads legacy deals and their fallbacks.
type Querier interface {
	GetDeal(ctx context.Context, foodtruckID, id string) (Deal, error)
	GetOffer(ctx context.Context, foodtruckID, id string) (offer.Offer, error)
	GetMenuItem(ctx context.Context, foodtruckID, id string) (menu.Item, error)
}

// Claim is the legacy deal portion of an order request.
type Claim struct {
	DealID        *string
	DiscountCents int64
	FreeItemName  *string
}

// Result is a validated legacy deal contribution.
type Result struct {
	DealID       string
	Source       Source
	Discount     int64
	FreeItemName *string
}

// Validator checks legacy single-deal discounts.
type Validator struct {
	Q         Querier
	Tolerance int64
}

// Validate returns nil when no deal is claimed.
func (v *Validator) Validate(ctx context.Context, foodtruckID string, claim Claim, lines []pricing.Line, snap menu.Snapshot, cartTotal int64) (*Result, error) {
	if claim.DealID == nil || strings.TrimSpace(*claim.DealID) == "" {
		if claim.DiscountCents > 0 {
			return nil, common.Reject("DEAL_DISCOUNT_WITHOUT_DEAL",
				"Une réduction a été appliquée sans offre correspondante", ErrDiscountWithoutDeal)
		}
		return nil, nil
	}
	if v == nil || v.Q == nil {
		return nil, errors.New("deal validator not configured")
	}
	id := strings.TrimSpace(*claim.DealID)

	d, err := v.Q.GetDeal(ctx, foodtruckID, id)
	switch {
	case err == nil:
		return v.validateDeal(ctx, foodtruckID, d, claim, lines, snap, cartTotal)
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("load deal: %w", err)
	}

	o, err := v.Q.GetOffer(ctx, foodtruckID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.Reject("DEAL_NOT_FOUND", "Offre introuvable", ErrNotFound)
		}
		return nil, fmt.Errorf("load offer: %w", err)
	}
	if !o.IsActive {
		return nil, inactive(o.Name)
	}
	if claim.DiscountCents > cartTotal {
		return nil, common.Reject("DEAL_DISCOUNT_EXCEEDS_CART",
			fmt.Sprintf("La réduction (%s) dépasse le montant du panier (%s)",
				pricing.FormatMajor(claim.DiscountCents), pricing.FormatMajor(cartTotal)), ErrDiscountExceedsCart)
	}
	discount := claim.DiscountCents
	if discount < 0 {
		discount = 0
	}
	return &Result{DealID: o.ID, Source: SourceOffer, Discount: discount, FreeItemName: claim.FreeItemName}, nil
}

func (v *Validator) validateDeal(ctx context.Context, foodtruckID string, d Deal, claim Claim, lines []pricing.Line, snap menu.Snapshot, cartTotal int64) (*Result, error) {
	if !d.IsActive {
		return nil, inactive(d.Name)
	}
	if count := d.TriggerCount(lines, snap); count < d.TriggerQuantity {
		return nil, common.Reject("DEAL_CONDITION_NOT_MET",
			fmt.Sprintf("Conditions de l'offre non remplies : %d article(s) requis, %d dans le panier", d.TriggerQuantity, count),
			ErrConditionNotMet).
			WithDetails(map[string]any{"required": d.TriggerQuantity, "actual": count})
	}

	var rewardPrice int64
	if d.RewardType == RewardFreeItem && d.RewardItemID != nil {
		price, err := v.rewardPrice(ctx, foodtruckID, *d.RewardItemID, snap)
		if err != nil {
			return nil, err
		}
		rewardPrice = price
	}
	expected := d.Expected(cartTotal, rewardPrice)
	if diff := expected - claim.DiscountCents; diff > v.tolerance() || diff < -v.tolerance() {
		return nil, common.Reject("DEAL_DISCOUNT_MISMATCH",
			fmt.Sprintf("La réduction de l'offre ne correspond pas (attendu : %s, reçu : %s)",
				pricing.FormatMajor(expected), pricing.FormatMajor(claim.DiscountCents)), ErrDiscountMismatch).
			WithDetails(map[string]any{"expectedCents": expected, "claimedCents": claim.DiscountCents})
	}
	return &Result{DealID: d.ID, Source: SourceDeal, Discount: expected, FreeItemName: claim.FreeItemName}, nil
}

func (v *Validator) rewardPrice(ctx context.Context, foodtruckID, itemID string, snap menu.Snapshot) (int64, error) {
	if item, ok := snap.Items[itemID]; ok {
		return item.BasePriceCents, nil
	}
	item, err := v.Q.GetMenuItem(ctx, foodtruckID, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load reward item: %w", err)
	}
	return item.BasePriceCents, nil
}

func (v *Validator) tolerance() int64 {
	if v == nil || v.Tolerance <= 0 {
		return pricing.DefaultTolerance
	}
	return v.Tolerance
}

func inactive(name string) *common.AppError {
	msg := "Cette offre n'est plus active"
	if name != "" {
		msg = fmt.Sprintf("L'offre %q n'est plus active", name)
	}
	return common.Reject("DEAL_INACTIVE", msg, ErrInactive)
}
