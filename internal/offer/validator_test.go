package offer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

type stubOffers struct {
	offers []Offer
	err    error
	calls  int
}

func (s *stubOffers) ListOffersByIDs(ctx context.Context, foodtruckID string, ids []string) ([]Offer, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Offer
	for _, o := range s.offers {
		if _, ok := want[o.ID]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

var now = time.Date(2026, 6, 10, 18, 30, 0, 0, time.UTC)

func activeOffer(id string, cfg Config) Offer {
	return Offer{ID: id, FoodtruckID: "truck-1", Name: "Offre " + id, Type: cfg.Type(), Config: cfg, IsActive: true}
}

func cart() []pricing.Line {
	return []pricing.Line{
		{MenuItemID: "burger", Quantity: 2},
		{MenuItemID: "fries", Quantity: 1},
	}
}

func newValidator(offers ...Offer) *Validator {
	return &Validator{Q: &stubOffers{offers: offers}, Now: func() time.Time { return now }}
}

func TestValidateNoClaimsSkipsQuery(t *testing.T) {
	stub := &stubOffers{}
	v := &Validator{Q: stub}
	res, err := v.Validate(context.Background(), "truck-1", nil, cart(), 2000)
	require.NoError(t, err)
	require.Zero(t, res.Discount)
	require.Zero(t, stub.calls)
}

func TestValidateConsumptionConservation(t *testing.T) {
	v := newValidator(activeOffer("b1", BuyXGetYConfig{TriggerQuantity: 1, RewardQuantity: 1}), activeOffer("b2", BundleConfig{FixedPriceCents: 1200}))

	ok := []Claim{
		{OfferID: "b1", TimesApplied: 1, DiscountAmountCents: 300, ItemsConsumed: []ConsumedItem{{MenuItemID: "burger", Quantity: 1}}},
		{OfferID: "b2", TimesApplied: 1, DiscountAmountCents: 200, ItemsConsumed: []ConsumedItem{{MenuItemID: "burger", Quantity: 1}, {MenuItemID: "fries", Quantity: 1}}},
	}
	res, err := v.Validate(context.Background(), "truck-1", ok, cart(), 2500)
	require.NoError(t, err)
	require.Equal(t, int64(500), res.Discount)
	require.Len(t, res.Applied, 2)

	over := []Claim{
		{OfferID: "b1", TimesApplied: 1, DiscountAmountCents: 300, ItemsConsumed: []ConsumedItem{{MenuItemID: "burger", Quantity: 2}}},
		{OfferID: "b2", TimesApplied: 1, DiscountAmountCents: 200, ItemsConsumed: []ConsumedItem{{MenuItemID: "burger", Quantity: 1}}},
	}
	_, err = v.Validate(context.Background(), "truck-1", over, cart(), 2500)
	require.ErrorIs(t, err, ErrItemOverconsumed)
	require.Equal(t, "ITEM_OVERCONSUMED", common.CodeOf(err))
}

func TestValidateOverconsumedSingleClaim(t *testing.T) {
	v := newValidator(activeOffer("x", BuyXGetYConfig{TriggerQuantity: 2, RewardQuantity: 1}))
	lines := []pricing.Line{{MenuItemID: "item-x", Quantity: 2}}
	claims := []Claim{{OfferID: "x", TimesApplied: 1, DiscountAmountCents: 100, ItemsConsumed: []ConsumedItem{{MenuItemID: "item-x", Quantity: 3}}}}

	_, err := v.Validate(context.Background(), "truck-1", claims, lines, 2000)
	require.ErrorIs(t, err, ErrItemOverconsumed)
}

func TestValidateOverconsumedHugeQuantitiesDoNotWrap(t *testing.T) {
	v := newValidator(activeOffer("a", BundleConfig{}), activeOffer("b", BundleConfig{}))
	lines := []pricing.Line{{MenuItemID: "burger", Quantity: 1}}
	claims := []Claim{
		{OfferID: "a", TimesApplied: 1, DiscountAmountCents: 100, ItemsConsumed: []ConsumedItem{{MenuItemID: "burger", Quantity: math.MaxInt}}},
		{OfferID: "b", TimesApplied: 1, DiscountAmountCents: 100, ItemsConsumed: []ConsumedItem{{MenuItemID: "burger", Quantity: math.MaxInt}}},
	}

	_, err := v.Validate(context.Background(), "truck-1", claims, lines, 1000)
	require.ErrorIs(t, err, ErrItemOverconsumed)

	claims[0].ItemsConsumed = []ConsumedItem{{MenuItemID: "burger", Quantity: 1}}
	claims[1].ItemsConsumed = []ConsumedItem{{MenuItemID: "burger", Quantity: -1}}
	_, err = v.Validate(context.Background(), "truck-1", claims, lines, 1000)
	require.ErrorIs(t, err, ErrItemOverconsumed)
}

func TestValidateConsumedItemNotInCart(t *testing.T) {
	v := newValidator(activeOffer("x", BuyXGetYConfig{}))
	claims := []Claim{{OfferID: "x", TimesApplied: 1, ItemsConsumed: []ConsumedItem{{MenuItemID: "ghost", Quantity: 1}}}}

	_, err := v.Validate(context.Background(), "truck-1", claims, cart(), 2000)
	require.ErrorIs(t, err, ErrItemNotInCart)
}

func TestValidateMissingAndDuplicateOffers(t *testing.T) {
	v := newValidator(activeOffer("x", BundleConfig{}))

	_, err := v.Validate(context.Background(), "truck-1", []Claim{{OfferID: "x", TimesApplied: 1}, {OfferID: "y", TimesApplied: 1}}, cart(), 2000)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = v.Validate(context.Background(), "truck-1", []Claim{{OfferID: "x", TimesApplied: 1}, {OfferID: "x", TimesApplied: 1}}, cart(), 2000)
	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestValidateForeignFoodtruckOfferIsNotFound(t *testing.T) {
	o := activeOffer("x", BundleConfig{})
	o.FoodtruckID = "truck-2"
	v := newValidator(o)

	_, err := v.Validate(context.Background(), "truck-1", []Claim{{OfferID: "x", TimesApplied: 1}}, cart(), 2000)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidateWindow(t *testing.T) {
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)
	maxUses := int32(5)

	inactive := activeOffer("x", BundleConfig{})
	inactive.IsActive = false
	early := activeOffer("x", BundleConfig{})
	early.StartDate = &after
	late := activeOffer("x", BundleConfig{})
	late.EndDate = &before
	used := activeOffer("x", BundleConfig{})
	used.MaxUses = &maxUses
	used.CurrentUses = 5

	cases := map[error]Offer{ErrInactive: inactive, ErrNotYetActive: early, ErrExpired: late, ErrExhausted: used}
	for want, o := range cases {
		_, err := newValidator(o).Validate(context.Background(), "truck-1", []Claim{{OfferID: "x", TimesApplied: 1}}, cart(), 2000)
		require.True(t, errors.Is(err, want), "expected %v, got %v", want, err)
	}
}

func TestValidateThresholdCondition(t *testing.T) {
	v := newValidator(activeOffer("t", ThresholdConfig{MinAmountCents: 3000, DiscountType: "fixed", DiscountValue: 500}))
	claims := []Claim{{OfferID: "t", TimesApplied: 1, DiscountAmountCents: 500}}

	_, err := v.Validate(context.Background(), "truck-1", claims, cart(), 2999)
	require.ErrorIs(t, err, ErrConditionNotMet)

	res, err := v.Validate(context.Background(), "truck-1", claims, cart(), 3000)
	require.NoError(t, err)
	require.Equal(t, int64(500), res.Discount)
}

func TestValidateTotalDiscountExceedsCart(t *testing.T) {
	v := newValidator(activeOffer("a", BundleConfig{}), activeOffer("b", BundleConfig{}))
	claims := []Claim{
		{OfferID: "a", TimesApplied: 1, DiscountAmountCents: 1200},
		{OfferID: "b", TimesApplied: 1, DiscountAmountCents: 900},
	}
	_, err := v.Validate(context.Background(), "truck-1", claims, cart(), 2000)
	require.ErrorIs(t, err, ErrDiscountExceedsCart)

	wrapping := []Claim{
		{OfferID: "a", TimesApplied: 1, DiscountAmountCents: math.MaxInt64},
		{OfferID: "b", TimesApplied: 1, DiscountAmountCents: math.MaxInt64},
	}
	_, err = v.Validate(context.Background(), "truck-1", wrapping, cart(), 2000)
	require.ErrorIs(t, err, ErrDiscountExceedsCart)

	res, err := v.Validate(context.Background(), "truck-1", claims, cart(), 2100)
	require.NoError(t, err)
	require.Equal(t, int64(2100), res.Discount)
}

func TestValidateQueryFailureIsInfrastructure(t *testing.T) {
	v := &Validator{Q: &stubOffers{err: errors.New("db down")}}
	_, err := v.Validate(context.Background(), "truck-1", []Claim{{OfferID: "a", TimesApplied: 1}}, cart(), 2000)
	require.Error(t, err)
	require.False(t, common.IsAppError(err))
}

type unknownConfig struct{}

func (unknownConfig) Type() Type { return "mystery" }
func (unknownConfig) isConfig() {}

func TestValidateUnknownConfigIsInfrastructure(t *testing.T) {
	v := newValidator(activeOffer("m", unknownConfig{}))

	require.NotPanics(t, func() {
		_, err := v.Validate(context.Background(), "truck-1", []Claim{{OfferID: "m", TimesApplied: 1}}, cart(), 2000)
		require.ErrorIs(t, err, ErrUnknownType)
		require.False(t, common.IsAppError(err))
	})
}
