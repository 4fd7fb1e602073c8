package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/deal"
	"github.com/noah-isme/foodtruck-orders/internal/events"
	"github.com/noah-isme/foodtruck-orders/internal/lock"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
	"github.com/noah-isme/foodtruck-orders/internal/offer"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
	"github.com/noah-isme/foodtruck-orders/internal/promo"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrPromoBusy is returned when another redemption of the same code by the same customer is in flight.
	ErrPromoBusy = errors.New("promo redemption in progress")
)

// SnapshotLoader batch-loads the menu data an order references.
type SnapshotLoader interface {
	Load(ctx context.Context, foodtruckID string, itemIDs, optionIDs []string) (menu.Snapshot, error)
}

// Service validates and persists orders.
type Service struct {
	Menu    SnapshotLoader
	Promo   *promo.Service
	Deals   *deal.Validator
	Offers  *offer.Validator
	Options pricing.OptionGuard
	Store   Store
	Orders  Reader
	Events  Emitter
	Locker  Locker

	Tolerance     int64
	PickupSkew    time.Duration
	DefaultStatus Status
	LockTTL       time.Duration
	EmitTimeout   time.Duration
	Now           func() time.Time
}

type validated struct {
	lines  []pricing.Resolved
	totals pricing.Totals
	promo  *promo.Result
	deal   *deal.Result
	offers offer.Result
}

// Create re-derives the order total from the menu, validates every claimed
// discount and persists the order. Nothing is written unless every check passes.
func (s *Service) Create(ctx context.Context, req Request) (Result, error) {
	ctx, span := otel.Tracer("order.Service").Start(ctx, "OrderService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.foodtruck_id", req.FoodtruckID),
		attribute.Int("order.lines", len(req.Items)),
	)

	res, err := s.create(ctx, req)
	if err != nil {
		code := common.CodeOf(err)
		span.SetAttributes(attribute.String("order.rejection", code))
		if common.IsAppError(err) && !isInternal(err) {
			obs.RecordRejection(code)
			zerolog.Ctx(ctx).Info().Str("code", code).Str("foodtruck_id", req.FoodtruckID).Msg("order rejected")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "order creation failed")
			zerolog.Ctx(ctx).Error().Err(err).Str("foodtruck_id", req.FoodtruckID).Msg("order creation failed")
		}
		return Result{}, err
	}
	span.SetAttributes(attribute.String("order.id", res.OrderID), attribute.Int64("order.total_cents", res.ServerTotalCents))
	return res, nil
}

func (s *Service) create(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.Store == nil || s.Menu == nil {
		return Result{}, errors.New("order service not configured")
	}
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)

	snap, err := s.Menu.Load(ctx, req.FoodtruckID, req.itemIDs(), req.optionIDs())
	if err != nil {
		return Result{}, err
	}
	if err := pricing.CheckPickup(req.PickupTime, s.now(), s.pickupSkew()); err != nil {
		return Result{}, err
	}
	if err := s.Options.Check(ctx, req.Items, snap.Options); err != nil {
		return Result{}, err
	}
	lines, subtotal, err := pricing.ResolveCart(req.Items, snap)
	if err != nil {
		return Result{}, err
	}

	var out Result
	run := func(ctx context.Context) error {
		v, err := s.validateDiscounts(ctx, req, snap, lines, subtotal)
		if err != nil {
			return err
		}
		out, err = s.persist(ctx, req, v)
		return err
	}
	if err := s.withPromoLock(ctx, req, run); err != nil {
		return Result{}, err
	}
	return out, nil
}

func (s *Service) validateDiscounts(ctx context.Context, req Request, snap menu.Snapshot, lines []pricing.Resolved, subtotal int64) (validated, error) {
	p, err := s.Promo.Validate(ctx, req.FoodtruckID, req.PromoCodeID, req.DiscountAmountCents, subtotal, req.CustomerEmail)
	if err != nil {
		return validated{}, err
	}
	d, err := s.Deals.Validate(ctx, req.FoodtruckID, deal.Claim{
		DealID:        req.DealID,
		DiscountCents: req.DealDiscountCents,
		FreeItemName:  req.DealFreeItemName,
	}, req.Items, snap, subtotal)
	if err != nil {
		return validated{}, err
	}
	offers, err := s.Offers.Validate(ctx, req.FoodtruckID, req.AppliedOffers, req.Items, subtotal)
	if err != nil {
		return validated{}, err
	}

	var discounts pricing.Discounts
	if p != nil {
		discounts.Promo = p.Discount
	}
	if d != nil {
		discounts.Deal = d.Discount
	}
	discounts.Offers = offers.Discount

	totals, err := pricing.Reconcile(lines, req.TotalAmountCents, discounts, s.tolerance())
	if err != nil {
		return validated{}, err
	}
	return validated{lines: lines, totals: totals, promo: p, deal: d, offers: offers}, nil
}

// withPromoLock runs fn under the redemption lock of the promo code when one is
// used. A lock backend failure degrades to running fn unlocked since the storage
// layer enforces the usage caps atomically.
func (s *Service) withPromoLock(ctx context.Context, req Request, fn func(context.Context) error) error {
	if s.Locker == nil || req.PromoCodeID == nil || strings.TrimSpace(*req.PromoCodeID) == "" {
		return fn(ctx)
	}
	key := lock.PromoRedemptionKey(strings.TrimSpace(*req.PromoCodeID), req.CustomerEmail)
	ran := false
	err := s.Locker.WithLock(ctx, key, s.lockTTL(), func(ctx context.Context) error {
		ran = true
		return fn(ctx)
	})
	switch {
	case ran || err == nil:
		return err
	case errors.Is(err, lock.ErrNotAcquired):
		return common.NewAppError("PROMO_CODE_BUSY",
			"Ce code promo est en cours d'utilisation, veuillez réessayer", http.StatusConflict, ErrPromoBusy)
	case ctx.Err() != nil:
		return err
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Msg("promo lock unavailable, continuing without it")
		return fn(ctx)
	}
}

func (s *Service) persist(ctx context.Context, req Request, v validated) (Result, error) {
	status := req.status(s.DefaultStatus)
	header := Order{
		FoodtruckID:     req.FoodtruckID,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   req.CustomerPhone,
		PickupTime:      req.PickupTime.UTC(),
		IsASAP:          req.IsASAP,
		Notes:           req.Notes,
		Status:          status,
		SubtotalCents:   v.totals.Subtotal,
		DiscountCents:   v.totals.Discount,
		TotalCents:      v.totals.Total,
		PaymentIntentID: req.PaymentIntentID,
	}
	if v.promo != nil {
		header.PromoCodeID = &v.promo.PromoCodeID
		header.PromoDiscountCents = v.promo.Discount
	}
	if v.deal != nil {
		header.DealID = &v.deal.DealID
		header.DealDiscountCents = v.deal.Discount
		header.DealFreeItemName = v.deal.FreeItemName
	}

	created, err := s.Store.CreateOrder(ctx, header)
	if err != nil {
		return Result{}, common.NewAppError("ORDER_CREATE_FAILED",
			"Impossible d'enregistrer la commande", http.StatusInternalServerError, fmt.Errorf("create order: %w", err))
	}
	if err := s.Store.CreateOrderItems(ctx, created.ID, orderItems(v.lines)); err != nil {
		if delErr := s.Store.DeleteOrder(ctx, created.ID); delErr != nil {
			zerolog.Ctx(ctx).Error().Err(delErr).Str("order_id", created.ID).Msg("failed to delete order without items")
		}
		return Result{}, common.NewAppError("ORDER_ITEMS_CREATE_FAILED",
			"Impossible d'enregistrer les articles de la commande", http.StatusInternalServerError,
			fmt.Errorf("create order items: %w", err))
	}

	s.recordLedger(ctx, created.ID, req.CustomerEmail, v)

	obs.RecordOrderCreated(ctx, string(status), v.totals.Total)
	s.emitCreated(ctx, created, v.totals)

	return Result{
		OrderID:          created.ID,
		Status:           status,
		SubtotalCents:    v.totals.Subtotal,
		DiscountCents:    v.totals.Discount,
		ServerTotalCents: v.totals.Total,
	}, nil
}

// recordLedger applies the usage ledger of every discount. Each step is best-effort.
func (s *Service) recordLedger(ctx context.Context, orderID, email string, v validated) {
	logger := zerolog.Ctx(ctx)
	email = strings.ToLower(email)
	if v.promo != nil {
		err := s.Store.ApplyPromoCode(ctx, v.promo.PromoCodeID, orderID, email, v.promo.Discount)
		obs.RecordSideEffect("ledger_promo", err)
		obs.RecordDiscount("promo", v.promo.Discount)
		if err != nil {
			logger.Error().Err(err).Str("order_id", orderID).Str("promo_code_id", v.promo.PromoCodeID).Msg("apply promo code failed")
		}
	}
	if v.deal != nil {
		var err error
		if v.deal.Source == deal.SourceOffer {
			err = s.Store.ApplyOffer(ctx, v.deal.DealID, orderID, email, 1, v.deal.Discount)
		} else {
			err = s.Store.ApplyDeal(ctx, v.deal.DealID, orderID, email, v.deal.Discount)
		}
		obs.RecordSideEffect("ledger_deal", err)
		obs.RecordDiscount("deal", v.deal.Discount)
		if err != nil {
			logger.Error().Err(err).Str("order_id", orderID).Str("deal_id", v.deal.DealID).Msg("apply deal failed")
		}
	}
	for _, a := range v.offers.Applied {
		err := s.Store.ApplyOffer(ctx, a.Offer.ID, orderID, email, a.Claim.TimesApplied, a.Claim.DiscountAmountCents)
		obs.RecordSideEffect("ledger_offer", err)
		obs.RecordDiscount("offer", a.Claim.DiscountAmountCents)
		if err != nil {
			logger.Error().Err(err).Str("order_id", orderID).Str("offer_id", a.Offer.ID).Msg("apply offer failed")
		}
	}
}

func (s *Service) emitCreated(ctx context.Context, o Order, totals pricing.Totals) {
	if s.Events == nil {
		return
	}
	timeout := s.EmitTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	_, err := s.Events.Emit(ectx, events.TopicOrderCreated, o.ID, events.OrderCreated{
		OrderID:       o.ID,
		FoodtruckID:   o.FoodtruckID,
		Status:        string(o.Status),
		CustomerEmail: o.CustomerEmail,
		CustomerName:  o.CustomerName,
		PickupTime:    o.PickupTime.UTC().Format(time.RFC3339),
		SubtotalCents: totals.Subtotal,
		DiscountCents: totals.Discount,
		TotalCents:    totals.Total,
	})
	obs.RecordSideEffect("event_order_created", err)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Msg("emit order created failed")
	}
}

// Get loads a persisted order with its lines.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if s == nil || s.Orders == nil {
		return Order{}, errors.New("order reader not configured")
	}
	o, err := s.Orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, common.NewAppError("ORDER_NOT_FOUND", "Commande introuvable", http.StatusNotFound, ErrNotFound)
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

func orderItems(lines []pricing.Resolved) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		opts := make([]ItemOption, 0, len(l.Line.SelectedOptions))
		for _, o := range l.Line.SelectedOptions {
			opts = append(opts, ItemOption{
				OptionID:           o.OptionID,
				OptionGroupID:      o.OptionGroupID,
				Name:               o.Name,
				GroupName:          o.GroupName,
				PriceModifierCents: o.PriceModifierCents,
				IsSizeOption:       o.IsSizeOption,
			})
		}
		items = append(items, Item{
			MenuItemID:     l.Line.MenuItemID,
			Quantity:       l.Line.Quantity,
			UnitPriceCents: l.UnitPrice,
			Notes:          l.Line.Notes,
			BundleID:       l.Line.BundleID,
			BundleName:     l.Line.BundleName,
			Options:        opts,
		})
	}
	return items
}

func isInternal(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus >= http.StatusInternalServerError
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) tolerance() int64 {
	if s.Tolerance <= 0 {
		return pricing.DefaultTolerance
	}
	return s.Tolerance
}

func (s *Service) pickupSkew() time.Duration {
	if s.PickupSkew <= 0 {
		return pricing.DefaultPickupSkew
	}
	return s.PickupSkew
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}
