package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/deal"
	"github.com/noah-isme/foodtruck-orders/internal/events"
	"github.com/noah-isme/foodtruck-orders/internal/lock"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
	"github.com/noah-isme/foodtruck-orders/internal/offer"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
	"github.com/noah-isme/foodtruck-orders/internal/promo"
)

const truck = "truck-1"

type ledgerCall struct {
	kind         string
	id           string
	orderID      string
	email        string
	timesApplied int
	discount     int64
}

// memBackend serves every reader and writer the order service consumes.
type memBackend struct {
	items  map[string]menu.Item
	opts   map[string]menu.Option
	promos map[string]promo.Code
	deals  map[string]deal.Deal
	offers map[string]offer.Offer

	createErr error
	itemsErr  error
	ledgerErr error

	orders  map[string]Order
	lines   map[string][]Item
	deleted []string
	ledger  []ledgerCall
	seq     int
}

func newBackend() *memBackend {
	return &memBackend{
		items: map[string]menu.Item{
			"item-a":   {ID: "item-a", FoodtruckID: truck, CategoryID: "burgers", Name: "Burger", BasePriceCents: 1000, IsAvailable: true},
			"item-x":   {ID: "item-x", FoodtruckID: truck, CategoryID: "drinks", Name: "Limonade", BasePriceCents: 300, IsAvailable: true},
			"item-off": {ID: "item-off", FoodtruckID: truck, CategoryID: "burgers", Name: "Veggie", BasePriceCents: 1100},
		},
		opts: map[string]menu.Option{
			"opt-large":  {ID: "opt-large", Name: "Grand", PriceModifierCents: 1200, IsAvailable: true},
			"opt-cheese": {ID: "opt-cheese", Name: "Cheddar", PriceModifierCents: 150, IsAvailable: true},
		},
		promos: map[string]promo.Code{},
		deals:  map[string]deal.Deal{},
		offers: map[string]offer.Offer{},
		orders: map[string]Order{},
		lines:  map[string][]Item{},
	}
}

func (b *memBackend) ListMenuItemsByIDs(_ context.Context, _ string, ids []string) ([]menu.Item, error) {
	out := make([]menu.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := b.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (b *memBackend) ListCategoryOptionsByIDs(_ context.Context, _ string, ids []string) ([]menu.Option, error) {
	out := make([]menu.Option, 0, len(ids))
	for _, id := range ids {
		if o, ok := b.opts[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *memBackend) GetMenuItem(_ context.Context, _ string, id string) (menu.Item, error) {
	if it, ok := b.items[id]; ok {
		return it, nil
	}
	return menu.Item{}, pgx.ErrNoRows
}

func (b *memBackend) GetPromoCode(_ context.Context, foodtruckID, id string) (promo.Code, error) {
	if c, ok := b.promos[id]; ok && c.FoodtruckID == foodtruckID {
		return c, nil
	}
	return promo.Code{}, pgx.ErrNoRows
}

func (b *memBackend) GetPromoCodeByCode(_ context.Context, foodtruckID, code string) (promo.Code, error) {
	for _, c := range b.promos {
		if c.FoodtruckID == foodtruckID && c.Code == code {
			return c, nil
		}
	}
	return promo.Code{}, pgx.ErrNoRows
}

func (b *memBackend) CountPromoCodeUsageByEmail(_ context.Context, _, _ string) (int64, error) {
	return 0, nil
}

func (b *memBackend) GetDeal(_ context.Context, _ string, id string) (deal.Deal, error) {
	if d, ok := b.deals[id]; ok {
		return d, nil
	}
	return deal.Deal{}, pgx.ErrNoRows
}

func (b *memBackend) GetOffer(_ context.Context, _ string, id string) (offer.Offer, error) {
	if o, ok := b.offers[id]; ok {
		return o, nil
	}
	return offer.Offer{}, pgx.ErrNoRows
}

func (b *memBackend) ListOffersByIDs(_ context.Context, _ string, ids []string) ([]offer.Offer, error) {
	out := make([]offer.Offer, 0, len(ids))
	for _, id := range ids {
		if o, ok := b.offers[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *memBackend) CreateOrder(_ context.Context, o Order) (Order, error) {
	if b.createErr != nil {
		return Order{}, b.createErr
	}
	b.seq++
	o.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", b.seq)
	o.CreatedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b.orders[o.ID] = o
	return o, nil
}

func (b *memBackend) CreateOrderItems(_ context.Context, orderID string, items []Item) error {
	if b.itemsErr != nil {
		return b.itemsErr
	}
	b.lines[orderID] = items
	return nil
}

func (b *memBackend) DeleteOrder(_ context.Context, orderID string) error {
	b.deleted = append(b.deleted, orderID)
	delete(b.orders, orderID)
	return nil
}

func (b *memBackend) ApplyPromoCode(_ context.Context, id, orderID, email string, discount int64) error {
	b.ledger = append(b.ledger, ledgerCall{kind: "promo", id: id, orderID: orderID, email: email, discount: discount})
	return b.ledgerErr
}

func (b *memBackend) ApplyDeal(_ context.Context, id, orderID, email string, discount int64) error {
	b.ledger = append(b.ledger, ledgerCall{kind: "deal", id: id, orderID: orderID, email: email, discount: discount})
	return b.ledgerErr
}

func (b *memBackend) ApplyOffer(_ context.Context, id, orderID, email string, times int, discount int64) error {
	b.ledger = append(b.ledger, ledgerCall{kind: "offer", id: id, orderID: orderID, email: email, timesApplied: times, discount: discount})
	return b.ledgerErr
}

func (b *memBackend) GetOrder(_ context.Context, id string) (Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	o.Items = b.lines[id]
	return o, nil
}

type captureEmitter struct {
	topics  []string
	payload []any
	err     error
}

func (c *captureEmitter) Emit(_ context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	c.payload = append(c.payload, payload)
	return events.Event{Topic: topic, AggregateID: aggregateID}, c.err
}

func now() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

func newService(b *memBackend) (*Service, *captureEmitter) {
	em := &captureEmitter{}
	return &Service{
		Menu:          menu.Loader{R: b},
		Promo:         &promo.Service{Q: b, Now: now},
		Deals:         &deal.Validator{Q: b},
		Offers:        &offer.Validator{Q: b, Now: now},
		Store:         b,
		Orders:        b,
		Events:        em,
		Tolerance:     1,
		DefaultStatus: StatusPending,
		Now:           now,
	}, em
}

func baseRequest() Request {
	return Request{
		FoodtruckID:      truck,
		CustomerEmail:    "Client@Example.com",
		CustomerName:     "Camille",
		PickupTime:       now().Add(30 * time.Minute),
		Items:            []pricing.Line{{MenuItemID: "item-a", Quantity: 1}},
		TotalAmountCents: 1000,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

func strPtr(v string) *string { return &v }

func i64Ptr(v int64) *int64 { return &v }

func TestCreatePlainOrder(t *testing.T) {
	b := newBackend()
	svc, em := newService(b)

	res, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, int64(1000), res.ServerTotalCents)
	require.Equal(t, StatusPending, res.Status)

	stored := b.orders[res.OrderID]
	require.Equal(t, int64(1000), stored.TotalCents)
	require.Len(t, b.lines[res.OrderID], 1)
	require.Equal(t, int64(1000), b.lines[res.OrderID][0].UnitPriceCents)
	require.Empty(t, b.ledger)

	require.Equal(t, []string{events.TopicOrderCreated}, em.topics)
	payload := em.payload[0].(events.OrderCreated)
	require.Equal(t, res.OrderID, payload.OrderID)
	require.Equal(t, int64(1000), payload.TotalCents)
}

func TestCreatePromoMinimumNotMet(t *testing.T) {
	b := newBackend()
	b.promos["promo-1"] = promo.Code{
		ID: "promo-1", FoodtruckID: truck, Code: "MIDI", DiscountType: promo.DiscountFixed,
		DiscountValue: 500, MinOrderAmountCents: i64Ptr(2000), IsActive: true,
	}
	svc, em := newService(b)

	req := baseRequest()
	req.PromoCodeID = strPtr("promo-1")
	req.DiscountAmountCents = 500
	req.TotalAmountCents = 500

	_, err := svc.Create(context.Background(), req)
	requireCode(t, err, "PROMO_CODE_MIN_NOT_MET")
	require.ErrorIs(t, err, promo.ErrMinimumNotMet)
	require.Empty(t, b.orders)
	require.Empty(t, em.topics)
}

func TestCreateOfferOverconsumed(t *testing.T) {
	b := newBackend()
	b.offers["offer-1"] = offer.Offer{ID: "offer-1", FoodtruckID: truck, Name: "2 achetées", Type: offer.TypeBuyXGetY, Config: offer.BuyXGetYConfig{}, IsActive: true}
	svc, _ := newService(b)

	req := baseRequest()
	req.Items = []pricing.Line{{MenuItemID: "item-x", Quantity: 2}}
	req.AppliedOffers = []offer.Claim{{
		OfferID: "offer-1", TimesApplied: 1, DiscountAmountCents: 300,
		ItemsConsumed: []offer.ConsumedItem{{MenuItemID: "item-x", Quantity: 3}},
	}}
	req.TotalAmountCents = 300

	_, err := svc.Create(context.Background(), req)
	requireCode(t, err, "ITEM_OVERCONSUMED")
	require.Empty(t, b.orders)
}

func TestCreateWithDiscountsWritesLedger(t *testing.T) {
	b := newBackend()
	b.promos["promo-1"] = promo.Code{ID: "promo-1", FoodtruckID: truck, Code: "DIX", DiscountType: promo.DiscountPercentage, DiscountValue: 10, IsActive: true}
	b.offers["offer-1"] = offer.Offer{ID: "offer-1", FoodtruckID: truck, Name: "Boisson", Type: offer.TypeBuyXGetY, Config: offer.BuyXGetYConfig{}, IsActive: true}
	svc, _ := newService(b)

	req := baseRequest()
	req.Items = []pricing.Line{
		{MenuItemID: "item-a", Quantity: 2, SelectedOptions: []pricing.SelectedOption{{OptionID: "opt-cheese", PriceModifierCents: 150}}},
		{MenuItemID: "item-x", Quantity: 2},
	}
	// subtotal = 2*1150 + 2*300 = 2900; promo 10% = 290; offer 300
	req.PromoCodeID = strPtr("promo-1")
	req.DiscountAmountCents = 290
	req.AppliedOffers = []offer.Claim{{
		OfferID: "offer-1", TimesApplied: 1, DiscountAmountCents: 300,
		ItemsConsumed: []offer.ConsumedItem{{MenuItemID: "item-x", Quantity: 2}},
	}}
	req.TotalAmountCents = 2311
	req.PaymentIntentID = strPtr("pi_123")

	res, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(2310), res.ServerTotalCents)
	require.Equal(t, int64(590), res.DiscountCents)
	require.Equal(t, StatusConfirmed, res.Status)

	require.Len(t, b.ledger, 2)
	require.Equal(t, ledgerCall{kind: "promo", id: "promo-1", orderID: res.OrderID, email: "client@example.com", discount: 290}, b.ledger[0])
	require.Equal(t, "offer", b.ledger[1].kind)
	require.Equal(t, 1, b.ledger[1].timesApplied)

	opts := b.lines[res.OrderID][0].Options
	require.Len(t, opts, 1)
	require.Equal(t, "opt-cheese", opts[0].OptionID)
}

func TestCreateLedgerFailureIsNotFatal(t *testing.T) {
	b := newBackend()
	b.deals["deal-1"] = deal.Deal{
		ID: "deal-1", FoodtruckID: truck, Name: "Burger offert", TriggerCategoryID: "burgers", TriggerQuantity: 2,
		RewardType: deal.RewardFixed, RewardValue: i64Ptr(200), IsActive: true,
	}
	b.ledgerErr = errors.New("ledger down")
	svc, em := newService(b)
	em.err = errors.New("broker down")

	req := baseRequest()
	req.Items = []pricing.Line{{MenuItemID: "item-a", Quantity: 2}}
	req.DealID = strPtr("deal-1")
	req.DealDiscountCents = 200
	req.TotalAmountCents = 1800

	res, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1800), res.ServerTotalCents)
	require.Len(t, b.ledger, 1)
	require.Equal(t, "deal", b.ledger[0].kind)
	require.Contains(t, b.orders, res.OrderID)
}

func TestCreateRollsBackWhenItemsFail(t *testing.T) {
	b := newBackend()
	b.itemsErr = errors.New("insert failed")
	svc, em := newService(b)

	_, err := svc.Create(context.Background(), baseRequest())
	requireCode(t, err, "ORDER_ITEMS_CREATE_FAILED")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	require.Len(t, b.deleted, 1)
	require.Empty(t, b.orders)
	require.Empty(t, em.topics)
}

func TestCreateOrderInsertFailure(t *testing.T) {
	b := newBackend()
	b.createErr = errors.New("connection refused")
	svc, _ := newService(b)

	_, err := svc.Create(context.Background(), baseRequest())
	requireCode(t, err, "ORDER_CREATE_FAILED")
	require.Empty(t, b.deleted)
}

func TestCreateRequestShape(t *testing.T) {
	svc, _ := newService(newBackend())

	req := baseRequest()
	req.PickupTime = time.Time{}
	_, err := svc.Create(context.Background(), req)
	requireCode(t, err, "MISSING_REQUIRED_FIELD")

	req = baseRequest()
	req.Items = nil
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "MISSING_REQUIRED_FIELD")

	req = baseRequest()
	req.CustomerEmail = "not-an-email"
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "INVALID_FIELD")

	req = baseRequest()
	req.Items[0].Quantity = 0
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "INVALID_FIELD")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "items[0].quantity", appErr.Details.(map[string]any)["field"])
}

func TestCreateRejectsOversizedQuantities(t *testing.T) {
	b := newBackend()
	b.offers["offer-1"] = offer.Offer{ID: "offer-1", FoodtruckID: truck, Name: "Deux burgers", Type: offer.TypeBundle, Config: offer.BundleConfig{}, IsActive: true}
	svc, em := newService(b)

	cases := map[string]func(*Request){
		"items[0].quantity": func(r *Request) { r.Items[0].Quantity = 1<<61 + 1 },
		"appliedOffers[0].itemsConsumed[0].quantity": func(r *Request) {
			r.AppliedOffers = []offer.Claim{{OfferID: "offer-1", TimesApplied: 1, ItemsConsumed: []offer.ConsumedItem{{MenuItemID: "item-a", Quantity: math.MaxInt}}}}
		},
		"appliedOffers[0].timesApplied": func(r *Request) {
			r.AppliedOffers = []offer.Claim{{OfferID: "offer-1", TimesApplied: 1 << 40}}
		},
	}
	for field, mutate := range cases {
		req := baseRequest()
		mutate(&req)
		_, err := svc.Create(context.Background(), req)
		requireCode(t, err, "INVALID_FIELD")
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
		require.Equal(t, field, appErr.Details.(map[string]any)["field"])
	}
	require.Zero(t, b.seq)
	require.Empty(t, b.orders)
	require.Empty(t, b.ledger)
	require.Empty(t, em.topics)
}

func TestCreateMenuAndPickupGuards(t *testing.T) {
	svc, _ := newService(newBackend())

	req := baseRequest()
	req.Items = []pricing.Line{{MenuItemID: "ghost", Quantity: 1}}
	_, err := svc.Create(context.Background(), req)
	requireCode(t, err, "UNKNOWN_ITEM")

	req = baseRequest()
	req.Items = []pricing.Line{{MenuItemID: "item-off", Quantity: 1}}
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "ITEM_UNAVAILABLE")

	req = baseRequest()
	req.PickupTime = now().Add(-2 * time.Minute)
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "PICKUP_IN_PAST")

	req = baseRequest()
	req.PickupTime = now().Add(-30 * time.Second)
	_, err = svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateTotalMismatch(t *testing.T) {
	b := newBackend()
	svc, _ := newService(b)

	req := baseRequest()
	req.Items = []pricing.Line{{
		MenuItemID: "item-a", Quantity: 1,
		SelectedOptions: []pricing.SelectedOption{
			{OptionID: "opt-large", PriceModifierCents: 1200, IsSizeOption: true},
			{OptionID: "opt-cheese", PriceModifierCents: 150},
		},
	}}
	req.TotalAmountCents = 1351
	res, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1350), res.ServerTotalCents)

	req.TotalAmountCents = 1352
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "TOTAL_MISMATCH")
	require.Len(t, b.orders, 1)
}

func TestCreateUnderPromoLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := newBackend()
	b.promos["promo-1"] = promo.Code{ID: "promo-1", FoodtruckID: truck, Code: "CINQ", DiscountType: promo.DiscountFixed, DiscountValue: 500, IsActive: true}
	svc, _ := newService(b)
	svc.Locker = lock.Locker{R: rdb, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}

	req := baseRequest()
	req.PromoCodeID = strPtr("promo-1")
	req.DiscountAmountCents = 500
	req.TotalAmountCents = 500

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	key := lock.PromoRedemptionKey("promo-1", req.CustomerEmail)
	require.False(t, mr.Exists(key))

	require.NoError(t, mr.Set(key, "someone-else"))
	_, err = svc.Create(context.Background(), req)
	requireCode(t, err, "PROMO_CODE_BUSY")
	require.ErrorIs(t, err, ErrPromoBusy)
	require.Len(t, b.orders, 1)
}

type brokenLocker struct{}

func (brokenLocker) WithLock(context.Context, string, time.Duration, func(context.Context) error) error {
	return errors.New("redis unreachable")
}

func TestCreateDegradesWithoutLockBackend(t *testing.T) {
	b := newBackend()
	b.promos["promo-1"] = promo.Code{ID: "promo-1", FoodtruckID: truck, Code: "CINQ", DiscountType: promo.DiscountFixed, DiscountValue: 500, IsActive: true}
	svc, _ := newService(b)
	svc.Locker = brokenLocker{}

	req := baseRequest()
	req.PromoCodeID = strPtr("promo-1")
	req.DiscountAmountCents = 500
	req.TotalAmountCents = 500

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, b.orders, 1)
}

func TestGetOrder(t *testing.T) {
	b := newBackend()
	svc, _ := newService(b)

	res, err := svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	ord, err := svc.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, ord.Items, 1)

	_, err = svc.Get(context.Background(), "00000000-0000-0000-0000-000000000099")
	requireCode(t, err, "ORDER_NOT_FOUND")
}
