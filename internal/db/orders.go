package db

import (
	"context"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/foodtruck-orders/internal/order"
)

var orderColumns = []string{
	"id", "foodtruck_id", "customer_email", "customer_name", "customer_phone", "pickup_time", "is_asap",
	"notes", "status", "subtotal_cents", "discount_cents", "total_cents", "promo_code_id",
	"promo_discount_cents", "deal_id", "deal_discount_cents", "deal_free_item_name", "payment_intent_id",
	"created_at",
}

func optionalUUID(id *string) (any, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	return uuidValue(*id)
}

// CreateOrder inserts the order header and returns it with its generated id.
func (q *Queries) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	ft, err := uuidValue(o.FoodtruckID)
	if err != nil {
		return order.Order{}, fmt.Errorf("foodtruck id: %w", err)
	}
	promoID, err := optionalUUID(o.PromoCodeID)
	if err != nil {
		return order.Order{}, fmt.Errorf("promo code id: %w", err)
	}
	dealID, err := optionalUUID(o.DealID)
	if err != nil {
		return order.Order{}, fmt.Errorf("deal id: %w", err)
	}
	b := q.sb.Insert("orders").
		Columns(orderColumns[1 : len(orderColumns)-1]...).
		Values(ft, o.CustomerEmail, o.CustomerName, o.CustomerPhone, o.PickupTime, o.IsASAP,
			o.Notes, string(o.Status), o.SubtotalCents, o.DiscountCents, o.TotalCents, promoID,
			o.PromoDiscountCents, dealID, o.DealDiscountCents, o.DealFreeItemName, o.PaymentIntentID).
		Suffix("RETURNING id, created_at")
	row, err := q.queryRow(ctx, b)
	if err != nil {
		return order.Order{}, err
	}
	var id pgtype.UUID
	if err := row.Scan(&id, &o.CreatedAt); err != nil {
		return order.Order{}, err
	}
	o.ID = uuidString(id)
	return o, nil
}

// CreateOrderItems inserts the lines of an order and their option snapshots in one transaction.
func (q *Queries) CreateOrderItems(ctx context.Context, orderID string, items []order.Item) error {
	oid, err := uuidValue(orderID)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	return q.inTx(ctx, func(tx *Queries) error {
		for i, it := range items {
			menuItemID, err := uuidValue(it.MenuItemID)
			if err != nil {
				return fmt.Errorf("menu item id: %w", err)
			}
			row, err := tx.queryRow(ctx, tx.sb.Insert("order_items").
				Columns("order_id", "menu_item_id", "quantity", "unit_price_cents", "notes", "bundle_id", "bundle_name", "position").
				Values(oid, menuItemID, it.Quantity, it.UnitPriceCents, it.Notes, it.BundleID, it.BundleName, i).
				Suffix("RETURNING id"))
			if err != nil {
				return err
			}
			var itemID pgtype.UUID
			if err := row.Scan(&itemID); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			if len(it.Options) == 0 {
				continue
			}
			ins := tx.sb.Insert("order_item_options").
				Columns("order_item_id", "option_id", "option_group_id", "name", "group_name", "price_modifier_cents", "is_size_option")
			for _, opt := range it.Options {
				ins = ins.Values(itemID, opt.OptionID, opt.OptionGroupID, opt.Name, opt.GroupName, opt.PriceModifierCents, opt.IsSizeOption)
			}
			if _, err := tx.exec(ctx, ins); err != nil {
				return fmt.Errorf("insert order item options: %w", err)
			}
		}
		return nil
	})
}

// DeleteOrder removes an order; lines and options cascade.
func (q *Queries) DeleteOrder(ctx context.Context, orderID string) error {
	oid, err := uuidValue(orderID)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	_, err = q.exec(ctx, q.sb.Delete("orders").Where(sq.Eq{"id": oid}))
	return err
}

// ApplyPromoCode runs the atomic promo ledger function.
func (q *Queries) ApplyPromoCode(ctx context.Context, promoCodeID, orderID, email string, discountCents int64) error {
	return q.applyLedger(ctx, "apply_promo_code", promoCodeID, orderID, email, discountCents)
}

// ApplyDeal runs the atomic deal ledger function.
func (q *Queries) ApplyDeal(ctx context.Context, dealID, orderID, email string, discountCents int64) error {
	return q.applyLedger(ctx, "apply_deal", dealID, orderID, email, discountCents)
}

// ApplyOffer records timesApplied usage rows and increments the offer counters.
func (q *Queries) ApplyOffer(ctx context.Context, offerID, orderID, email string, timesApplied int, discountCents int64) error {
	if timesApplied < 1 || timesApplied > math.MaxInt32 {
		return fmt.Errorf("apply_offer: times applied %d out of range", timesApplied)
	}
	return q.applyLedger(ctx, "apply_offer", offerID, orderID, email, int32(timesApplied), discountCents)
}

func (q *Queries) applyLedger(ctx context.Context, fn, id, orderID, email string, extra ...any) error {
	target, err := uuidValue(id)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	oid, err := uuidValue(orderID)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	args := append([]any{target, oid, email}, extra...)
	row, err := q.queryRow(ctx, q.sb.Select().Column(sq.Expr(fn+"("+sq.Placeholders(len(args))+")", args...)))
	if err != nil {
		return err
	}
	var applied bool
	if err := row.Scan(&applied); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	if !applied {
		return fmt.Errorf("%s: %w", fn, ErrLedgerRejected)
	}
	return nil
}

// GetOrder loads an order with its lines and option snapshots.
func (q *Queries) GetOrder(ctx context.Context, id string) (order.Order, error) {
	oid, err := lookupID(id)
	if err != nil {
		return order.Order{}, err
	}
	row, err := q.queryRow(ctx, q.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": oid}))
	if err != nil {
		return order.Order{}, err
	}
	var o order.Order
	var pk, foodtruck, promoID, dealID pgtype.UUID
	var status string
	err = row.Scan(&pk, &foodtruck, &o.CustomerEmail, &o.CustomerName, &o.CustomerPhone, &o.PickupTime, &o.IsASAP,
		&o.Notes, &status, &o.SubtotalCents, &o.DiscountCents, &o.TotalCents, &promoID,
		&o.PromoDiscountCents, &dealID, &o.DealDiscountCents, &o.DealFreeItemName, &o.PaymentIntentID,
		&o.CreatedAt)
	if err != nil {
		return order.Order{}, err
	}
	o.ID = uuidString(pk)
	o.FoodtruckID = uuidString(foodtruck)
	o.Status = order.Status(status)
	o.PromoCodeID = uuidPtr(promoID)
	o.DealID = uuidPtr(dealID)

	items, err := q.listOrderItems(ctx, oid)
	if err != nil {
		return order.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (q *Queries) listOrderItems(ctx context.Context, orderID pgtype.UUID) ([]order.Item, error) {
	rows, err := q.query(ctx, q.sb.Select("id", "order_id", "menu_item_id", "quantity", "unit_price_cents", "notes", "bundle_id", "bundle_name").
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	items, err := collect(rows, func(row scanner) (order.Item, error) {
		var it order.Item
		var id, oid, menuItemID pgtype.UUID
		var qty int32
		if err := row.Scan(&id, &oid, &menuItemID, &qty, &it.UnitPriceCents, &it.Notes, &it.BundleID, &it.BundleName); err != nil {
			return order.Item{}, err
		}
		it.ID = uuidString(id)
		it.OrderID = uuidString(oid)
		it.MenuItemID = uuidString(menuItemID)
		it.Quantity = int(qty)
		it.Options = []order.ItemOption{}
		return it, nil
	})
	if err != nil || len(items) == 0 {
		return items, err
	}

	index := make(map[string]int, len(items))
	itemIDs := make([]pgtype.UUID, 0, len(items))
	for i, it := range items {
		index[it.ID] = i
		v, _ := uuidValue(it.ID)
		itemIDs = append(itemIDs, v)
	}
	rows, err = q.query(ctx, q.sb.Select("order_item_id", "option_id", "option_group_id", "name", "group_name", "price_modifier_cents", "is_size_option").
		From("order_item_options").
		Where(sq.Eq{"order_item_id": itemIDs}))
	if err != nil {
		return nil, fmt.Errorf("list order item options: %w", err)
	}
	type optionRow struct {
		itemID string
		opt    order.ItemOption
	}
	opts, err := collect(rows, func(row scanner) (optionRow, error) {
		var r optionRow
		var itemID pgtype.UUID
		if err := row.Scan(&itemID, &r.opt.OptionID, &r.opt.OptionGroupID, &r.opt.Name, &r.opt.GroupName, &r.opt.PriceModifierCents, &r.opt.IsSizeOption); err != nil {
			return optionRow{}, err
		}
		r.itemID = uuidString(itemID)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	for _, r := range opts {
		if i, ok := index[r.itemID]; ok {
			items[i].Options = append(items[i].Options, r.opt)
		}
	}
	return items, nil
}
