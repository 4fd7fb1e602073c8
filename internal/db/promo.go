package db

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/foodtruck-orders/internal/promo"
)

var promoColumns = []string{
	"id", "foodtruck_id", "code", "discount_type", "discount_value", "min_order_amount_cents",
	"max_discount_cents", "max_uses", "max_uses_per_customer", "current_uses", "is_active",
	"valid_from", "valid_until",
}

// GetPromoCode fetches a promo code by id within a foodtruck.
func (q *Queries) GetPromoCode(ctx context.Context, foodtruckID, id string) (promo.Code, error) {
	ft, err := lookupID(foodtruckID)
	if err != nil {
		return promo.Code{}, err
	}
	codeID, err := lookupID(id)
	if err != nil {
		return promo.Code{}, err
	}
	row, err := q.queryRow(ctx, q.sb.Select(promoColumns...).From("promo_codes").
		Where(sq.Eq{"foodtruck_id": ft, "id": codeID}))
	if err != nil {
		return promo.Code{}, err
	}
	return scanPromoCode(row)
}

// GetPromoCodeByCode fetches a promo code by its case-insensitive code string.
func (q *Queries) GetPromoCodeByCode(ctx context.Context, foodtruckID, code string) (promo.Code, error) {
	ft, err := lookupID(foodtruckID)
	if err != nil {
		return promo.Code{}, err
	}
	row, err := q.queryRow(ctx, q.sb.Select(promoColumns...).From("promo_codes").
		Where(sq.Eq{"foodtruck_id": ft}).
		Where("upper(code) = ?", strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		return promo.Code{}, err
	}
	return scanPromoCode(row)
}

// CountPromoCodeUsageByEmail counts ledger rows of a code for a customer, ignoring email case.
func (q *Queries) CountPromoCodeUsageByEmail(ctx context.Context, promoCodeID, email string) (int64, error) {
	codeID, err := uuidValue(promoCodeID)
	if err != nil {
		return 0, nil
	}
	row, err := q.queryRow(ctx, q.sb.Select("count(*)").From("promo_code_usages").
		Where(sq.Eq{"promo_code_id": codeID}).
		Where("lower(customer_email) = lower(?)", email))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count promo code usage: %w", err)
	}
	return n, nil
}

func scanPromoCode(row scanner) (promo.Code, error) {
	var c promo.Code
	var id, foodtruck pgtype.UUID
	var discountType string
	err := row.Scan(&id, &foodtruck, &c.Code, &discountType, &c.DiscountValue, &c.MinOrderAmountCents,
		&c.MaxDiscountCents, &c.MaxUses, &c.MaxUsesPerCustomer, &c.CurrentUses, &c.IsActive,
		&c.ValidFrom, &c.ValidUntil)
	if err != nil {
		return promo.Code{}, err
	}
	c.ID = uuidString(id)
	c.FoodtruckID = uuidString(foodtruck)
	c.DiscountType = promo.DiscountType(discountType)
	return c, nil
}
