package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/foodtruck-orders/internal/notify"
)

var _ notify.LoyaltyStore = (*Queries)(nil)

// CreditLoyaltyPoints credits points for an order once. It reports false when the
// order was already credited.
func (q *Queries) CreditLoyaltyPoints(ctx context.Context, orderID, foodtruckID, email string, points int64) (bool, error) {
	oid, err := uuidValue(orderID)
	if err != nil {
		return false, fmt.Errorf("order id: %w", err)
	}
	ft, err := uuidValue(foodtruckID)
	if err != nil {
		return false, fmt.Errorf("foodtruck id: %w", err)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	credited := false
	err = q.inTx(ctx, func(tx *Queries) error {
		tag, err := tx.exec(ctx, tx.sb.Insert("loyalty_transactions").
			Columns("order_id", "foodtruck_id", "customer_email", "points").
			Values(oid, ft, email, points).
			Suffix("ON CONFLICT (order_id) DO NOTHING"))
		if err != nil {
			return fmt.Errorf("insert loyalty transaction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.exec(ctx, tx.sb.Insert("loyalty_points").
			Columns("foodtruck_id", "customer_email", "points").
			Values(ft, email, points).
			Suffix("ON CONFLICT (foodtruck_id, customer_email) DO UPDATE SET points = loyalty_points.points + EXCLUDED.points, updated_at = now()")); err != nil {
			return fmt.Errorf("upsert loyalty points: %w", err)
		}
		credited = true
		return nil
	})
	return credited, err
}
