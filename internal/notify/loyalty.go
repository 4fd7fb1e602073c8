package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
)

// LoyaltyStore credits points once per order.
type LoyaltyStore interface {
	CreditLoyaltyPoints(ctx context.Context, orderID, foodtruckID, email string, points int64) (bool, error)
}

// LoyaltyHandler credits loyalty points proportional to the amount paid.
type LoyaltyHandler struct {
	Store         LoyaltyStore
	PointsPerEuro int64
}

// Points returns the points earned for totalCents; only whole euros count.
func (h *LoyaltyHandler) Points(totalCents int64) int64 {
	per := h.PointsPerEuro
	if per <= 0 {
		per = 1
	}
	if totalCents <= 0 {
		return 0
	}
	return totalCents / 100 * per
}

// ProcessTask implements asynq.Handler.
func (h *LoyaltyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := DecodePayload(t)
	if err != nil {
		return err
	}
	email := common.NormalizeEmail(p.Order.CustomerEmail)
	points := h.Points(p.Order.TotalCents)
	if h.Store == nil || email == "" || points == 0 {
		return nil
	}
	credited, err := h.Store.CreditLoyaltyPoints(ctx, p.Order.OrderID, p.Order.FoodtruckID, email, points)
	obs.RecordSideEffect("loyalty", err)
	if err != nil {
		return fmt.Errorf("credit loyalty points: %w", err)
	}
	zerolog.Ctx(ctx).Info().
		Str("order_id", p.Order.OrderID).
		Int64("points", points).
		Bool("credited", credited).
		Msg("loyalty_credit")
	return nil
}
