package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/foodtruck-orders/internal/offer"
)

func (q *Queries) offersQuery(foodtruckID pgtype.UUID, ids []pgtype.UUID) sq.SelectBuilder {
	return q.sb.Select(
		"id", "foodtruck_id", "name", "offer_type", "config", "is_active",
		"start_date", "end_date", "to_char(time_start, 'HH24:MI')", "to_char(time_end, 'HH24:MI')",
		"days_of_week", "max_uses", "max_uses_per_customer", "current_uses", "total_discount_given_cents",
	).From("offers").Where(sq.Eq{"foodtruck_id": foodtruckID, "id": ids})
}

// ListOffersByIDs fetches the offers of a foodtruck in one query and decodes their config.
func (q *Queries) ListOffersByIDs(ctx context.Context, foodtruckID string, ids []string) ([]offer.Offer, error) {
	ft, err := uuidValue(foodtruckID)
	if err != nil {
		return nil, nil
	}
	values := uuidValues(ids)
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := q.query(ctx, q.offersQuery(ft, values))
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return collect(rows, scanOffer)
}

// GetOffer fetches one offer of a foodtruck.
func (q *Queries) GetOffer(ctx context.Context, foodtruckID, id string) (offer.Offer, error) {
	ft, err := lookupID(foodtruckID)
	if err != nil {
		return offer.Offer{}, err
	}
	offerID, err := lookupID(id)
	if err != nil {
		return offer.Offer{}, err
	}
	row, err := q.queryRow(ctx, q.offersQuery(ft, []pgtype.UUID{offerID}))
	if err != nil {
		return offer.Offer{}, err
	}
	return scanOffer(row)
}

func scanOffer(row scanner) (offer.Offer, error) {
	var o offer.Offer
	var id, foodtruck pgtype.UUID
	var offerType string
	var config []byte
	err := row.Scan(&id, &foodtruck, &o.Name, &offerType, &config, &o.IsActive,
		&o.StartDate, &o.EndDate, &o.TimeStart, &o.TimeEnd,
		&o.DaysOfWeek, &o.MaxUses, &o.MaxUsesPerCustomer, &o.CurrentUses, &o.TotalDiscountGivenCents)
	if err != nil {
		return offer.Offer{}, err
	}
	o.ID = uuidString(id)
	o.FoodtruckID = uuidString(foodtruck)
	o.Type = offer.Type(offerType)
	cfg, err := offer.DecodeConfig(o.Type, config)
	if err != nil {
		return offer.Offer{}, fmt.Errorf("offer %s: %w", o.ID, err)
	}
	o.Config = cfg
	return o, nil
}
