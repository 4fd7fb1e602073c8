package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/foodtruck-orders/internal/deal"
)

// GetDeal fetches a legacy deal within a foodtruck.
func (q *Queries) GetDeal(ctx context.Context, foodtruckID, id string) (deal.Deal, error) {
	ft, err := lookupID(foodtruckID)
	if err != nil {
		return deal.Deal{}, err
	}
	dealID, err := lookupID(id)
	if err != nil {
		return deal.Deal{}, err
	}
	row, err := q.queryRow(ctx, q.sb.Select(
		"id", "foodtruck_id", "name", "trigger_category_id", "trigger_quantity",
		"reward_type", "reward_item_id", "reward_value", "is_active",
	).From("deals").Where(sq.Eq{"foodtruck_id": ft, "id": dealID}))
	if err != nil {
		return deal.Deal{}, err
	}

	var d deal.Deal
	var pk, foodtruck, category, rewardItem pgtype.UUID
	var rewardType string
	var triggerQty int32
	if err := row.Scan(&pk, &foodtruck, &d.Name, &category, &triggerQty, &rewardType, &rewardItem, &d.RewardValue, &d.IsActive); err != nil {
		return deal.Deal{}, err
	}
	d.ID = uuidString(pk)
	d.FoodtruckID = uuidString(foodtruck)
	d.TriggerCategoryID = uuidString(category)
	d.TriggerQuantity = int(triggerQty)
	d.RewardType = deal.RewardType(rewardType)
	d.RewardItemID = uuidPtr(rewardItem)
	return d, nil
}
