package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/foodtruck-orders/internal/menu"
)

var menuItemColumns = []string{"id", "foodtruck_id", "category_id", "name", "base_price_cents", "is_available"}

func (q *Queries) menuItemsQuery(foodtruckID pgtype.UUID, ids []pgtype.UUID) sq.SelectBuilder {
	return q.sb.Select(menuItemColumns...).
		From("menu_items").
		Where(sq.Eq{"foodtruck_id": foodtruckID, "id": ids})
}

// ListMenuItemsByIDs fetches the menu items of a foodtruck in one query.
func (q *Queries) ListMenuItemsByIDs(ctx context.Context, foodtruckID string, ids []string) ([]menu.Item, error) {
	ft, err := uuidValue(foodtruckID)
	if err != nil {
		return nil, nil
	}
	values := uuidValues(ids)
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := q.query(ctx, q.menuItemsQuery(ft, values))
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return collect(rows, scanMenuItem)
}

// GetMenuItem fetches one menu item of a foodtruck.
func (q *Queries) GetMenuItem(ctx context.Context, foodtruckID, id string) (menu.Item, error) {
	ft, err := lookupID(foodtruckID)
	if err != nil {
		return menu.Item{}, err
	}
	itemID, err := lookupID(id)
	if err != nil {
		return menu.Item{}, err
	}
	row, err := q.queryRow(ctx, q.menuItemsQuery(ft, []pgtype.UUID{itemID}))
	if err != nil {
		return menu.Item{}, err
	}
	return scanMenuItem(row)
}

func scanMenuItem(row scanner) (menu.Item, error) {
	var it menu.Item
	var id, foodtruck, category pgtype.UUID
	if err := row.Scan(&id, &foodtruck, &category, &it.Name, &it.BasePriceCents, &it.IsAvailable); err != nil {
		return menu.Item{}, err
	}
	it.ID = uuidString(id)
	it.FoodtruckID = uuidString(foodtruck)
	it.CategoryID = uuidString(category)
	return it, nil
}

// ListCategoryOptionsByIDs fetches the category options of a foodtruck in one query.
func (q *Queries) ListCategoryOptionsByIDs(ctx context.Context, foodtruckID string, ids []string) ([]menu.Option, error) {
	ft, err := uuidValue(foodtruckID)
	if err != nil {
		return nil, nil
	}
	values := uuidValues(ids)
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := q.query(ctx, q.sb.Select("id", "name", "price_modifier_cents", "is_available").
		From("category_options").
		Where(sq.Eq{"foodtruck_id": ft, "id": values}))
	if err != nil {
		return nil, fmt.Errorf("list category options: %w", err)
	}
	return collect(rows, func(row scanner) (menu.Option, error) {
		var (
			opt menu.Option
			id  pgtype.UUID
		)
		if err := row.Scan(&id, &opt.Name, &opt.PriceModifierCents, &opt.IsAvailable); err != nil {
			return menu.Option{}, err
		}
		opt.ID = uuidString(id)
		return opt, nil
	})
}
