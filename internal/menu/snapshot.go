package menu

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/foodtruck-orders/internal/common"
)

var (
	// ErrUnknownItem indicates a referenced menu item does not exist for the foodtruck.
	ErrUnknownItem = errors.New("unknown menu item")
	// ErrItemUnavailable indicates a referenced menu item is switched off.
	ErrItemUnavailable = errors.New("menu item unavailable")
)

// Item is the request-scoped view of a menu item.
type Item struct {
	ID             string
	FoodtruckID    string
	CategoryID     string
	Name           string
	BasePriceCents int64
	IsAvailable    bool
}

// Option is the request-scoped view of a category option (size or supplement).
type Option struct {
	ID                 string
	Name               string
	PriceModifierCents int64
	IsAvailable        bool
}

// Snapshot holds the authoritative records referenced by one order.
type Snapshot struct {
	Items   map[string]Item
	Options map[string]Option
}

// Reader loads menu records in batches, scoped to a foodtruck.
type Reader interface {
	ListMenuItemsByIDs(ctx context.Context, foodtruckID string, ids []string) ([]Item, error)
	ListCategoryOptionsByIDs(ctx context.Context, foodtruckID string, ids []string) ([]Option, error)
}

// Loader fetches snapshots and enforces item existence and availability.
type Loader struct {
	R Reader
}

// Load fetches items and options concurrently then guards item availability.
func (l Loader) Load(ctx context.Context, foodtruckID string, itemIDs, optionIDs []string) (Snapshot, error) {
	if l.R == nil {
		return Snapshot{}, errors.New("menu loader not configured")
	}
	itemIDs = Distinct(itemIDs)
	optionIDs = Distinct(optionIDs)

	var (
		items   []Item
		options []Option
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = l.R.ListMenuItemsByIDs(gctx, foodtruckID, itemIDs)
		if err != nil {
			return fmt.Errorf("load menu items: %w", err)
		}
		return nil
	})
	if len(optionIDs) > 0 {
		g.Go(func() error {
			var err error
			options, err = l.R.ListCategoryOptionsByIDs(gctx, foodtruckID, optionIDs)
			if err != nil {
				return fmt.Errorf("load category options: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Items:   make(map[string]Item, len(items)),
		Options: make(map[string]Option, len(options)),
	}
	for _, it := range items {
		if it.FoodtruckID != "" && it.FoodtruckID != foodtruckID {
			continue
		}
		snap.Items[it.ID] = it
	}
	for _, opt := range options {
		snap.Options[opt.ID] = opt
	}
	if err := Guard(itemIDs, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Guard fails on the first referenced item that is missing or unavailable.
func Guard(itemIDs []string, snap Snapshot) error {
	for _, id := range itemIDs {
		it, ok := snap.Items[id]
		if !ok {
			return common.Reject("UNKNOWN_ITEM", "Un article de la commande est introuvable", ErrUnknownItem).
				WithDetails(map[string]any{"menuItemId": id})
		}
		if !it.IsAvailable {
			return common.Reject("ITEM_UNAVAILABLE", fmt.Sprintf("L'article « %s » n'est plus disponible", it.Name), ErrItemUnavailable).
				WithDetails(map[string]any{"menuItemId": id, "name": it.Name})
		}
	}
	return nil
}

// Distinct returns the sorted unique non-empty values.
func Distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
