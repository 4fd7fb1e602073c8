package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/menu"
)

var (
	// ErrPickupInPast indicates the requested pickup time already elapsed.
	ErrPickupInPast = errors.New("pickup time in the past")
	// ErrOptionUnavailable indicates a selected option is switched off in the menu.
	ErrOptionUnavailable = errors.New("option unavailable")
	// ErrOptionPriceNegative indicates a negative option price was submitted.
	ErrOptionPriceNegative = errors.New("option price negative")
	// ErrOptionPriceAnomalous indicates a submitted option price is far above the menu default.
	ErrOptionPriceAnomalous = errors.New("option price anomalous")
)

// DefaultPickupSkew absorbs clock drift between the ordering client and the server.
const DefaultPickupSkew = 60 * time.Second

// DefaultAnomalyFactor bounds a submitted modifier relative to the menu default.
const DefaultAnomalyFactor = 10

// CheckPickup rejects pickup times older than now minus skew.
func CheckPickup(pickup, now time.Time, skew time.Duration) error {
	if skew < 0 {
		skew = DefaultPickupSkew
	}
	if pickup.Before(now.Add(-skew)) {
		return common.Reject("PICKUP_IN_PAST", "L'heure de retrait est déjà passée", ErrPickupInPast).
			WithDetails(map[string]any{"pickupTime": pickup.UTC().Format(time.RFC3339)})
	}
	return nil
}

// OptionGuard checks submitted option prices against the authoritative category options.
type OptionGuard struct {
	// AnomalyFactor is the multiple of the default modifier above which a price is rejected.
	AnomalyFactor int64
}

// Check walks every selected option of every line. Options missing from the
// snapshot are logged and skipped since per-item custom prices do not always map to
// a category default. Negative prices are rejected even for unknown options.
func (g OptionGuard) Check(ctx context.Context, lines []Line, options map[string]menu.Option) error {
	factor := g.AnomalyFactor
	if factor <= 0 {
		factor = DefaultAnomalyFactor
	}
	logger := zerolog.Ctx(ctx)
	for _, line := range lines {
		for _, sel := range line.SelectedOptions {
			if sel.PriceModifierCents < 0 {
				return common.Reject("OPTION_PRICE_NEGATIVE",
					fmt.Sprintf("Prix négatif pour l'option « %s »", sel.Name), ErrOptionPriceNegative).
					WithDetails(map[string]any{"optionId": sel.OptionID, "claimedCents": sel.PriceModifierCents})
			}
			opt, ok := options[sel.OptionID]
			if !ok {
				logger.Warn().Str("option_id", sel.OptionID).Str("menu_item_id", line.MenuItemID).Msg("option_unknown_skipped")
				continue
			}
			if !opt.IsAvailable {
				return common.Reject("OPTION_UNAVAILABLE",
					fmt.Sprintf("L'option « %s » n'est plus disponible", opt.Name), ErrOptionUnavailable).
					WithDetails(map[string]any{"optionId": opt.ID})
			}
			if sel.IsSizeOption {
				continue
			}
			if opt.PriceModifierCents > 0 && sel.PriceModifierCents > factor*opt.PriceModifierCents {
				return common.Reject("OPTION_PRICE_ANOMALOUS",
					fmt.Sprintf("Prix invalide pour l'option « %s »", opt.Name), ErrOptionPriceAnomalous).
					WithDetails(map[string]any{
						"optionId":     opt.ID,
						"claimedCents": sel.PriceModifierCents,
						"defaultCents": opt.PriceModifierCents,
					})
			}
		}
	}
	return nil
}
