package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

// Querier captures the database methods required by the promo code service.
type Querier interface {
	GetPromoCode(ctx context.Context, foodtruckID, id string) (Code, error)
	GetPromoCodeByCode(ctx context.Context, foodtruckID, code string) (Code, error)
	CountPromoCodeUsageByEmail(ctx context.Context, promoCodeID, email string) (int64, error)
}

// Result is a validated promo code contribution to an order.
type Result struct {
	PromoCodeID string `json:"promoCodeId"`
	Code        string `json:"code"`
	Discount    int64  `json:"discountCents"`
}

// Service evaluates promo codes against an order.
type Service struct {
	Q         Querier
	Now       func() time.Time
	Tolerance int64
}

// Validate returns nil when no code is used. Otherwise it checks eligibility and
// requires the claimed discount to match the recomputed one within the tolerance.
// The expected (server) discount is what the caller should reconcile with.
func (s *Service) Validate(ctx context.Context, foodtruckID string, promoCodeID *string, claimed, subtotal int64, email string) (*Result, error) {
	if promoCodeID == nil || strings.TrimSpace(*promoCodeID) == "" {
		return nil, nil
	}
	if s == nil || s.Q == nil {
		return nil, errors.New("promo service not configured")
	}
	code, err := s.Q.GetPromoCode(ctx, foodtruckID, strings.TrimSpace(*promoCodeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reject(ErrInvalid, Code{})
		}
		return nil, fmt.Errorf("load promo code: %w", err)
	}
	expected, err := s.evaluate(ctx, code, subtotal, email)
	if err != nil {
		return nil, err
	}
	if diff := expected - claimed; diff > s.tolerance() || diff < -s.tolerance() {
		return nil, common.Reject("PROMO_CODE_DISCOUNT_MISMATCH",
			fmt.Sprintf("La réduction du code promo ne correspond pas (attendu : %s, reçu : %s)",
				pricing.FormatMajor(expected), pricing.FormatMajor(claimed)), ErrDiscountMismatch).
			WithDetails(map[string]any{"expectedCents": expected, "claimedCents": claimed})
	}
	return &Result{PromoCodeID: code.ID, Code: code.Code, Discount: expected}, nil
}

// Preview performs a dry-run evaluation of a code string without mutating state.
func (s *Service) Preview(ctx context.Context, foodtruckID, codeValue string, subtotal int64, email string) (Result, error) {
	if s == nil || s.Q == nil {
		return Result{}, errors.New("promo service not configured")
	}
	trimmed := strings.TrimSpace(codeValue)
	if trimmed == "" {
		return Result{}, reject(ErrInvalid, Code{})
	}
	code, err := s.Q.GetPromoCodeByCode(ctx, foodtruckID, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, reject(ErrInvalid, Code{})
		}
		return Result{}, fmt.Errorf("load promo code: %w", err)
	}
	expected, err := s.evaluate(ctx, code, subtotal, email)
	if err != nil {
		return Result{}, err
	}
	return Result{PromoCodeID: code.ID, Code: code.Code, Discount: expected}, nil
}

func (s *Service) evaluate(ctx context.Context, code Code, subtotal int64, email string) (int64, error) {
	if err := code.Validate(s.now(), subtotal); err != nil {
		return 0, reject(err, code)
	}
	if code.MaxUsesPerCustomer != nil && *code.MaxUsesPerCustomer > 0 {
		normalized := common.NormalizeEmail(email)
		if normalized != "" {
			used, err := s.Q.CountPromoCodeUsageByEmail(ctx, code.ID, normalized)
			if err != nil {
				return 0, fmt.Errorf("count promo code usage: %w", err)
			}
			if code.CustomerLimitReached(used) {
				return 0, reject(ErrAlreadyUsed, code)
			}
		}
	}
	return Compute(code, subtotal), nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) tolerance() int64 {
	if s == nil || s.Tolerance <= 0 {
		return pricing.DefaultTolerance
	}
	return s.Tolerance
}

func reject(err error, code Code) *common.AppError {
	switch {
	case errors.Is(err, ErrInvalid):
		return common.Reject("PROMO_CODE_INVALID", "Code promo invalide", err)
	case errors.Is(err, ErrInactive):
		return common.Reject("PROMO_CODE_INACTIVE", "Ce code promo n'est plus actif", err)
	case errors.Is(err, ErrNotYetActive):
		return common.Reject("PROMO_CODE_NOT_YET_ACTIVE", "Ce code promo n'est pas encore valide", err)
	case errors.Is(err, ErrExpired):
		return common.Reject("PROMO_CODE_EXPIRED", "Ce code promo a expiré", err)
	case errors.Is(err, ErrMinimumNotMet):
		var minimum int64
		if code.MinOrderAmountCents != nil {
			minimum = *code.MinOrderAmountCents
		}
		return common.Reject("PROMO_CODE_MIN_NOT_MET",
			fmt.Sprintf("Montant minimum de commande non atteint (%s)", pricing.FormatMajor(minimum)), err).
			WithDetails(map[string]any{"minOrderAmountCents": minimum})
	case errors.Is(err, ErrExhausted):
		return common.Reject("PROMO_CODE_EXHAUSTED", "Ce code promo a atteint sa limite d'utilisation", err)
	case errors.Is(err, ErrAlreadyUsed):
		return common.Reject("PROMO_CODE_ALREADY_USED", "Vous avez déjà utilisé ce code promo", err)
	default:
		return common.Reject("PROMO_CODE_INVALID", "Code promo invalide", err)
	}
}
