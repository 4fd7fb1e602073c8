package promo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foodtruck-orders/internal/common"
)

type stubQueries struct {
	code       Code
	usageCount int64
	usageErr   error
	lastEmail  string
}

func (s *stubQueries) GetPromoCode(ctx context.Context, foodtruckID, id string) (Code, error) {
	if s.code.ID == "" || s.code.ID != id || s.code.FoodtruckID != foodtruckID {
		return Code{}, pgx.ErrNoRows
	}
	return s.code, nil
}

func (s *stubQueries) GetPromoCodeByCode(ctx context.Context, foodtruckID, code string) (Code, error) {
	if s.code.Code == "" || s.code.Code != code || s.code.FoodtruckID != foodtruckID {
		return Code{}, pgx.ErrNoRows
	}
	return s.code, nil
}

func (s *stubQueries) CountPromoCodeUsageByEmail(ctx context.Context, promoCodeID, email string) (int64, error) {
	s.lastEmail = email
	if s.usageErr != nil {
		return 0, s.usageErr
	}
	return s.usageCount, nil
}

func newCode() Code {
	return Code{
		ID:            "promo-1",
		FoodtruckID:   "truck-1",
		Code:          "BIENVENUE",
		DiscountType:  DiscountFixed,
		DiscountValue: 500,
		IsActive:      true,
	}
}

func fixedNow() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

func strPtr(v string) *string { return &v }

func TestValidateNoPromo(t *testing.T) {
	svc := &Service{Q: &stubQueries{code: newCode()}, Now: fixedNow}
	res, err := svc.Validate(context.Background(), "truck-1", nil, 0, 1000, "a@b.fr")
	require.NoError(t, err)
	require.Nil(t, res)

	res, err = svc.Validate(context.Background(), "truck-1", strPtr("  "), 0, 1000, "a@b.fr")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestValidateForeignFoodtruckIsInvalid(t *testing.T) {
	svc := &Service{Q: &stubQueries{code: newCode()}, Now: fixedNow}
	_, err := svc.Validate(context.Background(), "truck-2", strPtr("promo-1"), 500, 1000, "a@b.fr")
	require.ErrorIs(t, err, ErrInvalid)
	require.Equal(t, "PROMO_CODE_INVALID", common.CodeOf(err))
}

func TestValidateMinimumNotMet(t *testing.T) {
	code := newCode()
	minimum := int64(2000)
	code.MinOrderAmountCents = &minimum
	svc := &Service{Q: &stubQueries{code: code}, Now: fixedNow}

	_, err := svc.Validate(context.Background(), "truck-1", strPtr("promo-1"), 500, 1000, "a@b.fr")
	require.ErrorIs(t, err, ErrMinimumNotMet)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "PROMO_CODE_MIN_NOT_MET", appErr.Code)
	require.Contains(t, appErr.Message, "20,00")
}

func TestValidatePerCustomerLimitCaseInsensitive(t *testing.T) {
	code := newCode()
	limit := int32(1)
	code.MaxUsesPerCustomer = &limit
	stub := &stubQueries{code: code, usageCount: 1}
	svc := &Service{Q: stub, Now: fixedNow}

	_, err := svc.Validate(context.Background(), "truck-1", strPtr("promo-1"), 500, 1000, "  Client@Example.FR ")
	require.ErrorIs(t, err, ErrAlreadyUsed)
	require.Equal(t, "client@example.fr", stub.lastEmail)
}

func TestValidateUsageCountFailureIsInfrastructure(t *testing.T) {
	code := newCode()
	limit := int32(1)
	code.MaxUsesPerCustomer = &limit
	svc := &Service{Q: &stubQueries{code: code, usageErr: errors.New("db down")}, Now: fixedNow}

	_, err := svc.Validate(context.Background(), "truck-1", strPtr("promo-1"), 500, 1000, "a@b.fr")
	require.Error(t, err)
	require.False(t, common.IsAppError(err))
}

func TestValidateDiscountTolerance(t *testing.T) {
	svc := &Service{Q: &stubQueries{code: newCode()}, Now: fixedNow}

	res, err := svc.Validate(context.Background(), "truck-1", strPtr("promo-1"), 499, 1000, "a@b.fr")
	require.NoError(t, err)
	require.Equal(t, int64(500), res.Discount)

	_, err = svc.Validate(context.Background(), "truck-1", strPtr("promo-1"), 498, 1000, "a@b.fr")
	require.ErrorIs(t, err, ErrDiscountMismatch)
}

func TestPreviewByCode(t *testing.T) {
	code := newCode()
	code.DiscountType = DiscountPercentage
	code.DiscountValue = 10
	svc := &Service{Q: &stubQueries{code: code}, Now: fixedNow}

	res, err := svc.Preview(context.Background(), "truck-1", " BIENVENUE ", 2550, "")
	require.NoError(t, err)
	require.Equal(t, int64(255), res.Discount)
	require.Equal(t, "promo-1", res.PromoCodeID)

	_, err = svc.Preview(context.Background(), "truck-1", "NOPE", 2550, "")
	require.ErrorIs(t, err, ErrInvalid)
}
