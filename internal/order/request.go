package order

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/offer"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

var (
	// ErrMissingField indicates a required request field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField indicates a request field is malformed.
	ErrInvalidField = errors.New("invalid field")
)

// Request is the body of an order creation call.
type Request struct {
	FoodtruckID         string         `json:"foodtruckId" validate:"required"`
	CustomerEmail       string         `json:"customerEmail" validate:"required,email"`
	CustomerName        string         `json:"customerName" validate:"required"`
	CustomerPhone       *string        `json:"customerPhone,omitempty"`
	PickupTime          time.Time      `json:"pickupTime"`
	IsASAP              bool           `json:"isAsap,omitempty"`
	Notes               *string        `json:"notes,omitempty"`
	Items               []pricing.Line `json:"items" validate:"required,min=1,dive"`
	PromoCodeID         *string        `json:"promoCodeId,omitempty"`
	DiscountAmountCents int64          `json:"discountAmountCents" validate:"min=0"`
	DealID              *string        `json:"dealId,omitempty"`
	DealDiscountCents   int64          `json:"dealDiscountCents" validate:"min=0"`
	DealFreeItemName    *string        `json:"dealFreeItemName,omitempty"`
	AppliedOffers       []offer.Claim  `json:"appliedOffers,omitempty" validate:"dive"`
	TotalAmountCents    int64          `json:"totalAmountCents" validate:"min=0"`
	PaymentIntentID     *string        `json:"paymentIntentId,omitempty"`
}

// Result is returned to the client once the order is persisted.
type Result struct {
	OrderID          string `json:"orderId"`
	Status           Status `json:"status"`
	SubtotalCents    int64  `json:"serverSubtotalCents"`
	DiscountCents    int64  `json:"totalDiscountCents"`
	ServerTotalCents int64  `json:"serverTotalCents"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request shape before anything is loaded.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return fmt.Errorf("validate request: %w", err)
		}
		return fieldError(verrs[0])
	}
	if r.PickupTime.IsZero() {
		return missing("pickupTime")
	}
	return nil
}

func fieldError(fe validator.FieldError) *common.AppError {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	if fe.Tag() == "required" {
		return missing(field)
	}
	return common.Reject("INVALID_FIELD", fmt.Sprintf("Champ invalide : %s", field), ErrInvalidField).
		WithDetails(map[string]any{"field": field, "rule": fe.Tag()})
}

func missing(field string) *common.AppError {
	return common.Reject("MISSING_REQUIRED_FIELD", fmt.Sprintf("Champ requis manquant : %s", field), ErrMissingField).
		WithDetails(map[string]any{"field": field})
}

func (r Request) itemIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, l := range r.Items {
		ids = append(ids, l.MenuItemID)
	}
	return ids
}

func (r Request) optionIDs() []string {
	var ids []string
	for _, l := range r.Items {
		for _, o := range l.SelectedOptions {
			ids = append(ids, o.OptionID)
		}
	}
	return ids
}

func (r Request) status(fallback Status) Status {
	if r.PaymentIntentID != nil && strings.TrimSpace(*r.PaymentIntentID) != "" {
		return StatusConfirmed
	}
	if fallback == "" {
		return StatusPending
	}
	return fallback
}
