package offer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type enumerates the persisted offer types.
type Type string

const (
	TypeBundle            Type = "bundle"
	TypeBuyXGetY          Type = "buy_x_get_y"
	TypePromoCode         Type = "promo_code"
	TypeThresholdDiscount Type = "threshold_discount"
	TypeHappyHour         Type = "happy_hour"
)

// ErrUnknownType is returned when an offer row carries an unsupported type.
var ErrUnknownType = errors.New("unknown offer type")

// Config is the decoded offer configuration. The concrete types below are the
// only implementations.
type Config interface {
	Type() Type
	isConfig()
}

// BundleCategory is one "pick N from these categories" slot of a bundle.
type BundleCategory struct {
	CategoryIDs   []string            `json:"categoryIds"`
	Quantity      int                 `json:"quantity"`
	ExcludedItems []string            `json:"excludedItems,omitempty"`
	Supplements   map[string]int64    `json:"supplements,omitempty"`
	ExcludedSizes map[string][]string `json:"excludedSizes,omitempty"`
}

// BundleConfig prices a combo at a fixed amount.
type BundleConfig struct {
	Kind             string           `json:"type"`
	FixedPriceCents  int64            `json:"fixedPriceCents"`
	BundleCategories []BundleCategory `json:"bundleCategories,omitempty"`
	FreeOptions      bool             `json:"freeOptions,omitempty"`
}

// BuyXGetYConfig rewards RewardQuantity items once TriggerQuantity items are bought.
type BuyXGetYConfig struct {
	Kind                 string   `json:"type"`
	TriggerQuantity      int      `json:"triggerQuantity"`
	RewardQuantity       int      `json:"rewardQuantity"`
	RewardType           string   `json:"rewardType"`
	RewardValueCents     *int64   `json:"rewardValueCents,omitempty"`
	TriggerCategoryIDs   []string `json:"triggerCategoryIds,omitempty"`
	RewardCategoryIDs    []string `json:"rewardCategoryIds,omitempty"`
	TriggerExcludedItems []string `json:"triggerExcludedItems,omitempty"`
	RewardExcludedItems  []string `json:"rewardExcludedItems,omitempty"`
}

// PromoCodeConfig is an offer unlocked by a code.
type PromoCodeConfig struct {
	Code                string `json:"code"`
	DiscountType        string `json:"discountType"`
	DiscountValue       int64  `json:"discountValue"`
	MinOrderAmountCents *int64 `json:"minOrderAmountCents,omitempty"`
	MaxDiscountCents    *int64 `json:"maxDiscountCents,omitempty"`
}

// ThresholdConfig discounts carts reaching MinAmountCents.
type ThresholdConfig struct {
	MinAmountCents int64  `json:"minAmountCents"`
	DiscountType   string `json:"discountType"`
	DiscountValue  int64  `json:"discountValue"`
}

// HappyHourConfig discounts orders placed within a weekly time window.
type HappyHourConfig struct {
	TimeStart     string  `json:"timeStart"`
	TimeEnd       string  `json:"timeEnd"`
	DaysOfWeek    []int   `json:"daysOfWeek"`
	DiscountType  string  `json:"discountType"`
	DiscountValue int64   `json:"discountValue"`
	AppliesTo     string  `json:"appliesTo"`
	CategoryID    *string `json:"categoryId,omitempty"`
}

func (BundleConfig) Type() Type    { return TypeBundle }
func (BuyXGetYConfig) Type() Type  { return TypeBuyXGetY }
func (PromoCodeConfig) Type() Type { return TypePromoCode }
func (ThresholdConfig) Type() Type { return TypeThresholdDiscount }
func (HappyHourConfig) Type() Type { return TypeHappyHour }

func (BundleConfig) isConfig()    {}
func (BuyXGetYConfig) isConfig()  {}
func (PromoCodeConfig) isConfig() {}
func (ThresholdConfig) isConfig() {}
func (HappyHourConfig) isConfig() {}

// DecodeConfig decodes the JSON configuration stored for an offer of type t.
// An empty document decodes to the zero config of that type.
func DecodeConfig(t Type, raw []byte) (Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}
	var (
		cfg Config
		err error
	)
	switch t {
	case TypeBundle:
		var c BundleConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeBuyXGetY:
		var c BuyXGetYConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypePromoCode:
		var c PromoCodeConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeThresholdDiscount:
		var c ThresholdConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case TypeHappyHour:
		var c HappyHourConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s offer config: %w", t, err)
	}
	return cfg, nil
}
