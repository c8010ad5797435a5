package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Offer is a promotional code. No checkout flow applies it yet, so UsedCount only
// changes through the admin api.
type Offer struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code          string          `gorm:"size:50;uniqueIndex" json:"code"`
	Name          string          `gorm:"size:200" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	DiscountType  string          `gorm:"size:16;not null" json:"discount_type"`
	Discount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount"`
	MinimumAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"minimum_amount"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidTo       time.Time       `json:"valid_to"`
	UsageLimit    int             `gorm:"not null" json:"usage_limit"`
	UsedCount     int             `gorm:"not null;check:chk_shop_offer_usage,used_count <= usage_limit" json:"used_count"`
	IsActive      bool            `gorm:"index" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName Specify table name
func (Offer) TableName() string {
	return "shop_offer"
}

// IsUsable reports whether the offer applies to an order of subtotal at now
func (o *Offer) IsUsable(now time.Time, subtotal decimal.Decimal) bool {
	if !o.IsActive {
		return false
	}
	if now.Before(o.ValidFrom) || now.After(o.ValidTo) {
		return false
	}
	if o.UsedCount >= o.UsageLimit {
		return false
	}
	return subtotal.GreaterThanOrEqual(o.MinimumAmount)
}

// DiscountFor computes the discount amount for subtotal, rounded to cents
func (o *Offer) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	switch o.DiscountType {
	case DiscountPercentage:
		return subtotal.Mul(o.Discount).Div(hundred).Round(2)
	case DiscountFixed:
		return decimal.Min(o.Discount, subtotal)
	default:
		return decimal.Zero
	}
}

// UsagePercent is used_count / usage_limit as a whole percentage
func (o *Offer) UsagePercent() int {
	if o.UsageLimit <= 0 {
		return 0
	}
	return o.UsedCount * 100 / o.UsageLimit
}

// UsageStatus renders "used/limit (pct%)" with a traffic-light colour
func (o *Offer) UsageStatus() (string, string) {
	pct := o.UsagePercent()
	color := "green"
	switch {
	case pct >= 100:
		color = "red"
	case pct >= 75:
		color = "orange"
	}
	return fmt.Sprintf("%d/%d (%d%%)", o.UsedCount, o.UsageLimit, pct), color
}
