package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            string
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinOrderValue *decimal.Decimal
	MaxDiscount   *decimal.Decimal
	UsageLimit    *int
	UsageCount    int
	PerUserLimit  *int
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DiscountFor computes the discount this coupon grants on subtotal, capped
// at max_discount (percentage only) and at the subtotal itself.
func (c Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = RoundMoney(subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)))
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
	default:
		discount = c.DiscountValue
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return RoundMoney(discount)
}
