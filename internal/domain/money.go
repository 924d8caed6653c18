package domain

import "github.com/shopspring/decimal"

// RoundMoney rounds to 2 decimals, half away from zero (half-up for the
// non-negative amounts this package deals with).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeTotal returns round(subtotal - discount + deliveryCharge + tax, 2).
func ComputeTotal(subtotal, discount, deliveryCharge, tax decimal.Decimal) decimal.Decimal {
	return RoundMoney(subtotal.Sub(discount).Add(deliveryCharge).Add(tax))
}
