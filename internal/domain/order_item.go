package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID           string
	OrderID      string
	ProductID    string
	ProductName  string
	ProductImage string
	VariantID    string
	VariantName  string
	Quantity     int
	Price        decimal.Decimal
	Subtotal     decimal.Decimal
}

// ComputedSubtotal is price * quantity rounded to money precision.
func (i OrderItem) ComputedSubtotal() decimal.Decimal {
	return RoundMoney(i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
