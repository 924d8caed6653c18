package service

import (
	"fmt"
	"strings"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
)

type validator struct {
	details []apperrors.ValidationDetail
}

func (v *validator) add(field, format string, args ...interface{}) {
	v.details = append(v.details, apperrors.ValidationDetail{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// noCardNumbers rejects free text carrying a card-number shaped digit run,
// which must never reach the store.
func (v *validator) noCardNumbers(fields ...[2]string) {
	for _, f := range fields {
		if domain.ContainsCardNumber(f[1]) {
			v.add(f[0], "%s must not contain payment card data", f[0])
		}
	}
}

func (v *validator) err(message string) error {
	if len(v.details) == 0 {
		return nil
	}
	return apperrors.NewValidationError(message, v.details...)
}

func validateCreateInput(in CreateOrderInput) error {
	v := &validator{}

	if strings.TrimSpace(in.UserID) == "" {
		v.add("userId", "userId is required")
	}

	if len(in.Items) == 0 {
		v.add("items", "at least one item is required")
	}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ProductID) == "" {
			v.add(field+".productId", "productId is required")
		}
		if strings.TrimSpace(it.ProductName) == "" {
			v.add(field+".productName", "productName is required")
		}
		if it.Quantity <= 0 {
			v.add(field+".quantity", "quantity must be a positive integer")
		}
		if it.Price.IsNegative() {
			v.add(field+".price", "price must be non-negative")
		}
		if !it.Subtotal.Equal(it.ComputedSubtotal()) {
			v.add(field+".subtotal", "subtotal must equal price * quantity (%s)", it.ComputedSubtotal().StringFixed(2))
		}
		v.noCardNumbers(
			[2]string{field + ".productName", it.ProductName},
			[2]string{field + ".variantName", it.VariantName},
		)
	}

	if !in.Subtotal.IsPositive() {
		v.add("subtotal", "subtotal must be greater than 0")
	}
	if in.Discount.IsNegative() {
		v.add("discount", "discount must be non-negative")
	}
	if in.DeliveryCharge.IsNegative() {
		v.add("deliveryCharge", "deliveryCharge must be non-negative")
	}
	if in.Tax.IsNegative() {
		v.add("tax", "tax must be non-negative")
	}
	if !in.Total.IsPositive() {
		v.add("total", "total must be greater than 0")
	} else if want := domain.ComputeTotal(in.Subtotal, in.Discount, in.DeliveryCharge, in.Tax); !domain.RoundMoney(in.Total).Equal(want) {
		v.add("total", "total must equal subtotal - discount + deliveryCharge + tax (%s)", want.StringFixed(2))
	}

	for _, name := range in.ShippingAddress.MissingFields() {
		v.add("shippingAddress."+name, "%s is required", name)
	}
	a := in.ShippingAddress
	v.noCardNumbers(
		[2]string{"shippingAddress.name", a.Name},
		[2]string{"shippingAddress.phone", a.Phone},
		[2]string{"shippingAddress.street", a.Street},
		[2]string{"shippingAddress.city", a.City},
		[2]string{"shippingAddress.state", a.State},
		[2]string{"shippingAddress.country", a.Country},
		[2]string{"couponCode", in.CouponCode},
	)

	if strings.TrimSpace(in.DeliveryPincode) == "" {
		v.add("deliveryPincode", "deliveryPincode is required")
	}
	if in.PaymentMethod == "" {
		v.add("paymentMethod", "paymentMethod is required")
	} else if !in.PaymentMethod.Valid() {
		v.add("paymentMethod", "paymentMethod must be one of gateway, cod")
	}
	if in.PaymentID != "" && !domain.IsValidPaymentID(in.PaymentID) {
		v.add("paymentId", "paymentId must be an opaque gateway transaction id")
	}
	if in.GatewayOrderID != "" && !domain.IsValidGatewayOrderID(in.GatewayOrderID) {
		v.add("gatewayOrderId", "gatewayOrderId must be an opaque gateway order id")
	}

	return v.err("invalid order")
}

func validateUpdateInput(in UpdateStatusInput) error {
	v := &validator{}

	if strings.TrimSpace(in.OrderID) == "" {
		v.add("orderId", "orderId is required")
	}
	if !in.Status.Valid() {
		v.add("status", "unknown status %q", in.Status)
	}
	if strings.TrimSpace(in.UpdatedBy) == "" {
		v.add("updatedBy", "updatedBy is required")
	}
	if in.ExpectedVersion < 0 {
		v.add("expectedVersion", "expectedVersion must be positive")
	}
	v.noCardNumbers(
		[2]string{"notes", in.Notes},
		[2]string{"courierName", in.CourierName},
	)

	return v.err("invalid status update")
}

func validateCancelInput(in CancelOrderInput) error {
	v := &validator{}

	if strings.TrimSpace(in.OrderID) == "" {
		v.add("orderId", "orderId is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		v.add("userId", "userId is required")
	}
	v.noCardNumbers([2]string{"reason", in.Reason})

	return v.err("invalid cancellation")
}
