package usecase

import (
	"context"
	"math/rand"
	"strings"
	"time"

	couponservice "storefront/internal/coupon/service"
	deliveryservice "storefront/internal/delivery/service"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/mysql"
	"storefront/internal/order/service"
	"storefront/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error)
}

type CouponApplier interface {
	ValidateAndApply(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*couponservice.ApplyResult, error)
}

type DeliveryQuoter interface {
	CalculateCharge(ctx context.Context, pincode string, subtotal decimal.Decimal) (*deliveryservice.Quote, error)
}

type PaymentVerifier = payment.Verifier

type CartItem struct {
	ProductID    string
	ProductName  string
	ProductImage string
	VariantID    string
	VariantName  string
	Quantity     int
	Price        decimal.Decimal
}

type CheckoutInput struct {
	UserID          string
	Items           []CartItem
	CouponCode      string
	ShippingAddress domain.ShippingAddress
	// DeliveryPincode defaults to the shipping address pincode.
	DeliveryPincode  string
	PaymentMethod    domain.PaymentMethod
	PaymentID        string
	GatewayOrderID   string
	PaymentSignature string
}

// Pricing is the breakdown a cart would be charged.
type Pricing struct {
	Subtotal              decimal.Decimal
	Discount              decimal.Decimal
	DeliveryCharge        decimal.Decimal
	Tax                   decimal.Decimal
	Total                 decimal.Decimal
	CouponCode            string
	IsFreeShipping        bool
	Zone                  domain.Zone
	EstimatedDays         int
	EstimatedDeliveryDate time.Time
}

type CheckoutUseCase struct {
	orders           OrderCreator
	coupons          CouponApplier
	delivery         DeliveryQuoter
	payments         PaymentVerifier
	logger           *zap.Logger
	taxRate          decimal.Decimal
	maxRetryAttempts int
	txTimeout        time.Duration
	backoffs         []time.Duration
	now              func() time.Time
}

// NewCheckoutUseCase builds the checkout flow. payments may be nil, in which
// case any checkout carrying a payment id is rejected.
func NewCheckoutUseCase(
	orders OrderCreator,
	coupons CouponApplier,
	delivery DeliveryQuoter,
	payments PaymentVerifier,
	logger *zap.Logger,
	taxRate decimal.Decimal,
	maxRetryAttempts int,
	txTimeout time.Duration,
) *CheckoutUseCase {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &CheckoutUseCase{
		orders:           orders,
		coupons:          coupons,
		delivery:         delivery,
		payments:         payments,
		logger:           logger,
		taxRate:          taxRate,
		maxRetryAttempts: maxRetryAttempts,
		txTimeout:        txTimeout,
		// attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), then 200ms
		backoffs: []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond},
		now:      time.Now,
	}
}

// Price applies the coupon and the delivery quote to a cart without placing
// an order.
func (uc *CheckoutUseCase) Price(ctx context.Context, in CheckoutInput) (*Pricing, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.NewValidationError("invalid order", apperrors.ValidationDetail{
			Field:   "items",
			Message: "at least one item is required",
		})
	}

	subtotal := decimal.Zero
	for _, it := range in.Items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	subtotal = domain.RoundMoney(subtotal)

	p := &Pricing{Subtotal: subtotal, Discount: decimal.Zero}

	if code := domain.NormalizeCouponCode(in.CouponCode); code != "" {
		res, err := uc.coupons.ValidateAndApply(ctx, code, subtotal, in.UserID)
		if err != nil {
			return nil, err
		}
		p.CouponCode = res.Coupon.Code
		p.Discount = domain.RoundMoney(res.Discount)
	}

	quote, err := uc.delivery.CalculateCharge(ctx, deliveryPincode(in), subtotal)
	if err != nil {
		return nil, err
	}
	p.DeliveryCharge = quote.Charge
	p.IsFreeShipping = quote.IsFreeShipping
	p.Zone = quote.Zone
	p.EstimatedDays = quote.EstimatedDays

	p.Tax = domain.RoundMoney(subtotal.Sub(p.Discount).Mul(uc.taxRate))
	p.Total = domain.ComputeTotal(p.Subtotal, p.Discount, p.DeliveryCharge, p.Tax)
	p.EstimatedDeliveryDate = uc.now().UTC().AddDate(0, 0, p.EstimatedDays)
	return p, nil
}

// Checkout prices the cart and places the order.
func (uc *CheckoutUseCase) Checkout(ctx context.Context, in CheckoutInput) (*domain.Order, error) {
	uc.logger.Info("checkout started",
		zap.String("userId", in.UserID),
		zap.Int("itemCount", len(in.Items)),
		zap.String("paymentMethod", string(in.PaymentMethod)),
	)

	if in.PaymentID != "" {
		if err := uc.verifyPayment(ctx, in); err != nil {
			return nil, err
		}
	}

	pricing, err := uc.Price(ctx, in)
	if err != nil {
		return nil, err
	}
	uc.logger.Debug("cart priced",
		zap.String("userId", in.UserID),
		zap.String("subtotal", pricing.Subtotal.StringFixed(2)),
		zap.String("discount", pricing.Discount.StringFixed(2)),
		zap.String("deliveryCharge", pricing.DeliveryCharge.StringFixed(2)),
		zap.String("zone", string(pricing.Zone)),
	)

	items := make([]domain.OrderItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = domain.OrderItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			VariantID:    it.VariantID,
			VariantName:  it.VariantName,
			Quantity:     it.Quantity,
			Price:        it.Price,
		}
		items[i].Subtotal = items[i].ComputedSubtotal()
	}

	eta := pricing.EstimatedDeliveryDate
	return uc.createWithRetry(ctx, service.CreateOrderInput{
		UserID:                in.UserID,
		Items:                 items,
		Subtotal:              pricing.Subtotal,
		Discount:              pricing.Discount,
		DeliveryCharge:        pricing.DeliveryCharge,
		Tax:                   pricing.Tax,
		Total:                 pricing.Total,
		CouponCode:            pricing.CouponCode,
		ShippingAddress:       in.ShippingAddress,
		DeliveryPincode:       deliveryPincode(in),
		PaymentMethod:         in.PaymentMethod,
		PaymentID:             in.PaymentID,
		GatewayOrderID:        in.GatewayOrderID,
		EstimatedDeliveryDate: &eta,
	})
}

func (uc *CheckoutUseCase) verifyPayment(ctx context.Context, in CheckoutInput) error {
	if uc.payments == nil {
		uc.logger.Warn("payment verification unavailable", zap.String("userId", in.UserID), zap.String("paymentId", in.PaymentID))
		return apperrors.NewValidationError("payment verification failed", apperrors.ValidationDetail{
			Field:   "paymentId",
			Message: "payment verification is not configured",
		})
	}
	ok, err := uc.payments.VerifyPayment(ctx, in.PaymentID, in.GatewayOrderID, in.PaymentSignature)
	if err != nil {
		return err
	}
	if !ok {
		uc.logger.Warn("payment signature mismatch", zap.String("userId", in.UserID), zap.String("paymentId", in.PaymentID))
		return apperrors.NewValidationError("payment verification failed", apperrors.ValidationDetail{
			Field:   "paymentSignature",
			Message: "signature does not match the payment",
		})
	}
	return nil
}

func (uc *CheckoutUseCase) createWithRetry(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
	for attempt := 1; attempt <= uc.maxRetryAttempts; attempt++ {
		order, err := uc.createOnce(ctx, in)
		if err == nil {
			return order, nil
		}

		if !mysql.IsDeadlock(err) {
			return nil, err
		}
		if attempt == uc.maxRetryAttempts {
			break
		}

		wait := uc.backoff(attempt)
		uc.logger.Warn("deadlock detected, retrying",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", uc.maxRetryAttempts),
			zap.String("userId", in.UserID),
			zap.Duration("backoff", wait),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, apperrors.NewDeadlockError("max retries exceeded")
}

func (uc *CheckoutUseCase) createOnce(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
	if uc.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.txTimeout)
		defer cancel()
	}
	return uc.orders.CreateOrder(ctx, in)
}

// backoff returns the wait after a failed attempt with ±20% jitter.
func (uc *CheckoutUseCase) backoff(attempt int) time.Duration {
	if len(uc.backoffs) == 0 {
		return 0
	}
	i := attempt
	if i >= len(uc.backoffs) {
		i = len(uc.backoffs) - 1
	}
	base := uc.backoffs[i]
	jitter := time.Duration(float64(base) * (rand.Float64()*0.4 - 0.2))
	return base + jitter
}

func deliveryPincode(in CheckoutInput) string {
	if p := strings.TrimSpace(in.DeliveryPincode); p != "" {
		return p
	}
	return strings.TrimSpace(in.ShippingAddress.Pincode)
}
