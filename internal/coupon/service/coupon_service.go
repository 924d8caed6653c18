package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	FindByID(ctx context.Context, id string) (*domain.Coupon, error)
	List(ctx context.Context) ([]domain.Coupon, error)
	Insert(ctx context.Context, c *domain.Coupon) error
	Update(ctx context.Context, c *domain.Coupon) error
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, code string) error
}

type ApplyResult struct {
	Coupon   *domain.Coupon
	Discount decimal.Decimal
}

type CouponService struct {
	repo    CouponRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewCouponService(repo CouponRepository, m *metrics.Metrics, logger *zap.Logger) *CouponService {
	return &CouponService{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ValidateAndApply checks the coupon constraints in a fixed order and
// returns the discount it grants on subtotal. It never touches usageCount.
func (s *CouponService) ValidateAndApply(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*ApplyResult, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, s.reject(apperrors.CouponInvalid, "invalid coupon code")
	}
	if subtotal.IsNegative() {
		return nil, apperrors.NewValidationError("subtotal must be non-negative", apperrors.ValidationDetail{
			Field:   "subtotal",
			Message: "subtotal must be non-negative",
		})
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return nil, s.reject(apperrors.CouponInvalid, "invalid coupon code")
		}
		// Driver errors are logged here and never shown to the shopper.
		s.logger.Error("coupon lookup failed", zap.String("couponCode", code), zap.Error(err))
		return nil, apperrors.NewInternalError("unable to validate coupon, please try again", nil)
	}

	now := s.now()
	switch {
	case !coupon.IsActive:
		return nil, s.reject(apperrors.CouponInactive, "coupon is no longer active")
	case now.Before(coupon.ValidFrom):
		return nil, s.reject(apperrors.CouponNotYetValid, "coupon is not yet valid")
	case now.After(coupon.ValidUntil):
		return nil, s.reject(apperrors.CouponExpired,
			fmt.Sprintf("coupon expired on %s", coupon.ValidUntil.Format("2006-01-02")))
	case coupon.MinOrderValue != nil && subtotal.LessThan(*coupon.MinOrderValue):
		return nil, s.reject(apperrors.CouponMinOrderValue,
			fmt.Sprintf("minimum order value of %s required", coupon.MinOrderValue.StringFixed(2)))
	case coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit:
		return nil, s.reject(apperrors.CouponUsageLimit, "coupon usage limit reached")
	}

	discount := coupon.DiscountFor(subtotal)
	s.logger.Debug("coupon applied",
		zap.String("couponCode", code),
		zap.String("userId", userID),
		zap.String("subtotal", subtotal.StringFixed(2)),
		zap.String("discount", discount.StringFixed(2)),
	)

	return &ApplyResult{Coupon: coupon, Discount: discount}, nil
}

func (s *CouponService) reject(reason apperrors.CouponReason, message string) error {
	s.metrics.CouponRejected(string(reason))
	return apperrors.NewCouponError(reason, message)
}

func (s *CouponService) IncrementUsage(ctx context.Context, code string) error {
	return s.repo.IncrementUsage(ctx, domain.NormalizeCouponCode(code))
}

func (s *CouponService) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	return s.repo.List(ctx)
}

func (s *CouponService) CreateCoupon(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	c.Code = domain.NormalizeCouponCode(c.Code)
	if err := validateCoupon(c); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c.ID = uuid.New().String()
	c.UsageCount = 0
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Insert(ctx, &c); err != nil {
		return nil, err
	}
	s.logger.Info("coupon created", zap.String("couponId", c.ID), zap.String("couponCode", c.Code))
	return &c, nil
}

func (s *CouponService) UpdateCoupon(ctx context.Context, id string, c domain.Coupon) (*domain.Coupon, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Code = domain.NormalizeCouponCode(c.Code)
	if err := validateCoupon(c); err != nil {
		return nil, err
	}

	c.ID = existing.ID
	c.UsageCount = existing.UsageCount
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &c); err != nil {
		return nil, err
	}
	s.logger.Info("coupon updated", zap.String("couponId", c.ID), zap.String("couponCode", c.Code))
	return &c, nil
}

func (s *CouponService) DeleteCoupon(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("coupon deleted", zap.String("couponId", id))
	return nil
}

var hundred = decimal.NewFromInt(100)

func validateCoupon(c domain.Coupon) error {
	var details []apperrors.ValidationDetail
	add := func(field, msg string) {
		details = append(details, apperrors.ValidationDetail{Field: field, Message: msg})
	}

	if c.Code == "" || strings.ContainsAny(c.Code, " \t") {
		add("code", "code is required and must not contain spaces")
	}
	switch c.DiscountType {
	case domain.DiscountTypePercentage:
		if c.DiscountValue.GreaterThan(hundred) {
			add("discountValue", "percentage discount must not exceed 100")
		}
	case domain.DiscountTypeFixed:
		if c.MaxDiscount != nil {
			add("maxDiscount", "maxDiscount only applies to percentage coupons")
		}
	default:
		add("discountType", "discountType must be percentage or fixed")
	}
	if !c.DiscountValue.IsPositive() {
		add("discountValue", "discountValue must be greater than 0")
	}
	if c.MinOrderValue != nil && c.MinOrderValue.IsNegative() {
		add("minOrderValue", "minOrderValue must be non-negative")
	}
	if c.MaxDiscount != nil && !c.MaxDiscount.IsPositive() {
		add("maxDiscount", "maxDiscount must be greater than 0")
	}
	if c.UsageLimit != nil && *c.UsageLimit < 1 {
		add("usageLimit", "usageLimit must be at least 1")
	}
	if c.PerUserLimit != nil && *c.PerUserLimit < 1 {
		add("perUserLimit", "perUserLimit must be at least 1")
	}
	if c.ValidFrom.IsZero() || c.ValidUntil.IsZero() || !c.ValidUntil.After(c.ValidFrom) {
		add("validUntil", "validUntil must be after validFrom")
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
