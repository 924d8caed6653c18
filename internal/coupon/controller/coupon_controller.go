package controller

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/commons"
	"storefront/internal/coupon/service"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CouponService interface {
	ValidateAndApply(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*service.ApplyResult, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	CreateCoupon(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)
	UpdateCoupon(ctx context.Context, id string, c domain.Coupon) (*domain.Coupon, error)
	DeleteCoupon(ctx context.Context, id string) error
}

type CouponController struct {
	svc    CouponService
	logger *zap.Logger
}

func NewCouponController(svc CouponService, logger *zap.Logger) *CouponController {
	return &CouponController{svc: svc, logger: logger}
}

type applyRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type applyResponse struct {
	TraceID      string          `json:"traceId"`
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Discount     decimal.Decimal `json:"discount"`
}

type couponRequest struct {
	Code          string           `json:"code"`
	Description   string           `json:"description"`
	DiscountType  string           `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount"`
	UsageLimit    *int             `json:"usageLimit"`
	PerUserLimit  *int             `json:"perUserLimit"`
	ValidFrom     time.Time        `json:"validFrom"`
	ValidUntil    time.Time        `json:"validUntil"`
	IsActive      *bool            `json:"isActive"`
}

func (r couponRequest) toDomain() domain.Coupon {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return domain.Coupon{
		Code:          r.Code,
		Description:   r.Description,
		DiscountType:  domain.DiscountType(r.DiscountType),
		DiscountValue: r.DiscountValue,
		MinOrderValue: r.MinOrderValue,
		MaxDiscount:   r.MaxDiscount,
		UsageLimit:    r.UsageLimit,
		PerUserLimit:  r.PerUserLimit,
		ValidFrom:     r.ValidFrom,
		ValidUntil:    r.ValidUntil,
		IsActive:      active,
	}
}

type couponResponse struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	Description   string           `json:"description"`
	DiscountType  string           `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit    *int             `json:"usageLimit,omitempty"`
	UsageCount    int              `json:"usageCount"`
	PerUserLimit  *int             `json:"perUserLimit,omitempty"`
	ValidFrom     time.Time        `json:"validFrom"`
	ValidUntil    time.Time        `json:"validUntil"`
	IsActive      bool             `json:"isActive"`
}

func toCouponResponse(c domain.Coupon) couponResponse {
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		Description:   c.Description,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
		MinOrderValue: c.MinOrderValue,
		MaxDiscount:   c.MaxDiscount,
		UsageLimit:    c.UsageLimit,
		UsageCount:    c.UsageCount,
		PerUserLimit:  c.PerUserLimit,
		ValidFrom:     c.ValidFrom,
		ValidUntil:    c.ValidUntil,
		IsActive:      c.IsActive,
	}
}

func (c *CouponController) Apply(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req applyRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}
	if !req.Subtotal.IsPositive() {
		commons.WriteError(w, traceID, apperrors.NewValidationError("subtotal must be greater than 0", apperrors.ValidationDetail{
			Field:   "subtotal",
			Message: "subtotal must be greater than 0",
		}), c.logger)
		return
	}

	res, err := c.svc.ValidateAndApply(r.Context(), req.Code, req.Subtotal, commons.UserID(r))
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, applyResponse{
		TraceID:      traceID,
		Code:         res.Coupon.Code,
		DiscountType: string(res.Coupon.DiscountType),
		Discount:     res.Discount,
	}, c.logger)
}

func (c *CouponController) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := c.svc.ListCoupons(r.Context())
	if err != nil {
		commons.WriteError(w, commons.NewTraceID(), err, c.logger)
		return
	}

	resp := make([]couponResponse, len(coupons))
	for i, cp := range coupons {
		resp[i] = toCouponResponse(cp)
	}
	commons.WriteJSON(w, http.StatusOK, resp, c.logger)
}

func (c *CouponController) Create(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req couponRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	created, err := c.svc.CreateCoupon(r.Context(), req.toDomain())
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusCreated, toCouponResponse(*created), c.logger)
}

func (c *CouponController) Update(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req couponRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	updated, err := c.svc.UpdateCoupon(r.Context(), chi.URLParam(r, "couponId"), req.toDomain())
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toCouponResponse(*updated), c.logger)
}

func (c *CouponController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.DeleteCoupon(r.Context(), chi.URLParam(r, "couponId")); err != nil {
		commons.WriteError(w, commons.NewTraceID(), err, c.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
