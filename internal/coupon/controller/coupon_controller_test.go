package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/coupon/service"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
)

type mockCouponService struct {
	ValidateAndApplyFunc func(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*service.ApplyResult, error)
	ListCouponsFunc      func(ctx context.Context) ([]domain.Coupon, error)
	CreateCouponFunc     func(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)
	UpdateCouponFunc     func(ctx context.Context, id string, c domain.Coupon) (*domain.Coupon, error)
	DeleteCouponFunc     func(ctx context.Context, id string) error
}

func (m *mockCouponService) ValidateAndApply(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*service.ApplyResult, error) {
	return m.ValidateAndApplyFunc(ctx, code, subtotal, userID)
}

func (m *mockCouponService) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	return m.ListCouponsFunc(ctx)
}

func (m *mockCouponService) CreateCoupon(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	return m.CreateCouponFunc(ctx, c)
}

func (m *mockCouponService) UpdateCoupon(ctx context.Context, id string, c domain.Coupon) (*domain.Coupon, error) {
	return m.UpdateCouponFunc(ctx, id, c)
}

func (m *mockCouponService) DeleteCoupon(ctx context.Context, id string) error {
	return m.DeleteCouponFunc(ctx, id)
}

func TestApply_Success(t *testing.T) {
	svc := &mockCouponService{
		ValidateAndApplyFunc: func(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*service.ApplyResult, error) {
			assert.Equal(t, "save10", code)
			assert.Equal(t, "user-1", userID)
			return &service.ApplyResult{
				Coupon:   &domain.Coupon{Code: "SAVE10", DiscountType: domain.DiscountTypePercentage},
				Discount: decimal.RequireFromString("200"),
			}, nil
		},
	}
	ctrl := NewCouponController(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/coupons/apply", strings.NewReader(`{"code":"save10","subtotal":"5000"}`))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	ctrl.Apply(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SAVE10", resp.Code)
	assert.True(t, decimal.RequireFromString("200").Equal(resp.Discount))
}

func TestApply_CouponRejected(t *testing.T) {
	svc := &mockCouponService{
		ValidateAndApplyFunc: func(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*service.ApplyResult, error) {
			return nil, apperrors.NewCouponError(apperrors.CouponUsageLimit, "coupon usage limit reached")
		},
	}
	ctrl := NewCouponController(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/coupons/apply", strings.NewReader(`{"code":"X","subtotal":100}`))
	rec := httptest.NewRecorder()
	ctrl.Apply(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "COUPON_USAGE_LIMIT")
	assert.Contains(t, rec.Body.String(), "coupon usage limit reached")
}

func TestApply_RejectsNonPositiveSubtotal(t *testing.T) {
	ctrl := NewCouponController(&mockCouponService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/coupons/apply", strings.NewReader(`{"code":"X","subtotal":0}`))
	rec := httptest.NewRecorder()
	ctrl.Apply(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestCreate_DefaultsActive(t *testing.T) {
	svc := &mockCouponService{
		CreateCouponFunc: func(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
			assert.True(t, c.IsActive)
			c.ID = "c-1"
			return &c, nil
		},
	}
	ctrl := NewCouponController(svc, zap.NewNop())

	body := `{"code":"NEW","discountType":"fixed","discountValue":"50",
		"validFrom":"2026-01-01T00:00:00Z","validUntil":"2026-12-31T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Create(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"c-1"`)
}

func TestDelete_UsesPathParam(t *testing.T) {
	var deleted string
	svc := &mockCouponService{
		DeleteCouponFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	ctrl := NewCouponController(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Delete("/admin/coupons/{couponId}", ctrl.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/coupons/c-9", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "c-9", deleted)
}
