package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/domain"
	orderctrl "storefront/internal/order/controller"
	"storefront/internal/order/service"
	"storefront/internal/order/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOrderService struct {
	allowed []domain.OrderStatus
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, in service.UpdateStatusInput) (*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) CancelOrder(ctx context.Context, in service.CancelOrderInput) (*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) GetOrders(ctx context.Context, f domain.OrderFilter, p domain.Page) (*domain.OrderPage, error) {
	return domain.NewOrderPage(nil, 0, p.Normalize()), nil
}

func (s *stubOrderService) GetOrderByID(ctx context.Context, id, userID string) (*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) GetOrderByNumber(ctx context.Context, number, userID string) (*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) AllowedTransitions(ctx context.Context, id string) ([]domain.OrderStatus, error) {
	return s.allowed, nil
}

type stubCheckout struct{}

func (stubCheckout) Checkout(ctx context.Context, in usecase.CheckoutInput) (*domain.Order, error) {
	return nil, nil
}

func (stubCheckout) Price(ctx context.Context, in usecase.CheckoutInput) (*usecase.Pricing, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_test_total", Help: "test"}))

	svc := &stubOrderService{allowed: []domain.OrderStatus{domain.OrderStatusShipped}}
	return NewRouter(Controllers{
		Orders: orderctrl.NewOrderController(stubCheckout{}, svc, zap.NewNop()),
	}, reg, zap.NewNop())
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_test_total")
}

func TestRouter_OrderRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders/order-1/transitions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"shipped"`))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
