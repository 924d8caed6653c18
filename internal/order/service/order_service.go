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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("storefront/order")

const (
	createdNote         = "Order created"
	defaultCancelReason = "Cancelled by customer"
	adminCancelReason   = "Cancelled by store"
)

type OrderRepository interface {
	NextSequence(ctx context.Context, year int) (int64, error)
	Insert(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByNumber(ctx context.Context, number string) (*domain.Order, error)
	Find(ctx context.Context, f domain.OrderFilter, p domain.Page) ([]domain.Order, error)
	Count(ctx context.Context, f domain.OrderFilter) (int, error)
	UpdateLifecycle(ctx context.Context, o *domain.Order, expectedVersion int) error
}

type ItemRepository interface {
	InsertBatch(ctx context.Context, items []domain.OrderItem) error
	FindByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error)
}

// Notifier receives lifecycle events. Implementations must not block and
// must absorb their own failures.
type Notifier interface {
	OrderCreated(ctx context.Context, o *domain.Order)
	StatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus)
	OrderCancelled(ctx context.Context, o *domain.Order)
}

type CouponUsage interface {
	IncrementUsage(ctx context.Context, code string) error
}

type CreateOrderInput struct {
	UserID                string
	Items                 []domain.OrderItem
	Subtotal              decimal.Decimal
	Discount              decimal.Decimal
	DeliveryCharge        decimal.Decimal
	Tax                   decimal.Decimal
	Total                 decimal.Decimal
	CouponCode            string
	ShippingAddress       domain.ShippingAddress
	DeliveryPincode       string
	PaymentMethod         domain.PaymentMethod
	PaymentID             string
	GatewayOrderID        string
	EstimatedDeliveryDate *time.Time
}

type UpdateStatusInput struct {
	OrderID   string
	Status    domain.OrderStatus
	UpdatedBy string
	Notes     string

	// ExpectedVersion, when non-zero, must match the stored version.
	ExpectedVersion int

	TrackingNumber string
	TrackingURL    string
	CourierName    string
}

type CancelOrderInput struct {
	OrderID string
	UserID  string
	Reason  string
}

type OrderService struct {
	orders   OrderRepository
	items    ItemRepository
	coupons  CouponUsage
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(
	orders OrderRepository,
	items ItemRepository,
	coupons CouponUsage,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		items:    items,
		coupons:  coupons,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int("order.items", len(in.Items)),
	))
	defer span.End()

	order, err := s.createOrder(ctx, in)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	in.CouponCode = domain.NormalizeCouponCode(in.CouponCode)
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	seq, err := s.orders.NextSequence(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:                    uuid.New().String(),
		OrderNumber:           domain.FormatOrderNumber(now.Year(), seq),
		UserID:                in.UserID,
		Subtotal:              domain.RoundMoney(in.Subtotal),
		Discount:              domain.RoundMoney(in.Discount),
		DeliveryCharge:        domain.RoundMoney(in.DeliveryCharge),
		Tax:                   domain.RoundMoney(in.Tax),
		Total:                 domain.RoundMoney(in.Total),
		CouponCode:            in.CouponCode,
		ShippingAddress:       in.ShippingAddress,
		DeliveryPincode:       strings.TrimSpace(in.DeliveryPincode),
		PaymentMethod:         in.PaymentMethod,
		PaymentStatus:         domain.PaymentStatusPending,
		PaymentID:             in.PaymentID,
		GatewayOrderID:        in.GatewayOrderID,
		Status:                domain.OrderStatusPending,
		EstimatedDeliveryDate: in.EstimatedDeliveryDate,
		CreatedAt:             now,
		UpdatedAt:             now,
		Version:               1,
	}
	// A transaction id at creation means payment was already captured.
	if in.PaymentID != "" {
		order.Status = domain.OrderStatusConfirmed
		order.PaymentStatus = domain.PaymentStatusCompleted
	}
	order.AppendHistory(order.Status, now, in.UserID, createdNote)

	items := make([]domain.OrderItem, len(in.Items))
	for i, it := range in.Items {
		it.ID = uuid.New().String()
		it.OrderID = order.ID
		items[i] = it
	}

	logger := s.logger.With(zap.String("orderId", order.ID), zap.String("orderNumber", order.OrderNumber))

	if err := s.orders.Insert(ctx, order); err != nil {
		logger.Error("failed to insert order", zap.Error(err))
		return nil, err
	}

	if err := s.items.InsertBatch(ctx, items); err != nil {
		logger.Error("failed to insert order items, removing order header", zap.Error(err))
		if derr := s.orders.Delete(context.WithoutCancel(ctx), order.ID); derr != nil {
			logger.Error("compensating delete failed", zap.Error(derr))
		}
		return nil, fmt.Errorf("saving order items: %w", err)
	}
	order.Items = items

	if order.CouponCode != "" && s.coupons != nil {
		if err := s.coupons.IncrementUsage(ctx, order.CouponCode); err != nil {
			logger.Error("failed to increment coupon usage", zap.String("couponCode", order.CouponCode), zap.Error(err))
		}
	}

	s.metrics.OrderCreated(string(order.Status), string(order.PaymentMethod))
	logger.Info("order created",
		zap.String("status", string(order.Status)),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("itemCount", len(items)),
	)

	s.notifier.OrderCreated(ctx, order)
	return order, nil
}

// UpdateOrderStatus moves an order along the transition table. The write is
// conditional on the version read, so a concurrent writer makes it fail with
// a ConflictError rather than overwrite.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, in UpdateStatusInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.String("order.target_status", string(in.Status)),
	))
	defer span.End()

	order, err := s.updateOrderStatus(ctx, in)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return order, nil
}

func (s *OrderService) updateOrderStatus(ctx context.Context, in UpdateStatusInput) (*domain.Order, error) {
	if err := validateUpdateInput(in); err != nil {
		return nil, err
	}

	current, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if in.ExpectedVersion != 0 && current.Version != in.ExpectedVersion {
		return nil, apperrors.NewConflictError(fmt.Sprintf(
			"order %s has changed (version %d, expected %d), reload and retry",
			current.OrderNumber, current.Version, in.ExpectedVersion,
		))
	}
	if !domain.CanTransition(current.Status, in.Status) {
		return nil, apperrors.NewInvalidTransitionError(string(current.Status), string(in.Status))
	}

	now := s.now().UTC()
	next := current.Clone()
	next.Status = in.Status
	next.UpdatedAt = now
	next.AppendHistory(in.Status, now, in.UpdatedBy, in.Notes)

	switch in.Status {
	case domain.OrderStatusShipped:
		if in.TrackingNumber != "" {
			next.TrackingNumber = in.TrackingNumber
		}
		if in.TrackingURL != "" {
			next.TrackingURL = in.TrackingURL
		}
		if in.CourierName != "" {
			next.CourierName = in.CourierName
		}
	case domain.OrderStatusCancelled:
		reason := in.Notes
		if reason == "" {
			reason = adminCancelReason
		}
		applyCancellation(next, now, reason)
	}

	if err := s.orders.UpdateLifecycle(ctx, next, current.Version); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1

	if err := s.attachItems(ctx, next); err != nil {
		return nil, err
	}

	s.metrics.StatusTransition(string(current.Status), string(next.Status))
	s.logger.Info("order status updated",
		zap.String("orderId", next.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("updatedBy", in.UpdatedBy),
	)

	if next.Status == domain.OrderStatusCancelled {
		s.notifier.OrderCancelled(ctx, next)
	} else {
		s.notifier.StatusChanged(ctx, next, current.Status)
	}
	return next, nil
}

// CancelOrder cancels a pending or confirmed order on behalf of its owner.
// Orders of other users are reported as not found.
func (s *OrderService) CancelOrder(ctx context.Context, in CancelOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
	))
	defer span.End()

	order, err := s.cancelOrder(ctx, in)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return order, nil
}

func (s *OrderService) cancelOrder(ctx context.Context, in CancelOrderInput) (*domain.Order, error) {
	if err := validateCancelInput(in); err != nil {
		return nil, err
	}

	current, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if current.UserID != in.UserID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order with id %s not found", in.OrderID))
	}
	if !domain.IsCancellable(current.Status) {
		return nil, apperrors.NewNotCancellableError(string(current.Status))
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	now := s.now().UTC()
	next := current.Clone()
	next.Status = domain.OrderStatusCancelled
	next.UpdatedAt = now
	next.AppendHistory(domain.OrderStatusCancelled, now, in.UserID, reason)
	applyCancellation(next, now, reason)

	if err := s.orders.UpdateLifecycle(ctx, next, current.Version); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1

	if err := s.attachItems(ctx, next); err != nil {
		return nil, err
	}

	s.metrics.StatusTransition(string(current.Status), string(next.Status))
	s.logger.Info("order cancelled",
		zap.String("orderId", next.ID),
		zap.String("from", string(current.Status)),
		zap.String("paymentStatus", string(next.PaymentStatus)),
	)

	s.notifier.OrderCancelled(ctx, next)
	return next, nil
}

func applyCancellation(o *domain.Order, at time.Time, reason string) {
	o.CancelledAt = &at
	o.CancellationReason = reason
	if o.PaymentStatus == domain.PaymentStatusCompleted {
		o.PaymentStatus = domain.PaymentStatusRefunded
	}
}

// GetOrders lists orders newest first. A search term is matched against the
// order number; when nothing matches, the shipping name and phone are
// scanned instead.
func (s *OrderService) GetOrders(ctx context.Context, f domain.OrderFilter, p domain.Page) (*domain.OrderPage, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrders")
	defer span.End()

	page, err := s.getOrders(ctx, f, p.Normalize())
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.total", page.Total))
	return page, nil
}

func (s *OrderService) getOrders(ctx context.Context, f domain.OrderFilter, p domain.Page) (*domain.OrderPage, error) {
	f, total, err := domain.ResolveSearch(f, func(f domain.OrderFilter) (int, error) {
		return s.orders.Count(ctx, f)
	})
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.Find(ctx, f, p)
	if err != nil {
		return nil, err
	}

	if err := s.attachItemsAll(ctx, orders); err != nil {
		return nil, err
	}
	return domain.NewOrderPage(orders, total, p), nil
}

// GetOrderByID returns the order with its items. With a non-empty userID,
// orders owned by someone else are reported as not found.
func (s *OrderService) GetOrderByID(ctx context.Context, id, userID string) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && o.UserID != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	if err := s.attachItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, number, userID string) (*domain.Order, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	o, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if userID != "" && o.UserID != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", number))
	}
	if err := s.attachItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// AllowedTransitions lists the statuses the order can move to next.
func (s *OrderService) AllowedTransitions(ctx context.Context, id string) ([]domain.OrderStatus, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.AllowedTransitions(o.Status), nil
}

func (s *OrderService) attachItems(ctx context.Context, o *domain.Order) error {
	byOrder, err := s.items.FindByOrderIDs(ctx, []string{o.ID})
	if err != nil {
		return err
	}
	o.Items = byOrder[o.ID]
	return nil
}

func (s *OrderService) attachItemsAll(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	byOrder, err := s.items.FindByOrderIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
