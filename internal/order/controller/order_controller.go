package controller

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/commons"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/order/service"
	"storefront/internal/order/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutUseCase interface {
	Checkout(ctx context.Context, in usecase.CheckoutInput) (*domain.Order, error)
	Price(ctx context.Context, in usecase.CheckoutInput) (*usecase.Pricing, error)
}

type OrderService interface {
	UpdateOrderStatus(ctx context.Context, in service.UpdateStatusInput) (*domain.Order, error)
	CancelOrder(ctx context.Context, in service.CancelOrderInput) (*domain.Order, error)
	GetOrders(ctx context.Context, f domain.OrderFilter, p domain.Page) (*domain.OrderPage, error)
	GetOrderByID(ctx context.Context, id, userID string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, number, userID string) (*domain.Order, error)
	AllowedTransitions(ctx context.Context, id string) ([]domain.OrderStatus, error)
}

type OrderController struct {
	checkout CheckoutUseCase
	svc      OrderService
	logger   *zap.Logger
}

func NewOrderController(checkout CheckoutUseCase, svc OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{checkout: checkout, svc: svc, logger: logger}
}

type cartItemRequest struct {
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage"`
	VariantID    string          `json:"variantId"`
	VariantName  string          `json:"variantName"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

type addressPayload struct {
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Street    string   `json:"street"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Pincode   string   `json:"pincode"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (a addressPayload) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:      a.Name,
		Phone:     a.Phone,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		Country:   a.Country,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
	}
}

type checkoutRequest struct {
	Items            []cartItemRequest `json:"items"`
	CouponCode       string            `json:"couponCode"`
	ShippingAddress  addressPayload    `json:"shippingAddress"`
	DeliveryPincode  string            `json:"deliveryPincode"`
	PaymentMethod    string            `json:"paymentMethod"`
	PaymentID        string            `json:"paymentId"`
	GatewayOrderID   string            `json:"gatewayOrderId"`
	PaymentSignature string            `json:"paymentSignature"`
}

func (req checkoutRequest) toInput(userID string) usecase.CheckoutInput {
	items := make([]usecase.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = usecase.CartItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			VariantID:    it.VariantID,
			VariantName:  it.VariantName,
			Quantity:     it.Quantity,
			Price:        it.Price,
		}
	}
	return usecase.CheckoutInput{
		UserID:           userID,
		Items:            items,
		CouponCode:       req.CouponCode,
		ShippingAddress:  req.ShippingAddress.toDomain(),
		DeliveryPincode:  req.DeliveryPincode,
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		PaymentID:        req.PaymentID,
		GatewayOrderID:   req.GatewayOrderID,
		PaymentSignature: req.PaymentSignature,
	}
}

type pricingResponse struct {
	TraceID               string          `json:"traceId"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	DeliveryCharge        decimal.Decimal `json:"deliveryCharge"`
	Tax                   decimal.Decimal `json:"tax"`
	Total                 decimal.Decimal `json:"total"`
	CouponCode            string          `json:"couponCode,omitempty"`
	IsFreeShipping        bool            `json:"isFreeShipping"`
	Zone                  string          `json:"zone"`
	EstimatedDeliveryDate time.Time       `json:"estimatedDeliveryDate"`
}

type orderItemResponse struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage,omitempty"`
	VariantID    string          `json:"variantId,omitempty"`
	VariantName  string          `json:"variantName,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type historyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy"`
	Notes     string    `json:"notes,omitempty"`
}

type orderResponse struct {
	ID                    string              `json:"id"`
	OrderNumber           string              `json:"orderNumber"`
	UserID                string              `json:"userId"`
	Items                 []orderItemResponse `json:"items"`
	Subtotal              decimal.Decimal     `json:"subtotal"`
	Discount              decimal.Decimal     `json:"discount"`
	DeliveryCharge        decimal.Decimal     `json:"deliveryCharge"`
	Tax                   decimal.Decimal     `json:"tax"`
	Total                 decimal.Decimal     `json:"total"`
	CouponCode            string              `json:"couponCode,omitempty"`
	ShippingAddress       addressPayload      `json:"shippingAddress"`
	DeliveryPincode       string              `json:"deliveryPincode"`
	PaymentMethod         string              `json:"paymentMethod"`
	PaymentStatus         string              `json:"paymentStatus"`
	PaymentID             string              `json:"paymentId,omitempty"`
	GatewayOrderID        string              `json:"gatewayOrderId,omitempty"`
	Status                string              `json:"status"`
	StatusHistory         []historyResponse   `json:"statusHistory"`
	TrackingNumber        string              `json:"trackingNumber,omitempty"`
	TrackingURL           string              `json:"trackingUrl,omitempty"`
	CourierName           string              `json:"courierName,omitempty"`
	CancelledAt           *time.Time          `json:"cancelledAt,omitempty"`
	CancellationReason    string              `json:"cancellationReason,omitempty"`
	EstimatedDeliveryDate *time.Time          `json:"estimatedDeliveryDate,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
	Version               int                 `json:"version"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			VariantID:    it.VariantID,
			VariantName:  it.VariantName,
			Quantity:     it.Quantity,
			Price:        it.Price,
			Subtotal:     it.Subtotal,
		}
	}
	history := make([]historyResponse, len(o.StatusHistory))
	for i, h := range o.StatusHistory {
		history[i] = historyResponse{
			Status:    string(h.Status),
			Timestamp: h.Timestamp,
			UpdatedBy: h.UpdatedBy,
			Notes:     h.Notes,
		}
	}
	a := o.ShippingAddress
	return orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Items:          items,
		Subtotal:       o.Subtotal,
		Discount:       o.Discount,
		DeliveryCharge: o.DeliveryCharge,
		Tax:            o.Tax,
		Total:          o.Total,
		CouponCode:     o.CouponCode,
		ShippingAddress: addressPayload{
			Name:      a.Name,
			Phone:     a.Phone,
			Street:    a.Street,
			City:      a.City,
			State:     a.State,
			Pincode:   a.Pincode,
			Country:   a.Country,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
		},
		DeliveryPincode:       o.DeliveryPincode,
		PaymentMethod:         string(o.PaymentMethod),
		PaymentStatus:         string(o.PaymentStatus),
		PaymentID:             o.PaymentID,
		GatewayOrderID:        o.GatewayOrderID,
		Status:                string(o.Status),
		StatusHistory:         history,
		TrackingNumber:        o.TrackingNumber,
		TrackingURL:           o.TrackingURL,
		CourierName:           o.CourierName,
		CancelledAt:           o.CancelledAt,
		CancellationReason:    o.CancellationReason,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Version:               o.Version,
	}
}

type orderPageResponse struct {
	TraceID    string          `json:"traceId"`
	Orders     []orderResponse `json:"orders"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

type updateStatusRequest struct {
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	ExpectedVersion int    `json:"expectedVersion"`
	TrackingNumber  string `json:"trackingNumber"`
	TrackingURL     string `json:"trackingUrl"`
	CourierName     string `json:"courierName"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type transitionsResponse struct {
	OrderID string   `json:"orderId"`
	Allowed []string `json:"allowed"`
}

func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	userID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	var req checkoutRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	order, err := c.checkout.Checkout(r.Context(), req.toInput(userID))
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	c.logger.Info("checkout completed",
		zap.String("traceId", traceID),
		zap.String("orderNumber", order.OrderNumber),
	)
	commons.WriteJSON(w, http.StatusCreated, toOrderResponse(*order), c.logger)
}

func (c *OrderController) Quote(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	userID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	var req checkoutRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	p, err := c.checkout.Price(r.Context(), req.toInput(userID))
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, pricingResponse{
		TraceID:               traceID,
		Subtotal:              p.Subtotal,
		Discount:              p.Discount,
		DeliveryCharge:        p.DeliveryCharge,
		Tax:                   p.Tax,
		Total:                 p.Total,
		CouponCode:            p.CouponCode,
		IsFreeShipping:        p.IsFreeShipping,
		Zone:                  string(p.Zone),
		EstimatedDeliveryDate: p.EstimatedDeliveryDate,
	}, c.logger)
}

// ListMine lists the caller's own orders.
func (c *OrderController) ListMine(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	userID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	f, p, err := parseListQuery(r)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	f.UserID = userID
	c.writePage(w, r, traceID, f, p)
}

// AdminList lists every order; userId narrows it to one customer.
func (c *OrderController) AdminList(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	f, p, err := parseListQuery(r)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	f.UserID = strings.TrimSpace(r.URL.Query().Get("userId"))
	c.writePage(w, r, traceID, f, p)
}

func (c *OrderController) writePage(w http.ResponseWriter, r *http.Request, traceID string, f domain.OrderFilter, p domain.Page) {
	page, err := c.svc.GetOrders(r.Context(), f, p)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	orders := make([]orderResponse, len(page.Orders))
	for i, o := range page.Orders {
		orders[i] = toOrderResponse(o)
	}
	commons.WriteJSON(w, http.StatusOK, orderPageResponse{
		TraceID:    traceID,
		Orders:     orders,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, c.logger)
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	userID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	order, err := c.svc.GetOrderByID(r.Context(), chi.URLParam(r, "orderId"), userID)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toOrderResponse(*order), c.logger)
}

func (c *OrderController) GetByNumber(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	userID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	order, err := c.svc.GetOrderByNumber(r.Context(), chi.URLParam(r, "orderNumber"), userID)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toOrderResponse(*order), c.logger)
}

func (c *OrderController) AdminGet(w http.ResponseWriter, r *http.Request) {
	order, err := c.svc.GetOrderByID(r.Context(), chi.URLParam(r, "orderId"), "")
	if err != nil {
		commons.WriteError(w, commons.NewTraceID(), err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toOrderResponse(*order), c.logger)
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	userID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	var req cancelRequest
	if r.ContentLength != 0 && !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	order, err := c.svc.CancelOrder(r.Context(), service.CancelOrderInput{
		OrderID: chi.URLParam(r, "orderId"),
		UserID:  userID,
		Reason:  req.Reason,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toOrderResponse(*order), c.logger)
}

func (c *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	adminID, ok := c.requireUser(w, r, traceID)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	order, err := c.svc.UpdateOrderStatus(r.Context(), service.UpdateStatusInput{
		OrderID:         chi.URLParam(r, "orderId"),
		Status:          domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		UpdatedBy:       adminID,
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
		TrackingNumber:  req.TrackingNumber,
		TrackingURL:     req.TrackingURL,
		CourierName:     req.CourierName,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toOrderResponse(*order), c.logger)
}

func (c *OrderController) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	next, err := c.svc.AllowedTransitions(r.Context(), orderID)
	if err != nil {
		commons.WriteError(w, commons.NewTraceID(), err, c.logger)
		return
	}

	allowed := make([]string, len(next))
	for i, s := range next {
		allowed[i] = string(s)
	}
	commons.WriteJSON(w, http.StatusOK, transitionsResponse{OrderID: orderID, Allowed: allowed}, c.logger)
}

func (c *OrderController) requireUser(w http.ResponseWriter, r *http.Request, traceID string) (string, bool) {
	userID := commons.UserID(r)
	if userID == "" {
		commons.WriteError(w, traceID, apperrors.NewValidationError("missing caller identity", apperrors.ValidationDetail{
			Field:   commons.UserHeader,
			Message: commons.UserHeader + " header is required",
		}), c.logger)
		return "", false
	}
	return userID, true
}

// parseListQuery reads status, paymentStatus (comma separated), from, to
// (RFC 3339), search, page and pageSize.
func parseListQuery(r *http.Request) (domain.OrderFilter, domain.Page, error) {
	q := r.URL.Query()
	var (
		f       domain.OrderFilter
		p       domain.Page
		details []apperrors.ValidationDetail
	)

	for _, s := range splitCSV(q.Get("status")) {
		st := domain.OrderStatus(strings.ToLower(s))
		if !st.Valid() {
			details = append(details, apperrors.ValidationDetail{Field: "status", Message: "unknown status " + s})
			continue
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range splitCSV(q.Get("paymentStatus")) {
		f.PaymentStatuses = append(f.PaymentStatuses, domain.PaymentStatus(strings.ToLower(s)))
	}

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(q.Get(bound.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: bound.name, Message: bound.name + " must be an RFC 3339 timestamp"})
			continue
		}
		*bound.dst = &t
	}

	f.Search = strings.TrimSpace(q.Get("search"))

	for _, n := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"pageSize", &p.PageSize}} {
		raw := strings.TrimSpace(q.Get(n.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			details = append(details, apperrors.ValidationDetail{Field: n.name, Message: n.name + " must be a positive integer"})
			continue
		}
		*n.dst = v
	}

	if len(details) > 0 {
		return f, p, apperrors.NewValidationError("invalid query", details...)
	}
	return f, p, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
