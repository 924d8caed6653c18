package service

import (
	"context"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderCreated confirms the order to the customer and alerts the admins.
// High-value orders raise an immediate priority alert; the rest join the
// new-order batch.
func (d *Dispatcher) OrderCreated(ctx context.Context, order *domain.Order) {
	o := order.Clone()
	d.notifyCustomer(ctx, domain.NotificationOrderConfirmation, o, newOrderView(o))

	if d.opts.AdminEmail == "" {
		d.logger.Debug("admin email not configured, skipping new order alert", zap.String("orderId", o.ID))
		return
	}

	if d.isPriority(o) {
		v := newOrderView(o)
		v.Reason = fmt.Sprintf("Order total %s is at or above the priority threshold of %s",
			o.Total.StringFixed(2), d.opts.PriorityOrderTotal.StringFixed(2))
		d.notifyAdmin(ctx, domain.NotificationAdminPriority, o.ID, subjectFor(domain.NotificationAdminPriority, v), v)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.flushAdminBatch(domain.NotificationAdminNewOrder, []domain.Order{*o})
		return
	}
	d.batcher.add(domain.NotificationAdminNewOrder, *o)
	d.mu.Unlock()
}

// StatusChanged tells the customer about a transition. Shipping and delivery
// get their own templates.
func (d *Dispatcher) StatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) {
	o := order.Clone()
	v := newOrderView(o)
	v.PreviousStatus = string(from)

	typ := domain.NotificationStatusUpdate
	switch o.Status {
	case domain.OrderStatusShipped:
		typ = domain.NotificationOrderShipped
	case domain.OrderStatusDelivered:
		typ = domain.NotificationOrderDelivered
	case domain.OrderStatusCancelled:
		typ = domain.NotificationOrderCancelled
	}
	d.notifyCustomer(ctx, typ, o, v)
}

func (d *Dispatcher) OrderCancelled(ctx context.Context, order *domain.Order) {
	o := order.Clone()
	d.notifyCustomer(ctx, domain.NotificationOrderCancelled, o, newOrderView(o))
}

// ReportReady emails the requester of a completed background report.
func (d *Dispatcher) ReportReady(ctx context.Context, job *domain.ReportJob) {
	rcpt, err := d.recipients.Lookup(ctx, job.RequestedBy)
	if err != nil {
		d.logger.Warn("cannot resolve report requester, skipping notification",
			zap.String("reportId", job.ID), zap.String("userId", job.RequestedBy), zap.Error(err))
		return
	}

	body, err := render(domain.NotificationReportReady, reportView{ReportID: job.ID, Report: job.Result})
	if err != nil {
		d.logger.Error("failed to render notification", zap.String("reportId", job.ID), zap.Error(err))
		return
	}
	d.dispatch(ctx, message{
		typ:       domain.NotificationReportReady,
		recipient: rcpt.Email,
		subject:   "Your order report is ready",
		body:      body,
	})
}

func (d *Dispatcher) isPriority(o *domain.Order) bool {
	return d.opts.PriorityOrderTotal.IsPositive() && o.Total.GreaterThanOrEqual(d.opts.PriorityOrderTotal)
}

func (d *Dispatcher) notifyCustomer(ctx context.Context, typ domain.NotificationType, o *domain.Order, v orderView) {
	rcpt, err := d.recipients.Lookup(ctx, o.UserID)
	if err != nil {
		d.logger.Warn("cannot resolve customer email, skipping notification",
			zap.String("orderId", o.ID), zap.String("type", string(typ)), zap.Error(err))
		return
	}
	if rcpt.Name != "" && v.CustomerName == "" {
		v.CustomerName = rcpt.Name
	}

	body, err := render(typ, v)
	if err != nil {
		d.logger.Error("failed to render notification", zap.String("orderId", o.ID), zap.Error(err))
		return
	}
	d.dispatch(ctx, message{
		typ:       typ,
		recipient: rcpt.Email,
		subject:   subjectFor(typ, v),
		body:      body,
		orderID:   o.ID,
	})
}

func (d *Dispatcher) notifyAdmin(ctx context.Context, typ domain.NotificationType, orderID, subject string, data interface{}) {
	body, err := render(typ, data)
	if err != nil {
		d.logger.Error("failed to render notification", zap.String("orderId", orderID), zap.Error(err))
		return
	}
	d.dispatch(ctx, message{
		typ:       typ,
		recipient: d.opts.AdminEmail,
		subject:   subject,
		body:      body,
		orderID:   orderID,
	})
}

// flushAdminBatch sends one alert for the whole batch. A single order goes out
// in its normal form; several orders are summarised in one email and each
// order still gets its own audit row carrying the outcome of that send.
func (d *Dispatcher) flushAdminBatch(_ domain.NotificationType, orders []domain.Order) {
	ctx := context.Background()
	d.metrics.NotificationBatchFlushed(len(orders))

	if len(orders) == 1 {
		o := orders[0]
		v := newOrderView(&o)
		body, err := render(domain.NotificationAdminNewOrder, v)
		if err != nil {
			d.logger.Error("failed to render notification", zap.String("orderId", o.ID), zap.Error(err))
			return
		}
		d.deliver(ctx, message{
			typ:       domain.NotificationAdminNewOrder,
			recipient: d.opts.AdminEmail,
			subject:   subjectFor(domain.NotificationAdminNewOrder, v),
			body:      body,
			orderID:   o.ID,
		})
		return
	}

	view := batchView{}
	total := decimal.Zero
	for i := range orders {
		view.Orders = append(view.Orders, newOrderView(&orders[i]))
		total = total.Add(orders[i].Total)
	}
	view.Total = total.StringFixed(2)

	body, err := render(domain.NotificationAdminBatch, view)
	if err != nil {
		d.logger.Error("failed to render batch notification", zap.Error(err))
		return
	}
	summary := d.deliver(ctx, message{
		typ:       domain.NotificationAdminBatch,
		recipient: d.opts.AdminEmail,
		subject:   fmt.Sprintf("%d new orders", len(orders)),
		body:      body,
	})

	for i := range orders {
		v := view.Orders[i]
		audit := &domain.NotificationLog{
			ID:           uuid.New().String(),
			Type:         domain.NotificationAdminNewOrder,
			Recipient:    d.opts.AdminEmail,
			Subject:      subjectFor(domain.NotificationAdminNewOrder, v),
			Body:         fmt.Sprintf("Included in batch notification %s", summary.ID),
			OrderID:      orders[i].ID,
			Status:       summary.Status,
			RetryCount:   summary.RetryCount,
			ErrorMessage: summary.ErrorMessage,
			ProviderID:   summary.ProviderID,
			CreatedAt:    summary.CreatedAt,
			UpdatedAt:    summary.UpdatedAt,
			SentAt:       summary.SentAt,
		}
		if err := d.logs.Create(ctx, audit); err != nil {
			d.logger.Error("failed to create batch audit log", zap.String("orderId", orders[i].ID), zap.Error(err))
		}
	}
}
