package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/notification/repository"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	mu       sync.Mutex
	failures int // fail this many calls before succeeding; -1 fails forever
	calls    int
	sent     []sentMail
	onSend   func()
}

func (s *fakeSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	if s.onSend != nil {
		s.onSend()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures < 0 || s.calls <= s.failures {
		return "", errors.New("smtp: connection reset")
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: html})
	return fmt.Sprintf("msg_%d", s.calls), nil
}

func (s *fakeSender) mails() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}

type fakeLogs struct {
	mu      sync.Mutex
	order   []string
	entries map[string]domain.NotificationLog
	updates int
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{entries: map[string]domain.NotificationLog{}}
}

func (l *fakeLogs) Create(ctx context.Context, e *domain.NotificationLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, e.ID)
	l.entries[e.ID] = *e
	return nil
}

func (l *fakeLogs) Update(ctx context.Context, e *domain.NotificationLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[e.ID]; !ok {
		return apperrors.NewNotFoundError("missing")
	}
	l.updates++
	l.entries[e.ID] = *e
	return nil
}

func (l *fakeLogs) all() []domain.NotificationLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.NotificationLog, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.entries[id])
	}
	return out
}

func (l *fakeLogs) byType(typ domain.NotificationType) []domain.NotificationLog {
	var out []domain.NotificationLog
	for _, e := range l.all() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeRecipients map[string]repository.Recipient

func (f fakeRecipients) Lookup(ctx context.Context, userID string) (*repository.Recipient, error) {
	r, ok := f[userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("profile not found")
	}
	return &r, nil
}

func testOptions() Options {
	return Options{
		AdminEmail:         "admin@example.com",
		MaxAttempts:        3,
		BackoffBase:        time.Millisecond,
		BatchWindow:        30 * time.Millisecond,
		PriorityOrderTotal: decimal.NewFromInt(10000),
	}
}

func newTestDispatcher(sender Sender, logs LogRepository, opts Options) *Dispatcher {
	recipients := fakeRecipients{"user-1": {Email: "asha@example.com", Name: "Asha Rao"}}
	return NewDispatcher(sender, logs, recipients, opts, nil, zap.NewNop())
}

func testOrder(n int, total string) *domain.Order {
	return &domain.Order{
		ID:          fmt.Sprintf("order-%d", n),
		OrderNumber: domain.FormatOrderNumber(2026, int64(n)),
		UserID:      "user-1",
		Total:       decimal.RequireFromString(total),
		Status:      domain.OrderStatusPending,
		ShippingAddress: domain.ShippingAddress{
			Name:  "Asha Rao",
			Phone: "9820000000",
		},
		PaymentMethod: domain.PaymentMethodCOD,
		Items: []domain.OrderItem{
			{ProductName: "Kettle", Quantity: 1, Price: decimal.RequireFromString(total), Subtotal: decimal.RequireFromString(total)},
		},
	}
}

func TestDeliver_SuccessFirstAttempt(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	entry := d.deliver(context.Background(), message{typ: domain.NotificationStatusUpdate, recipient: "a@example.com", subject: "s", body: "b"})

	assert.Equal(t, domain.NotificationSent, entry.Status)
	assert.Zero(t, entry.RetryCount)
	assert.Equal(t, "msg_1", entry.ProviderID)
	require.NotNil(t, entry.SentAt)

	stored := logs.all()
	require.Len(t, stored, 1)
	assert.Equal(t, domain.NotificationSent, stored[0].Status)
}

func TestDeliver_LogCreatedBeforeFirstSend(t *testing.T) {
	logs := newFakeLogs()
	sender := &fakeSender{}
	sender.onSend = func() {
		stored := logs.all()
		require.Len(t, stored, 1)
		assert.Equal(t, domain.NotificationPending, stored[0].Status)
	}
	d := newTestDispatcher(sender, logs, testOptions())

	d.deliver(context.Background(), message{typ: domain.NotificationStatusUpdate, recipient: "a@example.com"})
}

func TestDeliver_RetriesThenSucceeds(t *testing.T) {
	sender := &fakeSender{failures: 2}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	entry := d.deliver(context.Background(), message{typ: domain.NotificationOrderShipped, recipient: "a@example.com"})

	assert.Equal(t, domain.NotificationSent, entry.Status)
	assert.Equal(t, 2, entry.RetryCount)
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, 3, logs.updates)
}

func TestDeliver_ExhaustsRetriesAndAbsorbsFailure(t *testing.T) {
	sender := &fakeSender{failures: -1}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	entry := d.deliver(context.Background(), message{typ: domain.NotificationOrderCancelled, recipient: "a@example.com"})

	assert.Equal(t, domain.NotificationFailed, entry.Status)
	assert.Equal(t, 3, entry.RetryCount)
	assert.Equal(t, "smtp: connection reset", entry.ErrorMessage)
	assert.Equal(t, 3, sender.calls)
	assert.Nil(t, entry.SentAt)
}

func TestBackoff_Exponential(t *testing.T) {
	d := newTestDispatcher(&fakeSender{}, newFakeLogs(), Options{BackoffBase: time.Second})

	assert.Equal(t, 2*time.Second, d.backoff(1))
	assert.Equal(t, 4*time.Second, d.backoff(2))
	assert.Equal(t, 3, d.opts.MaxAttempts)
}

func TestOrderCreated_ConfirmationAndSingleAdminAlert(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	d.OrderCreated(context.Background(), testOrder(1, "1150"))
	d.Wait()

	confirmations := logs.byType(domain.NotificationOrderConfirmation)
	require.Len(t, confirmations, 1)
	assert.Equal(t, "asha@example.com", confirmations[0].Recipient)
	assert.Equal(t, "order-1", confirmations[0].OrderID)
	assert.Contains(t, confirmations[0].Subject, "ORD-2026-000001")

	alerts := logs.byType(domain.NotificationAdminNewOrder)
	require.Len(t, alerts, 1)
	assert.Equal(t, "admin@example.com", alerts[0].Recipient)
	assert.Equal(t, domain.NotificationSent, alerts[0].Status)
	assert.Empty(t, logs.byType(domain.NotificationAdminBatch))
}

func TestOrderCreated_BatchesAdminAlertsWithinWindow(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	opts := testOptions()
	opts.BatchWindow = 100 * time.Millisecond
	d := newTestDispatcher(sender, logs, opts)

	for i := 1; i <= 3; i++ {
		d.OrderCreated(context.Background(), testOrder(i, "100"))
	}
	d.Wait()

	batches := logs.byType(domain.NotificationAdminBatch)
	require.Len(t, batches, 1)
	assert.Equal(t, "3 new orders", batches[0].Subject)
	assert.Contains(t, batches[0].Body, "ORD-2026-000002")

	audit := logs.byType(domain.NotificationAdminNewOrder)
	require.Len(t, audit, 3)
	seen := map[string]bool{}
	for _, a := range audit {
		seen[a.OrderID] = true
		assert.Equal(t, domain.NotificationSent, a.Status)
	}
	assert.Len(t, seen, 3)

	adminMails := 0
	for _, m := range sender.mails() {
		if m.to == "admin@example.com" {
			adminMails++
		}
	}
	assert.Equal(t, 1, adminMails)
}

func TestOrderCreated_PriorityBypassesBatch(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	opts := testOptions()
	opts.BatchWindow = time.Hour
	d := newTestDispatcher(sender, logs, opts)

	d.OrderCreated(context.Background(), testOrder(1, "25000"))
	d.Wait()

	priority := logs.byType(domain.NotificationAdminPriority)
	require.Len(t, priority, 1)
	assert.Contains(t, priority[0].Body, "priority threshold")
	assert.Zero(t, d.batcher.size(domain.NotificationAdminNewOrder))
}

func TestClose_FlushesOpenBatches(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	opts := testOptions()
	opts.BatchWindow = time.Hour
	d := newTestDispatcher(sender, logs, opts)

	d.OrderCreated(context.Background(), testOrder(1, "100"))
	d.OrderCreated(context.Background(), testOrder(2, "100"))
	assert.Equal(t, 2, d.batcher.size(domain.NotificationAdminNewOrder))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Len(t, logs.byType(domain.NotificationAdminBatch), 1)
	assert.Len(t, logs.byType(domain.NotificationAdminNewOrder), 2)

	// After Close, alerts are delivered inline.
	d.OrderCreated(context.Background(), testOrder(3, "100"))
	assert.Len(t, logs.byType(domain.NotificationAdminNewOrder), 3)
}

func TestOrderCreated_ConcurrentAlertsNeitherLostNorDuplicated(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	opts := testOptions()
	opts.BatchWindow = 5 * time.Millisecond
	d := newTestDispatcher(sender, logs, opts)

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%7 == 0 {
				time.Sleep(3 * time.Millisecond)
			}
			d.OrderCreated(context.Background(), testOrder(i, "100"))
		}(i)
	}
	wg.Wait()
	d.Wait()

	counts := map[string]int{}
	for _, a := range logs.byType(domain.NotificationAdminNewOrder) {
		counts[a.OrderID]++
	}
	assert.Len(t, counts, n)
	for id, c := range counts {
		assert.Equal(t, 1, c, id)
	}
}

func TestOrderCreated_UnknownCustomerStillAlertsAdmin(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	o := testOrder(1, "100")
	o.UserID = "ghost"
	d.OrderCreated(context.Background(), o)
	d.Wait()

	assert.Empty(t, logs.byType(domain.NotificationOrderConfirmation))
	assert.Len(t, logs.byType(domain.NotificationAdminNewOrder), 1)
}

func TestOrderCreated_NoAdminEmail(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	opts := testOptions()
	opts.AdminEmail = ""
	d := newTestDispatcher(sender, logs, opts)

	d.OrderCreated(context.Background(), testOrder(1, "100"))
	d.Wait()

	assert.Len(t, logs.all(), 1)
}

func TestStatusChanged_ShippedTemplate(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	o := testOrder(1, "100")
	o.Status = domain.OrderStatusShipped
	o.TrackingNumber = "TRACK123"
	o.CourierName = "BlueDart"
	d.StatusChanged(context.Background(), o, domain.OrderStatusProcessing)
	d.Wait()

	shipped := logs.byType(domain.NotificationOrderShipped)
	require.Len(t, shipped, 1)
	assert.Equal(t, "Order ORD-2026-000001 has shipped", shipped[0].Subject)
	assert.Contains(t, shipped[0].Body, "TRACK123")
	assert.Contains(t, shipped[0].Body, "BlueDart")
}

func TestStatusChanged_GenericUpdate(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	o := testOrder(1, "100")
	o.Status = domain.OrderStatusProcessing
	d.StatusChanged(context.Background(), o, domain.OrderStatusConfirmed)
	d.Wait()

	updates := logs.byType(domain.NotificationStatusUpdate)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].Body, "confirmed")
	assert.Contains(t, updates[0].Body, "processing")
}

func TestOrderCancelled_MentionsRefund(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	o := testOrder(1, "1150")
	o.Status = domain.OrderStatusCancelled
	o.CancellationReason = "Changed my mind"
	o.PaymentStatus = domain.PaymentStatusRefunded
	d.OrderCancelled(context.Background(), o)
	d.Wait()

	cancelled := logs.byType(domain.NotificationOrderCancelled)
	require.Len(t, cancelled, 1)
	assert.Contains(t, cancelled[0].Body, "Changed my mind")
	assert.Contains(t, cancelled[0].Body, "refund of 1150.00")
}

func TestDispatch_DetachedFromCallerCancellation(t *testing.T) {
	sender := &fakeSender{failures: 1}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	o := testOrder(1, "100")
	o.Status = domain.OrderStatusConfirmed
	d.StatusChanged(ctx, o, domain.OrderStatusPending)
	cancel()
	d.Wait()

	updates := logs.byType(domain.NotificationStatusUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, domain.NotificationSent, updates[0].Status)
}

func TestReportReady(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := newTestDispatcher(sender, logs, testOptions())

	metrics := domain.NewReportMetrics()
	metrics.Add(domain.Order{Status: domain.OrderStatusDelivered, Total: decimal.NewFromInt(500)})
	metrics.Finalize()

	d.ReportReady(context.Background(), &domain.ReportJob{ID: "job-1", RequestedBy: "user-1", Result: metrics})
	d.Wait()

	ready := logs.byType(domain.NotificationReportReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "asha@example.com", ready[0].Recipient)
	assert.True(t, strings.Contains(ready[0].Body, "job-1"))
	assert.Contains(t, ready[0].Body, "delivered")
}
