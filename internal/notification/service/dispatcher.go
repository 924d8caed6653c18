package service

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/metrics"
	"storefront/internal/notification/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sender is the outbound email transport.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

type LogRepository interface {
	Create(ctx context.Context, l *domain.NotificationLog) error
	Update(ctx context.Context, l *domain.NotificationLog) error
}

type Recipients interface {
	Lookup(ctx context.Context, userID string) (*repository.Recipient, error)
}

type Options struct {
	AdminEmail         string
	MaxAttempts        int
	BackoffBase        time.Duration
	BatchWindow        time.Duration
	PriorityOrderTotal decimal.Decimal
}

type message struct {
	typ       domain.NotificationType
	recipient string
	subject   string
	body      string
	orderID   string
}

// Dispatcher renders lifecycle emails and delivers them in the background.
// Delivery failures are recorded on the notification log and never returned
// to the caller.
type Dispatcher struct {
	sender     Sender
	logs       LogRepository
	recipients Recipients
	opts       Options
	metrics    *metrics.Metrics
	logger     *zap.Logger
	batcher    *batcher
	now        func() time.Time

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(
	sender Sender,
	logs LogRepository,
	recipients Recipients,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	d := &Dispatcher{
		sender:     sender,
		logs:       logs,
		recipients: recipients,
		opts:       opts,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
	d.batcher = newBatcher(opts.BatchWindow, &d.wg, d.flushAdminBatch)
	return d
}

// dispatch delivers msg on a tracked goroutine detached from the caller's
// cancellation. Once the dispatcher is closed messages are delivered inline.
func (d *Dispatcher) dispatch(ctx context.Context, msg message) {
	ctx = context.WithoutCancel(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.deliver(ctx, msg)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.deliver(ctx, msg)
	}()
}

// deliver logs the message as pending, then tries to send it up to
// MaxAttempts times, waiting 2^attempt * BackoffBase between attempts.
func (d *Dispatcher) deliver(ctx context.Context, msg message) *domain.NotificationLog {
	now := d.now().UTC()
	entry := &domain.NotificationLog{
		ID:        uuid.New().String(),
		Type:      msg.typ,
		Recipient: msg.recipient,
		Subject:   msg.subject,
		Body:      msg.body,
		OrderID:   msg.orderID,
		Status:    domain.NotificationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	logger := d.logger.With(
		zap.String("notificationId", entry.ID),
		zap.String("type", string(msg.typ)),
		zap.String("orderId", msg.orderID),
	)

	if err := d.logs.Create(ctx, entry); err != nil {
		logger.Error("failed to create notification log", zap.Error(err))
	}

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		providerID, err := d.sender.Send(ctx, msg.recipient, msg.subject, msg.body)
		if err == nil {
			sentAt := d.now().UTC()
			entry.Status = domain.NotificationSent
			entry.ProviderID = providerID
			entry.SentAt = &sentAt
			entry.UpdatedAt = sentAt
			d.updateLog(ctx, entry, logger)
			d.metrics.NotificationAttempt(string(msg.typ), "sent")
			logger.Info("notification sent", zap.Int("attempt", attempt), zap.String("providerId", providerID))
			return entry
		}

		lastErr = err
		entry.RetryCount = attempt
		entry.ErrorMessage = err.Error()
		entry.UpdatedAt = d.now().UTC()
		if attempt == d.opts.MaxAttempts {
			entry.Status = domain.NotificationFailed
		}
		d.updateLog(ctx, entry, logger)
		d.metrics.NotificationAttempt(string(msg.typ), "failed")
		logger.Warn("notification attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < d.opts.MaxAttempts {
			d.sleep(ctx, d.backoff(attempt))
		}
	}

	derr := apperrors.NewNotificationDeliveryError(msg.recipient, d.opts.MaxAttempts, lastErr)
	logger.Error("notification delivery failed", zap.Error(derr))
	return entry
}

func (d *Dispatcher) updateLog(ctx context.Context, entry *domain.NotificationLog, logger *zap.Logger) {
	if err := d.logs.Update(ctx, entry); err != nil {
		logger.Error("failed to update notification log", zap.Error(err))
	}
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	return d.opts.BackoffBase * time.Duration(1<<attempt)
}

func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Wait blocks until every in-flight delivery has finished, including admin
// batches still inside their window.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close flushes open admin batches immediately and waits for outstanding
// deliveries until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.batcher.flushAll()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
