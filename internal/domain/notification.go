package domain

import "time"

type NotificationType string

const (
	NotificationOrderConfirmation NotificationType = "order_confirmation"
	NotificationStatusUpdate      NotificationType = "status_update"
	NotificationOrderShipped      NotificationType = "order_shipped"
	NotificationOrderDelivered    NotificationType = "order_delivered"
	NotificationOrderCancelled    NotificationType = "order_cancelled"
	NotificationAdminNewOrder     NotificationType = "admin_new_order"
	NotificationAdminBatch        NotificationType = "admin_new_order_batch"
	NotificationAdminPriority     NotificationType = "admin_priority"
	NotificationReportReady       NotificationType = "report_ready"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type NotificationLog struct {
	ID           string
	Type         NotificationType
	Recipient    string
	Subject      string
	Body         string
	OrderID      string
	Status       NotificationStatus
	RetryCount   int
	ErrorMessage string
	ProviderID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SentAt       *time.Time
}
