package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "gateway"
	PaymentMethodCOD     PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodGateway || m == PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type ShippingAddress struct {
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

// MissingFields lists the names of required fields that are blank.
func (a ShippingAddress) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"pincode", a.Pincode},
		{"country", a.Country},
	}
	for _, f := range required {
		if isBlank(f.value) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	UpdatedBy string      `json:"updated_by"`
	Notes     string      `json:"notes,omitempty"`
}

type Order struct {
	ID          string
	OrderNumber string
	UserID      string

	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	DeliveryCharge decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal

	CouponCode      string
	ShippingAddress ShippingAddress
	DeliveryPincode string

	PaymentMethod  PaymentMethod
	PaymentStatus  PaymentStatus
	PaymentID      string
	GatewayOrderID string

	Status        OrderStatus
	StatusHistory []StatusHistoryEntry

	TrackingNumber string
	TrackingURL    string
	CourierName    string

	CancelledAt        *time.Time
	CancellationReason string

	EstimatedDeliveryDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	Items []OrderItem
}

// AppendHistory records a status change. Timestamps never go backwards: an
// entry older than the last one is clamped to the last timestamp.
func (o *Order) AppendHistory(status OrderStatus, at time.Time, updatedBy, notes string) {
	if n := len(o.StatusHistory); n > 0 && at.Before(o.StatusHistory[n-1].Timestamp) {
		at = o.StatusHistory[n-1].Timestamp
	}
	o.StatusHistory = append(o.StatusHistory, StatusHistoryEntry{
		Status:    status,
		Timestamp: at,
		UpdatedBy: updatedBy,
		Notes:     notes,
	})
}

// Clone returns a deep copy so callers can mutate a candidate without
// touching the original.
func (o *Order) Clone() *Order {
	c := *o
	c.StatusHistory = append([]StatusHistoryEntry(nil), o.StatusHistory...)
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	if o.EstimatedDeliveryDate != nil {
		t := *o.EstimatedDeliveryDate
		c.EstimatedDeliveryDate = &t
	}
	return &c
}

const orderNumberPrefix = "ORD"

func FormatOrderNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", orderNumberPrefix, year, seq)
}

var (
	paymentIDPattern      = regexp.MustCompile(`^pay_[a-z0-9]+$`)
	gatewayOrderIDPattern = regexp.MustCompile(`^order_[a-z0-9]+$`)
	cardNumberPattern     = regexp.MustCompile(`\d{13,19}`)
)

func IsValidPaymentID(id string) bool {
	return paymentIDPattern.MatchString(id)
}

func IsValidGatewayOrderID(id string) bool {
	return gatewayOrderIDPattern.MatchString(id)
}

// ContainsCardNumber reports whether s holds a card-number shaped run of
// 13 to 19 digits, ignoring spaces and dashes between groups.
func ContainsCardNumber(s string) bool {
	compact := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '-' {
			continue
		}
		compact = append(compact, r)
	}
	return cardNumberPattern.MatchString(string(compact))
}
