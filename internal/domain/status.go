package domain

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	for _, st := range AllOrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal next statuses; empty for terminal ones.
func AllowedTransitions(from OrderStatus) []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[from]...)
}

func IsTerminal(s OrderStatus) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func IsCancellable(s OrderStatus) bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}
