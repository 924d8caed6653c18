package domain

import (
	"strings"
	"time"
)

type OrderFilter struct {
	UserID          string          `json:"user_id,omitempty"`
	Statuses        []OrderStatus   `json:"statuses,omitempty"`
	PaymentStatuses []PaymentStatus `json:"payment_statuses,omitempty"`
	From            *time.Time      `json:"from,omitempty"`
	To              *time.Time      `json:"to,omitempty"`
	Search          string          `json:"search,omitempty"`

	// OrderNumberContains and ContactContains are the repository-level forms
	// of Search, set by ResolveSearch.
	OrderNumberContains string `json:"-"`
	ContactContains     string `json:"-"`

	// After restricts results to orders that sort after the cursor in
	// newest-first order.
	After *OrderCursor `json:"-"`
}

// OrderCursor is a keyset position in the newest-first order.
type OrderCursor struct {
	CreatedAt time.Time
	ID        string
}

func CursorOf(o Order) *OrderCursor {
	return &OrderCursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// ResolveSearch turns Search into a repository filter. Order numbers are
// tried first; when none match, the search falls back to the shipping name
// and phone. It returns the resolved filter with its match count.
func ResolveSearch(f OrderFilter, count func(OrderFilter) (int, error)) (OrderFilter, int, error) {
	search := strings.TrimSpace(f.Search)
	f.OrderNumberContains = search
	f.ContactContains = ""

	n, err := count(f)
	if err != nil || search == "" || n > 0 {
		return f, n, err
	}

	f.OrderNumberContains = ""
	f.ContactContains = search
	n, err = count(f)
	return f, n, err
}

// Matches applies the structured filters, ContactContains and After. It
// does not apply OrderNumberContains.
func (f OrderFilter) Matches(o Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
		return false
	}
	if len(f.PaymentStatuses) > 0 && !containsPaymentStatus(f.PaymentStatuses, o.PaymentStatus) {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	if f.ContactContains != "" && !MatchesContact(o, f.ContactContains) {
		return false
	}
	if f.After != nil && !LessNewestFirst(Order{CreatedAt: f.After.CreatedAt, ID: f.After.ID}, o) {
		return false
	}
	return true
}

// MatchesContact reports whether the shipping name or phone contains query,
// case-insensitively.
func MatchesContact(o Order, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.ShippingAddress.Name), q) ||
		strings.Contains(strings.ToLower(o.ShippingAddress.Phone), q)
}

func containsStatus(list []OrderStatus, s OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPaymentStatus(list []PaymentStatus, s PaymentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to sane bounds (1-based page numbers).
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type OrderPage struct {
	Orders     []Order
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

func NewOrderPage(orders []Order, total int, p Page) *OrderPage {
	pages := 0
	if p.PageSize > 0 {
		pages = (total + p.PageSize - 1) / p.PageSize
	}
	return &OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: pages,
	}
}

// LessNewestFirst orders by created_at desc with id desc as the tie-break so
// that offset pagination partitions consistently.
func LessNewestFirst(a, b Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
