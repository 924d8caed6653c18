package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportProcessing ReportStatus = "processing"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

type StatusMetrics struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ReportMetrics struct {
	TotalOrders       int                           `json:"total_orders"`
	TotalRevenue      decimal.Decimal               `json:"total_revenue"`
	AverageOrderValue decimal.Decimal               `json:"average_order_value"`
	ByStatus          map[OrderStatus]StatusMetrics `json:"by_status"`
}

func NewReportMetrics() *ReportMetrics {
	return &ReportMetrics{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		ByStatus:          make(map[OrderStatus]StatusMetrics),
	}
}

// Add folds one order into the running totals. Call Finalize once done.
func (m *ReportMetrics) Add(o Order) {
	m.TotalOrders++
	m.TotalRevenue = m.TotalRevenue.Add(o.Total)
	sm := m.ByStatus[o.Status]
	sm.Count++
	sm.Revenue = sm.Revenue.Add(o.Total)
	m.ByStatus[o.Status] = sm
}

// Merge folds other into m.
func (m *ReportMetrics) Merge(other *ReportMetrics) {
	m.TotalOrders += other.TotalOrders
	m.TotalRevenue = m.TotalRevenue.Add(other.TotalRevenue)
	for status, om := range other.ByStatus {
		sm := m.ByStatus[status]
		sm.Count += om.Count
		sm.Revenue = sm.Revenue.Add(om.Revenue)
		m.ByStatus[status] = sm
	}
}

func (m *ReportMetrics) Finalize() {
	m.TotalRevenue = RoundMoney(m.TotalRevenue)
	if m.TotalOrders > 0 {
		m.AverageOrderValue = RoundMoney(m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalOrders))))
	} else {
		m.AverageOrderValue = decimal.Zero
	}
	for status, sm := range m.ByStatus {
		sm.Revenue = RoundMoney(sm.Revenue)
		m.ByStatus[status] = sm
	}
}

type ReportJob struct {
	ID          string
	RequestedBy string
	Status      ReportStatus
	Filter      OrderFilter
	Result      *ReportMetrics
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
