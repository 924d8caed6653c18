package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/commons"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/report/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReportService interface {
	GenerateReport(ctx context.Context, f domain.OrderFilter, userID string) (*service.Report, error)
	GetJob(ctx context.Context, id, userID string) (*domain.ReportJob, error)
}

type ReportController struct {
	svc    ReportService
	logger *zap.Logger
}

func NewReportController(svc ReportService, logger *zap.Logger) *ReportController {
	return &ReportController{svc: svc, logger: logger}
}

type reportRequest struct {
	UserID          string     `json:"userId"`
	Statuses        []string   `json:"statuses"`
	PaymentStatuses []string   `json:"paymentStatuses"`
	From            *time.Time `json:"from"`
	To              *time.Time `json:"to"`
	Search          string     `json:"search"`
}

func (req reportRequest) toFilter() (domain.OrderFilter, error) {
	f := domain.OrderFilter{
		UserID: strings.TrimSpace(req.UserID),
		From:   req.From,
		To:     req.To,
		Search: strings.TrimSpace(req.Search),
	}
	for _, s := range req.Statuses {
		st := domain.OrderStatus(strings.ToLower(strings.TrimSpace(s)))
		if !st.Valid() {
			return f, apperrors.NewValidationError("invalid report request", apperrors.ValidationDetail{
				Field:   "statuses",
				Message: "unknown status " + s,
			})
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range req.PaymentStatuses {
		f.PaymentStatuses = append(f.PaymentStatuses, domain.PaymentStatus(strings.ToLower(strings.TrimSpace(s))))
	}
	return f, nil
}

type statusMetricsResponse struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type metricsResponse struct {
	TotalOrders       int                              `json:"totalOrders"`
	TotalRevenue      decimal.Decimal                  `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal                  `json:"averageOrderValue"`
	ByStatus          map[string]statusMetricsResponse `json:"byStatus"`
}

func toMetricsResponse(m *domain.ReportMetrics) *metricsResponse {
	if m == nil {
		return nil
	}
	byStatus := make(map[string]statusMetricsResponse, len(m.ByStatus))
	for status, sm := range m.ByStatus {
		byStatus[string(status)] = statusMetricsResponse{Count: sm.Count, Revenue: sm.Revenue}
	}
	return &metricsResponse{
		TotalOrders:       m.TotalOrders,
		TotalRevenue:      m.TotalRevenue,
		AverageOrderValue: m.AverageOrderValue,
		ByStatus:          byStatus,
	}
}

type jobResponse struct {
	TraceID     string           `json:"traceId,omitempty"`
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Result      *metricsResponse `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func toJobResponse(job *domain.ReportJob) jobResponse {
	return jobResponse{
		ID:          job.ID,
		Status:      string(job.Status),
		Result:      toMetricsResponse(job.Result),
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}

type inlineResponse struct {
	TraceID string           `json:"traceId"`
	Metrics *metricsResponse `json:"metrics"`
}

// Generate answers 200 with the metrics for small result sets and 202 with
// the queued job otherwise.
func (c *ReportController) Generate(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req reportRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}
	f, err := req.toFilter()
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	report, err := c.svc.GenerateReport(r.Context(), f, commons.UserID(r))
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	if report.Job != nil {
		resp := toJobResponse(report.Job)
		resp.TraceID = traceID
		commons.WriteJSON(w, http.StatusAccepted, resp, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, inlineResponse{TraceID: traceID, Metrics: toMetricsResponse(report.Metrics)}, c.logger)
}

func (c *ReportController) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := c.svc.GetJob(r.Context(), chi.URLParam(r, "reportId"), commons.UserID(r))
	if err != nil {
		commons.WriteError(w, commons.NewTraceID(), err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toJobResponse(job), c.logger)
}
