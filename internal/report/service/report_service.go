package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("storefront/report")

const (
	modeInline = "inline"
	modeAsync  = "async"
)

type OrderSource interface {
	Count(ctx context.Context, f domain.OrderFilter) (int, error)
	Find(ctx context.Context, f domain.OrderFilter, p domain.Page) ([]domain.Order, error)
}

type JobRepository interface {
	Insert(ctx context.Context, job *domain.ReportJob) error
	Update(ctx context.Context, job *domain.ReportJob) error
	FindByID(ctx context.Context, id string) (*domain.ReportJob, error)
}

type Notifier interface {
	ReportReady(ctx context.Context, job *domain.ReportJob)
}

type Options struct {
	// AsyncThreshold is the order count above which a report runs as a
	// background job.
	AsyncThreshold int
	PageSize       int
	// Parallelism is the number of workers folding pages into metrics.
	Parallelism int
}

// Report holds either the inline metrics or the job computing them.
type Report struct {
	Metrics *domain.ReportMetrics
	Job     *domain.ReportJob
}

type ReportService struct {
	orders   OrderSource
	jobs     JobRepository
	notifier Notifier
	opts     Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewReportService(orders OrderSource, jobs JobRepository, notifier Notifier, opts Options, m *metrics.Metrics, logger *zap.Logger) *ReportService {
	if opts.AsyncThreshold <= 0 {
		opts.AsyncThreshold = 1000
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &ReportService{
		orders:   orders,
		jobs:     jobs,
		notifier: notifier,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// GenerateReport aggregates the orders matching f as of the request time;
// orders placed afterwards are never counted. Search resolves the same way as
// order listing. Large result sets are handed to a background job and the
// pending job is returned instead.
func (s *ReportService) GenerateReport(ctx context.Context, f domain.OrderFilter, userID string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "ReportService.GenerateReport", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		err := apperrors.NewValidationError("invalid report request", apperrors.ValidationDetail{
			Field:   "userId",
			Message: "userId is required",
		})
		recordError(span, err)
		return nil, err
	}
	asOf := s.now().UTC()
	if f.To == nil || f.To.After(asOf) {
		f.To = &asOf
	}

	f, count, err := domain.ResolveSearch(f, func(f domain.OrderFilter) (int, error) {
		return s.orders.Count(ctx, f)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("report.orders", count))

	if count > s.opts.AsyncThreshold {
		job, err := s.startJob(ctx, f, userID, count)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		return &Report{Job: job}, nil
	}

	m, err := s.aggregate(ctx, f)
	if err != nil {
		s.metrics.ReportRun(modeInline, "failed")
		recordError(span, err)
		return nil, err
	}
	s.metrics.ReportRun(modeInline, "completed")
	return &Report{Metrics: m}, nil
}

func (s *ReportService) startJob(ctx context.Context, f domain.OrderFilter, userID string, count int) (*domain.ReportJob, error) {
	now := s.now().UTC()
	job := &domain.ReportJob{
		ID:          uuid.New().String(),
		RequestedBy: userID,
		Status:      domain.ReportPending,
		Filter:      f,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("report job queued",
		zap.String("reportId", job.ID),
		zap.String("userId", userID),
		zap.Int("orders", count),
	)

	snapshot := *job
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(context.WithoutCancel(ctx), &snapshot)
	}()
	return job, nil
}

func (s *ReportService) runJob(ctx context.Context, job *domain.ReportJob) {
	ctx, span := tracer.Start(ctx, "ReportService.runJob", trace.WithAttributes(
		attribute.String("report.id", job.ID),
	))
	defer span.End()

	logger := s.logger.With(zap.String("reportId", job.ID))

	job.Status = domain.ReportProcessing
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.Error("failed to mark report job processing", zap.Error(err))
	}

	m, err := s.aggregate(ctx, job.Filter)
	now := s.now().UTC()
	job.UpdatedAt = now
	if err != nil {
		recordError(span, err)
		job.Status = domain.ReportFailed
		job.Error = err.Error()
		if uerr := s.jobs.Update(ctx, job); uerr != nil {
			logger.Error("failed to record report job failure", zap.Error(uerr))
		}
		s.metrics.ReportRun(modeAsync, "failed")
		logger.Error("report job failed", zap.Error(err))
		return
	}

	job.Status = domain.ReportCompleted
	job.Result = m
	job.CompletedAt = &now
	if err := s.jobs.Update(ctx, job); err != nil {
		recordError(span, err)
		s.metrics.ReportRun(modeAsync, "failed")
		logger.Error("failed to store report result", zap.Error(err))
		return
	}
	s.metrics.ReportRun(modeAsync, "completed")
	logger.Info("report job completed", zap.Int("orders", m.TotalOrders))

	if s.notifier != nil {
		s.notifier.ReportReady(ctx, job)
	}
}

// aggregate folds every matching order into one ReportMetrics. A single
// reader walks the set with a (createdAt, id) keyset so writes landing
// between pages cannot shift rows, and the pages fan out to the workers.
func (s *ReportService) aggregate(ctx context.Context, f domain.OrderFilter) (*domain.ReportMetrics, error) {
	pages := make(chan []domain.Order)
	partials := make([]*domain.ReportMetrics, s.opts.Parallelism)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pages)
		return s.readPages(gctx, f, pages)
	})
	for i := range partials {
		part := domain.NewReportMetrics()
		partials[i] = part
		g.Go(func() error {
			for page := range pages {
				for _, o := range page {
					part.Add(o)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := domain.NewReportMetrics()
	for _, part := range partials {
		total.Merge(part)
	}
	total.Finalize()
	return total, nil
}

func (s *ReportService) readPages(ctx context.Context, f domain.OrderFilter, out chan<- []domain.Order) error {
	for n := 1; ; n++ {
		orders, err := s.orders.Find(ctx, f, domain.Page{Page: 1, PageSize: s.opts.PageSize})
		if err != nil {
			return fmt.Errorf("reading report page %d: %w", n, err)
		}
		if len(orders) > 0 {
			select {
			case out <- orders:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if len(orders) < s.opts.PageSize {
			return nil
		}
		f.After = domain.CursorOf(orders[len(orders)-1])
	}
}

// GetJob returns a report job to the user who requested it.
func (s *ReportService) GetJob(ctx context.Context, id, userID string) (*domain.ReportJob, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.RequestedBy != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("report job with id %s not found", id))
	}
	return job, nil
}

// Wait blocks until every background job has finished.
func (s *ReportService) Wait() {
	s.wg.Wait()
}

// Close waits for background jobs or gives up when ctx is done.
func (s *ReportService) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
