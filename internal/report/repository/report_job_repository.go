package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

type MySQLReportJobRepository struct {
	db *sql.DB
}

func NewMySQLReportJobRepository(db *sql.DB) *MySQLReportJobRepository {
	return &MySQLReportJobRepository{db: db}
}

func (r *MySQLReportJobRepository) Insert(ctx context.Context, job *domain.ReportJob) error {
	filter, err := json.Marshal(job.Filter)
	if err != nil {
		return fmt.Errorf("encoding report filter: %w", err)
	}

	query := `
		INSERT INTO ReportJobs (id, requestedBy, status, filter, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.RequestedBy, string(job.Status), string(filter), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting report job: %w", err)
	}
	return nil
}

// Update records the job's progress: status, result, error and timestamps.
func (r *MySQLReportJobRepository) Update(ctx context.Context, job *domain.ReportJob) error {
	var result sql.NullString
	if job.Result != nil {
		raw, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("encoding report result: %w", err)
		}
		result = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		UPDATE ReportJobs
		SET status = ?, result = ?, error = ?, updatedAt = ?, completedAt = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		string(job.Status), result, sql.NullString{String: job.Error, Valid: job.Error != ""},
		job.UpdatedAt, job.CompletedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("updating report job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("report job with id %s not found", job.ID))
	}
	return nil
}

func (r *MySQLReportJobRepository) FindByID(ctx context.Context, id string) (*domain.ReportJob, error) {
	query := `
		SELECT id, requestedBy, status, filter, result, error, createdAt, updatedAt, completedAt
		FROM ReportJobs
		WHERE id = ?
	`

	var (
		job         domain.ReportJob
		status      string
		filter      []byte
		result      []byte
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.RequestedBy, &status, &filter, &result, &errMsg,
		&job.CreatedAt, &job.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("report job with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying report job: %w", err)
	}

	job.Status = domain.ReportStatus(status)
	job.Error = errMsg.String
	if err := json.Unmarshal(filter, &job.Filter); err != nil {
		return nil, fmt.Errorf("decoding report filter: %w", err)
	}
	if len(result) > 0 {
		job.Result = domain.NewReportMetrics()
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("decoding report result: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
