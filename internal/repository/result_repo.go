package repository

import (
	"context"

	"github.com/user/designaudit-service/internal/entity"
)

// AuditResultRepository stores finished job aggregates durably.
type AuditResultRepository interface {
	// Save stores the finished job. If the job ID already exists, it is updated.
	Save(ctx context.Context, job *entity.DomainAnalysisJob) error
	// FindByJobID retrieves a finished job, or nil when unknown.
	FindByJobID(ctx context.Context, jobID string) (*entity.DomainAnalysisJob, error)
}

// FailedPageRepository manages pages that exhausted their attempt
// schedule, supporting the single-page retry path.
type FailedPageRepository interface {
	// SaveOrUpdate creates or updates the record for a failed page.
	SaveOrUpdate(ctx context.Context, jobID string, page *entity.FailedPage) error
	// ListByJobID returns all failed pages recorded for a job.
	ListByJobID(ctx context.Context, jobID string) ([]*entity.FailedPage, error)
	// Delete removes a failed page record, typically after a successful retry.
	Delete(ctx context.Context, jobID, url string) error
}
