package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/designaudit-service/internal/entity"
)

// AuditResultRepoImpl provides a concrete implementation for the
// AuditResultRepository interface using PostgreSQL. The whole job
// aggregate is stored as JSONB alongside the columns status queries
// need.
type AuditResultRepoImpl struct {
	db *pgxpool.Pool
}

// NewAuditResultRepo creates a new instance of AuditResultRepoImpl.
func NewAuditResultRepo(db *pgxpool.Pool) *AuditResultRepoImpl {
	return &AuditResultRepoImpl{db: db}
}

// Save stores the finished job. If the job ID already exists, it is updated.
func (r *AuditResultRepoImpl) Save(ctx context.Context, job *entity.DomainAnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job aggregate: %w", err)
	}

	query := `
		INSERT INTO audit_results (job_id, domain, status, total_pages, completed_pages, failed_pages, aggregate, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			total_pages = EXCLUDED.total_pages,
			completed_pages = EXCLUDED.completed_pages,
			failed_pages = EXCLUDED.failed_pages,
			aggregate = EXCLUDED.aggregate,
			finished_at = EXCLUDED.finished_at;
	`
	_, err = r.db.Exec(ctx, query,
		job.ID,
		job.Domain,
		string(job.Status),
		job.Total,
		job.Completed,
		len(job.FailedPages),
		payload,
		job.FinishedAt,
	)
	return err
}

// FindByJobID retrieves a finished job, or nil when unknown.
func (r *AuditResultRepoImpl) FindByJobID(ctx context.Context, jobID string) (*entity.DomainAnalysisJob, error) {
	query := `SELECT aggregate FROM audit_results WHERE job_id = $1;`

	var payload []byte
	if err := r.db.QueryRow(ctx, query, jobID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var job entity.DomainAnalysisJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job aggregate: %w", err)
	}
	return &job, nil
}
