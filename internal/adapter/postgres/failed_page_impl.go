package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/designaudit-service/internal/entity"
)

// FailedPageRepoImpl provides a concrete implementation for the
// FailedPageRepository interface using PostgreSQL.
type FailedPageRepoImpl struct {
	db *pgxpool.Pool
}

// NewFailedPageRepo creates a new instance of FailedPageRepoImpl.
func NewFailedPageRepo(db *pgxpool.Pool) *FailedPageRepoImpl {
	return &FailedPageRepoImpl{db: db}
}

// SaveOrUpdate creates or updates the record for a failed page.
func (r *FailedPageRepoImpl) SaveOrUpdate(ctx context.Context, jobID string, page *entity.FailedPage) error {
	query := `
		INSERT INTO failed_pages (job_id, url, failure_reason, attempted_timeouts_ms, failed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, url) DO UPDATE SET
			failure_reason = EXCLUDED.failure_reason,
			attempted_timeouts_ms = EXCLUDED.attempted_timeouts_ms,
			failed_at = EXCLUDED.failed_at;
	`
	_, err := r.db.Exec(ctx, query,
		jobID,
		page.URL,
		page.Reason,
		page.AttemptedTimeouts,
		page.Timestamp,
	)
	return err
}

// ListByJobID returns all failed pages recorded for a job.
func (r *FailedPageRepoImpl) ListByJobID(ctx context.Context, jobID string) ([]*entity.FailedPage, error) {
	query := `
		SELECT url, failure_reason, attempted_timeouts_ms, failed_at
		FROM failed_pages
		WHERE job_id = $1
		ORDER BY failed_at ASC;
	`
	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*entity.FailedPage
	for rows.Next() {
		var fp entity.FailedPage
		if err := rows.Scan(
			&fp.URL,
			&fp.Reason,
			&fp.AttemptedTimeouts,
			&fp.Timestamp,
		); err != nil {
			return nil, err
		}
		pages = append(pages, &fp)
	}

	return pages, rows.Err()
}

// Delete removes a failed page record, typically after a successful retry.
func (r *FailedPageRepoImpl) Delete(ctx context.Context, jobID, url string) error {
	query := `DELETE FROM failed_pages WHERE job_id = $1 AND url = $2;`
	_, err := r.db.Exec(ctx, query, jobID, url)
	return err
}
