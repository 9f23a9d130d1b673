package repository

import (
	"context"

	"github.com/user/designaudit-service/internal/entity"
)

// ProgressStore is a key-value store surviving process restarts, used
// for crash-resilient crawl progress. Get returns (nil, nil) when no
// snapshot exists for the job.
type ProgressStore interface {
	Set(ctx context.Context, snapshot *entity.ProgressSnapshot) error
	Get(ctx context.Context, jobID string) (*entity.ProgressSnapshot, error)
	Remove(ctx context.Context, jobID string) error
}
