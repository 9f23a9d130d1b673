package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/designaudit-service/internal/entity"
)

const (
	progressKeyPrefix = "audit:progress:"
	// Snapshots outlive the crawl long enough for observers and restarts,
	// then expire on their own.
	progressTTL = 7 * 24 * time.Hour
)

// ProgressStoreImpl provides a concrete implementation for the
// ProgressStore interface using Redis string values holding JSON
// snapshots.
type ProgressStoreImpl struct {
	client *redis.Client
}

// NewProgressStore creates a new instance of ProgressStoreImpl.
func NewProgressStore(client *redis.Client) *ProgressStoreImpl {
	return &ProgressStoreImpl{client: client}
}

func progressKey(jobID string) string {
	return progressKeyPrefix + jobID
}

// Set writes the snapshot, refreshing the TTL on every update.
func (r *ProgressStoreImpl) Set(ctx context.Context, snapshot *entity.ProgressSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal progress snapshot: %w", err)
	}
	return r.client.Set(ctx, progressKey(snapshot.JobID), payload, progressTTL).Err()
}

// Get returns the stored snapshot, or (nil, nil) when none exists.
func (r *ProgressStoreImpl) Get(ctx context.Context, jobID string) (*entity.ProgressSnapshot, error) {
	raw, err := r.client.Get(ctx, progressKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap entity.ProgressSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal progress snapshot: %w", err)
	}
	return &snap, nil
}

// Remove deletes the snapshot, used when a job is reset or exported.
func (r *ProgressStoreImpl) Remove(ctx context.Context, jobID string) error {
	return r.client.Del(ctx, progressKey(jobID)).Err()
}
