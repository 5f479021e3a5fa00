package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/storage"
)

// SnapshotTTL is how long a fetched snapshot counts as fresh.
const SnapshotTTL = 5 * time.Minute

// Fetcher retrieves a dataset from the external API.
type Fetcher interface {
	FetchDataset(ctx context.Context, sourceID, apiKey string) (*models.Snapshot, error)
}

// Cache serves dataset snapshots with a time-to-live. Concurrent callers
// observing a stale snapshot may both fetch; the last save wins, which
// is fine for a read-mostly dataset.
type Cache struct {
	fetcher Fetcher
	store   storage.SnapshotStore
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewCache(fetcher Fetcher, store storage.SnapshotStore, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		store:   store,
		ttl:     SnapshotTTL,
		now:     time.Now,
		logger:  logger,
	}
}

// GetData returns the snapshot for a source, reusing the persisted one
// while it is inside its TTL. forceRefresh bypasses freshness and always
// refetches.
func (c *Cache) GetData(ctx context.Context, sourceID, apiKey string, forceRefresh bool) (*models.Snapshot, error) {
	if !forceRefresh {
		snapshot, err := c.store.GetSnapshot(ctx, sourceID)
		switch {
		case err == nil && snapshot.Fresh(c.now(), c.ttl):
			return snapshot, nil
		case err != nil && !errors.Is(err, storage.ErrSnapshotNotFound):
			c.logger.Warn("Failed to read cached snapshot, refetching",
				zap.String("source_id", sourceID), zap.Error(err))
		}
	}

	snapshot, err := c.fetcher.FetchDataset(ctx, sourceID, apiKey)
	if err != nil {
		return nil, fmt.Errorf("error refreshing dataset %s: %w", sourceID, err)
	}

	snapshot.FetchedAt = c.now()
	snapshot.Stats = ComputeStats(snapshot)

	// The fetch already succeeded; a persistence failure only costs the
	// next caller a refetch, so it does not fail this one.
	if err := c.store.SaveSnapshot(ctx, snapshot); err != nil {
		c.logger.Error("Failed to persist dataset snapshot",
			zap.String("source_id", sourceID), zap.Error(err))
	}

	return snapshot, nil
}
