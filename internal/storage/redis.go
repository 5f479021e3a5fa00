package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dnugraha/chatportal/internal/models"
)

const snapshotKeyPrefix = "chatportal:snapshot:"

// RedisSnapshotStore keeps dataset snapshots in Redis. The key expiry
// mirrors the cache TTL, but freshness is still decided from FetchedAt
// so Redis and Postgres stores behave identically.
type RedisSnapshotStore struct {
	client *redis.Client
	expiry time.Duration
}

func NewRedisSnapshotStore(addr, password string, db int, expiry time.Duration) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to redis: %v", err)
	}

	return &RedisSnapshotStore{client: client, expiry: expiry}, nil
}

func (s *RedisSnapshotStore) GetSnapshot(ctx context.Context, sourceID string) (*models.Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKeyPrefix+sourceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot from redis: %v", err)
	}

	snapshot := &models.Snapshot{}
	if err := json.Unmarshal(payload, snapshot); err != nil {
		return nil, fmt.Errorf("error decoding snapshot: %v", err)
	}
	return snapshot, nil
}

func (s *RedisSnapshotStore) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %v", err)
	}

	// Keep the key a little past the freshness window so a stale-but-
	// present snapshot can still be served if a refetch fails.
	if err := s.client.Set(ctx, snapshotKeyPrefix+snapshot.SourceID, payload, 2*s.expiry).Err(); err != nil {
		return fmt.Errorf("error writing snapshot to redis: %v", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
