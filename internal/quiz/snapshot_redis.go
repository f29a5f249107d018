package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "chembot:quiz:"

// RedisSnapshotStore keeps one JSON snapshot per user with a TTL
type RedisSnapshotStore struct {
	rdb *redis.Client
	// Grace is added to the remaining quiz budget when computing the TTL
	Grace time.Duration
	// Untimed is the TTL of snapshots of quizzes without a time limit
	Untimed time.Duration
}

// NewRedisSnapshotStore connects to a Redis server
func NewRedisSnapshotStore(addr, password string, db int) *RedisSnapshotStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSnapshotStore{rdb: rdb, Grace: time.Hour, Untimed: 24 * time.Hour}
}

// Ping checks the connection
func (rs *RedisSnapshotStore) Ping(ctx context.Context) error {
	return rs.rdb.Ping(ctx).Err()
}

// Close closes the client
func (rs *RedisSnapshotStore) Close() error {
	return rs.rdb.Close()
}

func snapshotKey(userID int64) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, userID)
}

func (rs *RedisSnapshotStore) ttl(s *Session) time.Duration {
	deadline, ok := s.Deadline()
	if !ok {
		return rs.Untimed
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	return remaining + rs.Grace
}

// Save implements SnapshotStore
func (rs *RedisSnapshotStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := rs.rdb.Set(ctx, snapshotKey(s.UserID), data, rs.ttl(s)).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Delete implements SnapshotStore
func (rs *RedisSnapshotStore) Delete(ctx context.Context, userID int64) error {
	if err := rs.rdb.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// LoadAll implements SnapshotStore
func (rs *RedisSnapshotStore) LoadAll(ctx context.Context) ([]*Session, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := rs.rdb.Scan(ctx, cursor, snapshotKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshots: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sessions := make([]*Session, 0, len(keys))
	for _, key := range keys {
		raw, err := rs.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, nil
}
