package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore реализует CacheStore для Redis (Infrastructure Layer)
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создает новый экземпляр RedisStore
func NewRedisStore(client *redis.Client, ttlSeconds int) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

// ===== Ключи Redis =====

func recordingKey(id int64) string {
	return fmt.Sprintf("recording:%d:metadata", id)
}

func sessionIndexKey(sessionID string) string {
	return fmt.Sprintf("recording:session:%s", sessionID)
}

func activityKey(id int64) string {
	return fmt.Sprintf("recording:%d:last_activity", id)
}

// ===== Кэш записей =====

func (r *RedisStore) SetRecording(ctx context.Context, rec *Recording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, recordingKey(rec.ID), data, r.ttl)
	pipe.Set(ctx, sessionIndexKey(rec.SessionID), rec.ID, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache recording: %w", err)
	}

	return nil
}

func (r *RedisStore) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	data, err := r.client.Get(ctx, recordingKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to get recording from cache: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}

	return &rec, nil
}

func (r *RedisStore) GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error) {
	idStr, err := r.client.Get(ctx, sessionIndexKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to resolve session index: %w", err)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached recording id: %w", err)
	}

	return r.GetRecording(ctx, id)
}

func (r *RedisStore) DeleteRecording(ctx context.Context, rec *Recording) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, recordingKey(rec.ID))
	pipe.Del(ctx, sessionIndexKey(rec.SessionID))
	pipe.Del(ctx, activityKey(rec.ID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete recording from cache: %w", err)
	}

	return nil
}

// ===== Активность =====

func (r *RedisStore) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	return r.client.Set(ctx, activityKey(id), at.UnixMilli(), r.ttl).Err()
}

func (r *RedisStore) LastActivity(ctx context.Context, id int64) (time.Time, error) {
	ms, err := r.client.Get(ctx, activityKey(id)).Int64()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, ErrRecordingNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get last activity: %w", err)
	}

	return time.UnixMilli(ms), nil
}
