package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache errors
var (
	ErrCacheNotAvailable = fmt.Errorf("cache not available")
	ErrCacheNotFound     = fmt.Errorf("cache not found")
)

// TTLs per data class. Quiz and question payloads change rarely while a
// quiz is being taken; attempts and dashboards churn, so they stay short.
const (
	QuizTTL      = 5 * time.Minute
	QuestionTTL  = 5 * time.Minute
	AttemptTTL   = 2 * time.Minute
	StudentTTL   = 5 * time.Minute
	StatsTTL     = 5 * time.Minute
	DashboardTTL = 1 * time.Minute
)

// CacheHelper wraps one redis namespace. A nil client degrades to
// pass-through: reads miss, writes are dropped.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
	}
}

func (c *CacheHelper) key(key string) string {
	return c.prefix + key
}

// Get retrieves and unmarshals a cached value.
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

// Set marshals and stores a value.
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes the given keys, pipelining when there is more than one.
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = c.key(key)
	}

	if len(cacheKeys) > 1 {
		pipe := c.client.Pipeline()
		pipe.Del(ctx, cacheKeys...)
		_, err := pipe.Exec(ctx)
		return err
	}

	return c.client.Del(ctx, cacheKeys...).Err()
}

// InvalidatePattern removes all keys matching a pattern. Uses SCAN, not
// KEYS, so it is safe against a busy instance.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	fullPattern := c.key(pattern)
	var cursor uint64
	var keys []string

	for {
		var scanKeys []string
		var err error
		scanKeys, cursor, err = c.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			slog.ErrorContext(ctx, "Cache scan pattern error",
				"error", err,
				"pattern", fullPattern)
			return fmt.Errorf("cache scan pattern error: %w", err)
		}
		keys = append(keys, scanKeys...)
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		pipe.Del(ctx, keys[i:end]...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "Cache pipeline delete error",
			"error", err,
			"total_keys", len(keys))
		return fmt.Errorf("cache pipeline delete error: %w", err)
	}

	return nil
}

// CacheOrExecute implements the cache-aside pattern: return the cached
// value when present, otherwise fetch, return, and backfill the cache
// asynchronously so the caller is not blocked on the write.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetchFunc func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}

	if err != ErrCacheNotFound && err != ErrCacheNotAvailable {
		slog.Info("Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	value, err := fetchFunc()
	if err != nil {
		return err
	}

	go func(parentCtx context.Context) {
		ctxWithTimeout, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), 5*time.Second)
		defer cancel()
		if err := c.Set(ctxWithTimeout, key, value, ttl); err != nil {
			slog.Error("Cache set error", "error", err, "key", key)
		}
	}(ctx)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}

	return json.Unmarshal(data, dest)
}

// CacheManager bundles the per-domain cache namespaces.
type CacheManager struct {
	Quiz      *CacheHelper
	Question  *CacheHelper
	Attempt   *CacheHelper
	Student   *CacheHelper
	Stats     *CacheHelper
	Dashboard *CacheHelper
	User      *CacheHelper
}

// NewCacheManager wires one helper per namespace. A nil client is valid
// and turns every namespace into a pass-through.
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		Quiz:      NewCacheHelper(client, "quiz:"),
		Question:  NewCacheHelper(client, "question:"),
		Attempt:   NewCacheHelper(client, "attempt:"),
		Student:   NewCacheHelper(client, "student:"),
		Stats:     NewCacheHelper(client, "stats:"),
		Dashboard: NewCacheHelper(client, "dashboard:"),
		User:      NewCacheHelper(client, "user:"),
	}
}

// HealthCheck verifies cache connectivity.
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.Quiz.client == nil {
		return ErrCacheNotAvailable
	}

	if _, err := cm.Quiz.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}

	return nil
}

// InvalidateQuiz drops everything derived from one quiz: the quiz itself,
// its question list, its stats, every list that may contain it, and the
// dashboards that aggregate it.
func (cm *CacheManager) InvalidateQuiz(ctx context.Context, quizID uint) {
	patterns := []struct {
		helper  *CacheHelper
		pattern string
	}{
		{cm.Quiz, fmt.Sprintf("id:%d*", quizID)},
		{cm.Quiz, "list:*"},
		{cm.Question, fmt.Sprintf("quiz:%d*", quizID)},
		{cm.Stats, fmt.Sprintf("quiz:%d*", quizID)},
		{cm.Dashboard, "*"},
	}

	for _, p := range patterns {
		if err := p.helper.InvalidatePattern(ctx, p.pattern); err != nil {
			continue
		}
	}
}

// InvalidateAttempt drops one attempt and the aggregates it feeds.
func (cm *CacheManager) InvalidateAttempt(ctx context.Context, attemptID, quizID uint) {
	patterns := []struct {
		helper  *CacheHelper
		pattern string
	}{
		{cm.Attempt, fmt.Sprintf("id:%d*", attemptID)},
		{cm.Attempt, "list:*"},
		{cm.Stats, fmt.Sprintf("quiz:%d*", quizID)},
		{cm.Dashboard, "*"},
	}

	for _, p := range patterns {
		if err := p.helper.InvalidatePattern(ctx, p.pattern); err != nil {
			continue
		}
	}
}

// InvalidateStudent drops one student and any roster listings.
func (cm *CacheManager) InvalidateStudent(ctx context.Context, studentID uint) {
	patterns := []string{
		fmt.Sprintf("id:%d*", studentID),
		"list:*",
	}

	for _, pattern := range patterns {
		if err := cm.Student.InvalidatePattern(ctx, pattern); err != nil {
			continue
		}
	}
}
