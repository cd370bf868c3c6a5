package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sierra-export/internal/config"
	"sierra-export/internal/core/domain"
)

// NewRedisClient connects to the queue database and verifies the
// connection before handing the client out.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.QueueDatabase,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisExportQueue hands waiting instances from the API process to the
// workers. Pending runs sit in a LIST; runs scheduled for the future
// sit in a ZSET scored by their due time.
type RedisExportQueue struct {
	client    *redis.Client
	ctx       context.Context
	keyPrefix string
}

func NewRedisExportQueue(client *redis.Client, keyPrefix string) *RedisExportQueue {
	return &RedisExportQueue{
		client:    client,
		ctx:       context.Background(),
		keyPrefix: keyPrefix,
	}
}

func (q *RedisExportQueue) pendingKey() string {
	return q.keyPrefix + "pending_exports"
}

func (q *RedisExportQueue) scheduledKey() string {
	return q.keyPrefix + "scheduled_exports"
}

// Enqueue pushes an instance onto the pending list.
func (q *RedisExportQueue) Enqueue(instance domain.ExportInstance) error {
	payload, err := instance.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	if err := q.client.LPush(q.ctx, q.pendingKey(), payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue instance: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next pending instance. A nil
// instance with nil error means the wait timed out.
func (q *RedisExportQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExportInstance, error) {
	result, err := q.client.BRPop(ctx, timeout, q.pendingKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue instance: %w", err)
	}

	// BRPop returns [key, value].
	instance, err := domain.ExportInstanceFromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &instance, nil
}

// Schedule parks an instance until its due time.
func (q *RedisExportQueue) Schedule(instance domain.ExportInstance, due time.Time) error {
	payload, err := instance.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	err = q.client.ZAdd(q.ctx, q.scheduledKey(), redis.Z{
		Score:  float64(due.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule instance: %w", err)
	}
	return nil
}

// PromoteDue moves every scheduled instance whose due time has passed
// onto the pending list and returns how many moved.
func (q *RedisExportQueue) PromoteDue(now time.Time) (int, error) {
	maxScore := fmt.Sprintf("%d", now.Unix())

	payloads, err := q.client.ZRangeByScore(q.ctx, q.scheduledKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read due instances: %w", err)
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for _, payload := range payloads {
		pipe.LPush(q.ctx, q.pendingKey(), payload)
		pipe.ZRem(q.ctx, q.scheduledKey(), payload)
	}
	if _, err := pipe.Exec(q.ctx); err != nil {
		return 0, fmt.Errorf("failed to promote due instances: %w", err)
	}
	return len(payloads), nil
}

// PendingCount returns the length of the pending list.
func (q *RedisExportQueue) PendingCount() (int64, error) {
	count, err := q.client.LLen(q.ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count pending instances: %w", err)
	}
	return count, nil
}

// RedisLockManager implements distributed locks using Redis
type RedisLockManager struct {
	client    *redis.Client
	keyPrefix string
	lockTTL   time.Duration
	workerID  string
}

func NewRedisLockManager(client *redis.Client, keyPrefix string, lockTTL time.Duration, workerID string) *RedisLockManager {
	return &RedisLockManager{
		client:    client,
		keyPrefix: keyPrefix,
		lockTTL:   lockTTL,
		workerID:  workerID,
	}
}

func (l *RedisLockManager) lockKey(key string) string {
	return fmt.Sprintf("%slock:export:%s", l.keyPrefix, key)
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *RedisLockManager) TryAcquire(ctx context.Context, key string) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.lockKey(key), l.workerID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return acquired, nil
}

// Release deletes the lock only when this worker still owns it.
func (l *RedisLockManager) Release(ctx context.Context, key string) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.lockKey(key)}, l.workerID).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == int64(0) {
		return fmt.Errorf("lock not owned by this worker")
	}
	return nil
}

// Extend pushes the lock TTL out for long runs, only while owned.
func (l *RedisLockManager) Extend(ctx context.Context, key string, additionalTTL time.Duration) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.lockKey(key)}, l.workerID, additionalTTL.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == int64(0) {
		return fmt.Errorf("lock not owned by this worker")
	}
	return nil
}

func (l *RedisLockManager) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return exists > 0, nil
}
