package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"skagen-studio-server/modules/studio"
)

// Redis keys.
const (
	QueueKey        = "studio:jobs:queue"
	jobKeyPrefix    = "studio:job:"
	statusKeySuffix = ":status"
)

var (
	// ErrQueueEmpty is returned when Dequeue times out without a job.
	ErrQueueEmpty = errors.New("queue empty")
	// ErrJobNotFound is returned for unknown or expired job ids.
	ErrJobNotFound = errors.New("job not found")
)

// Job states.
const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateSucceeded  = "succeeded"
	StateFailed     = "failed"
)

// Job - 큐에 저장되는 작업. 이미지 바이트는 JSON에서 base64로 인코딩됨
type Job struct {
	ID    string                `json:"id"`
	Input *studio.GenerateInput `json:"input"`
}

// Status - Job 상태 (Redis hash)
type Status struct {
	ID        string `json:"job_id" redis:"-"`
	State     string `json:"status" redis:"state"`
	ModelUsed string `json:"model_used,omitempty" redis:"model_used"`
	Path      string `json:"path,omitempty" redis:"path"`
	Error     string `json:"error,omitempty" redis:"error"`
	CreatedAt int64  `json:"created_at" redis:"created_at"`
	UpdatedAt int64  `json:"updated_at" redis:"updated_at"`
}

// Queue stores job payloads and statuses.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) (int64, error)
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	SetStatus(ctx context.Context, st *Status) error
	Status(ctx context.Context, id string) (*Status, error)
}

// RedisQueue keeps payloads at studio:job:{id}, statuses at
// studio:job:{id}:status and ids in the studio:jobs:queue list.
type RedisQueue struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisQueue - Redis 기반 큐 생성
func NewRedisQueue(rdb *redis.Client, ttl time.Duration) *RedisQueue {
	return &RedisQueue{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string    { return jobKeyPrefix + id }
func statusKey(id string) string { return jobKeyPrefix + id + statusKeySuffix }

// Enqueue stores the payload and queued status, then LPUSHes the id.
// It returns the queue length after the push.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) (int64, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal job: %w", err)
	}

	now := time.Now().Unix()
	var push *redis.IntCmd
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), payload, q.ttl)
		pipe.HSet(ctx, statusKey(job.ID), statusFields(&Status{State: StateQueued, CreatedAt: now, UpdatedAt: now}))
		pipe.Expire(ctx, statusKey(job.ID), q.ttl)
		push = pipe.LPush(ctx, QueueKey, job.ID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return push.Val(), nil
}

// Dequeue blocks up to timeout on BRPOP and loads the payload.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.rdb.BRPop(ctx, timeout, QueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("redis BRPOP failed: %w", err)
	}

	// result[0]은 queue 이름, result[1]이 job id
	id := result[1]
	payload, err := q.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: payload for %s expired", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// SetStatus overwrites the status hash and refreshes its TTL.
func (q *RedisQueue) SetStatus(ctx context.Context, st *Status) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, statusKey(st.ID), statusFields(st))
		pipe.Expire(ctx, statusKey(st.ID), q.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", st.ID, err)
	}
	return nil
}

// Status reads the status hash of a job.
func (q *RedisQueue) Status(ctx context.Context, id string) (*Status, error) {
	cmd := q.rdb.HGetAll(ctx, statusKey(id))
	fields, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read status of %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	st := &Status{ID: id}
	if err := cmd.Scan(st); err != nil {
		return nil, fmt.Errorf("failed to decode status of %s: %w", id, err)
	}
	return st, nil
}

// statusFields leaves created_at untouched when it is zero.
func statusFields(st *Status) map[string]interface{} {
	fields := map[string]interface{}{
		"state":      st.State,
		"model_used": st.ModelUsed,
		"path":       st.Path,
		"error":      st.Error,
		"updated_at": st.UpdatedAt,
	}
	if st.CreatedAt != 0 {
		fields["created_at"] = st.CreatedAt
	}
	return fields
}
