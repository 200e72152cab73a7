// Package queue provides the Redis-backed job queue, DLQ, and worker pool
// driving the message-processing pipeline.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// dedupTTL keeps seen messageIds long enough to swallow late webhook
// redeliveries.
const dedupTTL = 24 * time.Hour

// Queue is a persistent job queue on the shared store. Layout per queue name:
//
//	queue:{name}:jobs     hash  jobID → job JSON
//	queue:{name}:waiting  list  jobIDs ready to run
//	queue:{name}:active   list  jobIDs being processed
//	queue:{name}:delayed  zset  jobID scored by ready-at (epoch ms)
//	queue:{name}:lock:{id} lock owned by the processing worker, TTL-bound
//	queue:{name}:dedup:{id} seen-marker for at-most-once enqueue
//	queue:{name}:failed   counter of jobs that reached final failure
//	{name}-dlq            list  job JSON, persisted indefinitely
type Queue struct {
	rdb  *redis.Client
	name string
	cfg  *config.QueueConfig
	now  func() time.Time
}

// New creates a queue handle.
func New(rdb *redis.Client, name string, cfg *config.QueueConfig) *Queue {
	return &Queue{rdb: rdb, name: name, cfg: cfg, now: time.Now}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

func (q *Queue) key(part string) string   { return "queue:" + q.name + ":" + part }
func (q *Queue) lockKey(id string) string { return q.key("lock:" + id) }
func (q *Queue) dlqKey() string           { return q.name + "-dlq" }

// Enqueue adds a job. A duplicate job ID within the dedup window returns
// ErrDuplicateJob so redelivered webhooks collapse.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	ok, err := q.rdb.SetNX(ctx, q.key("dedup:"+job.ID), 1, dedupTTL).Result()
	if err != nil {
		return fmt.Errorf("enqueue dedup check failed: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.key("jobs"), job.ID, payload)
		pipe.LPush(ctx, q.key("waiting"), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue failed for job %s: %w", job.ID, err)
	}
	return nil
}

// Claim pops the next waiting job into the active list and takes its lock.
// Returns ErrNoJobsAvailable on an empty queue.
func (q *Queue) Claim(ctx context.Context, workerID string) (*Job, error) {
	id, err := q.rdb.LMove(ctx, q.key("waiting"), q.key("active"), "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim failed: %w", err)
	}

	job, err := q.loadJob(ctx, id)
	if err != nil {
		// Undo the claim so the job is not lost in active limbo.
		_, _ = q.rdb.LRem(ctx, q.key("active"), 1, id).Result()
		return nil, err
	}

	if err := q.rdb.Set(ctx, q.lockKey(id), workerID, q.cfg.LockDuration).Err(); err != nil {
		return nil, fmt.Errorf("failed to take lock for job %s: %w", id, err)
	}
	return job, nil
}

// ExtendLock refreshes the job lock; called by the worker heartbeat.
func (q *Queue) ExtendLock(ctx context.Context, jobID string) error {
	return q.rdb.Expire(ctx, q.lockKey(jobID), q.cfg.LockDuration).Err()
}

// Complete removes a finished job entirely.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key("active"), 1, job.ID)
		pipe.HDel(ctx, q.key("jobs"), job.ID)
		pipe.Del(ctx, q.lockKey(job.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}
	return nil
}

// Fail records one failed attempt. Retryable failures under the attempt cap
// land in the delayed set with exponential backoff (base, 2×base, 4×base…);
// everything else reaches the DLQ. Returns true when the failure was final.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error, retryable bool) (bool, error) {
	job.Attempts++
	job.LastError = cause.Error()

	if retryable && job.Attempts < q.cfg.MaxAttempts {
		delay := q.cfg.BackoffBase << (job.Attempts - 1)
		readyAt := q.now().Add(delay)

		payload, err := json.Marshal(job)
		if err != nil {
			return false, fmt.Errorf("failed to encode job %s: %w", job.ID, err)
		}
		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.key("active"), 1, job.ID)
			pipe.HSet(ctx, q.key("jobs"), job.ID, payload)
			pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID})
			pipe.Del(ctx, q.lockKey(job.ID))
			return nil
		})
		if err != nil {
			return false, fmt.Errorf("failed to schedule retry for job %s: %w", job.ID, err)
		}
		return false, nil
	}

	if err := q.moveToDLQ(ctx, job); err != nil {
		return true, err
	}
	return true, nil
}

// moveToDLQ parks a job in the dead-letter queue. DLQ entries are never
// auto-removed; retryFromDLQ is the only way out.
func (q *Queue) moveToDLQ(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key("active"), 1, job.ID)
		pipe.HDel(ctx, q.key("jobs"), job.ID)
		pipe.RPush(ctx, q.dlqKey(), payload)
		pipe.Incr(ctx, q.key("failed"))
		pipe.Del(ctx, q.lockKey(job.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to move job %s to DLQ: %w", job.ID, err)
	}
	return nil
}

// Requeue hands a claimed job back to the waiting list without consuming an
// attempt (used on worker shutdown).
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key("active"), 1, job.ID)
		pipe.LPush(ctx, q.key("waiting"), job.ID)
		pipe.Del(ctx, q.lockKey(job.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
	}
	return nil
}

// PromoteDelayed moves due delayed jobs back to waiting. Returns how many
// were promoted.
func (q *Queue) PromoteDelayed(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", q.now().UnixMilli())
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, fmt.Errorf("delayed scan failed: %w", err)
	}
	for _, id := range ids {
		_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.key("delayed"), id)
			pipe.LPush(ctx, q.key("waiting"), id)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to promote job %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// RecoverStalled requeues active jobs whose lock lapsed (worker died or
// overran). A job that stalls more than MaxStalledCount times fails to the
// DLQ instead. Returns how many jobs were requeued or failed.
func (q *Queue) RecoverStalled(ctx context.Context) (int, error) {
	ids, err := q.rdb.LRange(ctx, q.key("active"), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("active scan failed: %w", err)
	}

	recovered := 0
	for _, id := range ids {
		exists, err := q.rdb.Exists(ctx, q.lockKey(id)).Result()
		if err != nil || exists > 0 {
			continue
		}

		job, err := q.loadJob(ctx, id)
		if err != nil {
			// Orphaned ID with no payload: drop it from active.
			_, _ = q.rdb.LRem(ctx, q.key("active"), 1, id).Result()
			continue
		}

		job.Stalls++
		if job.Stalls > q.cfg.MaxStalledCount {
			job.LastError = "job stalled too many times"
			if err := q.moveToDLQ(ctx, job); err != nil {
				return recovered, err
			}
			recovered++
			continue
		}

		payload, err := json.Marshal(job)
		if err != nil {
			return recovered, fmt.Errorf("failed to encode job %s: %w", id, err)
		}
		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.key("active"), 1, id)
			pipe.HSet(ctx, q.key("jobs"), id, payload)
			pipe.LPush(ctx, q.key("waiting"), id)
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("failed to requeue stalled job %s: %w", id, err)
		}
		recovered++
	}
	return recovered, nil
}

// RetryFromDLQ re-enqueues one dead-lettered job onto the main queue with a
// fresh attempt budget.
func (q *Queue) RetryFromDLQ(ctx context.Context, jobID string) error {
	entries, err := q.rdb.LRange(ctx, q.dlqKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("DLQ scan failed: %w", err)
	}

	for _, entry := range entries {
		var job Job
		if err := json.Unmarshal([]byte(entry), &job); err != nil {
			continue
		}
		if job.ID != jobID {
			continue
		}

		job.Attempts = 0
		job.Stalls = 0
		job.LastError = ""
		payload, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", jobID, err)
		}
		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.dlqKey(), 1, entry)
			pipe.HSet(ctx, q.key("jobs"), job.ID, payload)
			pipe.LPush(ctx, q.key("waiting"), job.ID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to retry job %s from DLQ: %w", jobID, err)
		}
		return nil
	}
	return ErrJobNotFound
}

// Stats reports queue depths and the final-failure counter.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	pipe := q.rdb.Pipeline()
	waiting := pipe.LLen(ctx, q.key("waiting"))
	active := pipe.LLen(ctx, q.key("active"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	dlq := pipe.LLen(ctx, q.dlqKey())
	failed := pipe.Get(ctx, q.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("stats read failed: %w", err)
	}

	failedCount, _ := failed.Int64()
	return &Stats{
		Waiting: waiting.Val(),
		Active:  active.Val(),
		Delayed: delayed.Val(),
		DLQ:     dlq.Val(),
		Failed:  failedCount,
	}, nil
}

func (q *Queue) loadJob(ctx context.Context, id string) (*Job, error) {
	payload, err := q.rdb.HGet(ctx, q.key("jobs"), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}
